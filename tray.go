package main

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"
	"github.com/phuslu/log"

	"github.com/stevecastle/reblog/controllers"
	"github.com/stevecastle/reblog/orchestrator"
	"github.com/stevecastle/reblog/platform"
)

// trayShell presents the queue and details views as tray menu entries.
type trayShell struct {
	logger  *log.Logger
	summary func() controllers.Summary

	mu           sync.Mutex
	bindings     orchestrator.Bindings
	queueItem    *systray.MenuItem
	detailsItem  *systray.MenuItem
	settingsItem *systray.MenuItem
	queueVisible bool
	closed       bool
}

func newTrayShell(logger *log.Logger) *trayShell {
	return &trayShell{logger: logger}
}

// attach hands the menu entries to the shell. Entries stay disabled until
// FinalizeAffordances.
func (s *trayShell) attach(queueItem, detailsItem, settingsItem *systray.MenuItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queueItem, s.detailsItem, s.settingsItem = queueItem, detailsItem, settingsItem
	queueItem.Disable()
	detailsItem.Disable()
	settingsItem.Disable()
}

func (s *trayShell) Bind(b orchestrator.Bindings) {
	s.mu.Lock()
	s.bindings = b
	s.mu.Unlock()
}

func (s *trayShell) Show() {
	systray.SetTooltip(platform.AppDisplayName)
}

func (s *trayShell) CloseForced() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	systray.Quit()
}

func (s *trayShell) SetQueueViewVisible(visible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queueVisible = visible
	if s.queueItem == nil {
		return
	}
	if visible {
		s.queueItem.Check()
	} else {
		s.queueItem.Uncheck()
	}
}

func (s *trayShell) QueueViewVisible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queueVisible
}

// SetDetailsViewVisible refreshes the details entry with the current
// crawl summary.
func (s *trayShell) SetDetailsViewVisible(visible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.detailsItem == nil || s.summary == nil || !visible {
		return
	}
	sum := s.summary()
	title := fmt.Sprintf("Completed %d, failed %d, pending %d", sum.Completed, sum.Failed, sum.Pending)
	if sum.LastBlog != "" {
		title += " (last: " + sum.LastBlog + ")"
	}
	s.detailsItem.SetTitle(title)
}

func (s *trayShell) FinalizeAffordances() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range []*systray.MenuItem{s.queueItem, s.detailsItem, s.settingsItem} {
		if item != nil {
			item.Enable()
		}
	}
}

// trayMessenger has no dialogs; questions are answered from the bootstrap
// file and everything else goes to the log and the tooltip.
type trayMessenger struct {
	autoAccept bool
	logger     *log.Logger
	shell      *trayShell
}

func (m *trayMessenger) ShowYesNo(question, title string) bool {
	m.logger.Info().Str("component", "main").Str("title", title).Bool("answer", m.autoAccept).Msg(question)
	return m.autoAccept
}

func (m *trayMessenger) ShowWarning(message string) {
	m.logger.Warn().Str("component", "main").Msg(message)
	systray.SetTooltip(platform.AppDisplayName + " – " + message)
}

func (m *trayMessenger) ShowError(message, title string) {
	m.logger.Error().Str("component", "main").Str("title", title).Msg(message)
	systray.SetTooltip(platform.AppDisplayName + " – " + title)
}
