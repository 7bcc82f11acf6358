// Package appconfig holds the persisted settings documents, their schema
// upgrades, and the store that loads and saves them.
package appconfig

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Settings file names, resolved against the settings directory.
const (
	AppSettingsFileName     = "Settings.json"
	ManagerSettingsFileName = "Manager.json"
	QueueSettingsFileName   = "Queuelist.json"
	CookiesFileName         = "Cookies.json"
)

// Current schema versions.
const (
	AppSettingsVersion     = 3
	QueueSettingsVersion   = 2
	ManagerSettingsVersion = 2
)

// DefaultDownloadLocation is the relative download folder inside the
// installation directory.
const DefaultDownloadLocation = "Blogs"

// AppSettings holds user-facing application configuration.
type AppSettings struct {
	Version          int    `json:"version"`
	Language         string `json:"language"`
	LogLevel         string `json:"logLevel" validate:"oneof=Off Error Warning Info Verbose"`
	DownloadLocation string `json:"downloadLocation" validate:"required"`
	PortableMode     bool   `json:"portableMode"`

	LastUpdateCheck    time.Time `json:"lastUpdateCheck"`
	LastTelemetryCheck time.Time `json:"lastTelemetryCheck"`

	// Identity used to sign telemetry submissions
	InstallID       string `json:"installId" validate:"required"`
	TelemetrySecret string `json:"telemetrySecret" validate:"required"`
}

// DefaultAppSettings returns AppSettings populated with defaults.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Version:          AppSettingsVersion,
		LogLevel:         "Info",
		DownloadLocation: DefaultDownloadLocation,
		InstallID:        uuid.New().String(),
		TelemetrySecret:  uuid.New().String(),
	}
}

// UpgradeAppSettings migrates s to the current schema in place and reports
// whether anything changed. Calling it on a current document is a no-op.
func UpgradeAppSettings(s *AppSettings) bool {
	if s.Version >= AppSettingsVersion {
		return false
	}
	if s.Version < 2 {
		if s.LogLevel == "" {
			s.LogLevel = "Info"
		}
		if s.DownloadLocation == "" {
			s.DownloadLocation = DefaultDownloadLocation
		}
	}
	if s.Version < 3 {
		// Older releases stored culture names as de_DE.
		s.Language = strings.ReplaceAll(s.Language, "_", "-")
	}
	s.Version = AppSettingsVersion
	return true
}

// QueueItem is one queued blog.
type QueueItem struct {
	Name     string `json:"name" validate:"required"`
	BlogType string `json:"blogType"`
}

// QueueSettings is the persisted queue list.
type QueueSettings struct {
	Version     int         `json:"version"`
	Items       []QueueItem `json:"items" validate:"dive"`
	LastCrawled string      `json:"lastCrawled"`
}

// DefaultQueueSettings returns an empty queue list.
func DefaultQueueSettings() QueueSettings {
	return QueueSettings{Version: QueueSettingsVersion, Items: []QueueItem{}}
}

// UpgradeQueueSettings migrates q in place and reports whether it changed.
func UpgradeQueueSettings(q *QueueSettings) bool {
	if q.Version >= QueueSettingsVersion {
		return false
	}
	// Version 1 allowed the same blog to be queued twice.
	seen := make(map[QueueItem]bool, len(q.Items))
	items := make([]QueueItem, 0, len(q.Items))
	for _, it := range q.Items {
		if seen[it] {
			continue
		}
		seen[it] = true
		items = append(items, it)
	}
	q.Items = items
	q.Version = QueueSettingsVersion
	return true
}

// Column describes one column of the library view.
type Column struct {
	Name         string  `json:"name" validate:"required"`
	Width        float64 `json:"width" validate:"gte=0"`
	Visible      bool    `json:"visible"`
	DisplayIndex int     `json:"displayIndex" validate:"gte=0"`
}

// ManagerSettings is the persisted library-manager state.
type ManagerSettings struct {
	Version    int      `json:"version"`
	Columns    []Column `json:"columns" validate:"dive"`
	LibraryDir string   `json:"libraryDir"`
}

// DefaultColumns returns the stock library column layout.
func DefaultColumns() []Column {
	return []Column{
		{Name: "Name", Width: 200, Visible: true, DisplayIndex: 0},
		{Name: "Url", Width: 260, Visible: true, DisplayIndex: 1},
		{Name: "Progress", Width: 120, Visible: true, DisplayIndex: 2},
		{Name: "LastCompleteCrawl", Width: 140, Visible: true, DisplayIndex: 3},
		{Name: "BlogType", Width: 90, Visible: false, DisplayIndex: 4},
	}
}

// DefaultManagerSettings returns ManagerSettings with the stock layout.
func DefaultManagerSettings() ManagerSettings {
	return ManagerSettings{Version: ManagerSettingsVersion, Columns: DefaultColumns()}
}

// UpgradeManagerSettings migrates m in place and reports whether it changed.
func UpgradeManagerSettings(m *ManagerSettings) bool {
	if m.Version >= ManagerSettingsVersion {
		return false
	}
	if len(m.Columns) == 0 {
		m.Columns = DefaultColumns()
	}
	m.Version = ManagerSettingsVersion
	return true
}

// OrderedColumns returns the columns sorted by display index.
func (m ManagerSettings) OrderedColumns() []Column {
	cols := append([]Column(nil), m.Columns...)
	sort.SliceStable(cols, func(i, j int) bool { return cols[i].DisplayIndex < cols[j].DisplayIndex })
	return cols
}
