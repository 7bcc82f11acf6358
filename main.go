package main

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/getlantern/systray"
	"github.com/phuslu/log"

	"github.com/stevecastle/reblog/appconfig"
	"github.com/stevecastle/reblog/dispatch"
	"github.com/stevecastle/reblog/events"
	"github.com/stevecastle/reblog/logging"
	"github.com/stevecastle/reblog/orchestrator"
	"github.com/stevecastle/reblog/platform"
)

// -----------------------------------------------------------------------------
// Embedded tray icon.
// -----------------------------------------------------------------------------

//go:embed assets/logo.ico
var iconData []byte

// shutdownTimeout bounds how long onExit waits for the crawler and the
// settings flush.
const shutdownTimeout = 10 * time.Second

var (
	logger     *log.Logger
	app        *orchestrator.Orchestrator
	dispatcher *dispatch.Dispatcher
	shell      *trayShell
)

// -----------------------------------------------------------------------------
// main – initialize the orchestrator then hand control to the tray.
// -----------------------------------------------------------------------------

func main() {
	logger = logging.Bootstrap()
	exeDir := platform.ExecutableDir()
	bootstrap := appconfig.LoadBootstrap(filepath.Join(exeDir, appconfig.BootstrapFileName), logger)

	dispatcher = dispatch.New(logger)
	dispatcher.Start()

	shell = newTrayShell(logger)
	app = orchestrator.New(orchestrator.Config{
		ExeDir:     exeDir,
		DataDir:    platform.GetDataDir(),
		Bootstrap:  bootstrap,
		Shell:      shell,
		Messenger:  &trayMessenger{autoAccept: bootstrap.Update.AutoAccept, logger: logger, shell: shell},
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	if err := app.Initialize(context.Background()); err != nil {
		logger.Error().Err(err).Str("component", "main").Msg("startup failed")
		dispatcher.Stop()
		os.Exit(1)
	}
	shell.summary = app.Details().Summary

	// run tray icon (blocks until Quit)
	systray.Run(onReady, onExit)
}

// -----------------------------------------------------------------------------
// systray lifecycle hooks
// -----------------------------------------------------------------------------

func onReady() {
	systray.SetTemplateIcon(iconData, iconData)
	systray.SetTitle(platform.AppDisplayName)
	systray.SetTooltip(platform.AppDisplayName + " – starting")

	queueItem := systray.AddMenuItem("Show queue", "Show the crawl queue")
	detailsItem := systray.AddMenuItem("Show details", "Show crawl details")
	systray.AddSeparator()
	settingsItem := systray.AddMenuItem("Open settings folder", "Open the folder holding the settings")
	systray.AddSeparator()
	quitItem := systray.AddMenuItem("Quit", "Stop crawling and exit")
	shell.attach(queueItem, detailsItem, settingsItem)

	app.Bus().Subscribe(events.UpdateProgress, "tray.update-progress", func(context.Context) error {
		p := app.UpdateProgress()
		systray.SetTooltip(fmt.Sprintf("%s – updating %.0f%%", platform.AppDisplayName, p.Percent))
		return nil
	})

	go func() {
		switch app.Run(context.Background()) {
		case orchestrator.CloseNow:
			logger.Info().Str("component", "main").Msg("closing for update")
			systray.Quit()
		case orchestrator.Failed:
			systray.SetTooltip(platform.AppDisplayName + " – startup failed, see log")
		}
	}()

	// event loop
	for {
		select {
		case <-queueItem.ClickedCh:
			shell.SetQueueViewVisible(!shell.QueueViewVisible())
		case <-detailsItem.ClickedCh:
			shell.SetDetailsViewVisible(true)
		case <-settingsItem.ClickedCh:
			if err := platform.OpenURL(app.SettingsDir()); err != nil {
				logger.Warn().Err(err).Str("component", "main").Msg("could not open settings folder")
			}
		case <-quitItem.ClickedCh:
			systray.Quit()
			return
		}
	}
}

func onExit() {
	logger.Info().Str("component", "main").Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	app.Shutdown(ctx)
	dispatcher.Stop()
}
