package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/stevecastle/reblog/appconfig"
	"github.com/stevecastle/reblog/maintenance"
	"github.com/stevecastle/reblog/platform"
	"github.com/stevecastle/reblog/update"
)

// Result tells the host what to do after Run.
type Result int

const (
	// Continue keeps the application running.
	Continue Result = iota
	// CloseNow asks the host to exit so an applied update can take over.
	CloseNow
	// Failed means Run panicked; the error has been logged.
	Failed
)

func (r Result) String() string {
	switch r {
	case Continue:
		return "continue"
	case CloseNow:
		return "close-now"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

const writableFolderWarning = "The application folder is write protected. " +
	"Blogs are downloaded to the default location inside it, which will fail. " +
	"Choose a writable download location in the settings."

func today(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Run performs the post-start sequence. Initialize must have succeeded.
func (o *Orchestrator) Run(ctx context.Context) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error().Str("component", "orchestrator").Str("panic", fmt.Sprint(r)).Msg("startup sequence failed")
			res = Failed
		}
	}()

	writeProtected := platform.IsWriteProtected(o.cfg.ExeDir)
	if !writeProtected {
		o.cleaner.Cleanup(o.cfg.ExeDir, maintenance.LeftoverDirs, maintenance.LeftoverFiles, func(name string, err error) {
			o.cfg.Messenger.ShowError(fmt.Sprintf("Could not remove %s: %v", name, err), "Error")
		})
	}

	o.cfg.Shell.SetQueueViewVisible(true)
	o.cfg.Shell.Show()

	if err := o.cfg.Dispatcher.InvokeIdle(ctx, func() {
		o.manager.RestoreColumns()
		o.queueCtl.Run()
	}); err != nil {
		o.logger.Warn().Err(err).Str("component", "orchestrator").Msg("could not start queue processing")
	}

	host64, process64 := o.cfg.Architecture()
	if o.checker.CheckArchitecture(ctx, host64, process64) == update.Applied {
		return o.closeNow()
	}

	o.mu.Lock()
	lastCheck := o.settings.LastUpdateCheck
	o.mu.Unlock()
	state := o.checker.CheckDaily(ctx, lastCheck)
	o.mu.Lock()
	o.settings.LastUpdateCheck = today(o.clock.Now())
	o.mu.Unlock()
	if state == update.Applied {
		return o.closeNow()
	}

	o.mu.Lock()
	defaultLocation := o.settings.DownloadLocation == appconfig.DefaultDownloadLocation
	o.mu.Unlock()
	if writeProtected && defaultLocation {
		o.cfg.Messenger.ShowWarning(writableFolderWarning)
	}

	o.syncTelemetry(ctx)

	o.cfg.Shell.FinalizeAffordances()

	o.startMaintenance()
	return Continue
}

// closeNow forces the next start to send telemetry.
func (o *Orchestrator) closeNow() Result {
	o.mu.Lock()
	o.settings.LastTelemetryCheck = time.Time{}
	o.mu.Unlock()
	o.logger.Info().Str("component", "orchestrator").Msg("update applied, closing")
	return CloseNow
}

func (o *Orchestrator) syncTelemetry(ctx context.Context) {
	now := o.clock.Now()
	o.mu.Lock()
	due := maintenance.SyncDue(o.settings.LastTelemetryCheck, now)
	o.mu.Unlock()
	if !due {
		return
	}
	if err := o.sender.Send(ctx); err != nil {
		o.logger.Warn().Err(err).Str("component", "orchestrator.telemetry").Msg("telemetry submission failed")
		return
	}
	o.mu.Lock()
	o.settings.LastTelemetryCheck = today(now)
	o.mu.Unlock()
}

// startMaintenance arms the schedule unless Shutdown has begun. The flag
// check and the start happen under o.mu.
func (o *Orchestrator) startMaintenance() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopping {
		o.logger.Debug().Str("component", "orchestrator").Msg("shutting down, maintenance not scheduled")
		return
	}
	if err := o.scheduler.Start(o.cfg.Bootstrap.Maintenance.Schedule, func() {
		o.syncTelemetry(context.Background())
	}); err != nil {
		o.logger.Warn().Err(err).Str("component", "orchestrator").Msg("maintenance schedule disabled")
	}
}
