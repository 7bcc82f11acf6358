// Package orchestrator drives the application lifecycle: it resolves and
// loads settings, wires the sub-controllers together, runs the post-start
// checks and flushes state on exit.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/phuslu/log"
	"github.com/stevecastle/reblog/appconfig"
	"github.com/stevecastle/reblog/controllers"
	"github.com/stevecastle/reblog/cookies"
	"github.com/stevecastle/reblog/downloads"
	"github.com/stevecastle/reblog/events"
	"github.com/stevecastle/reblog/logging"
	"github.com/stevecastle/reblog/maintenance"
	"github.com/stevecastle/reblog/platform"
	"github.com/stevecastle/reblog/queue"
	"github.com/stevecastle/reblog/subsystems"
	"github.com/stevecastle/reblog/telemetry"
	"github.com/stevecastle/reblog/update"
	"github.com/stevecastle/reblog/version"
	"golang.org/x/text/language"
)

// Sub-controller keys, in initialization order.
const (
	KeyManager subsystems.Key = "manager"
	KeyQueue   subsystems.Key = "queue"
	KeyDetails subsystems.Key = "details"
	KeyCrawler subsystems.Key = "crawler"
)

var initOrder = []subsystems.Key{KeyManager, KeyQueue, KeyDetails, KeyCrawler}

// Shell is the window or tray surface the orchestrator coordinates.
type Shell interface {
	Bind(b Bindings)
	Show()
	CloseForced()
	SetQueueViewVisible(visible bool)
	SetDetailsViewVisible(visible bool)
	QueueViewVisible() bool
	FinalizeAffordances()
}

// Messenger shows dialogs to the user.
type Messenger interface {
	ShowYesNo(question, title string) bool
	ShowWarning(message string)
	ShowError(message, title string)
}

// Bindings are the callbacks handed to the shell and sub-controllers.
type Bindings struct {
	Settings          *appconfig.AppSettings
	ShowError         func(err error, message string)
	ShowDetailsView   func()
	ShowQueueView     func()
	UpdateDetailsView func()
	SettingsChanged   func()
}

// Dispatcher runs work on the UI goroutine once it is idle.
type Dispatcher interface {
	InvokeIdle(ctx context.Context, fn func()) error
}

// UpdateChecker runs the update workflows.
type UpdateChecker interface {
	CheckDaily(ctx context.Context, lastCheck time.Time) update.State
	CheckArchitecture(ctx context.Context, hostIs64, processIs64 bool) update.State
}

// TelemetrySender submits the periodic report.
type TelemetrySender interface {
	Send(ctx context.Context) error
}

// Config wires an Orchestrator. Only Shell, Messenger and Dispatcher are
// required; everything else has a production default.
type Config struct {
	ExeDir    string
	DataDir   string
	TempDir   string
	Bootstrap appconfig.Bootstrap

	Shell      Shell
	Messenger  Messenger
	Dispatcher Dispatcher
	Logger     *log.Logger
	Clock      clockwork.Clock

	Feed          update.ReleaseFeed
	Installer     update.Installer
	Telemetry     TelemetrySender
	OpenURL       func(string) error
	Architecture  func() (host64, process64 bool)
	CrawlRegistry *controllers.CrawlRegistry

	// Decorate, when set, wraps every sub-controller as it is built.
	Decorate func(key subsystems.Key, c subsystems.Controller) subsystems.Controller
}

// Orchestrator owns the settings documents and sub-controllers.
type Orchestrator struct {
	cfg    Config
	logger *log.Logger
	clock  clockwork.Clock
	store  *appconfig.Store
	bus    *events.Bus

	settingsDir string
	logDir      string
	portable    bool
	logCloser   io.Closer
	locale      language.Tag

	mu              sync.Mutex
	settings        *appconfig.AppSettings
	queueSettings   *appconfig.QueueSettings
	managerSettings *appconfig.ManagerSettings
	bindings        Bindings
	progress        downloads.Progress
	stopping        bool

	jar       *cookies.Jar
	queue     *queue.Manager
	registry  *subsystems.Registry
	subs      []events.Subscription
	scheduler *maintenance.Scheduler
	cleaner   *maintenance.Cleaner
	checker   UpdateChecker
	sender    TelemetrySender

	manager  *controllers.Manager
	queueCtl *controllers.Queue
	details  *controllers.Details
	crawler  *controllers.Crawler

	shutdownOnce sync.Once
}

// New creates an Orchestrator. Nothing is loaded until Initialize.
func New(cfg Config) *Orchestrator {
	if cfg.Logger == nil {
		cfg.Logger = logging.Bootstrap()
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.OpenURL == nil {
		cfg.OpenURL = platform.OpenURL
	}
	if cfg.Architecture == nil {
		cfg.Architecture = func() (bool, bool) { return platform.HostIs64Bit(), platform.ProcessIs64Bit() }
	}
	if cfg.TempDir == "" {
		cfg.TempDir = platform.GetTempDir()
	}
	return &Orchestrator{
		cfg:       cfg,
		logger:    cfg.Logger,
		clock:     cfg.Clock,
		store:     appconfig.NewStore(cfg.Logger),
		bus:       events.NewBus(cfg.Logger),
		jar:       cookies.NewJar(),
		registry:  subsystems.NewRegistry(),
		scheduler: maintenance.NewScheduler(cfg.Logger),
		cleaner:   maintenance.NewCleaner(cfg.Logger),
	}
}

// Initialize performs the startup sequence. The only error it returns is a
// stored log level outside the supported set.
func (o *Orchestrator) Initialize(ctx context.Context) error {
	// 1. Settings and log directories; portable mode keeps both next to
	// the executable.
	o.settingsDir = o.cfg.DataDir
	o.logDir = filepath.Dir(o.cfg.DataDir)
	if platform.IsPortable(o.cfg.ExeDir, appconfig.AppSettingsFileName) {
		o.portable = true
		o.settingsDir = o.cfg.ExeDir
		o.logDir = o.cfg.ExeDir
	}

	// 2. Application settings, upgraded to the current schema.
	settings := appconfig.Load(o.store, o.path(appconfig.AppSettingsFileName), appconfig.DefaultAppSettings)
	settings.PortableMode = o.portable
	if appconfig.UpgradeAppSettings(&settings) {
		o.logger.Info().Str("component", "orchestrator").Int("version", settings.Version).Msg("upgraded application settings")
		_ = o.store.Save(o.path(appconfig.AppSettingsFileName), settings)
	}

	// 3. Logging with the stored verbosity, then the locale.
	level, err := logging.ParseLevel(settings.LogLevel)
	if err != nil {
		o.logger.Error().Err(err).Str("component", "orchestrator").Msg("invalid log level in settings")
		return fmt.Errorf("configure logging: %w", err)
	}
	closer, err := logging.Configure(o.logger, o.logDir, level)
	if err != nil {
		o.logger.Warn().Err(err).Str("component", "orchestrator").Msg("could not open log file, logging to console only")
	} else {
		o.logCloser = closer
	}
	o.logger.Info().Str("component", "orchestrator").Str("version", version.Full()).Str("settings", o.settingsDir).Bool("portable", o.portable).Msg("starting")

	o.locale = parseLocale(settings.Language, o.logger)
	if err := appconfig.Validate(settings); err != nil {
		o.logger.Warn().Err(err).Str("component", "orchestrator").Msg("application settings failed validation")
	}
	o.settings = &settings

	// 4. Remaining documents.
	qs := appconfig.Load(o.store, o.path(appconfig.QueueSettingsFileName), appconfig.DefaultQueueSettings)
	appconfig.UpgradeQueueSettings(&qs)
	o.queueSettings = &qs
	ms := appconfig.Load(o.store, o.path(appconfig.ManagerSettingsFileName), appconfig.DefaultManagerSettings)
	appconfig.UpgradeManagerSettings(&ms)
	o.managerSettings = &ms
	if err := appconfig.Validate(qs); err != nil {
		o.logger.Warn().Err(err).Str("component", "orchestrator").Str("document", "queue").Msg("settings failed validation")
	}
	if err := appconfig.Validate(ms); err != nil {
		o.logger.Warn().Err(err).Str("component", "orchestrator").Str("document", "manager").Msg("settings failed validation")
	}
	records := appconfig.Load(o.store, o.path(appconfig.CookiesFileName), func() []cookies.Record { return nil })

	// 5. Shell bindings.
	o.bindings = Bindings{
		Settings:          o.settings,
		ShowError:         o.showError,
		ShowDetailsView:   func() { o.cfg.Shell.SetDetailsViewVisible(true) },
		ShowQueueView:     func() { o.cfg.Shell.SetQueueViewVisible(true) },
		UpdateDetailsView: o.updateDetailsView,
		SettingsChanged:   func() { o.bus.Publish(context.Background(), events.SettingsChanged) },
	}
	o.cfg.Shell.Bind(o.bindings)
	o.subscribe(events.SettingsChanged, "orchestrator.save-settings", func(context.Context) error {
		o.SaveSettings()
		return nil
	})

	// 6. The one shared queue.
	o.queue = queue.NewManager()
	o.checker = o.newChecker(ctx)
	o.sender = o.newSender()

	// 7. Sub-controllers.
	o.register()
	for _, key := range initOrder {
		if _, err := o.registry.Get(key); err != nil {
			return err
		}
	}
	o.subscribe(events.LibraryLoaded, "queue.load-queue", func(context.Context) error {
		o.queueCtl.LoadQueue()
		return nil
	})
	o.subscribe(events.CrawlerFinishedLastBlog, "details.finished-crawling", func(context.Context) error {
		o.details.OnFinishedCrawlingLastBlog()
		return nil
	})
	for _, key := range initOrder {
		if err := o.registry.Initialize(ctx, key); err != nil {
			o.logger.Error().Err(err).Str("component", "orchestrator").Str("controller", string(key)).Msg("sub-controller failed to initialize")
		}
	}

	// 8. Cookies.
	o.jar.Set(cookies.Filter(records))
	return nil
}

func (o *Orchestrator) path(name string) string {
	return filepath.Join(o.settingsDir, name)
}

func parseLocale(lang string, logger *log.Logger) language.Tag {
	if lang == "" {
		return language.English
	}
	tag, err := language.Parse(lang)
	if err != nil {
		logger.Warn().Err(err).Str("component", "orchestrator").Str("language", lang).Msg("unknown language, using English")
		return language.English
	}
	return tag
}

func (o *Orchestrator) subscribe(signal events.Signal, name string, h events.Handler) {
	o.subs = append(o.subs, o.bus.Subscribe(signal, name, h))
}

func (o *Orchestrator) register() {
	decorate := func(key subsystems.Key, c subsystems.Controller) subsystems.Controller {
		if o.cfg.Decorate != nil {
			return o.cfg.Decorate(key, c)
		}
		return c
	}
	libraryDir := o.managerSettings.LibraryDir
	if libraryDir == "" {
		libraryDir = filepath.Join(o.downloadDir(), "Index")
	}

	o.registry.Register(KeyManager, func() subsystems.Controller {
		o.manager = controllers.NewManager(libraryDir, o.managerSettings, o.bus, o.logger)
		return decorate(KeyManager, o.manager)
	})
	o.registry.Register(KeyQueue, func() subsystems.Controller {
		o.queueCtl = controllers.NewQueue(o.queueSettings, o.queue, o.manager, o.logger)
		return decorate(KeyQueue, o.queueCtl)
	})
	o.registry.Register(KeyDetails, func() subsystems.Controller {
		o.details = controllers.NewDetails(o.queue, o.bindings.UpdateDetailsView)
		return decorate(KeyDetails, o.details)
	})
	o.registry.Register(KeyCrawler, func() subsystems.Controller {
		o.crawler = controllers.NewCrawler(controllers.CrawlerConfig{
			Queue:    o.queue,
			Library:  o.manager,
			Registry: o.cfg.CrawlRegistry,
			Jar:      o.jar,
			Bus:      o.bus,
			Logger:   o.logger,
			Workers:  o.cfg.Bootstrap.Crawler.Workers,
			Timeout:  o.cfg.Bootstrap.CrawlerTimeout(),
		})
		return decorate(KeyCrawler, o.crawler)
	})
}

// downloadDir resolves the download location against the executable
// directory when it is relative.
func (o *Orchestrator) downloadDir() string {
	loc := o.settings.DownloadLocation
	if filepath.IsAbs(loc) {
		return loc
	}
	return filepath.Join(o.cfg.ExeDir, loc)
}

func (o *Orchestrator) newChecker(ctx context.Context) UpdateChecker {
	feed := o.cfg.Feed
	if feed == nil {
		feed = o.newFeed(ctx)
	}
	installer := o.cfg.Installer
	if installer == nil {
		installer = update.NewPackageInstaller(o.cfg.ExeDir, o.cfg.TempDir, o.onUpdateProgress)
	}
	return update.NewChecker(update.Config{
		Feed:           feed,
		Installer:      installer,
		Prompter:       o.cfg.Messenger,
		Notifier:       o.cfg.Messenger,
		Clock:          o.clock,
		Logger:         o.logger,
		CurrentVersion: version.Version,
		Arch:           platform.ProcessArch(),
		ReleasePage:    o.cfg.Bootstrap.Feed.ReleasePage,
		OpenURL:        o.cfg.OpenURL,
	})
}

func (o *Orchestrator) newFeed(ctx context.Context) update.ReleaseFeed {
	fc := o.cfg.Bootstrap.Feed
	if fc.Source == "s3" {
		feed, err := update.NewS3FeedFromConfig(ctx, fc)
		if err == nil {
			return feed
		}
		o.logger.Warn().Err(err).Str("component", "orchestrator.update").Msg("could not configure s3 release feed, using github")
	}
	return update.NewGitHubFeed(nil, fc.Owner, fc.Repo)
}

func (o *Orchestrator) newSender() TelemetrySender {
	if o.cfg.Telemetry != nil {
		return o.cfg.Telemetry
	}
	return telemetry.NewSender(telemetry.Config{
		Endpoint:  o.cfg.Bootstrap.Telemetry.Endpoint,
		Timeout:   o.cfg.Bootstrap.TelemetryTimeout(),
		InstallID: o.settings.InstallID,
		Secret:    o.settings.TelemetrySecret,
		Version:   version.Version,
		Arch:      platform.ProcessArch(),
		LogPath:   logging.Path(o.logDir),
		Clock:     o.clock,
	})
}

func (o *Orchestrator) onUpdateProgress(p downloads.Progress) {
	o.mu.Lock()
	o.progress = p
	o.mu.Unlock()
	o.bus.Publish(context.Background(), events.UpdateProgress)
}

// UpdateProgress returns the latest update download progress.
func (o *Orchestrator) UpdateProgress() downloads.Progress {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.progress
}

func (o *Orchestrator) showError(err error, message string) {
	o.logger.Error().Err(err).Str("component", "orchestrator").Msg(message)
	detail := message
	if err != nil {
		detail = message + "\n\n" + err.Error()
	}
	o.cfg.Messenger.ShowError(detail, "Error")
}

// updateDetailsView brings the details view forward unless the queue view
// is showing.
func (o *Orchestrator) updateDetailsView() {
	if !o.cfg.Shell.QueueViewVisible() {
		o.cfg.Shell.SetDetailsViewVisible(true)
	}
}

// Bus exposes the event bus so the shell can follow signals.
func (o *Orchestrator) Bus() *events.Bus {
	return o.bus
}

// Queue returns the shared queue.
func (o *Orchestrator) Queue() *queue.Manager {
	return o.queue
}

// Details returns the details controller.
func (o *Orchestrator) Details() *controllers.Details {
	return o.details
}

// Locale returns the configured UI language.
func (o *Orchestrator) Locale() language.Tag {
	return o.locale
}

// SettingsDir returns the directory holding the settings documents.
func (o *Orchestrator) SettingsDir() string {
	return o.settingsDir
}

// SaveSettings flushes all four documents. Each write is atomic on its
// own; the batch is not.
func (o *Orchestrator) SaveSettings() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.settings == nil {
		return
	}
	_ = o.store.Save(o.path(appconfig.AppSettingsFileName), o.settings)
	_ = o.store.Save(o.path(appconfig.QueueSettingsFileName), o.queueSettings)
	_ = o.store.Save(o.path(appconfig.ManagerSettingsFileName), o.managerSettings)
	_ = o.store.Save(o.path(appconfig.CookiesFileName), o.jar.Collect())
}

// Shutdown stops everything in reverse order and flushes settings. Extra
// calls are no-ops.
func (o *Orchestrator) Shutdown(ctx context.Context) {
	o.shutdownOnce.Do(func() {
		for _, sub := range o.subs {
			o.bus.Unsubscribe(sub)
		}
		o.subs = nil

		o.mu.Lock()
		o.stopping = true
		o.mu.Unlock()
		o.scheduler.Stop()

		if err := o.registry.ShutdownAll(ctx); err != nil {
			o.logger.Error().Err(err).Str("component", "orchestrator").Msg("sub-controller shutdown failed")
		}
		o.registry.Dispose()

		o.cfg.Shell.CloseForced()
		o.SaveSettings()
		o.logger.Info().Str("component", "orchestrator").Msg("shut down")

		if o.logCloser != nil {
			o.logger.Writer = &log.ConsoleWriter{Writer: os.Stderr}
			if err := o.logCloser.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
				fmt.Fprintf(os.Stderr, "close log: %v\n", err)
			}
		}
	})
}
