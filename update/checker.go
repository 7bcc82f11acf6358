package update

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/phuslu/log"
)

// State is the position of an update workflow.
type State int

const (
	Idle State = iota
	Checking
	NoUpdateAvailable
	UpdateAvailable
	Declined
	Downloading
	Applied
	Failed
	Unavailable
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Checking:
		return "Checking"
	case NoUpdateAvailable:
		return "NoUpdateAvailable"
	case UpdateAvailable:
		return "UpdateAvailable"
	case Declined:
		return "Declined"
	case Downloading:
		return "Downloading"
	case Applied:
		return "Applied"
	case Failed:
		return "Failed"
	case Unavailable:
		return "Unavailable"
	default:
		return "Unknown"
	}
}

// Prompter asks the user a yes/no question.
type Prompter interface {
	ShowYesNo(question, title string) bool
}

// Notifier surfaces conditions to the user.
type Notifier interface {
	ShowWarning(message string)
	ShowError(message, title string)
}

// Config wires a Checker.
type Config struct {
	Feed           ReleaseFeed
	Installer      Installer
	Prompter       Prompter
	Notifier       Notifier
	Clock          clockwork.Clock
	Logger         *log.Logger
	CurrentVersion string
	// Arch is the package architecture of the running process.
	Arch string
	// ReleasePage is offered when no matching package exists.
	ReleasePage string
	OpenURL     func(string) error
}

// Checker runs the daily update check and the architecture check. Each
// runs at most once, and neither runs after the other has applied an
// update.
type Checker struct {
	cfg Config

	mu       sync.Mutex
	dailyRan bool
	archRan  bool
	applied  bool
	last     State
}

// NewChecker creates a Checker. A nil clock uses the real clock.
func NewChecker(cfg Config) *Checker {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &Checker{cfg: cfg}
}

// State returns the outcome of the most recent workflow.
func (c *Checker) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

func (c *Checker) begin(ran *bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if *ran || c.applied {
		return false
	}
	*ran = true
	return true
}

func (c *Checker) set(s State) State {
	c.mu.Lock()
	c.last = s
	if s == Applied {
		c.applied = true
	}
	c.mu.Unlock()
	return s
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// CheckDaily queries the feed unless lastCheck is today, offers a newer
// release and installs it when accepted. Feed errors are logged and
// reported as NoUpdateAvailable; only a failed install yields Failed.
func (c *Checker) CheckDaily(ctx context.Context, lastCheck time.Time) State {
	if !c.begin(&c.dailyRan) {
		return NoUpdateAvailable
	}
	if sameDay(lastCheck.In(time.Local), c.cfg.Clock.Now().In(time.Local)) {
		c.cfg.Logger.Debug().Str("component", "update").Msg("already checked for updates today")
		return c.set(NoUpdateAvailable)
	}

	c.set(Checking)
	rel, err := c.cfg.Feed.Latest(ctx, c.cfg.Arch)
	if err != nil {
		c.cfg.Logger.Warn().Err(err).Str("component", "update").Msg("update check failed")
		return c.set(NoUpdateAvailable)
	}
	if rel == nil || CompareVersions(rel.Version, c.cfg.CurrentVersion) <= 0 {
		return c.set(NoUpdateAvailable)
	}

	c.set(UpdateAvailable)
	c.cfg.Logger.Info().Str("component", "update").Str("version", rel.Version).Msg("new version available")
	question := fmt.Sprintf("Version %s is available.\nDo you want to download and install the new version?", rel.Version)
	if rel.Description != "" {
		question += "\n\n" + rel.Description
	}
	if !c.cfg.Prompter.ShowYesNo(question, "Download new version") {
		return c.set(Declined)
	}
	return c.install(ctx, rel)
}

// CheckArchitecture offers the 64-bit package when a 32-bit process runs
// on a 64-bit host.
func (c *Checker) CheckArchitecture(ctx context.Context, hostIs64, processIs64 bool) State {
	if !c.begin(&c.archRan) {
		return NoUpdateAvailable
	}
	if !hostIs64 || processIs64 {
		return c.set(NoUpdateAvailable)
	}
	if !c.cfg.Prompter.ShowYesNo("You are running the 32-bit version on a 64-bit system.\nDo you want to switch to the 64-bit version?", "Switch to 64-bit version") {
		return c.set(Declined)
	}

	c.set(Checking)
	rel, err := c.cfg.Feed.Latest(ctx, "x64")
	if err != nil {
		c.cfg.Logger.Warn().Err(err).Str("component", "update").Msg("architecture check failed")
		c.cfg.Notifier.ShowError(err.Error(), "Update check failed")
		return c.set(Failed)
	}
	if rel == nil {
		c.cfg.Notifier.ShowWarning("No 64-bit package is available for download.")
		c.offerReleasePage()
		return c.set(Unavailable)
	}
	return c.install(ctx, rel)
}

func (c *Checker) offerReleasePage() {
	if c.cfg.ReleasePage == "" || c.cfg.OpenURL == nil {
		return
	}
	if !c.cfg.Prompter.ShowYesNo("Do you want to open the release page?", "Switch to 64-bit version") {
		return
	}
	if err := c.cfg.OpenURL(c.cfg.ReleasePage); err != nil {
		c.cfg.Logger.Warn().Err(err).Str("component", "update").Str("url", c.cfg.ReleasePage).Msg("could not open release page")
	}
}

func (c *Checker) install(ctx context.Context, rel *ReleaseInfo) State {
	c.set(Downloading)
	if err := c.cfg.Installer.Install(ctx, rel); err != nil {
		c.cfg.Logger.Error().Err(err).Str("component", "update").Str("url", rel.DownloadURL).Msg("could not apply update package")
		c.cfg.Notifier.ShowError(err.Error(), "Update failed")
		return c.set(Failed)
	}
	c.cfg.Logger.Info().Str("component", "update").Str("version", rel.Version).Msg("update package staged")
	return c.set(Applied)
}
