package appconfig

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/phuslu/log"
)

// BootstrapFileName is the optional deployment file next to the executable.
const BootstrapFileName = "reblog.toml"

// FeedConfig selects where release information is read from.
type FeedConfig struct {
	Source string `toml:"source"` // "github" or "s3"

	Owner string `toml:"owner"`
	Repo  string `toml:"repo"`

	Bucket   string `toml:"bucket"`
	Key      string `toml:"key"`
	Region   string `toml:"region"`
	Endpoint string `toml:"endpoint"`

	// Static credentials for private mirrors; anonymous when empty.
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`

	ReleasePage string `toml:"release_page"`
}

// TelemetryConfig configures the telemetry submission.
type TelemetryConfig struct {
	Endpoint       string `toml:"endpoint"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// UpdateConfig controls prompts when no interactive dialog exists.
type UpdateConfig struct {
	AutoAccept bool `toml:"auto_accept"`
}

// CrawlerConfig sizes the crawler worker pool.
type CrawlerConfig struct {
	Workers        int `toml:"workers"`
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// MaintenanceConfig holds the cron spec for periodic maintenance.
type MaintenanceConfig struct {
	Schedule string `toml:"schedule"`
}

// Bootstrap holds deployment knobs that are not user settings.
type Bootstrap struct {
	Feed        FeedConfig        `toml:"feed"`
	Telemetry   TelemetryConfig   `toml:"telemetry"`
	Update      UpdateConfig      `toml:"update"`
	Crawler     CrawlerConfig     `toml:"crawler"`
	Maintenance MaintenanceConfig `toml:"maintenance"`
}

// DefaultBootstrap returns the built-in deployment configuration.
func DefaultBootstrap() Bootstrap {
	return Bootstrap{
		Feed: FeedConfig{
			Source:      "github",
			Owner:       "stevecastle",
			Repo:        "reblog",
			Key:         "releases/latest.json",
			Region:      "us-east-1",
			ReleasePage: "https://github.com/stevecastle/reblog/releases/latest",
		},
		Telemetry:   TelemetryConfig{TimeoutSeconds: 10},
		Crawler:     CrawlerConfig{Workers: 2, TimeoutSeconds: 30},
		Maintenance: MaintenanceConfig{Schedule: "@every 24h"},
	}
}

// TelemetryTimeout returns the telemetry timeout as a duration.
func (b Bootstrap) TelemetryTimeout() time.Duration {
	return time.Duration(b.Telemetry.TimeoutSeconds) * time.Second
}

// CrawlerTimeout returns the per-request crawl timeout.
func (b Bootstrap) CrawlerTimeout() time.Duration {
	return time.Duration(b.Crawler.TimeoutSeconds) * time.Second
}

// LoadBootstrap reads path over the defaults. A missing file is normal;
// a malformed one is logged and ignored.
func LoadBootstrap(path string, logger *log.Logger) Bootstrap {
	cfg := DefaultBootstrap()
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn().Err(err).Str("component", "appconfig").Str("path", path).Msg("could not read bootstrap file")
		}
		return cfg
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		logger.Warn().Err(err).Str("component", "appconfig").Str("path", path).Msg("could not parse bootstrap file")
		return DefaultBootstrap()
	}
	if cfg.Crawler.Workers < 1 {
		cfg.Crawler.Workers = 1
	}
	if cfg.Telemetry.TimeoutSeconds <= 0 {
		cfg.Telemetry.TimeoutSeconds = DefaultBootstrap().Telemetry.TimeoutSeconds
	}
	if cfg.Crawler.TimeoutSeconds <= 0 {
		cfg.Crawler.TimeoutSeconds = DefaultBootstrap().Crawler.TimeoutSeconds
	}
	return cfg
}
