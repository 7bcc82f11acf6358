package appconfig

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpgradeAppSettings(t *testing.T) {
	s := AppSettings{Version: 1, Language: "de_DE", InstallID: "id", TelemetrySecret: "secret"}

	require.True(t, UpgradeAppSettings(&s))
	assert.Equal(t, AppSettingsVersion, s.Version)
	assert.Equal(t, "Info", s.LogLevel)
	assert.Equal(t, DefaultDownloadLocation, s.DownloadLocation)
	assert.Equal(t, "de-DE", s.Language)

	once := s
	assert.False(t, UpgradeAppSettings(&s))
	assert.Equal(t, once, s)
}

func TestUpgradeAppSettingsKeepsValues(t *testing.T) {
	s := AppSettings{Version: 2, Language: "en-US", LogLevel: "Verbose", DownloadLocation: "D:/Blogs"}

	require.True(t, UpgradeAppSettings(&s))
	assert.Equal(t, "Verbose", s.LogLevel)
	assert.Equal(t, "D:/Blogs", s.DownloadLocation)
}

func TestUpgradeCurrentIsNoop(t *testing.T) {
	a := DefaultAppSettings()
	q := DefaultQueueSettings()
	m := DefaultManagerSettings()

	assert.False(t, UpgradeAppSettings(&a))
	assert.False(t, UpgradeQueueSettings(&q))
	assert.False(t, UpgradeManagerSettings(&m))
}

func TestUpgradeQueueSettingsDedupes(t *testing.T) {
	q := QueueSettings{
		Version: 1,
		Items: []QueueItem{
			{Name: "alpha", BlogType: "tumblr"},
			{Name: "beta", BlogType: "tumblr"},
			{Name: "alpha", BlogType: "tumblr"},
			{Name: "alpha", BlogType: "tumblrsearch"},
		},
	}

	require.True(t, UpgradeQueueSettings(&q))
	assert.Equal(t, []QueueItem{
		{Name: "alpha", BlogType: "tumblr"},
		{Name: "beta", BlogType: "tumblr"},
		{Name: "alpha", BlogType: "tumblrsearch"},
	}, q.Items)

	assert.False(t, UpgradeQueueSettings(&q))
	assert.Len(t, q.Items, 3)
}

func TestUpgradeManagerSettingsFillsColumns(t *testing.T) {
	m := ManagerSettings{Version: 1}
	require.True(t, UpgradeManagerSettings(&m))
	assert.Equal(t, DefaultColumns(), m.Columns)

	custom := ManagerSettings{Version: 1, Columns: []Column{{Name: "Name", Width: 10}}}
	require.True(t, UpgradeManagerSettings(&custom))
	assert.Len(t, custom.Columns, 1)
}

func TestOrderedColumns(t *testing.T) {
	m := ManagerSettings{Columns: []Column{
		{Name: "c", DisplayIndex: 2},
		{Name: "a", DisplayIndex: 0},
		{Name: "b", DisplayIndex: 1},
	}}

	got := m.OrderedColumns()
	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].Name)
	assert.Equal(t, "b", got[1].Name)
	assert.Equal(t, "c", got[2].Name)
	assert.Equal(t, "c", m.Columns[0].Name, "original order untouched")
}

func TestValidate(t *testing.T) {
	s := DefaultAppSettings()
	require.NoError(t, Validate(s))

	s.LogLevel = "Loud"
	assert.Error(t, Validate(s))

	s = DefaultAppSettings()
	s.DownloadLocation = ""
	assert.Error(t, Validate(s))

	q := QueueSettings{Items: []QueueItem{{Name: ""}}}
	assert.Error(t, Validate(q))

	m := DefaultManagerSettings()
	m.Columns[0].Width = -1
	assert.Error(t, Validate(m))
}

func TestLoadBootstrap(t *testing.T) {
	var buf bytes.Buffer
	s := newTestStore(&buf)
	dir := t.TempDir()

	assert.Equal(t, DefaultBootstrap(), LoadBootstrap(filepath.Join(dir, BootstrapFileName), s.logger))

	path := filepath.Join(dir, BootstrapFileName)
	require.NoError(t, os.WriteFile(path, []byte(`
[feed]
source = "s3"
bucket = "releases"
endpoint = "http://localhost:9000"

[update]
auto_accept = true

[crawler]
workers = 0
`), 0644))

	cfg := LoadBootstrap(path, s.logger)
	assert.Equal(t, "s3", cfg.Feed.Source)
	assert.Equal(t, "releases", cfg.Feed.Bucket)
	assert.Equal(t, "http://localhost:9000", cfg.Feed.Endpoint)
	assert.Equal(t, "releases/latest.json", cfg.Feed.Key)
	assert.True(t, cfg.Update.AutoAccept)
	assert.Equal(t, 1, cfg.Crawler.Workers)
	assert.Equal(t, "@every 24h", cfg.Maintenance.Schedule)
}

func TestLoadBootstrapMalformed(t *testing.T) {
	var buf bytes.Buffer
	s := newTestStore(&buf)
	path := filepath.Join(t.TempDir(), BootstrapFileName)
	require.NoError(t, os.WriteFile(path, []byte("[feed\nsource="), 0644))

	assert.Equal(t, DefaultBootstrap(), LoadBootstrap(path, s.logger))
	assert.Contains(t, buf.String(), `"level":"warn"`)
}
