package appconfig

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/phuslu/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(buf *bytes.Buffer) *Store {
	return NewStore(&log.Logger{Level: log.DebugLevel, Writer: &log.IOWriter{Writer: buf}})
}

func errorEntries(buf *bytes.Buffer) int {
	return strings.Count(buf.String(), `"level":"error"`)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	var buf bytes.Buffer
	s := newTestStore(&buf)

	got := Load(s, filepath.Join(t.TempDir(), QueueSettingsFileName), DefaultQueueSettings)

	assert.Equal(t, DefaultQueueSettings(), got)
	assert.Equal(t, 0, errorEntries(&buf))
}

func TestLoadCorruptFileLogsOneError(t *testing.T) {
	var buf bytes.Buffer
	s := newTestStore(&buf)
	path := filepath.Join(t.TempDir(), ManagerSettingsFileName)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	got := Load(s, path, DefaultManagerSettings)

	assert.Equal(t, DefaultManagerSettings(), got)
	assert.Equal(t, 1, errorEntries(&buf))
}

func TestLoadDirectoryLogsOneError(t *testing.T) {
	var buf bytes.Buffer
	s := newTestStore(&buf)
	path := filepath.Join(t.TempDir(), QueueSettingsFileName)
	require.NoError(t, os.Mkdir(path, 0755))

	got := Load(s, path, DefaultQueueSettings)

	assert.Equal(t, DefaultQueueSettings(), got)
	assert.Equal(t, 1, errorEntries(&buf))
}

func TestLoadKeepsDefaultsForMissingFields(t *testing.T) {
	var buf bytes.Buffer
	s := newTestStore(&buf)
	path := filepath.Join(t.TempDir(), AppSettingsFileName)
	require.NoError(t, os.WriteFile(path, []byte(`{"version":3,"language":"fr-FR"}`), 0644))

	got := Load(s, path, DefaultAppSettings)

	assert.Equal(t, "fr-FR", got.Language)
	assert.Equal(t, "Info", got.LogLevel)
	assert.Equal(t, DefaultDownloadLocation, got.DownloadLocation)
	assert.NotEmpty(t, got.InstallID)
}

func TestSaveRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	s := newTestStore(&buf)
	path := filepath.Join(t.TempDir(), "nested", QueueSettingsFileName)

	doc := QueueSettings{
		Version:     QueueSettingsVersion,
		Items:       []QueueItem{{Name: "alpha", BlogType: "tumblr"}},
		LastCrawled: "alpha",
	}
	require.NoError(t, s.Save(path, doc))

	got := Load(s, path, DefaultQueueSettings)
	assert.Equal(t, doc, got)
	assert.Equal(t, 0, errorEntries(&buf))
}

func TestSavePreservesUnknownKeys(t *testing.T) {
	var buf bytes.Buffer
	s := newTestStore(&buf)
	path := filepath.Join(t.TempDir(), ManagerSettingsFileName)
	require.NoError(t, os.WriteFile(path, []byte(`{"version":1,"windowState":{"maximized":true},"libraryDir":"old"}`), 0644))

	doc := DefaultManagerSettings()
	doc.LibraryDir = "new"
	require.NoError(t, s.Save(path, doc))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, "new", m["libraryDir"])
	assert.Equal(t, float64(ManagerSettingsVersion), m["version"])
	assert.Equal(t, map[string]any{"maximized": true}, m["windowState"])
}

func TestFailedSaveLeavesPreviousFile(t *testing.T) {
	var buf bytes.Buffer
	s := newTestStore(&buf)
	dir := t.TempDir()
	path := filepath.Join(dir, AppSettingsFileName)
	before := []byte(`{"version":3,"language":"en-US"}`)
	require.NoError(t, os.WriteFile(path, before, 0644))

	err := s.Save(path, map[string]any{"bad": make(chan int)})
	require.Error(t, err)

	after, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	assert.Equal(t, before, after)
	assert.Equal(t, 1, errorEntries(&buf))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestSaveArrayDocument(t *testing.T) {
	var buf bytes.Buffer
	s := newTestStore(&buf)
	path := filepath.Join(t.TempDir(), CookiesFileName)
	require.NoError(t, os.WriteFile(path, []byte(`{"stale":true}`), 0644))

	require.NoError(t, s.Save(path, []string{"a", "b"}))

	got := Load(s, path, func() []string { return nil })
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestDeepMergeJSON(t *testing.T) {
	tests := []struct {
		name string
		dst  string
		src  string
		want string
	}{
		{
			name: "overwrite scalar",
			dst:  `{"a":1}`,
			src:  `{"a":2}`,
			want: `{"a":2}`,
		},
		{
			name: "keep unknown key",
			dst:  `{"a":1,"b":2}`,
			src:  `{"a":3}`,
			want: `{"a":3,"b":2}`,
		},
		{
			name: "merge nested objects",
			dst:  `{"n":{"x":1,"y":2}}`,
			src:  `{"n":{"x":5}}`,
			want: `{"n":{"x":5,"y":2}}`,
		},
		{
			name: "replace object with array",
			dst:  `{"n":{"x":1}}`,
			src:  `{"n":[1,2]}`,
			want: `{"n":[1,2]}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var dst, src map[string]json.RawMessage
			require.NoError(t, json.Unmarshal([]byte(tt.dst), &dst))
			require.NoError(t, json.Unmarshal([]byte(tt.src), &src))
			deepMergeJSON(dst, src)
			got, err := json.Marshal(dst)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}
