package maintenance

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/phuslu/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(buf *bytes.Buffer) *log.Logger {
	return &log.Logger{Level: log.DebugLevel, Writer: &log.IOWriter{Writer: buf}}
}

func TestCleanupMissingEntriesAreSilent(t *testing.T) {
	var buf bytes.Buffer
	c := NewCleaner(newTestLogger(&buf))

	removed := c.Cleanup(t.TempDir(), LeftoverDirs, LeftoverFiles, func(string, error) {
		t.Fatal("unexpected error callback")
	})
	assert.Empty(t, removed)
	assert.NotContains(t, buf.String(), `"level":"error"`)
}

func TestCleanupRemovesExisting(t *testing.T) {
	var buf bytes.Buffer
	c := NewCleaner(newTestLogger(&buf))
	base := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(base, "GPUCache", "Cache"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(base, "GPUCache", "Cache", "data"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(base, "libcef.dll"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(base, "reblog.exe"), []byte("x"), 0644))

	removed := c.Cleanup(base, LeftoverDirs, LeftoverFiles, nil)

	assert.ElementsMatch(t, []string{"GPUCache", "libcef.dll"}, removed)
	assert.NoDirExists(t, filepath.Join(base, "GPUCache"))
	assert.NoFileExists(t, filepath.Join(base, "libcef.dll"))
	assert.FileExists(t, filepath.Join(base, "reblog.exe"))
}

func TestCleanupContinuesAfterFailure(t *testing.T) {
	var buf bytes.Buffer
	c := NewCleaner(newTestLogger(&buf))
	c.Remove = func(path string) error {
		if filepath.Base(path) == "a.dll" {
			return os.ErrPermission
		}
		return os.Remove(path)
	}
	base := t.TempDir()
	for _, name := range []string{"a.dll", "b.dll", "c.dll"} {
		require.NoError(t, os.WriteFile(filepath.Join(base, name), []byte("x"), 0644))
	}

	var failed []string
	removed := c.Cleanup(base, nil, []string{"a.dll", "b.dll", "c.dll"}, func(name string, err error) {
		assert.True(t, errors.Is(err, os.ErrPermission))
		failed = append(failed, name)
	})

	assert.Equal(t, []string{"a.dll"}, failed)
	assert.Equal(t, []string{"b.dll", "c.dll"}, removed)
	assert.FileExists(t, filepath.Join(base, "a.dll"))
	assert.Equal(t, 1, strings.Count(buf.String(), `"level":"error"`))
}

func TestSyncDue(t *testing.T) {
	now := time.Date(2024, 6, 15, 10, 0, 0, 0, time.Local)
	tests := []struct {
		name string
		last time.Time
		want bool
	}{
		{"never synced", time.Time{}, true},
		{"today", now, false},
		{"13 days", now.AddDate(0, 0, -13), false},
		{"13 days late evening", time.Date(2024, 6, 2, 23, 59, 0, 0, time.Local), false},
		{"exactly 14 days", now.AddDate(0, 0, -14), true},
		{"14 days early morning", time.Date(2024, 6, 1, 0, 1, 0, 0, time.Local), true},
		{"30 days", now.AddDate(0, 0, -30), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SyncDue(tt.last, now))
		})
	}
}

func TestSchedulerRunsJob(t *testing.T) {
	var buf bytes.Buffer
	s := NewScheduler(newTestLogger(&buf))
	var runs int32

	require.NoError(t, s.Start("@every 1s", func() {
		atomic.AddInt32(&runs, 1)
		panic("contained")
	}))
	defer s.Stop()
	assert.True(t, s.Active())

	require.Eventually(t, func() bool { return atomic.LoadInt32(&runs) > 0 }, 3*time.Second, 10*time.Millisecond)
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	var buf bytes.Buffer
	s := NewScheduler(newTestLogger(&buf))
	assert.Error(t, s.Start("not a schedule", func() {}))
	assert.False(t, s.Active())
	s.Stop()
	s.Stop()
}

func TestSchedulerStopDisarms(t *testing.T) {
	s := NewScheduler(newTestLogger(&bytes.Buffer{}))
	require.NoError(t, s.Start("@every 1h", func() {}))
	s.Stop()
	assert.False(t, s.Active())
}
