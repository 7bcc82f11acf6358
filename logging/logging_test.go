package logging

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/phuslu/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name string
		want log.Level
	}{
		{"Off", OffLevel},
		{"Error", log.ErrorLevel},
		{"Warning", log.WarnLevel},
		{"Info", log.InfoLevel},
		{"Verbose", log.DebugLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLevel(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseLevelRejectsUnknown(t *testing.T) {
	for _, name := range []string{"", "info", "Debug", "Trace", "Verbose "} {
		_, err := ParseLevel(name)
		assert.True(t, errors.Is(err, ErrInvalidLogLevel), "level %q", name)
	}
}

func TestConfigureWritesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	logger := Bootstrap()

	closer, err := Configure(logger, dir, log.WarnLevel)
	require.NoError(t, err)

	logger.Info().Msg("filtered")
	logger.Warn().Str("component", "test").Msg("kept")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(Path(dir))
	require.NoError(t, err)
	assert.Contains(t, string(data), "kept")
	assert.NotContains(t, string(data), "filtered")
	assert.Equal(t, log.WarnLevel, logger.Level)
}

func TestConfigureOffDiscardsEverything(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	logger := Bootstrap()

	lvl, err := ParseLevel(LevelOff)
	require.NoError(t, err)
	closer, err := Configure(logger, dir, lvl)
	require.NoError(t, err)

	logger.Error().Str("component", "test").Msg("dropped")
	require.NoError(t, closer.Close())

	assert.NoFileExists(t, Path(dir))
	assert.Greater(t, uint32(OffLevel), uint32(log.PanicLevel))
}
