// Package logging configures the process logger: a console logger during
// early startup, then a rotating file log once settings are known.
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/phuslu/log"
)

// FileName is the name of the rotating log file inside the log directory.
const FileName = "reblog.log"

const (
	maxFileSize    = 10 * 1024 * 1024
	maxFileBackups = 3
)

// ErrInvalidLogLevel is returned for a stored level outside the fixed set.
var ErrInvalidLogLevel = errors.New("invalid log level")

// Level names accepted in settings.
const (
	LevelOff     = "Off"
	LevelError   = "Error"
	LevelWarning = "Warning"
	LevelInfo    = "Info"
	LevelVerbose = "Verbose"
)

// OffLevel sits above every level the logger emits. Configure discards all
// output at this level, panics included.
const OffLevel = log.PanicLevel + 1

var levels = map[string]log.Level{
	LevelOff:     OffLevel,
	LevelError:   log.ErrorLevel,
	LevelWarning: log.WarnLevel,
	LevelInfo:    log.InfoLevel,
	LevelVerbose: log.DebugLevel,
}

// ParseLevel maps a settings level name to a logger level.
// The match is exact; anything else yields ErrInvalidLogLevel.
func ParseLevel(name string) (log.Level, error) {
	lvl, ok := levels[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLogLevel, name)
	}
	return lvl, nil
}

// Bootstrap returns a console logger usable before settings are loaded.
func Bootstrap() *log.Logger {
	return &log.Logger{
		Level:      log.InfoLevel,
		TimeFormat: "15:04:05",
		Writer: &log.ConsoleWriter{
			Writer: os.Stderr,
		},
	}
}

// Configure redirects logger to a rotating file in dir (mirrored to the
// console) and applies level. The returned closer releases the file. At
// OffLevel nothing is written and no file is created.
func Configure(logger *log.Logger, dir string, level log.Level) (io.Closer, error) {
	if level >= OffLevel {
		logger.Writer = &log.IOWriter{Writer: io.Discard}
		logger.Level = level
		return nopCloser{}, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}

	fw := &log.FileWriter{
		Filename:     filepath.Join(dir, FileName),
		FileMode:     0644,
		MaxSize:      maxFileSize,
		MaxBackups:   maxFileBackups,
		EnsureFolder: true,
		LocalTime:    true,
	}

	logger.Writer = &log.MultiEntryWriter{
		&log.ConsoleWriter{Writer: os.Stderr},
		fw,
	}
	logger.Level = level
	return fw, nil
}

// Path returns the log file path inside dir.
func Path(dir string) string {
	return filepath.Join(dir, FileName)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
