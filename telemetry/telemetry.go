// Package telemetry submits the periodic diagnostics report.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/jonboulle/clockwork"
)

// MaxLogTail is the largest slice of the log file that is submitted.
const MaxLogTail = 64 * 1024

// Report is the body of a submission.
type Report struct {
	InstallID string    `json:"installId"`
	Version   string    `json:"version"`
	OS        string    `json:"os"`
	Arch      string    `json:"arch"`
	SentAt    time.Time `json:"sentAt"`
	LogTail   string    `json:"logTail"`
}

// Config wires a Sender.
type Config struct {
	Endpoint  string
	Timeout   time.Duration
	InstallID string
	Secret    string
	Version   string
	Arch      string
	LogPath   string
	Client    *http.Client
	Clock     clockwork.Clock
}

// Sender posts reports to the telemetry endpoint.
type Sender struct {
	cfg Config
}

// NewSender creates a Sender. Missing client and clock use defaults.
func NewSender(cfg Config) *Sender {
	if cfg.Client == nil {
		cfg.Client = &http.Client{}
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &Sender{cfg: cfg}
}

// Send submits one report. An empty endpoint makes it a no-op.
func (s *Sender) Send(ctx context.Context) error {
	if s.cfg.Endpoint == "" {
		return nil
	}
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	tail, err := readTail(s.cfg.LogPath, MaxLogTail)
	if err != nil {
		return fmt.Errorf("failed to read log: %w", err)
	}

	now := s.cfg.Clock.Now()
	body, err := json.Marshal(Report{
		InstallID: s.cfg.InstallID,
		Version:   s.cfg.Version,
		OS:        runtime.GOOS,
		Arch:      s.cfg.Arch,
		SentAt:    now.UTC(),
		LogTail:   tail,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	token, err := SignToken(s.cfg.Secret, s.cfg.InstallID, s.cfg.Version, now)
	if err != nil {
		return fmt.Errorf("failed to sign report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.cfg.Client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send report: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("telemetry endpoint returned %s", resp.Status)
	}
	return nil
}

// readTail returns at most limit bytes from the end of path. A missing
// file yields an empty tail.
func readTail(path string, limit int64) (string, error) {
	if path == "" {
		return "", nil
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	if size := info.Size(); size > limit {
		if _, err := f.Seek(size-limit, io.SeekStart); err != nil {
			return "", err
		}
	}
	data, err := io.ReadAll(io.LimitReader(f, limit))
	if err != nil {
		return "", err
	}
	return string(data), nil
}
