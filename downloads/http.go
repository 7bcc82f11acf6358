// Package downloads fetches and unpacks update packages.
package downloads

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const (
	// DefaultRetryAttempts is the number of times to retry a failed download.
	DefaultRetryAttempts = 3
	// DefaultRetryDelay is the delay between retry attempts.
	DefaultRetryDelay = 5 * time.Second
	// DefaultBufferSize is the buffer size for file downloads.
	DefaultBufferSize = 32 * 1024
)

// Client downloads files with resume and retry.
type Client struct {
	HTTP       *http.Client
	Attempts   int
	RetryDelay time.Duration
}

// NewClient returns a Client with the default retry policy and no overall
// timeout, since packages can be large.
func NewClient() *Client {
	return &Client{
		HTTP:       &http.Client{},
		Attempts:   DefaultRetryAttempts,
		RetryDelay: DefaultRetryDelay,
	}
}

// DownloadFile downloads url to destPath. If destPath already holds a
// partial download it asks the server to resume with a Range header.
func (c *Client) DownloadFile(ctx context.Context, destPath, url string, progressCb ByteProgressCallback) error {
	var existingSize int64
	if stat, err := os.Stat(destPath); err == nil {
		existingSize = stat.Size()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if existingSize > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", existingSize))
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		existingSize = 0
	case http.StatusPartialContent:
	default:
		return fmt.Errorf("bad status: %s", resp.Status)
	}

	totalSize := resp.ContentLength
	if totalSize > 0 && existingSize > 0 {
		totalSize += existingSize
	}

	var out *os.File
	if existingSize > 0 {
		out, err = os.OpenFile(destPath, os.O_APPEND|os.O_WRONLY, 0644)
	} else {
		out, err = os.Create(destPath)
	}
	if err != nil {
		return fmt.Errorf("failed to open output file: %w", err)
	}
	defer out.Close()

	downloaded := existingSize
	buffer := make([]byte, DefaultBufferSize)
	lastReport := time.Now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := resp.Body.Read(buffer)
		if n > 0 {
			if _, writeErr := out.Write(buffer[:n]); writeErr != nil {
				return fmt.Errorf("failed to write to file: %w", writeErr)
			}
			downloaded += int64(n)
			if progressCb != nil && time.Since(lastReport) >= 100*time.Millisecond {
				progressCb(downloaded, totalSize)
				lastReport = time.Now()
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}
	}

	if progressCb != nil {
		progressCb(downloaded, totalSize)
	}
	return nil
}

// DownloadWithRetry calls DownloadFile until it succeeds or the attempts
// run out. Cancellation stops retrying immediately.
func (c *Client) DownloadWithRetry(ctx context.Context, destPath, url string, progressCb ByteProgressCallback) error {
	attempts := c.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := c.DownloadFile(ctx, destPath, url, progressCb)
		if err == nil {
			return nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return err
		}
		if attempt < attempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.RetryDelay):
			}
		}
	}
	return fmt.Errorf("download failed after %d attempts: %w", attempts, lastErr)
}

// FormatBytes formats bytes as human-readable size.
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
