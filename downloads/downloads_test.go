package downloads

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func TestExtractZip(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "pkg.zip")
	writeZip(t, archive, map[string]string{
		"reblog/app.txt":      "app",
		"reblog/sub/data.txt": "data",
	})

	dest := filepath.Join(dir, "out")
	require.NoError(t, ExtractZip(archive, dest, "reblog/", nil))

	got, err := os.ReadFile(filepath.Join(dest, "sub", "data.txt"))
	require.NoError(t, err)
	assert.Equal(t, "data", string(got))
	assert.FileExists(t, filepath.Join(dest, "app.txt"))
}

func TestExtractRejectsEscapingEntries(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "evil.zip")
	writeZip(t, archive, map[string]string{"../escape.txt": "x"})

	err := Extract(archive, filepath.Join(dir, "out"), nil)
	assert.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "escape.txt"))
}

func TestExtractTarGz(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "pkg.tar.gz")
	f, err := os.Create(archive)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	body := "#!/bin/sh\n"
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "bin/", Typeflag: tar.TypeDir, Mode: 0755}))
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "bin/reblog", Typeflag: tar.TypeReg, Mode: 0755, Size: int64(len(body))}))
	_, err = tw.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	dest := filepath.Join(dir, "out")
	require.NoError(t, Extract(archive, dest, nil))
	got, err := os.ReadFile(filepath.Join(dest, "bin", "reblog"))
	require.NoError(t, err)
	assert.Equal(t, body, string(got))
}

func TestExtractUnsupported(t *testing.T) {
	err := Extract("package.rar", t.TempDir(), nil)
	assert.ErrorIs(t, err, ErrUnsupportedArchive)
}

func TestDownloadFileResumes(t *testing.T) {
	payload := "0123456789abcdef"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rng := r.Header.Get("Range"); rng != "" {
			var start int
			_, err := fmt.Sscanf(rng, "bytes=%d-", &start)
			require.NoError(t, err)
			w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, len(payload)-1, len(payload)))
			w.WriteHeader(http.StatusPartialContent)
			_, _ = w.Write([]byte(payload[start:]))
			return
		}
		_, _ = w.Write([]byte(payload))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "pkg.zip")
	require.NoError(t, os.WriteFile(dest, []byte(payload[:6]), 0644))

	var last int64
	c := NewClient()
	require.NoError(t, c.DownloadFile(context.Background(), dest, srv.URL, func(d, _ int64) { last = d }))

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, payload, string(got))
	assert.Equal(t, int64(len(payload)), last)
}

func TestDownloadWithRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := &Client{HTTP: srv.Client(), Attempts: 3, RetryDelay: time.Millisecond}
	dest := filepath.Join(t.TempDir(), "pkg.7z")
	require.NoError(t, c.DownloadWithRetry(context.Background(), dest, srv.URL, nil))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestDownloadWithRetryGivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := &Client{HTTP: srv.Client(), Attempts: 2, RetryDelay: time.Millisecond}
	err := c.DownloadWithRetry(context.Background(), filepath.Join(t.TempDir(), "x.zip"), srv.URL, nil)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "after 2 attempts"))
}

func TestBytesProgress(t *testing.T) {
	var got Progress
	cb := Bytes(func(p Progress) { got = p })
	cb(512, 1024)
	assert.Equal(t, StatusDownloading, got.Status)
	assert.InDelta(t, 50.0, got.Percent, 0.001)
	assert.Nil(t, Bytes(nil))
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.5 KB", FormatBytes(1536))
	assert.Equal(t, "2.0 MB", FormatBytes(2*1024*1024))
}
