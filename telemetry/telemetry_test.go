package telemetry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendCarriesVerifiableToken(t *testing.T) {
	var got Report
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	logPath := filepath.Join(t.TempDir(), "reblog.log")
	require.NoError(t, os.WriteFile(logPath, []byte("line one\nline two\n"), 0644))

	s := NewSender(Config{
		Endpoint:  srv.URL,
		Timeout:   time.Second,
		InstallID: "install-1",
		Secret:    "s3cret",
		Version:   "2.0.0",
		Arch:      "x64",
		LogPath:   logPath,
		Clock:     clockwork.NewFakeClockAt(time.Now()),
	})
	require.NoError(t, s.Send(context.Background()))

	assert.Equal(t, "install-1", got.InstallID)
	assert.Equal(t, "2.0.0", got.Version)
	assert.Equal(t, "line one\nline two\n", got.LogTail)

	require.True(t, strings.HasPrefix(auth, "Bearer "))
	claims, err := VerifyToken("s3cret", strings.TrimPrefix(auth, "Bearer "))
	require.NoError(t, err)
	assert.Equal(t, "install-1", claims.Subject)
	assert.Equal(t, "2.0.0", claims.Version)

	_, err = VerifyToken("other", strings.TrimPrefix(auth, "Bearer "))
	assert.Error(t, err)
}

func TestSendNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	s := NewSender(Config{Endpoint: srv.URL, Secret: "x", InstallID: "id"})
	assert.Error(t, s.Send(context.Background()))
}

func TestSendTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	s := NewSender(Config{Endpoint: srv.URL, Secret: "x", InstallID: "id", Timeout: 50 * time.Millisecond})
	start := time.Now()
	assert.Error(t, s.Send(context.Background()))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestSendWithoutEndpoint(t *testing.T) {
	s := NewSender(Config{})
	assert.NoError(t, s.Send(context.Background()))
}

func TestReadTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.log")
	data := strings.Repeat("a", 100) + strings.Repeat("b", 10)
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	tail, err := readTail(path, 10)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("b", 10), tail)

	tail, err = readTail(filepath.Join(t.TempDir(), "missing.log"), 10)
	require.NoError(t, err)
	assert.Empty(t, tail)
}

func TestExpiredToken(t *testing.T) {
	token, err := SignToken("k", "id", "1.0.0", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	_, err = VerifyToken("k", token)
	assert.Error(t, err)
}
