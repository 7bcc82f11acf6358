//go:build darwin
// +build darwin

package platform

import (
	"os"
	"path/filepath"
)

func getDataDir() string {
	// On macOS, use ~/Library/Application Support/AppDisplayName
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, "Library", "Application Support", AppDisplayName)
}

func getTempDir() string {
	tmpDir := os.Getenv("TMPDIR")
	if tmpDir != "" {
		return filepath.Join(tmpDir, AppName)
	}
	return filepath.Join("/tmp", AppName)
}

func hostIs64Bit() bool {
	// Every supported macOS release is 64-bit only.
	return true
}

func ensureExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	return os.Chmod(path, info.Mode()|0111)
}
