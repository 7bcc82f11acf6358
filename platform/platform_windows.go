//go:build windows
// +build windows

package platform

import (
	"os"
	"path/filepath"
	"strings"
)

func getDataDir() string {
	appDataDir := os.Getenv("APPDATA")
	if appDataDir == "" {
		// Fallback for missing APPDATA
		home, err := os.UserHomeDir()
		if err != nil {
			return "."
		}
		return filepath.Join(home, "."+AppName)
	}
	return filepath.Join(appDataDir, AppDisplayName)
}

func getTempDir() string {
	return filepath.Join(os.TempDir(), AppName)
}

func hostIs64Bit() bool {
	if ProcessIs64Bit() {
		return true
	}
	// A 32-bit process under WOW64 sees the native architecture here.
	if arch := os.Getenv("PROCESSOR_ARCHITEW6432"); arch != "" {
		return strings.HasSuffix(strings.ToUpper(arch), "64")
	}
	return strings.HasSuffix(strings.ToUpper(os.Getenv("PROCESSOR_ARCHITECTURE")), "64")
}

func ensureExecutable(path string) error {
	// On Windows, executability is determined by file extension, not permissions
	return nil
}
