// Package platform provides cross-platform utilities for directory paths,
// architecture detection, and OS-specific operations.
package platform

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/browser"
)

// AppName is the application name used for directory naming
const AppName = "reblog-archiver"

// AppDisplayName is the display name used on Windows and macOS
const AppDisplayName = "Reblog Archiver"

// GetDataDir returns the per-user settings directory.
// Windows: %APPDATA%\Reblog Archiver
// Linux: ~/.local/share/reblog-archiver
// macOS: ~/Library/Application Support/Reblog Archiver
func GetDataDir() string {
	return getDataDir()
}

// GetTempDir returns the temp directory used to stage downloads.
func GetTempDir() string {
	return getTempDir()
}

// ExecutableDir returns the directory containing the running binary.
// Falls back to the working directory if the executable cannot be resolved.
func ExecutableDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe)
}

// IsPortable reports whether the sentinel file sits next to the executable.
func IsPortable(exeDir, sentinel string) bool {
	info, err := os.Stat(filepath.Join(exeDir, sentinel))
	return err == nil && !info.IsDir()
}

// ProcessIs64Bit reports whether the running process is a 64-bit build.
func ProcessIs64Bit() bool {
	return strconv.IntSize == 64
}

// HostIs64Bit reports whether the operating system is 64-bit.
// Windows: inspects the WOW64 environment variables.
// Elsewhere the process architecture is taken as native.
func HostIs64Bit() bool {
	return hostIs64Bit()
}

// ProcessArch returns the release-asset architecture tag of this process.
func ProcessArch() string {
	if ProcessIs64Bit() {
		return "x64"
	}
	return "x86"
}

// IsWriteProtected reports whether files cannot be created in dir.
func IsWriteProtected(dir string) bool {
	f, err := os.CreateTemp(dir, ".write-probe-*")
	if err != nil {
		return true
	}
	name := f.Name()
	f.Close()
	_ = os.Remove(name)
	return false
}

// OpenURL opens a URL in the user's default browser.
func OpenURL(url string) error {
	return browser.OpenURL(url)
}

// EnsureExecutable ensures a file has executable permissions.
// On Windows, this is a no-op.
func EnsureExecutable(path string) error {
	return ensureExecutable(path)
}
