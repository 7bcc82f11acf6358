// Package maintenance removes leftovers of older installations and
// schedules the periodic telemetry sync.
package maintenance

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/phuslu/log"
)

// LeftoverDirs are directories of the browser component bundled by
// earlier releases.
var LeftoverDirs = []string{"GPUCache", "locales"}

// LeftoverFiles are files of the browser component bundled by earlier
// releases.
var LeftoverFiles = []string{
	"CefSharp.BrowserSubprocess.Core.dll", "CefSharp.BrowserSubprocess.Core.pdb",
	"CefSharp.BrowserSubprocess.exe", "CefSharp.BrowserSubprocess.pdb",
	"CefSharp.Core.dll", "CefSharp.Core.pdb",
	"CefSharp.Core.Runtime.dll", "CefSharp.Core.Runtime.pdb", "CefSharp.Core.Runtime.xml",
	"CefSharp.dll", "CefSharp.pdb", "CefSharp.Wpf.dll", "CefSharp.Wpf.pdb",
	"chrome_100_percent.pak", "chrome_200_percent.pak", "chrome_elf.dll",
	"d3dcompiler_47.dll", "debug.log", "icudtl.dat", "libcef.dll", "libEGL.dll",
	"libGLESv2.dll", "LICENSE.txt", "README.txt", "resources.pak",
	"snapshot_blob.bin", "v8_context_snapshot.bin", "vk_swiftshader.dll",
	"vk_swiftshader_icd.json", "vulkan-1.dll",
}

// Cleaner deletes a fixed list of entries, one at a time.
type Cleaner struct {
	Logger    *log.Logger
	RemoveAll func(path string) error
	Remove    func(path string) error
}

// NewCleaner returns a Cleaner backed by the os package.
func NewCleaner(logger *log.Logger) *Cleaner {
	return &Cleaner{Logger: logger, RemoveAll: os.RemoveAll, Remove: os.Remove}
}

// Cleanup removes dirs and files below baseDir. Entries that do not exist
// are skipped silently. A failure is logged and passed to onError, and the
// remaining entries are still processed. It returns the names removed.
func (c *Cleaner) Cleanup(baseDir string, dirs, files []string, onError func(name string, err error)) []string {
	var removed []string

	for _, name := range dirs {
		path := filepath.Join(baseDir, name)
		info, err := os.Stat(path)
		if err != nil || !info.IsDir() {
			if err != nil && !errors.Is(err, fs.ErrNotExist) {
				c.fail(name, err, onError)
			}
			continue
		}
		if err := c.RemoveAll(path); err != nil {
			c.fail(name, err, onError)
			continue
		}
		removed = append(removed, name)
	}

	for _, name := range files {
		path := filepath.Join(baseDir, name)
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			if err != nil && !errors.Is(err, fs.ErrNotExist) {
				c.fail(name, err, onError)
			}
			continue
		}
		if err := c.Remove(path); err != nil {
			c.fail(name, err, onError)
			continue
		}
		removed = append(removed, name)
	}

	if len(removed) > 0 {
		c.Logger.Info().Str("component", "maintenance").Int("count", len(removed)).Msg("removed files from previous versions")
	}
	return removed
}

func (c *Cleaner) fail(name string, err error, onError func(string, error)) {
	c.Logger.Error().Err(err).Str("component", "maintenance").Str("name", name).Msg("could not remove old file or folder")
	if onError != nil {
		onError(name, err)
	}
}
