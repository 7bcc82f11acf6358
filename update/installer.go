package update

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/stevecastle/reblog/downloads"
)

// Installer fetches a release package and stages it for the next start.
type Installer interface {
	Install(ctx context.Context, rel *ReleaseInfo) error
}

// StagingDirName is the directory next to the executable that receives
// unpacked packages.
const StagingDirName = ".update"

// PackageInstaller downloads packages into a temp directory and unpacks
// them into TargetDir.
type PackageInstaller struct {
	Client    *downloads.Client
	TempDir   string
	TargetDir string
	Progress  downloads.ProgressCallback
}

// NewPackageInstaller stages packages under exeDir/.update.
func NewPackageInstaller(exeDir, tempDir string, progress downloads.ProgressCallback) *PackageInstaller {
	return &PackageInstaller{
		Client:    downloads.NewClient(),
		TempDir:   tempDir,
		TargetDir: filepath.Join(exeDir, StagingDirName),
		Progress:  progress,
	}
}

// Install downloads rel and extracts it over a clean TargetDir.
func (p *PackageInstaller) Install(ctx context.Context, rel *ReleaseInfo) error {
	if rel == nil || rel.DownloadURL == "" {
		return fmt.Errorf("release has no download url")
	}

	u, err := url.Parse(rel.DownloadURL)
	if err != nil {
		return fmt.Errorf("invalid download url: %w", err)
	}
	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		return fmt.Errorf("download url has no file name: %s", rel.DownloadURL)
	}

	if err := os.MkdirAll(p.TempDir, 0755); err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}
	archive := filepath.Join(p.TempDir, name)
	if err := p.Client.DownloadWithRetry(ctx, archive, rel.DownloadURL, downloads.Bytes(p.Progress)); err != nil {
		return err
	}
	defer os.Remove(archive)

	if err := os.RemoveAll(p.TargetDir); err != nil {
		return fmt.Errorf("failed to clear staging directory: %w", err)
	}
	if err := os.MkdirAll(p.TargetDir, 0755); err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	if err := downloads.Extract(archive, p.TargetDir, p.Progress); err != nil {
		return err
	}

	if p.Progress != nil {
		p.Progress(downloads.Progress{Status: downloads.StatusComplete, Message: "Update staged", Percent: 100})
	}
	return nil
}
