package downloads

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"
	"github.com/stevecastle/reblog/platform"
)

// ErrUnsupportedArchive is returned by Extract for unknown extensions.
var ErrUnsupportedArchive = errors.New("unsupported archive format")

// ErrUnsafePath is returned for archive entries that would land outside
// the destination directory.
var ErrUnsafePath = errors.New("archive entry escapes destination")

// Extract unpacks archivePath into destDir, choosing the format from the
// file extension (.zip, .7z, .tar.gz or .tgz).
func Extract(archivePath, destDir string, progressCb ProgressCallback) error {
	lower := strings.ToLower(archivePath)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return ExtractZip(archivePath, destDir, "", progressCb)
	case strings.HasSuffix(lower, ".7z"):
		return Extract7z(archivePath, destDir, "", progressCb)
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return ExtractTarGz(archivePath, destDir, progressCb)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedArchive, filepath.Base(archivePath))
	}
}

func safeJoin(destDir, name string) (string, error) {
	destPath := filepath.Join(destDir, name)
	rel, err := filepath.Rel(destDir, destPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return destPath, nil
}

func reportExtracting(progressCb ProgressCallback, i, total int) {
	if progressCb != nil && i%10 == 0 {
		progressCb(Progress{
			Status:  StatusExtracting,
			Message: fmt.Sprintf("Extracting %d/%d files...", i+1, total),
		})
	}
}

// ExtractZip extracts a ZIP archive to the destination directory.
// If stripPrefix is provided, it removes that prefix from extracted file paths.
func ExtractZip(archivePath, destDir string, stripPrefix string, progressCb ProgressCallback) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open zip archive: %w", err)
	}
	defer reader.Close()

	for i, file := range reader.File {
		reportExtracting(progressCb, i, len(reader.File))

		name := strings.TrimPrefix(file.Name, stripPrefix)
		if name == "" || file.FileInfo().IsDir() {
			continue
		}

		destPath, err := safeJoin(destDir, name)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}

		rc, err := file.Open()
		if err != nil {
			return fmt.Errorf("failed to open %s in archive: %w", file.Name, err)
		}
		err = writeFile(destPath, rc, file.Mode()&0111 != 0)
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// Extract7z extracts a 7z archive to the destination directory.
// If stripPrefix is provided, it removes that prefix from extracted file paths.
func Extract7z(archivePath, destDir string, stripPrefix string, progressCb ProgressCallback) error {
	reader, err := sevenzip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open 7z archive: %w", err)
	}
	defer reader.Close()

	for i, file := range reader.File {
		reportExtracting(progressCb, i, len(reader.File))

		name := strings.TrimPrefix(file.Name, stripPrefix)
		if name == "" {
			continue
		}

		destPath, err := safeJoin(destDir, name)
		if err != nil {
			return err
		}
		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(destPath, 0755); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}

		rc, err := file.Open()
		if err != nil {
			return fmt.Errorf("failed to open %s in archive: %w", file.Name, err)
		}
		err = writeFile(destPath, rc, false)
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// ExtractTarGz extracts a tar.gz archive.
func ExtractTarGz(archivePath, destDir string, progressCb ProgressCallback) error {
	if progressCb != nil {
		progressCb(Progress{Status: StatusExtracting, Message: "Extracting tar.gz archive..."})
	}

	file, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer file.Close()

	gzReader, err := gzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzReader.Close()

	tarReader := tar.NewReader(gzReader)
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read tar: %w", err)
		}

		destPath, err := safeJoin(destDir, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(destPath, 0755); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
			if err := writeFile(destPath, tarReader, header.Mode&0111 != 0); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeFile(destPath string, r io.Reader, executable bool) error {
	outFile, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", destPath, err)
	}
	if _, err := io.Copy(outFile, r); err != nil {
		outFile.Close()
		return fmt.Errorf("failed to extract %s: %w", filepath.Base(destPath), err)
	}
	if err := outFile.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", destPath, err)
	}
	if executable {
		// Best effort; the file is usable for non-exec content either way.
		_ = platform.EnsureExecutable(destPath)
	}
	return nil
}
