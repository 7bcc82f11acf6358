// Package update checks release feeds for newer packages and applies them.
package update

import (
	"context"
	"strconv"
	"strings"
)

// ReleaseInfo describes a downloadable release.
type ReleaseInfo struct {
	Version     string `json:"version"`
	DownloadURL string `json:"downloadUrl"`
	Description string `json:"description"`
}

// ReleaseFeed answers which release is current for an architecture.
// A nil ReleaseInfo with a nil error means the feed has no data.
type ReleaseFeed interface {
	Latest(ctx context.Context, arch string) (*ReleaseInfo, error)
}

// CompareVersions compares dotted numeric versions. A leading "v" is
// ignored, missing components count as zero, and anything after a '-' or
// '+' is dropped. It returns -1, 0 or 1.
func CompareVersions(a, b string) int {
	pa, pb := versionParts(a), versionParts(b)
	n := max(len(pa), len(pb))
	for i := 0; i < n; i++ {
		var x, y int
		if i < len(pa) {
			x = pa[i]
		}
		if i < len(pb) {
			y = pb[i]
		}
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
	}
	return 0
}

func versionParts(v string) []int {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	if i := strings.IndexAny(v, "-+"); i >= 0 {
		v = v[:i]
	}
	if v == "" {
		return nil
	}
	fields := strings.Split(v, ".")
	parts := make([]int, len(fields))
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			n = 0
		}
		parts[i] = n
	}
	return parts
}

// matchesArch reports whether an asset name targets arch ("x64" or "x86").
func matchesArch(name, arch string) bool {
	name = strings.ToLower(name)
	switch arch {
	case "x64":
		return strings.Contains(name, "x64") || strings.Contains(name, "x86_64") || strings.Contains(name, "amd64")
	case "x86":
		return strings.Contains(name, "x86") && !strings.Contains(name, "x86_64")
	default:
		return false
	}
}

func isPackage(name string) bool {
	name = strings.ToLower(name)
	return strings.HasSuffix(name, ".zip") || strings.HasSuffix(name, ".7z")
}
