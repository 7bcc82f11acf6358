package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/phuslu/log"
)

// Blog is one entry of the library index.
type Blog struct {
	Name              string    `json:"name"`
	URL               string    `json:"url"`
	BlogType          string    `json:"blogType"`
	Online            bool      `json:"online"`
	Progress          int       `json:"progress"`
	LastCompleteCrawl time.Time `json:"lastCompleteCrawl"`
}

// Library looks blogs up by name and type.
type Library interface {
	Blog(name, blogType string) (Blog, bool)
}

// LoadLibrary reads every *.json index file in dir. Unreadable entries and
// entries with an invalid URL are logged and skipped. A missing directory
// is an empty library.
func LoadLibrary(dir string, logger *log.Logger) ([]Blog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read library %s: %w", dir, err)
	}

	var blogs []Blog
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn().Err(err).Str("component", "controllers.manager").Str("path", path).Msg("could not read blog index")
			continue
		}
		var b Blog
		if err := json.Unmarshal(data, &b); err != nil {
			logger.Warn().Err(err).Str("component", "controllers.manager").Str("path", path).Msg("could not parse blog index")
			continue
		}
		b.URL = AddHTTPSProtocol(b.URL)
		if b.Name == "" || !IsValidTumblrURL(b.URL) {
			logger.Warn().Str("component", "controllers.manager").Str("path", path).Str("url", b.URL).Msg("skipping blog with invalid url")
			continue
		}
		if b.BlogType == "" {
			b.BlogType = BlogTypeTumblr
		}
		blogs = append(blogs, b)
	}

	sortBlogs(blogs)
	return blogs, nil
}

func sortBlogs(blogs []Blog) {
	sort.Slice(blogs, func(i, j int) bool {
		if blogs[i].Name != blogs[j].Name {
			return blogs[i].Name < blogs[j].Name
		}
		return blogs[i].BlogType < blogs[j].BlogType
	})
}
