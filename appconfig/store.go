package appconfig

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/phuslu/log"
)

// Store loads and saves settings documents as indented JSON files.
// Load never fails; Save reports errors but callers may ignore them.
type Store struct {
	logger *log.Logger
}

// NewStore creates a Store that reports problems on logger.
func NewStore(logger *log.Logger) *Store {
	return &Store{logger: logger}
}

// Load reads the document at path into a fresh defaults() value.
// A missing file yields the defaults silently; an unreadable or corrupt
// file yields the defaults and logs one error.
func Load[T any](s *Store, path string, defaults func() T) T {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Debug().Str("component", "appconfig").Str("path", path).Msg("settings file not found, using defaults")
			return defaults()
		}
		s.logger.Error().Err(err).Str("component", "appconfig").Str("path", path).Msg("could not read the settings file")
		return defaults()
	}

	doc := defaults()
	if err := json.Unmarshal(data, &doc); err != nil {
		s.logger.Error().Err(err).Str("component", "appconfig").Str("path", path).Msg("could not parse the settings file")
		return defaults()
	}
	return doc
}

// Save writes doc to path atomically. Keys already present in the file
// that doc does not know about are preserved. On failure the previous file
// is left untouched.
func (s *Store) Save(path string, doc any) error {
	if err := s.save(path, doc); err != nil {
		s.logger.Error().Err(err).Str("component", "appconfig").Str("path", path).Msg("could not save the settings file")
		return err
	}
	return nil
}

func (s *Store) save(path string, doc any) error {
	marshaled, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	out := marshaled
	if isJSONObject(marshaled) {
		base := map[string]json.RawMessage{}
		if existing, readErr := os.ReadFile(path); readErr == nil {
			var tmp map[string]json.RawMessage
			if err := json.Unmarshal(existing, &tmp); err == nil {
				base = tmp
			}
		}
		incoming := map[string]json.RawMessage{}
		if err := json.Unmarshal(marshaled, &incoming); err != nil {
			return fmt.Errorf("failed to map settings JSON: %w", err)
		}
		deepMergeJSON(base, incoming)
		out, err = json.Marshal(base)
		if err != nil {
			return fmt.Errorf("failed to marshal merged settings: %w", err)
		}
	}

	var indented bytes.Buffer
	if err := json.Indent(&indented, out, "", "  "); err != nil {
		return fmt.Errorf("failed to indent settings: %w", err)
	}

	return writeFileAtomic(path, indented.Bytes())
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("failed to replace settings file: %w", err)
	}
	return nil
}

func isJSONObject(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}

func deepMergeJSON(dst, src map[string]json.RawMessage) {
	for k, v := range src {
		if existing, ok := dst[k]; ok && isJSONObject(existing) && isJSONObject(v) {
			var dstObj map[string]json.RawMessage
			var srcObj map[string]json.RawMessage
			if err := json.Unmarshal(existing, &dstObj); err != nil {
				dst[k] = v
				continue
			}
			if err := json.Unmarshal(v, &srcObj); err != nil {
				dst[k] = v
				continue
			}
			deepMergeJSON(dstObj, srcObj)
			merged, err := json.Marshal(dstObj)
			if err != nil {
				dst[k] = v
				continue
			}
			dst[k] = merged
			continue
		}
		dst[k] = v
	}
}
