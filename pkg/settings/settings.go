// Package settings persists the dogbone parameters between sessions. The
// defaults file is TOML unless its name ends in .json.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/it-ony/Dogbone/pkg/dogbone"
	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
)

// FileName is the name of the defaults file inside the config directory.
const FileName = "defaults.toml"

// DefaultPath returns the per-user location of the defaults file.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("settings: %w", err)
	}
	return filepath.Join(dir, "dogbone", FileName), nil
}

// Store reads and writes the defaults file at Path.
type Store struct {
	Path string
	log  zerolog.Logger
}

// NewStore returns a store for path.
func NewStore(path string, log zerolog.Logger) *Store {
	return &Store{Path: path, log: log}
}

func (s *Store) isJSON() bool { return filepath.Ext(s.Path) == ".json" }

// ReadDefaults returns the persisted parameters. A missing or unreadable
// file yields dogbone.DefaultParams; keys absent from the file keep their
// default values.
func (s *Store) ReadDefaults() dogbone.Params {
	p := dogbone.DefaultParams()
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		s.log.Debug().Str("path", s.Path).Msg("no defaults file")
		return p
	}
	if err != nil {
		s.log.Warn().Err(err).Str("path", s.Path).Msg("cannot read defaults")
		return p
	}
	if err := s.decode(data, &p); err != nil {
		s.log.Warn().Err(err).Str("path", s.Path).Msg("cannot parse defaults")
		return dogbone.DefaultParams()
	}
	return p
}

func (s *Store) decode(data []byte, p *dogbone.Params) error {
	if s.isJSON() {
		return json.Unmarshal(data, p)
	}
	return toml.Unmarshal(data, p)
}

// Encode renders p in the store's format.
func (s *Store) Encode(p dogbone.Params) ([]byte, error) {
	if s.isJSON() {
		b, err := json.MarshalIndent(p, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("settings: %w", err)
		}
		return append(b, '\n'), nil
	}
	b, err := toml.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}
	return b, nil
}

// WriteDefaults persists p, replacing the previous file atomically.
func (s *Store) WriteDefaults(p dogbone.Params) error {
	data, err := s.Encode(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return fmt.Errorf("settings: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.Path), ".defaults-*")
	if err != nil {
		return fmt.Errorf("settings: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("settings: write %s: %w", s.Path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("settings: write %s: %w", s.Path, err)
	}
	if err := os.Rename(tmp.Name(), s.Path); err != nil {
		return fmt.Errorf("settings: %w", err)
	}
	s.log.Debug().Str("path", s.Path).Msg("defaults written")
	return nil
}
