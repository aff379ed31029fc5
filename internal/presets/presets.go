// Package presets serves the quick-pick target sizes and output dimensions.
package presets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/harliandi/go-imgresize/pkg/metrics"
)

// ErrEmptyPresets is returned when a presets file defines nothing usable
var ErrEmptyPresets = errors.New("presets file defines no sizes or dimensions")

// SizePreset is a target file size choice
type SizePreset struct {
	Label string `yaml:"label" json:"label"`
	Size  int    `yaml:"size" json:"size"`
	Unit  string `yaml:"unit" json:"unit"`
}

// DimensionPreset is an output width/height choice
type DimensionPreset struct {
	Label  string `yaml:"label" json:"label"`
	Width  int    `yaml:"width" json:"width"`
	Height int    `yaml:"height" json:"height"`
}

// Presets is the full preset catalogue
type Presets struct {
	Sizes      []SizePreset      `yaml:"sizes" json:"sizes"`
	Dimensions []DimensionPreset `yaml:"dimensions" json:"dimensions"`
}

// Default is served when no presets file is configured
func Default() *Presets {
	return &Presets{
		Sizes: []SizePreset{
			{Label: "20 KB", Size: 20, Unit: "kb"},
			{Label: "50 KB", Size: 50, Unit: "kb"},
			{Label: "100 KB", Size: 100, Unit: "kb"},
			{Label: "200 KB", Size: 200, Unit: "kb"},
			{Label: "500 KB", Size: 500, Unit: "kb"},
			{Label: "1 MB", Size: 1, Unit: "mb"},
		},
		Dimensions: []DimensionPreset{
			{Label: "Passport", Width: 413, Height: 531},
			{Label: "Instagram Post", Width: 1080, Height: 1080},
			{Label: "Instagram Story", Width: 1080, Height: 1920},
			{Label: "Facebook Cover", Width: 820, Height: 312},
			{Label: "HD 720p", Width: 1280, Height: 720},
			{Label: "Full HD 1080p", Width: 1920, Height: 1080},
		},
	}
}

// Parse decodes and validates a YAML presets document
func Parse(data []byte) (*Presets, error) {
	var p Presets
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse presets: %w", err)
	}
	if len(p.Sizes) == 0 && len(p.Dimensions) == 0 {
		return nil, ErrEmptyPresets
	}
	for i, s := range p.Sizes {
		if s.Size <= 0 {
			return nil, fmt.Errorf("sizes[%d]: size must be positive", i)
		}
		if s.Unit == "" {
			p.Sizes[i].Unit = "kb"
		}
	}
	for i, d := range p.Dimensions {
		if d.Width <= 0 && d.Height <= 0 {
			return nil, fmt.Errorf("dimensions[%d]: width or height is required", i)
		}
	}
	return &p, nil
}

// Load reads and parses a presets file
func Load(path string) (*Presets, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read presets file: %w", err)
	}
	return Parse(data)
}

// Store holds the current presets and swaps them atomically on reload
type Store struct {
	path    string
	current atomic.Pointer[Presets]
	logger  zerolog.Logger
}

// NewStore loads path, or the defaults when path is empty
func NewStore(path string, logger zerolog.Logger) (*Store, error) {
	s := &Store{path: path, logger: logger}
	if path == "" {
		s.current.Store(Default())
		return s, nil
	}
	p, err := Load(path)
	if err != nil {
		return nil, err
	}
	s.current.Store(p)
	return s, nil
}

// Get returns the current presets
func (s *Store) Get() *Presets {
	return s.current.Load()
}

// Reload re-reads the presets file. A bad file keeps the previous presets.
func (s *Store) Reload() error {
	if s.path == "" {
		return nil
	}
	p, err := Load(s.path)
	metrics.RecordPresetReload(err == nil)
	if err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("presets reload failed, keeping previous presets")
		return err
	}
	s.current.Store(p)
	s.logger.Info().Str("path", s.path).Int("sizes", len(p.Sizes)).Int("dimensions", len(p.Dimensions)).Msg("presets reloaded")
	return nil
}

// Watch reloads the presets whenever the file changes, until ctx is done.
// The parent directory is watched so editors that replace the file are seen.
func (s *Store) Watch(ctx context.Context) error {
	if s.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", s.path, err)
	}

	go func() {
		defer watcher.Close()
		target := filepath.Clean(s.path)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
					s.Reload()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Error().Err(err).Msg("presets watcher error")
			}
		}
	}()

	return nil
}
