package prefs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

const fileName = "applet.yaml"

// Preferences are the applet display settings.
type Preferences struct {
	// ShowLabel renders the status as a persistent label
	// instead of a tooltip.
	ShowLabel bool `yaml:"show_label"`

	// IncludeTemperature appends the temperature to the status text.
	IncludeTemperature bool `yaml:"include_temperature"`
}

// Default returns the preferences used when nothing was saved yet.
func Default() Preferences {
	return Preferences{ShowLabel: true}
}

// DefaultPath returns the per-user preferences file.
func DefaultPath() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "argonone", fileName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return fileName
	}
	return filepath.Join(home, ".config", "argonone", fileName)
}

// Store persists Preferences to a yaml file.
type Store struct {
	Path string

	mutex sync.Mutex
	stat  os.FileInfo
}

func NewStore(path string) *Store {
	return &Store{Path: path}
}

// Load reads the preferences file.
// A missing file yields the defaults, keys absent from the file keep
// their default value.
func (s *Store) Load() (Preferences, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	p := Default()

	stat, err := os.Stat(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		s.stat = nil
		return p, nil
	} else if err != nil {
		return p, err
	}
	s.stat = stat

	data, err := os.ReadFile(s.Path)
	if err != nil {
		return p, err
	}
	if err = yaml.Unmarshal(data, &p); err != nil {
		return Default(), fmt.Errorf("parsing %s: %w", s.Path, err)
	}
	return p, nil
}

// Save writes p, creating the parent directory when needed.
func (s *Store) Save(p Preferences) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	data, err := yaml.Marshal(p)
	if err != nil {
		return err
	}
	if err = os.MkdirAll(filepath.Dir(s.Path), 0755); err != nil {
		return err
	}
	if err = os.WriteFile(s.Path, data, 0644); err != nil {
		return err
	}

	s.stat, _ = os.Stat(s.Path)
	return nil
}

// Changed reports whether the file changed on disk since the last
// Load or Save.
func (s *Store) Changed() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	stat, err := os.Stat(s.Path)
	if err != nil {
		// deleted since last seen
		return s.stat != nil
	}
	return s.stat == nil ||
		stat.Size() != s.stat.Size() ||
		!stat.ModTime().Equal(s.stat.ModTime())
}
