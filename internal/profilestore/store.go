// Package profilestore persists profiles as one YAML file per profile. It is
// the stock implementation of the profile.Store interface; the core never
// depends on the on-disk shape.
package profilestore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	yaml "gopkg.in/yaml.v3"

	"github.com/Alia5/HIDRA/profile"
)

const fileExt = ".yaml"

// Store is a directory of YAML profile files.
type Store struct {
	dir string
	// OnSaved, when set, is invoked after every successful Save; the
	// coordinator hooks profile hot-swapping here.
	OnSaved func(profile.Profile)
}

// New returns a store rooted at dir, creating it if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create profile dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the store's directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name+fileExt)
}

// LoadAll reads every profile in the directory, sorted by name. A corrupted
// file fails the whole load so the caller can fall back deliberately.
func (s *Store) LoadAll() ([]profile.Profile, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read profile dir: %w", err)
	}
	var out []profile.Profile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileExt) {
			continue
		}
		p, err := s.Load(strings.TrimSuffix(e.Name(), fileExt))
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Load reads one profile by name.
func (s *Store) Load(name string) (profile.Profile, error) {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return profile.Profile{}, fmt.Errorf("%w: %s", profile.ErrNotFound, name)
		}
		return profile.Profile{}, err
	}
	var p profile.Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return profile.Profile{}, fmt.Errorf("%w: %s: %v", profile.ErrCorrupted, name, err)
	}
	if p.Name == "" {
		return profile.Profile{}, fmt.Errorf("%w: %s: missing name", profile.ErrCorrupted, name)
	}
	if err := p.Validate(); err != nil {
		return profile.Profile{}, err
	}
	return p, nil
}

// Save writes a profile and notifies the OnSaved hook.
func (s *Store) Save(p profile.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.Version == 0 {
		p.Version = profile.CurrentVersion
	}
	data, err := yaml.Marshal(&p)
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path(p.Name), data, 0o644); err != nil {
		return err
	}
	if s.OnSaved != nil {
		s.OnSaved(p)
	}
	return nil
}

// Delete removes a profile file.
func (s *Store) Delete(name string) error {
	err := os.Remove(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", profile.ErrNotFound, name)
	}
	return err
}

// Exists reports whether a profile file is present.
func (s *Store) Exists(name string) (bool, error) {
	_, err := os.Stat(s.path(name))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// CreateDefault persists and returns the built-in default profile.
func (s *Store) CreateDefault() (profile.Profile, error) {
	p := profile.Default()
	if err := s.Save(p); err != nil {
		return profile.Profile{}, err
	}
	return p, nil
}
