package schedule

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/arthur-debert/appsweep/pkg/errors"
)

type file struct {
	Occurrences []Occurrence `yaml:"occurrences"`
}

// Store persists occurrences as YAML.
type Store struct {
	fs   afero.Fs
	path string
}

func NewStore(fs afero.Fs, path string) *Store {
	return &Store{fs: fs, path: path}
}

// Load returns the stored occurrences ordered by weekday and time. A
// missing file is an empty schedule.
func (s *Store) Load() ([]Occurrence, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "cannot read %s", s.path)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrapf(err, errors.ErrConfigParse, "cannot parse %s", s.path)
	}
	for _, o := range f.Occurrences {
		if err := o.Validate(); err != nil {
			return nil, errors.Wrapf(err, errors.ErrConfigValid, "invalid occurrence %s in %s", o.ID, s.path)
		}
	}
	sortOccurrences(f.Occurrences)
	return f.Occurrences, nil
}

// Save replaces the stored occurrences.
func (s *Store) Save(occs []Occurrence) error {
	for _, o := range occs {
		if err := o.Validate(); err != nil {
			return err
		}
	}
	sorted := append([]Occurrence(nil), occs...)
	sortOccurrences(sorted)

	data, err := yaml.Marshal(file{Occurrences: sorted})
	if err != nil {
		return errors.Wrap(err, errors.ErrInternal, "cannot encode schedule")
	}
	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return errors.Wrapf(err, errors.ErrDirCreate, "cannot create %s", filepath.Dir(s.path))
	}
	if err := afero.WriteFile(s.fs, s.path, data, 0644); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "cannot write %s", s.path)
	}
	return nil
}

// Add stores a new occurrence. An identical slot is not added twice.
func (s *Store) Add(o Occurrence) ([]Occurrence, error) {
	occs, err := s.Load()
	if err != nil {
		return nil, err
	}
	for _, existing := range occs {
		if existing.Weekday == o.Weekday && existing.Hour == o.Hour && existing.Minute == o.Minute {
			return nil, errors.Newf(errors.ErrInvalidInput, "%s is already scheduled", o)
		}
	}
	occs = append(occs, o)
	return occs, s.Save(occs)
}

// Remove deletes the occurrence with id.
func (s *Store) Remove(id string) ([]Occurrence, error) {
	return s.update(id, func(occs []Occurrence, i int) []Occurrence {
		return append(occs[:i], occs[i+1:]...)
	})
}

// SetEnabled toggles the occurrence with id.
func (s *Store) SetEnabled(id string, enabled bool) ([]Occurrence, error) {
	return s.update(id, func(occs []Occurrence, i int) []Occurrence {
		occs[i].Enabled = enabled
		return occs
	})
}

func (s *Store) update(id string, fn func([]Occurrence, int) []Occurrence) ([]Occurrence, error) {
	occs, err := s.Load()
	if err != nil {
		return nil, err
	}
	for i, o := range occs {
		if o.ID == id {
			occs = fn(occs, i)
			return occs, s.Save(occs)
		}
	}
	return nil, errors.Newf(errors.ErrNotFound, "no scheduled run with id %s", id)
}

func sortOccurrences(occs []Occurrence) {
	sort.SliceStable(occs, func(i, j int) bool {
		a, b := occs[i], occs[j]
		if a.Weekday != b.Weekday {
			return a.Weekday < b.Weekday
		}
		if a.Hour != b.Hour {
			return a.Hour < b.Hour
		}
		return a.Minute < b.Minute
	})
}
