package schedule

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	appLog "festcal/internal/log"
	"festcal/internal/model"
)

// Catalog is the on-disk list of plays. JSON catalogs parse as well, since
// JSON is valid YAML.
type Catalog struct {
	Plays []model.Play `yaml:"plays" json:"plays"`
}

// ErrDuplicatePlay is returned when a catalog lists the same play ID twice.
var ErrDuplicatePlay = errors.New("duplicate play id")

// LoadCatalog reads and validates a catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return nil, errors.New("catalog path is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cat, err := ParseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	appLog.Info("play catalog loaded", "path", path, "plays", len(cat.Plays))
	return cat, nil
}

// ParseCatalog decodes and validates catalog bytes.
func ParseCatalog(data []byte) (*Catalog, error) {
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(cat.Plays))
	for _, p := range cat.Plays {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePlay, p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	return &cat, nil
}

// Play looks a play up by ID.
func (c *Catalog) Play(id string) (model.Play, bool) {
	for _, p := range c.Plays {
		if p.ID == id {
			return p, true
		}
	}
	return model.Play{}, false
}

// DefaultFestival returns the first and last day of the July 2026 festival.
func DefaultFestival(loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(2026, time.July, 1, 0, 0, 0, 0, loc), time.Date(2026, time.July, 31, 0, 0, 0, 0, loc)
}
