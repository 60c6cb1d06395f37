package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"turfslot/internal/models"
)

// SportConfig is a sport offered on a turf.
type SportConfig struct {
	ID          int64   `yaml:"id"`
	Name        string  `yaml:"name"`
	Type        string  `yaml:"type"`
	RatePerHour float64 `yaml:"rate_per_hour"`
	Dimensions  string  `yaml:"dimensions"`
	Capacity    int     `yaml:"capacity"`
	Rules       string  `yaml:"rules"`
	IsActive    *bool   `yaml:"is_active"`
}

// TurfConfig is a single turf entry of turfs.yaml.
type TurfConfig struct {
	ID       int64         `yaml:"id"`
	Name     string        `yaml:"name"`
	Slug     string        `yaml:"slug"`
	Location string        `yaml:"location"`
	Address  string        `yaml:"address"`
	IsActive *bool         `yaml:"is_active"`
	Sports   []SportConfig `yaml:"sports"`
}

// TurfDefaults are applied to sports that leave a field unset.
type TurfDefaults struct {
	RatePerHour float64 `yaml:"rate_per_hour"`
	Capacity    int     `yaml:"capacity"`
}

// TurfsConfig is the root configuration for turfs.yaml.
type TurfsConfig struct {
	Turfs    []TurfConfig `yaml:"turfs"`
	Defaults TurfDefaults `yaml:"defaults"`
}

// LoadTurfsConfig loads and validates the turf catalog from YAML file.
func LoadTurfsConfig(path string) (*TurfsConfig, error) {
	if path == "" {
		path = "configs/turfs.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read turfs config: %w", err)
	}

	var cfg TurfsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse turfs config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate turfs config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration for errors.
func (c *TurfsConfig) Validate() error {
	if len(c.Turfs) == 0 {
		return fmt.Errorf("no turfs defined")
	}

	turfIDs := make(map[int64]bool)
	sportIDs := make(map[int64]bool)

	for i, t := range c.Turfs {
		if t.ID <= 0 {
			return fmt.Errorf("turf[%d]: id must be positive, got %d", i, t.ID)
		}
		if turfIDs[t.ID] {
			return fmt.Errorf("turf[%d]: duplicate id %d", i, t.ID)
		}
		turfIDs[t.ID] = true

		if t.Name == "" {
			return fmt.Errorf("turf[%d]: name is required", i)
		}
		if len(t.Sports) == 0 {
			return fmt.Errorf("turf[%d]: at least one sport is required", i)
		}

		for j, s := range t.Sports {
			prefix := fmt.Sprintf("turf[%d].sports[%d]", i, j)
			if s.ID <= 0 {
				return fmt.Errorf("%s: id must be positive, got %d", prefix, s.ID)
			}
			if sportIDs[s.ID] {
				return fmt.Errorf("%s: duplicate sport id %d", prefix, s.ID)
			}
			sportIDs[s.ID] = true

			if s.Name == "" {
				return fmt.Errorf("%s: name is required", prefix)
			}
			if s.RatePerHour <= 0 {
				return fmt.Errorf("%s: rate_per_hour must be positive", prefix)
			}
			if s.Capacity < 0 {
				return fmt.Errorf("%s: capacity cannot be negative", prefix)
			}
		}
	}

	return nil
}

func (c *TurfsConfig) applyDefaults() {
	for i := range c.Turfs {
		t := &c.Turfs[i]
		if t.IsActive == nil {
			t.IsActive = boolPtr(true)
		}
		for j := range t.Sports {
			s := &t.Sports[j]
			if s.RatePerHour <= 0 {
				s.RatePerHour = c.Defaults.RatePerHour
			}
			if s.Capacity == 0 {
				s.Capacity = c.Defaults.Capacity
			}
			if s.Type == "" {
				s.Type = s.Name
			}
			if s.IsActive == nil {
				s.IsActive = boolPtr(true)
			}
		}
	}
}

// ToModels converts the configuration into catalog models.
func (c *TurfsConfig) ToModels() []models.Turf {
	out := make([]models.Turf, 0, len(c.Turfs))
	for _, t := range c.Turfs {
		turf := models.Turf{
			ID:       t.ID,
			Name:     t.Name,
			Slug:     t.Slug,
			Location: t.Location,
			Address:  t.Address,
			IsActive: t.IsActive == nil || *t.IsActive,
			Sports:   make([]models.Sport, 0, len(t.Sports)),
		}
		for _, s := range t.Sports {
			turf.Sports = append(turf.Sports, models.Sport{
				ID:          s.ID,
				TurfID:      t.ID,
				Name:        s.Name,
				Type:        s.Type,
				RatePerHour: s.RatePerHour,
				Dimensions:  s.Dimensions,
				Capacity:    s.Capacity,
				Rules:       s.Rules,
				IsActive:    s.IsActive == nil || *s.IsActive,
			})
		}
		out = append(out, turf)
	}
	return out
}

func boolPtr(v bool) *bool { return &v }
