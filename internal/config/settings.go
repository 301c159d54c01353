package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings holds the decision engine tunables.
// It is loaded once at startup and passed by value into detectors and the policy.
type Settings struct {
	SuppressionThreshold        float64 `yaml:"suppression_threshold" json:"suppression_threshold"`
	DuplicateWindowMinutes      int     `yaml:"duplicate_window_minutes" json:"duplicate_window_minutes"`
	CriticalAlwaysForward       bool    `yaml:"critical_always_forward" json:"critical_always_forward"`
	FlappingWindowMinutes       int     `yaml:"flapping_window_minutes" json:"flapping_window_minutes"`
	FlappingThreshold           int     `yaml:"flapping_threshold" json:"flapping_threshold"`
	SelfResolveThresholdMinutes int     `yaml:"self_resolve_threshold_minutes" json:"self_resolve_threshold_minutes"`
	MinResolutionCount          int     `yaml:"min_resolution_count" json:"min_resolution_count"`
}

// DefaultSettings returns the built-in decision settings
func DefaultSettings() Settings {
	return Settings{
		SuppressionThreshold:        0.8,
		DuplicateWindowMinutes:      5,
		CriticalAlwaysForward:       true,
		FlappingWindowMinutes:       30,
		FlappingThreshold:           3,
		SelfResolveThresholdMinutes: 15,
		MinResolutionCount:          3,
	}
}

// DuplicateWindow returns the duplicate lookback as a duration
func (s Settings) DuplicateWindow() time.Duration {
	return time.Duration(s.DuplicateWindowMinutes) * time.Minute
}

// FlappingWindow returns the flapping lookback as a duration
func (s Settings) FlappingWindow() time.Duration {
	return time.Duration(s.FlappingWindowMinutes) * time.Minute
}

// Validate rejects settings the detectors cannot work with
func (s Settings) Validate() error {
	var errs []error
	if s.SuppressionThreshold < 0 || s.SuppressionThreshold > 1 {
		errs = append(errs, fmt.Errorf("suppression_threshold must be within [0,1], got %v", s.SuppressionThreshold))
	}
	if s.DuplicateWindowMinutes < 0 {
		errs = append(errs, fmt.Errorf("duplicate_window_minutes must not be negative"))
	}
	if s.FlappingWindowMinutes < 0 {
		errs = append(errs, fmt.Errorf("flapping_window_minutes must not be negative"))
	}
	if s.FlappingThreshold < 0 {
		errs = append(errs, fmt.Errorf("flapping_threshold must not be negative"))
	}
	if s.SelfResolveThresholdMinutes < 0 {
		errs = append(errs, fmt.Errorf("self_resolve_threshold_minutes must not be negative"))
	}
	if s.MinResolutionCount < 0 {
		errs = append(errs, fmt.Errorf("min_resolution_count must not be negative"))
	}
	return errors.Join(errs...)
}

// LoadSettings starts from the defaults, overlays the YAML file at path (if any)
// and then applies environment overrides.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return Settings{}, fmt.Errorf("settings file %s not found: %w", path, err)
			}
			return Settings{}, fmt.Errorf("read settings: %w", err)
		}
		if err := yaml.Unmarshal(data, &s); err != nil {
			return Settings{}, fmt.Errorf("parse settings: %w", err)
		}
	}

	if err := applySettingsEnvOverrides(&s); err != nil {
		return Settings{}, err
	}
	if err := s.Validate(); err != nil {
		return Settings{}, fmt.Errorf("invalid settings: %w", err)
	}
	return s, nil
}

func applySettingsEnvOverrides(s *Settings) error {
	if v := os.Getenv("SUPPRESSION_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("SUPPRESSION_THRESHOLD: %w", err)
		}
		s.SuppressionThreshold = f
	}
	if v := os.Getenv("CRITICAL_ALWAYS_FORWARD"); v != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("CRITICAL_ALWAYS_FORWARD: %w", err)
		}
		s.CriticalAlwaysForward = b
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"DUPLICATE_WINDOW_MINUTES", &s.DuplicateWindowMinutes},
		{"FLAPPING_WINDOW_MINUTES", &s.FlappingWindowMinutes},
		{"FLAPPING_THRESHOLD", &s.FlappingThreshold},
		{"SELF_RESOLVE_THRESHOLD_MINUTES", &s.SelfResolveThresholdMinutes},
		{"MIN_RESOLUTION_COUNT", &s.MinResolutionCount},
	}
	for _, o := range ints {
		v := os.Getenv(o.key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", o.key, err)
		}
		*o.dst = n
	}
	return nil
}
