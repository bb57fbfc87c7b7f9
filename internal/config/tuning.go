// Package config loads optional planner tuning overrides from JSON files.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// TuningConfig represents optional overrides for planner tuning parameters.
// All fields are pointers so a partial JSON file only overrides what it
// names; the Get* methods provide the built-in defaults for the rest.
type TuningConfig struct {
	// Placement params
	LatticeStepM *float64 `json:"lattice_step_m,omitempty"`
	Workers      *int     `json:"workers,omitempty"`

	// Road routing params
	GradePenalty *float64 `json:"grade_penalty,omitempty"`
	SimplifyTolM *float64 `json:"simplify_tol_m,omitempty"`

	// Hillshade params
	HillshadeAzimuthDeg  *float64 `json:"hillshade_azimuth_deg,omitempty"`
	HillshadeAltitudeDeg *float64 `json:"hillshade_altitude_deg,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the
// max file size. Fields omitted from the JSON retain their defaults, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.LatticeStepM != nil && *c.LatticeStepM <= 0 {
		return fmt.Errorf("lattice_step_m must be positive, got %f", *c.LatticeStepM)
	}
	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}
	if c.GradePenalty != nil && *c.GradePenalty < 0 {
		return fmt.Errorf("grade_penalty must be non-negative, got %f", *c.GradePenalty)
	}
	if c.SimplifyTolM != nil && *c.SimplifyTolM < 0 {
		return fmt.Errorf("simplify_tol_m must be non-negative, got %f", *c.SimplifyTolM)
	}
	if c.HillshadeAzimuthDeg != nil {
		if *c.HillshadeAzimuthDeg < 0 || *c.HillshadeAzimuthDeg >= 360 {
			return fmt.Errorf("hillshade_azimuth_deg must be in [0, 360), got %f", *c.HillshadeAzimuthDeg)
		}
	}
	if c.HillshadeAltitudeDeg != nil {
		if *c.HillshadeAltitudeDeg <= 0 || *c.HillshadeAltitudeDeg > 90 {
			return fmt.Errorf("hillshade_altitude_deg must be in (0, 90], got %f", *c.HillshadeAltitudeDeg)
		}
	}
	return nil
}

// GetLatticeStepM returns the lattice_step_m value or zero, which lets the
// placement layer pick its own default.
func (c *TuningConfig) GetLatticeStepM() float64 {
	if c.LatticeStepM == nil {
		return 0
	}
	return *c.LatticeStepM
}

// GetWorkers returns the workers value or zero (auto).
func (c *TuningConfig) GetWorkers() int {
	if c.Workers == nil {
		return 0
	}
	return *c.Workers
}

// GetGradePenalty returns the grade_penalty value or zero (routing default).
func (c *TuningConfig) GetGradePenalty() float64 {
	if c.GradePenalty == nil {
		return 0
	}
	return *c.GradePenalty
}

// GetSimplifyTolM returns the simplify_tol_m value or zero (routing default).
func (c *TuningConfig) GetSimplifyTolM() float64 {
	if c.SimplifyTolM == nil {
		return 0
	}
	return *c.SimplifyTolM
}

// GetHillshadeAzimuthDeg returns the hillshade azimuth or the default.
func (c *TuningConfig) GetHillshadeAzimuthDeg() float64 {
	if c.HillshadeAzimuthDeg == nil {
		return 315 // light from the northwest
	}
	return *c.HillshadeAzimuthDeg
}

// GetHillshadeAltitudeDeg returns the hillshade altitude or the default.
func (c *TuningConfig) GetHillshadeAltitudeDeg() float64 {
	if c.HillshadeAltitudeDeg == nil {
		return 45
	}
	return *c.HillshadeAltitudeDeg
}
