package detection

import (
	"fmt"
	"time"

	"github.com/HerbHall/solarwatch/internal/anomaly"
	"github.com/HerbHall/solarwatch/pkg/energy"
)

// DetectionConfig holds the detection module settings (plugins.detection.*).
type DetectionConfig struct {
	DefaultMethod          string        `mapstructure:"default_method"`
	WindowThresholdPercent float64       `mapstructure:"window_threshold_percent"`
	AbsoluteThreshold      float64       `mapstructure:"absolute_threshold"`
	DefaultWindowDays      int           `mapstructure:"default_window_days"`
	MaxWindowDays          int           `mapstructure:"max_window_days"`
	StrictMethod           bool          `mapstructure:"strict_method"`
	MaxBatchWindows        int           `mapstructure:"max_batch_windows"`
	BatchConcurrency       int           `mapstructure:"batch_concurrency"`
	FetchTimeout           time.Duration `mapstructure:"fetch_timeout"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() DetectionConfig {
	return DetectionConfig{
		DefaultMethod:          string(anomaly.MethodWindowAverage),
		WindowThresholdPercent: anomaly.DefaultWindowThresholdPercent,
		AbsoluteThreshold:      anomaly.DefaultAbsoluteThreshold,
		DefaultWindowDays:      7,
		MaxWindowDays:          90,
		StrictMethod:           true,
		MaxBatchWindows:        32,
		BatchConcurrency:       4,
		FetchTimeout:           10 * time.Second,
	}
}

// Options returns the configured default thresholds.
func (c DetectionConfig) Options() energy.Options {
	return energy.Options{
		WindowThresholdPercent: c.WindowThresholdPercent,
		AbsoluteThreshold:      c.AbsoluteThreshold,
	}
}

func (c DetectionConfig) validate() error {
	if _, err := anomaly.ParseMethod(c.DefaultMethod); err != nil {
		return fmt.Errorf("detection: default_method: %w", err)
	}
	if err := anomaly.ValidateOptions(c.Options()); err != nil {
		return fmt.Errorf("detection: %w", err)
	}
	if c.DefaultWindowDays <= 0 || c.MaxWindowDays < c.DefaultWindowDays {
		return fmt.Errorf("detection: need 0 < default_window_days (%d) <= max_window_days (%d)",
			c.DefaultWindowDays, c.MaxWindowDays)
	}
	if c.MaxBatchWindows <= 0 || c.BatchConcurrency <= 0 {
		return fmt.Errorf("detection: max_batch_windows and batch_concurrency must be positive")
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("detection: fetch_timeout must be positive")
	}
	return nil
}
