package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestForPlugin(t *testing.T) {
	root := viper.New()
	root.Set("plugins.detection.default_method", "absolute")
	root.Set("plugins.detection.max_window_days", 30)
	root.Set("plugins.detection.fetch_timeout", "3s")
	root.Set("plugins.detection.window_threshold_percent", 25.5)
	root.Set("plugins.detection.strict_method", false)

	cfg := ForPlugin(root, "detection")

	if got := cfg.GetString("default_method"); got != "absolute" {
		t.Errorf("GetString(default_method) = %q, want absolute", got)
	}
	if got := cfg.GetInt("max_window_days"); got != 30 {
		t.Errorf("GetInt(max_window_days) = %d, want 30", got)
	}
	if got := cfg.GetDuration("fetch_timeout"); got != 3*time.Second {
		t.Errorf("GetDuration(fetch_timeout) = %v, want 3s", got)
	}
	if got := cfg.GetFloat64("window_threshold_percent"); got != 25.5 {
		t.Errorf("GetFloat64(window_threshold_percent) = %v, want 25.5", got)
	}
	if cfg.GetBool("strict_method") {
		t.Error("GetBool(strict_method) = true, want false")
	}
	if !cfg.IsSet("default_method") || cfg.IsSet("missing") {
		t.Error("IsSet() reports wrong keys")
	}

	var target struct {
		DefaultMethod string `mapstructure:"default_method"`
		MaxWindowDays int    `mapstructure:"max_window_days"`
	}
	if err := cfg.Unmarshal(&target); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if target.DefaultMethod != "absolute" || target.MaxWindowDays != 30 {
		t.Errorf("Unmarshal() = %+v", target)
	}
}

func TestForPlugin_Missing(t *testing.T) {
	cfg := ForPlugin(viper.New(), "records")
	if cfg.GetString("source") != "" {
		t.Error("missing subtree returned a value")
	}
	if sub := cfg.Sub("anything"); sub.IsSet("x") {
		t.Error("Sub() of empty config reports keys")
	}
}
