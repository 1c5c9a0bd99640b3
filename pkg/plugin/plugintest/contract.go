// Package plugintest holds behavioral checks every plugin.Plugin must pass.
package plugintest

import (
	"context"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/HerbHall/solarwatch/pkg/plugin"
)

// TestPluginContract runs the lifecycle checks against fresh instances from
// factory. Modules call it from their own tests:
//
//	func TestContract(t *testing.T) {
//		plugintest.TestPluginContract(t, func() plugin.Plugin { return records.New() })
//	}
//
// Init receives only a logger, so modules must tolerate missing optional
// services.
func TestPluginContract(t *testing.T, factory func() plugin.Plugin) {
	t.Helper()

	t.Run("Info_is_complete", func(t *testing.T) {
		info := factory().Info()
		if info.Name == "" {
			t.Error("Info().Name is empty")
		}
		if info.Version == "" {
			t.Error("Info().Version is empty")
		}
		if info.APIVersion < plugin.APIVersionMin || info.APIVersion > plugin.APIVersionCurrent {
			t.Errorf("Info().APIVersion = %d, want [%d, %d]",
				info.APIVersion, plugin.APIVersionMin, plugin.APIVersionCurrent)
		}
		for _, dep := range info.Dependencies {
			if dep == info.Name {
				t.Errorf("Info().Dependencies lists the plugin itself")
			}
		}
	})

	t.Run("Info_is_stable", func(t *testing.T) {
		p := factory()
		a, b := p.Info(), p.Info()
		if a.Name != b.Name || a.Version != b.Version {
			t.Errorf("Info() changed between calls: %s@%s then %s@%s", a.Name, a.Version, b.Name, b.Version)
		}
	})

	t.Run("Init_with_minimal_deps", func(t *testing.T) {
		p := factory()
		if err := p.Init(context.Background(), minimalDeps(t, p)); err != nil {
			t.Fatalf("Init() error = %v", err)
		}
	})

	t.Run("Start_then_Stop", func(t *testing.T) {
		p := factory()
		if err := p.Init(context.Background(), minimalDeps(t, p)); err != nil {
			t.Fatalf("Init() error = %v", err)
		}
		if err := p.Start(context.Background()); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		if err := p.Stop(context.Background()); err != nil {
			t.Errorf("Stop() error = %v", err)
		}
	})

	t.Run("Stop_without_Start", func(t *testing.T) {
		p := factory()
		if err := p.Init(context.Background(), minimalDeps(t, p)); err != nil {
			t.Fatalf("Init() error = %v", err)
		}
		if err := p.Stop(context.Background()); err != nil {
			t.Errorf("Stop() without Start error = %v", err)
		}
	})

	t.Run("Health_after_Init", func(t *testing.T) {
		p := factory()
		hc, ok := p.(plugin.HealthChecker)
		if !ok {
			t.Skip("plugin does not report health")
		}
		if err := p.Init(context.Background(), minimalDeps(t, p)); err != nil {
			t.Fatalf("Init() error = %v", err)
		}
		switch s := hc.Health(context.Background()).Status; s {
		case plugin.StatusHealthy, plugin.StatusDegraded, plugin.StatusUnhealthy:
		default:
			t.Errorf("Health().Status = %q, not a known status", s)
		}
	})
}

func minimalDeps(t *testing.T, p plugin.Plugin) plugin.Dependencies {
	return plugin.Dependencies{
		Logger: zaptest.NewLogger(t).Named(p.Info().Name),
	}
}
