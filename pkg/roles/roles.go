// Package roles defines typed contracts for plugin roles.
// Plugins that fill a role (declared via PluginInfo.Roles) should implement
// the corresponding interface so callers can use type-safe access via
// PluginResolver.ResolveByRole followed by a type assertion.
package roles

import (
	"context"

	"github.com/HerbHall/solarwatch/pkg/energy"
)

// Role name constants match the strings used in PluginInfo.Roles.
const (
	RoleEnergySource     = "energy_source"
	RoleAnomalyDetection = "anomaly_detection"
)

// EnergySource serves daily energy generation records.
type EnergySource interface {
	// Window returns the most recent limit daily records of a solar unit,
	// in any order. An unknown unit yields an empty slice.
	Window(ctx context.Context, unitID string, limit int) ([]energy.Record, error)
}

// EnergySourceProvider is implemented by plugins that fill RoleEnergySource.
type EnergySourceProvider interface {
	// EnergySource returns the active backend, or nil when none is configured.
	EnergySource() EnergySource
}
