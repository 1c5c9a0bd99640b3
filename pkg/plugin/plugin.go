// Package plugin defines the contract between the solarwatch server and its
// modules. Built-in modules (records, detection) implement these interfaces
// and receive their shared services through Dependencies.
package plugin

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Range of plugin API versions the registry accepts.
const (
	APIVersionMin     = 1
	APIVersionCurrent = 1
)

// Health states reported through HealthStatus.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Plugin is implemented by every solarwatch module.
type Plugin interface {
	Info() PluginInfo
	Init(ctx context.Context, deps Dependencies) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// PluginInfo describes a module and the modules it needs.
type PluginInfo struct {
	Name         string   // unique, e.g. "records"
	Version      string   // semver
	Description  string
	Dependencies []string // modules that must be initialized first
	Required     bool     // server refuses to start without it
	Roles        []string // e.g. "energy_source"
	APIVersion   int
}

// Dependencies are the shared services handed to a module during Init.
// Any field may be nil when the server runs without that service.
type Dependencies struct {
	Config  Config // scoped to plugins.<name>
	Logger  *zap.Logger
	Store   Store
	Bus     EventBus
	Plugins PluginResolver
}

// Route is an HTTP endpoint contributed by a module. Path is relative to the
// module's mount point /api/v1/<name>.
type Route struct {
	Method  string
	Path    string
	Handler http.HandlerFunc
}

// HTTPProvider is implemented by modules that expose HTTP routes.
type HTTPProvider interface {
	Routes() []Route
}

// HealthChecker is implemented by modules that report their own health.
type HealthChecker interface {
	Health(ctx context.Context) HealthStatus
}

// HealthStatus is one module's health report.
type HealthStatus struct {
	Status  string            `json:"status"`
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// Validator is implemented by modules that check their configuration after Init.
type Validator interface {
	ValidateConfig() error
}

// Config is read access to a configuration subtree.
type Config interface {
	Unmarshal(target any) error
	Get(key string) any
	GetString(key string) string
	GetInt(key string) int
	GetFloat64(key string) float64
	GetBool(key string) bool
	GetDuration(key string) time.Duration
	IsSet(key string) bool
	Sub(key string) Config
}

// PluginResolver finds other active modules by name or role.
type PluginResolver interface {
	Resolve(name string) (Plugin, bool)
	ResolveByRole(role string) []Plugin
}
