// Package config adapts viper to plugin.Config and builds the process logger.
package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/HerbHall/solarwatch/pkg/plugin"
)

var _ plugin.Config = (*ViperConfig)(nil)

// ViperConfig is a plugin.Config over one viper subtree.
type ViperConfig struct {
	v *viper.Viper
}

// New wraps v. A nil v yields an empty configuration.
func New(v *viper.Viper) *ViperConfig {
	if v == nil {
		v = viper.New()
	}
	return &ViperConfig{v: v}
}

// ForPlugin returns the plugins.<name> subtree of root.
func ForPlugin(root *viper.Viper, name string) *ViperConfig {
	return New(root.Sub("plugins." + name))
}

func (c *ViperConfig) Unmarshal(target any) error { return c.v.Unmarshal(target) }

func (c *ViperConfig) Get(key string) any { return c.v.Get(key) }

func (c *ViperConfig) GetString(key string) string { return c.v.GetString(key) }

func (c *ViperConfig) GetInt(key string) int { return c.v.GetInt(key) }

func (c *ViperConfig) GetFloat64(key string) float64 { return c.v.GetFloat64(key) }

func (c *ViperConfig) GetBool(key string) bool { return c.v.GetBool(key) }

func (c *ViperConfig) GetDuration(key string) time.Duration { return c.v.GetDuration(key) }

func (c *ViperConfig) IsSet(key string) bool { return c.v.IsSet(key) }

// Sub returns the subtree at key, or an empty config when key is absent.
func (c *ViperConfig) Sub(key string) plugin.Config {
	return New(c.v.Sub(key))
}
