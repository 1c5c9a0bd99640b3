package server

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the server section of solarwatch.yaml.
type Config struct {
	Host     string          `mapstructure:"host"`
	Port     int             `mapstructure:"port"`
	DataDir  string          `mapstructure:"data_dir"`
	ReadOnly bool            `mapstructure:"read_only"`
	DevMode  bool            `mapstructure:"dev_mode"`
	Limit    RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig sets the per-client token bucket.
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// Addr returns host:port.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ServerConfig extracts the server section from v. Keys are read one by one
// so defaults, file values and environment overrides merge per key.
func ServerConfig(v *viper.Viper) (Config, error) {
	cfg := Config{
		Host:     v.GetString("server.host"),
		Port:     v.GetInt("server.port"),
		DataDir:  v.GetString("server.data_dir"),
		ReadOnly: v.GetBool("server.read_only"),
		DevMode:  v.GetBool("server.dev_mode"),
		Limit: RateLimitConfig{
			RPS:   v.GetFloat64("server.rate_limit.rps"),
			Burst: v.GetInt("server.rate_limit.burst"),
		},
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return Config{}, fmt.Errorf("server config: port %d out of range", cfg.Port)
	}
	return cfg, nil
}

// LoadConfig reads solarwatch.yaml (or configPath) over built-in defaults.
// Environment variables override both: SW_SERVER_PORT=9090 sets server.port.
// A missing config file is not an error.
func LoadConfig(configPath string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("solarwatch")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/solarwatch")
	}

	v.SetEnvPrefix("SW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}
	return v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.data_dir", "./data")
	v.SetDefault("server.read_only", false)
	v.SetDefault("server.dev_mode", false)
	v.SetDefault("server.rate_limit.rps", 50)
	v.SetDefault("server.rate_limit.burst", 100)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("database.path", "./data/solarwatch.db")

	v.SetDefault("plugins.records.source", "sqlite")
	v.SetDefault("plugins.records.api_url", "")
	v.SetDefault("plugins.records.api_token", "")
	v.SetDefault("plugins.records.api_timeout", "10s")
	v.SetDefault("plugins.records.api_max_retries", 3)
	v.SetDefault("plugins.records.api_retry_backoff", "500ms")
	v.SetDefault("plugins.records.max_import_records", 3660)

	v.SetDefault("plugins.detection.default_method", "windowAverage")
	v.SetDefault("plugins.detection.window_threshold_percent", 40.0)
	v.SetDefault("plugins.detection.absolute_threshold", 5.0)
	v.SetDefault("plugins.detection.default_window_days", 7)
	v.SetDefault("plugins.detection.max_window_days", 90)
	v.SetDefault("plugins.detection.strict_method", true)
	v.SetDefault("plugins.detection.max_batch_windows", 32)
	v.SetDefault("plugins.detection.batch_concurrency", 4)
	v.SetDefault("plugins.detection.fetch_timeout", "10s")
}
