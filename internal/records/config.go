package records

import (
	"fmt"
	"time"
)

// Backends selectable through plugins.records.source.
const (
	BackendSQLite = "sqlite"
	BackendAPI    = "api"
)

// RecordsConfig holds the records module settings (plugins.records.*).
type RecordsConfig struct {
	Source           string        `mapstructure:"source"`
	APIURL           string        `mapstructure:"api_url"`
	APIToken         string        `mapstructure:"api_token"`
	APITimeout       time.Duration `mapstructure:"api_timeout"`
	APIMaxRetries    int           `mapstructure:"api_max_retries"`
	APIRetryBackoff  time.Duration `mapstructure:"api_retry_backoff"`
	MaxImportRecords int           `mapstructure:"max_import_records"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() RecordsConfig {
	return RecordsConfig{
		Source:           BackendSQLite,
		APITimeout:       10 * time.Second,
		APIMaxRetries:    3,
		APIRetryBackoff:  500 * time.Millisecond,
		MaxImportRecords: 3660,
	}
}

func (c RecordsConfig) validate() error {
	switch c.Source {
	case BackendSQLite:
	case BackendAPI:
		if c.APIURL == "" {
			return fmt.Errorf("records: source %q requires api_url", BackendAPI)
		}
	default:
		return fmt.Errorf("records: unknown source %q (want %q or %q)", c.Source, BackendSQLite, BackendAPI)
	}
	if c.MaxImportRecords <= 0 {
		return fmt.Errorf("records: max_import_records must be positive, got %d", c.MaxImportRecords)
	}
	return nil
}
