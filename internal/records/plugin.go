// Package records implements the records module: the source of daily energy
// generation records for solar units, backed either by the local SQLite
// store or by the upstream energy API.
package records

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/HerbHall/solarwatch/internal/anomaly"
	"github.com/HerbHall/solarwatch/internal/energyapi"
	"github.com/HerbHall/solarwatch/pkg/energy"
	"github.com/HerbHall/solarwatch/pkg/plugin"
	"github.com/HerbHall/solarwatch/pkg/roles"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin              = (*Module)(nil)
	_ plugin.HTTPProvider        = (*Module)(nil)
	_ plugin.HealthChecker       = (*Module)(nil)
	_ plugin.Validator           = (*Module)(nil)
	_ roles.EnergySourceProvider = (*Module)(nil)
)

var (
	// ErrNoSource means no backend could be set up (sqlite without a database).
	ErrNoSource = errors.New("records: no records source configured")
	// ErrImportUnsupported means the active backend cannot store records.
	ErrImportUnsupported = errors.New("records: import requires the sqlite source")
)

// Module implements the records plugin.
type Module struct {
	logger *zap.Logger
	cfg    RecordsConfig
	store  *RecordStore
	source roles.EnergySource
	bus    plugin.EventBus
}

// New creates a records plugin instance.
func New() *Module {
	return &Module{}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:        "records",
		Version:     "0.1.0",
		Description: "Daily energy generation records for solar units",
		Roles:       []string{roles.RoleEnergySource},
		Required:    true,
		APIVersion:  plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(ctx context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	m.bus = deps.Bus

	m.cfg = DefaultConfig()
	if deps.Config != nil {
		if err := deps.Config.Unmarshal(&m.cfg); err != nil {
			return fmt.Errorf("unmarshal records config: %w", err)
		}
	}
	if err := m.cfg.validate(); err != nil {
		return err
	}

	switch m.cfg.Source {
	case BackendSQLite:
		if deps.Store == nil {
			m.logger.Warn("records module has no database; records source disabled")
			break
		}
		s, err := Open(ctx, deps.Store)
		if err != nil {
			return err
		}
		m.store = s
		m.source = s
	case BackendAPI:
		client, err := energyapi.New(energyapi.Options{
			BaseURL:      m.cfg.APIURL,
			Token:        m.cfg.APIToken,
			Timeout:      m.cfg.APITimeout,
			MaxRetries:   m.cfg.APIMaxRetries,
			RetryBackoff: m.cfg.APIRetryBackoff,
			Logger:       m.logger.Named("energyapi"),
		})
		if err != nil {
			return fmt.Errorf("records api client: %w", err)
		}
		m.source = client
	}

	m.logger.Info("records module initialized",
		zap.String("source", m.cfg.Source),
		zap.String("api_url", m.cfg.APIURL),
		zap.Bool("api_token_set", m.cfg.APIToken != ""),
		zap.Int("max_import_records", m.cfg.MaxImportRecords),
	)
	return nil
}

// ValidateConfig implements plugin.Validator.
func (m *Module) ValidateConfig() error {
	return m.cfg.validate()
}

func (m *Module) Start(_ context.Context) error {
	m.logger.Info("records module started")
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("records module stopped")
	return nil
}

// EnergySource implements roles.EnergySourceProvider. It returns nil when no
// backend is available.
func (m *Module) EnergySource() roles.EnergySource {
	return m.source
}

// Health implements plugin.HealthChecker.
func (m *Module) Health(_ context.Context) plugin.HealthStatus {
	details := map[string]string{"source": m.cfg.Source}
	if m.source == nil {
		return plugin.HealthStatus{
			Status:  plugin.StatusDegraded,
			Message: "no records source available",
			Details: details,
		}
	}
	return plugin.HealthStatus{Status: plugin.StatusHealthy, Details: details}
}

// Import validates records and stores them for unitID. The whole batch is
// rejected when any record is malformed.
func (m *Module) Import(ctx context.Context, unitID string, records []energy.Record) (int, error) {
	if m.store == nil {
		if m.cfg.Source == BackendAPI {
			return 0, ErrImportUnsupported
		}
		return 0, ErrNoSource
	}
	if unitID == "" {
		return 0, fmt.Errorf("%w: unit id is required", anomaly.ErrInvalidArgument)
	}
	if len(records) > m.cfg.MaxImportRecords {
		return 0, fmt.Errorf("%w: %d records exceeds the import limit of %d",
			anomaly.ErrInvalidArgument, len(records), m.cfg.MaxImportRecords)
	}
	if err := anomaly.ValidateRecords(records); err != nil {
		return 0, err
	}

	n, err := m.store.Import(ctx, unitID, records)
	if err != nil {
		return 0, err
	}
	m.logger.Info("records imported", zap.String("unit_id", unitID), zap.Int("count", n))

	if m.bus != nil {
		m.bus.PublishAsync(context.WithoutCancel(ctx), plugin.Event{
			Topic:   TopicRecordsImported,
			Source:  "records",
			Payload: ImportedEvent{UnitID: unitID, Count: n},
		})
	}
	return n, nil
}

// Open migrates the records schema on s and returns a RecordStore over it.
func Open(ctx context.Context, s plugin.Store) (*RecordStore, error) {
	if err := s.Migrate(ctx, "records", migrations()); err != nil {
		return nil, fmt.Errorf("records migrations: %w", err)
	}
	return NewRecordStore(s), nil
}
