// Package detection implements the detection module: it scores daily
// production windows for anomalies, either supplied by the caller or fetched
// from the records source, and publishes what it finds on the event bus.
package detection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/HerbHall/solarwatch/internal/anomaly"
	"github.com/HerbHall/solarwatch/internal/records"
	"github.com/HerbHall/solarwatch/pkg/energy"
	"github.com/HerbHall/solarwatch/pkg/plugin"
	"github.com/HerbHall/solarwatch/pkg/roles"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin          = (*Module)(nil)
	_ plugin.HTTPProvider    = (*Module)(nil)
	_ plugin.HealthChecker   = (*Module)(nil)
	_ plugin.EventSubscriber = (*Module)(nil)
	_ plugin.Validator       = (*Module)(nil)
)

var (
	// ErrNoSource means no records source is registered or it has no backend.
	ErrNoSource = errors.New("detection: no records source available")
	// ErrSource wraps failures reported by the records source.
	ErrSource = errors.New("detection: records source failed")
)

// Module implements the detection plugin.
type Module struct {
	logger  *zap.Logger
	cfg     DetectionConfig
	bus     plugin.EventBus
	plugins plugin.PluginResolver

	newRunID func() string
	now      func() time.Time
}

// New creates a detection plugin instance.
func New() *Module {
	return &Module{
		newRunID: uuid.NewString,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:         "detection",
		Version:      "0.1.0",
		Description:  "Anomaly detection for daily solar production",
		Dependencies: []string{"records"},
		Roles:        []string{roles.RoleAnomalyDetection},
		APIVersion:   plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(_ context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	m.bus = deps.Bus
	m.plugins = deps.Plugins

	m.cfg = DefaultConfig()
	if deps.Config != nil {
		if err := deps.Config.Unmarshal(&m.cfg); err != nil {
			return fmt.Errorf("unmarshal detection config: %w", err)
		}
	}
	if err := m.cfg.validate(); err != nil {
		return err
	}

	m.logger.Info("detection module initialized",
		zap.String("default_method", m.cfg.DefaultMethod),
		zap.Float64("window_threshold_percent", m.cfg.WindowThresholdPercent),
		zap.Float64("absolute_threshold", m.cfg.AbsoluteThreshold),
		zap.Int("default_window_days", m.cfg.DefaultWindowDays),
		zap.Bool("strict_method", m.cfg.StrictMethod),
	)
	return nil
}

// ValidateConfig implements plugin.Validator.
func (m *Module) ValidateConfig() error {
	return m.cfg.validate()
}

func (m *Module) Start(_ context.Context) error {
	m.logger.Info("detection module started")
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("detection module stopped")
	return nil
}

// Health implements plugin.HealthChecker.
func (m *Module) Health(_ context.Context) plugin.HealthStatus {
	if m.source() == nil {
		return plugin.HealthStatus{
			Status:  plugin.StatusDegraded,
			Message: "no records source; only caller-supplied windows can be scored",
			Details: map[string]string{"records_source": "missing"},
		}
	}
	return plugin.HealthStatus{
		Status:  plugin.StatusHealthy,
		Details: map[string]string{"records_source": "available"},
	}
}

// Subscriptions implements plugin.EventSubscriber.
func (m *Module) Subscriptions() []plugin.Subscription {
	return []plugin.Subscription{
		{Topic: records.TopicRecordsImported, Handler: m.handleRecordsImported},
	}
}

// handleRecordsImported rescores a unit with the default settings after new
// records arrive.
func (m *Module) handleRecordsImported(ctx context.Context, event plugin.Event) {
	ev, ok := event.Payload.(records.ImportedEvent)
	if !ok {
		m.logger.Debug("ignored import event: unexpected payload type",
			zap.String("source", event.Source))
		return
	}
	method, _ := anomaly.ParseMethod(m.cfg.DefaultMethod)
	if _, err := m.ScoreUnit(ctx, ev.UnitID, m.cfg.DefaultWindowDays, method, m.cfg.Options()); err != nil {
		m.logger.Warn("rescore after import failed",
			zap.String("unit_id", ev.UnitID), zap.Error(err))
	}
}

// source resolves the records source on each call so a records module
// disabled after Init is noticed.
func (m *Module) source() roles.EnergySource {
	if m.plugins == nil {
		return nil
	}
	for _, p := range m.plugins.ResolveByRole(roles.RoleEnergySource) {
		if prov, ok := p.(roles.EnergySourceProvider); ok {
			if src := prov.EnergySource(); src != nil {
				return src
			}
		}
	}
	return nil
}

// resolveMethod maps a requested method name to a Method. An empty name
// selects the configured default. Unknown names are rejected unless
// strict_method is off, in which case the default is used.
func (m *Module) resolveMethod(name string) (anomaly.Method, error) {
	if name == "" {
		name = m.cfg.DefaultMethod
	}
	if m.cfg.StrictMethod {
		return anomaly.ParseMethod(name)
	}
	method, known := anomaly.ParseMethodLenient(name)
	if !known {
		method, _ = anomaly.ParseMethod(m.cfg.DefaultMethod)
		m.logger.Warn("unknown detection method, using default",
			zap.String("requested", name), zap.String("method", string(method)))
	}
	return method, nil
}

// Score runs one detection pass over recs and returns the report.
func (m *Module) Score(unitID string, recs []energy.Record, method anomaly.Method, opts energy.Options) (energy.Report, error) {
	return m.score(unitID, recs, method, opts, reasonInvalidArgument)
}

// score counts a rejected window under failReason, which depends on whether
// the records came from the caller or from the records source.
func (m *Module) score(unitID string, recs []energy.Record, method anomaly.Method, opts energy.Options, failReason string) (energy.Report, error) {
	annotated, err := anomaly.Detect(recs, method, opts)
	if err != nil {
		failuresTotal.WithLabelValues(failReason).Inc()
		return energy.Report{}, err
	}
	stats := anomaly.ComputeStats(annotated)

	runsTotal.WithLabelValues(string(method)).Inc()
	windowSize.Observe(float64(len(annotated)))
	for _, r := range annotated {
		if r.HasAnomaly {
			anomaliesTotal.WithLabelValues(string(r.AnomalyType)).Inc()
		}
	}

	return energy.Report{
		RunID:       m.newRunID(),
		UnitID:      unitID,
		Method:      string(method),
		Options:     opts,
		Records:     annotated,
		Stats:       stats,
		GeneratedAt: m.now(),
	}, nil
}

// ScoreUnit fetches the most recent limit days of a unit from the records
// source, scores them and publishes TopicAnomaliesDetected when any day is
// flagged. Records the source returns that fail validation are reported as a
// source failure, not as a caller error.
func (m *Module) ScoreUnit(ctx context.Context, unitID string, limit int, method anomaly.Method, opts energy.Options) (energy.Report, error) {
	if err := anomaly.ValidateOptions(opts); err != nil {
		failuresTotal.WithLabelValues(reasonInvalidArgument).Inc()
		return energy.Report{}, err
	}
	src := m.source()
	if src == nil {
		failuresTotal.WithLabelValues(reasonSource).Inc()
		return energy.Report{}, ErrNoSource
	}

	fetchCtx, cancel := context.WithTimeout(ctx, m.cfg.FetchTimeout)
	defer cancel()
	recs, err := src.Window(fetchCtx, unitID, limit)
	if err != nil {
		failuresTotal.WithLabelValues(reasonSource).Inc()
		return energy.Report{}, fmt.Errorf("%w: %w", ErrSource, err)
	}

	report, err := m.score(unitID, recs, method, opts, reasonSource)
	if err != nil {
		return energy.Report{}, fmt.Errorf("%w: unit %s: %v", ErrSource, unitID, err)
	}

	m.logger.Debug("unit scored",
		zap.String("run_id", report.RunID),
		zap.String("unit_id", unitID),
		zap.String("method", report.Method),
		zap.Int("records", report.Stats.TotalRecords),
		zap.Int("anomalies", report.Stats.AnomalyCount),
	)
	if report.Stats.AnomalyCount > 0 {
		m.publish(ctx, report)
	}
	return report, nil
}

func (m *Module) publish(ctx context.Context, report energy.Report) {
	if m.bus == nil {
		return
	}
	m.bus.PublishAsync(context.WithoutCancel(ctx), plugin.Event{
		Topic:  TopicAnomaliesDetected,
		Source: "detection",
		Payload: AnomaliesDetectedEvent{
			RunID:        report.RunID,
			UnitID:       report.UnitID,
			Method:       report.Method,
			AnomalyCount: report.Stats.AnomalyCount,
			AnomalyDates: report.Stats.AnomalyDates,
			AnomalyTypes: report.Stats.AnomalyTypes,
		},
	})
}
