package detection

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/HerbHall/solarwatch/internal/anomaly"
	"github.com/HerbHall/solarwatch/internal/anomaly/scenario"
	"github.com/HerbHall/solarwatch/internal/config"
	"github.com/HerbHall/solarwatch/internal/event"
	"github.com/HerbHall/solarwatch/internal/records"
	"github.com/HerbHall/solarwatch/pkg/energy"
	"github.com/HerbHall/solarwatch/pkg/plugin"
	"github.com/HerbHall/solarwatch/pkg/plugin/plugintest"
	"github.com/HerbHall/solarwatch/pkg/roles"
)

// fakeSource is a roles.EnergySource serving fixed records.
type fakeSource struct {
	mu        sync.Mutex
	recs      []energy.Record
	err       error
	lastUnit  string
	lastLimit int
}

func (f *fakeSource) Window(_ context.Context, unitID string, limit int) ([]energy.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastUnit, f.lastLimit = unitID, limit
	if f.err != nil {
		return nil, f.err
	}
	return f.recs, nil
}

// fakeRecords stands in for the records module.
type fakeRecords struct {
	src roles.EnergySource
}

func (f *fakeRecords) Info() plugin.PluginInfo {
	return plugin.PluginInfo{Name: "records", Roles: []string{roles.RoleEnergySource}, APIVersion: plugin.APIVersionCurrent}
}
func (f *fakeRecords) Init(context.Context, plugin.Dependencies) error { return nil }
func (f *fakeRecords) Start(context.Context) error                     { return nil }
func (f *fakeRecords) Stop(context.Context) error                      { return nil }
func (f *fakeRecords) EnergySource() roles.EnergySource               { return f.src }

type fakeResolver struct {
	plugins []plugin.Plugin
}

func (r *fakeResolver) Resolve(name string) (plugin.Plugin, bool) {
	for _, p := range r.plugins {
		if p.Info().Name == name {
			return p, true
		}
	}
	return nil, false
}

func (r *fakeResolver) ResolveByRole(role string) []plugin.Plugin {
	var out []plugin.Plugin
	for _, p := range r.plugins {
		for _, rl := range p.Info().Roles {
			if rl == role {
				out = append(out, p)
			}
		}
	}
	return out
}

func newTestModule(t *testing.T, src roles.EnergySource, bus plugin.EventBus) *Module {
	t.Helper()
	resolver := &fakeResolver{}
	if src != nil {
		resolver.plugins = append(resolver.plugins, &fakeRecords{src: src})
	}
	m := New()
	require.NoError(t, m.Init(context.Background(), plugin.Dependencies{
		Logger:  zap.NewNop(),
		Bus:     bus,
		Plugins: resolver,
	}))
	m.newRunID = func() string { return "run-1" }
	m.now = func() time.Time { return time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC) }
	return m
}

func TestPluginContract(t *testing.T) {
	plugintest.TestPluginContract(t, func() plugin.Plugin { return New() })
}

func TestInfo_DependsOnRecords(t *testing.T) {
	info := New().Info()
	assert.Equal(t, []string{"records"}, info.Dependencies)
	assert.Contains(t, info.Roles, roles.RoleAnomalyDetection)
}

func TestInit_WithConfig(t *testing.T) {
	v := viper.New()
	v.Set("default_method", "absolute")
	v.Set("absolute_threshold", 2.5)
	v.Set("fetch_timeout", "3s")
	v.Set("strict_method", false)

	m := New()
	require.NoError(t, m.Init(context.Background(), plugin.Dependencies{
		Logger: zap.NewNop(),
		Config: config.New(v),
	}))

	assert.Equal(t, "absolute", m.cfg.DefaultMethod)
	assert.Equal(t, energy.Options{WindowThresholdPercent: 40, AbsoluteThreshold: 2.5}, m.cfg.Options())
	assert.Equal(t, 3*time.Second, m.cfg.FetchTimeout)
	assert.False(t, m.cfg.StrictMethod)
	assert.NoError(t, m.ValidateConfig())
}

func TestInit_InvalidConfig(t *testing.T) {
	tests := map[string]map[string]any{
		"unknown default method": {"default_method": "combined"},
		"zero window threshold":  {"window_threshold_percent": 0},
		"negative absolute":      {"absolute_threshold": -1},
		"default above max":      {"default_window_days": 100, "max_window_days": 90},
		"zero concurrency":       {"batch_concurrency": 0},
	}
	for name, settings := range tests {
		t.Run(name, func(t *testing.T) {
			v := viper.New()
			for k, val := range settings {
				v.Set(k, val)
			}
			err := New().Init(context.Background(), plugin.Dependencies{
				Logger: zap.NewNop(),
				Config: config.New(v),
			})
			assert.Error(t, err)
		})
	}
}

func TestResolveMethod(t *testing.T) {
	m := newTestModule(t, nil, nil)

	got, err := m.resolveMethod("")
	require.NoError(t, err)
	assert.Equal(t, anomaly.MethodWindowAverage, got)

	got, err = m.resolveMethod("absolute")
	require.NoError(t, err)
	assert.Equal(t, anomaly.MethodAbsolute, got)

	_, err = m.resolveMethod("combined")
	assert.ErrorIs(t, err, anomaly.ErrInvalidArgument)

	m.cfg.StrictMethod = false
	m.cfg.DefaultMethod = "absolute"
	got, err = m.resolveMethod("combined")
	require.NoError(t, err)
	assert.Equal(t, anomaly.MethodAbsolute, got)
}

func TestScore(t *testing.T) {
	m := newTestModule(t, nil, nil)
	s, _ := scenario.Lookup("panel-failure")

	report, err := m.Score("unit-1", s.Records, anomaly.MethodWindowAverage, anomaly.DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, "unit-1", report.UnitID)
	assert.Equal(t, "windowAverage", report.Method)
	assert.Equal(t, 4, report.Stats.AnomalyCount)
	assert.Equal(t, "57.1%", report.Stats.AnomalyRate)
	assert.Len(t, report.Records, 7)

	_, err = m.Score("", []energy.Record{{Date: "bad"}}, anomaly.MethodAbsolute, anomaly.DefaultOptions())
	assert.ErrorIs(t, err, anomaly.ErrInvalidArgument)
}

func TestScoreUnit_PublishesWhenFlagged(t *testing.T) {
	bus := event.NewBus(zap.NewNop())
	s, _ := scenario.Lookup("intermittent-failure")
	src := &fakeSource{recs: s.Records}
	m := newTestModule(t, src, bus)

	var (
		mu  sync.Mutex
		got []AnomaliesDetectedEvent
	)
	bus.Subscribe(TopicAnomaliesDetected, func(_ context.Context, e plugin.Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e.Payload.(AnomaliesDetectedEvent))
	})

	report, err := m.ScoreUnit(context.Background(), "unit-7", 7, anomaly.MethodAbsolute, anomaly.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Stats.AnomalyCount)
	assert.Equal(t, "unit-7", src.lastUnit)
	assert.Equal(t, 7, src.lastLimit)

	bus.Wait()
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, AnomaliesDetectedEvent{
		RunID:        "run-1",
		UnitID:       "unit-7",
		Method:       "absolute",
		AnomalyCount: 3,
		AnomalyDates: []string{"2024-01-02", "2024-01-04", "2024-01-07"},
		AnomalyTypes: []energy.AnomalyType{energy.AnomalyCriticalLow},
	}, got[0])
}

func TestScoreUnit_NoPublishWhenClean(t *testing.T) {
	bus := event.NewBus(zap.NewNop())
	s, _ := scenario.Lookup("normal-operation")
	m := newTestModule(t, &fakeSource{recs: s.Records}, bus)

	published := false
	bus.Subscribe(TopicAnomaliesDetected, func(context.Context, plugin.Event) { published = true })

	_, err := m.ScoreUnit(context.Background(), "unit-1", 7, anomaly.MethodWindowAverage, anomaly.DefaultOptions())
	require.NoError(t, err)
	bus.Wait()
	assert.False(t, published)
}

func TestScoreUnit_Errors(t *testing.T) {
	ctx := context.Background()
	opts := anomaly.DefaultOptions()

	_, err := newTestModule(t, nil, nil).ScoreUnit(ctx, "u", 7, anomaly.MethodAbsolute, opts)
	assert.ErrorIs(t, err, ErrNoSource)

	upstream := errors.New("connection refused")
	_, err = newTestModule(t, &fakeSource{err: upstream}, nil).ScoreUnit(ctx, "u", 7, anomaly.MethodAbsolute, opts)
	assert.ErrorIs(t, err, ErrSource)
	assert.ErrorIs(t, err, upstream)

	bad := &fakeSource{recs: []energy.Record{{Date: "2024-01-01", TotalEnergy: -5}}}
	_, err = newTestModule(t, bad, nil).ScoreUnit(ctx, "u", 7, anomaly.MethodAbsolute, opts)
	assert.ErrorIs(t, err, ErrSource)
	assert.NotErrorIs(t, err, anomaly.ErrInvalidArgument)

	_, err = newTestModule(t, &fakeSource{}, nil).ScoreUnit(ctx, "u", 7, anomaly.MethodAbsolute, energy.Options{})
	assert.ErrorIs(t, err, anomaly.ErrInvalidArgument)
}

func TestScoreUnit_InvalidSourceDataCountsAsSourceFailure(t *testing.T) {
	source := failuresTotal.WithLabelValues(reasonSource)
	invalid := failuresTotal.WithLabelValues(reasonInvalidArgument)
	beforeSource, beforeInvalid := testutil.ToFloat64(source), testutil.ToFloat64(invalid)

	bad := &fakeSource{recs: []energy.Record{{Date: "2024-01-01", TotalEnergy: -5}}}
	_, err := newTestModule(t, bad, nil).ScoreUnit(context.Background(), "u", 7, anomaly.MethodAbsolute, anomaly.DefaultOptions())
	require.ErrorIs(t, err, ErrSource)

	assert.Equal(t, beforeSource+1, testutil.ToFloat64(source))
	assert.Equal(t, beforeInvalid, testutil.ToFloat64(invalid))
}

func TestScore_InvalidRecordsCountAsInvalidArgument(t *testing.T) {
	invalid := failuresTotal.WithLabelValues(reasonInvalidArgument)
	before := testutil.ToFloat64(invalid)

	_, err := newTestModule(t, nil, nil).Score("", []energy.Record{{Date: "2024-01-01", TotalEnergy: -1}},
		anomaly.MethodAbsolute, anomaly.DefaultOptions())
	require.ErrorIs(t, err, anomaly.ErrInvalidArgument)
	assert.Equal(t, before+1, testutil.ToFloat64(invalid))
}

func TestHealth(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, plugin.StatusDegraded, newTestModule(t, nil, nil).Health(ctx).Status)

	h := newTestModule(t, &fakeSource{}, nil).Health(ctx)
	assert.Equal(t, plugin.StatusHealthy, h.Status)
	assert.Equal(t, "available", h.Details["records_source"])
}

func TestRecordsImported_TriggersRescore(t *testing.T) {
	bus := event.NewBus(zap.NewNop())
	s, _ := scenario.Lookup("panel-failure")
	src := &fakeSource{recs: s.Records}
	m := newTestModule(t, src, bus)

	for _, sub := range m.Subscriptions() {
		bus.Subscribe(sub.Topic, sub.Handler)
	}
	var (
		mu     sync.Mutex
		counts []int
	)
	bus.Subscribe(TopicAnomaliesDetected, func(_ context.Context, e plugin.Event) {
		mu.Lock()
		defer mu.Unlock()
		counts = append(counts, e.Payload.(AnomaliesDetectedEvent).AnomalyCount)
	})

	require.NoError(t, bus.Publish(context.Background(), plugin.Event{
		Topic:   records.TopicRecordsImported,
		Source:  "records",
		Payload: records.ImportedEvent{UnitID: "unit-3", Count: 7},
	}))
	bus.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{4}, counts)
	assert.Equal(t, 7, src.lastLimit)
}
