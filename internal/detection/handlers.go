package detection

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/HerbHall/solarwatch/internal/anomaly"
	"github.com/HerbHall/solarwatch/internal/anomaly/scenario"
	"github.com/HerbHall/solarwatch/internal/chart"
	"github.com/HerbHall/solarwatch/internal/server"
	"github.com/HerbHall/solarwatch/pkg/energy"
	"github.com/HerbHall/solarwatch/pkg/plugin"
)

const maxBodyBytes = 8 << 20

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "POST", Path: "/detect", Handler: m.handleDetect},
		{Method: "POST", Path: "/stats", Handler: m.handleStats},
		{Method: "POST", Path: "/batch", Handler: m.handleBatch},
		{Method: "GET", Path: "/units/{unit_id}/anomalies", Handler: m.handleUnitAnomalies},
		{Method: "GET", Path: "/units/{unit_id}/chart", Handler: m.handleUnitChart},
		{Method: "GET", Path: "/scenarios", Handler: m.handleListScenarios},
		{Method: "GET", Path: "/scenarios/{slug}", Handler: m.handleScenario},
	}
}

// optionsInput carries per-request threshold overrides. Absent fields keep
// the configured defaults.
type optionsInput struct {
	WindowThresholdPercent *float64 `json:"windowThresholdPercent"`
	AbsoluteThreshold      *float64 `json:"absoluteThreshold"`
}

type detectRequest struct {
	Records []energy.RecordInput `json:"records"`
	Method  string               `json:"method"`
	Options *optionsInput        `json:"options"`
}

type statsRequest struct {
	Records []energy.AnnotatedRecord `json:"records"`
}

type batchWindow struct {
	ID      string               `json:"id"`
	Records []energy.RecordInput `json:"records"`
}

type batchRequest struct {
	Method  string        `json:"method"`
	Options *optionsInput `json:"options"`
	Windows []batchWindow `json:"windows"`
}

type batchResponse struct {
	Reports []energy.Report `json:"reports"`
}

type scenarioSummary struct {
	Slug                   string `json:"slug"`
	Name                   string `json:"name"`
	Description            string `json:"description"`
	Days                   int    `json:"days"`
	WindowAverageAnomalies int    `json:"windowAverageAnomalies"`
	AbsoluteAnomalies      int    `json:"absoluteAnomalies"`
}

// handleDetect scores a caller-supplied window.
func (m *Module) handleDetect(w http.ResponseWriter, r *http.Request) {
	var req detectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		m.writeDetectError(w, r, err)
		return
	}
	method, err := m.resolveMethod(req.Method)
	if err != nil {
		m.writeDetectError(w, r, err)
		return
	}
	recs, err := anomaly.FromInput(req.Records)
	if err != nil {
		m.writeDetectError(w, r, err)
		return
	}
	report, err := m.Score("", recs, method, m.mergeOptions(req.Options))
	if err != nil {
		m.writeDetectError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleStats summarizes records that were already annotated.
func (m *Module) handleStats(w http.ResponseWriter, r *http.Request) {
	var req statsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		m.writeDetectError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, anomaly.ComputeStats(req.Records))
}

// handleBatch scores several windows concurrently. Reports come back in
// request order and any invalid window fails the whole request.
func (m *Module) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		m.writeDetectError(w, r, err)
		return
	}
	if len(req.Windows) > m.cfg.MaxBatchWindows {
		m.writeDetectError(w, r, fmt.Errorf("%w: %d windows exceeds the batch limit of %d",
			anomaly.ErrInvalidArgument, len(req.Windows), m.cfg.MaxBatchWindows))
		return
	}
	method, err := m.resolveMethod(req.Method)
	if err != nil {
		m.writeDetectError(w, r, err)
		return
	}
	opts := m.mergeOptions(req.Options)

	reports := make([]energy.Report, len(req.Windows))
	g, gctx := errgroup.WithContext(r.Context())
	g.SetLimit(m.cfg.BatchConcurrency)
	for i, win := range req.Windows {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			recs, err := anomaly.FromInput(win.Records)
			if err != nil {
				return fmt.Errorf("window %q: %w", win.ID, err)
			}
			report, err := m.Score(win.ID, recs, method, opts)
			if err != nil {
				return fmt.Errorf("window %q: %w", win.ID, err)
			}
			reports[i] = report
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		m.writeDetectError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, batchResponse{Reports: reports})
}

// handleUnitAnomalies scores the most recent window of a unit.
func (m *Module) handleUnitAnomalies(w http.ResponseWriter, r *http.Request) {
	report, ok := m.scoreUnitRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleUnitChart renders the most recent scored window of a unit as PNG.
func (m *Module) handleUnitChart(w http.ResponseWriter, r *http.Request) {
	report, ok := m.scoreUnitRequest(w, r)
	if !ok {
		return
	}
	if len(report.Records) == 0 {
		writeError(w, r, http.StatusNotFound, fmt.Sprintf("no records for unit %q", report.UnitID))
		return
	}

	title := fmt.Sprintf("%s: %d of %d days flagged (%s)",
		report.UnitID, report.Stats.AnomalyCount, report.Stats.TotalRecords, report.Method)
	png, err := chart.Render(report.Records, title, chart.DefaultStyle())
	if err != nil {
		failuresTotal.WithLabelValues(reasonRender).Inc()
		m.logger.Error("chart render failed", zap.String("unit_id", report.UnitID), zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "failed to render chart")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// handleListScenarios lists the bundled sample windows.
func (m *Module) handleListScenarios(w http.ResponseWriter, _ *http.Request) {
	all := scenario.All()
	out := make([]scenarioSummary, len(all))
	for i, s := range all {
		out[i] = scenarioSummary{
			Slug:                   s.Slug,
			Name:                   s.Name,
			Description:            s.Description,
			Days:                   len(s.Records),
			WindowAverageAnomalies: s.WindowAverageAnomalies,
			AbsoluteAnomalies:      s.AbsoluteAnomalies,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// handleScenario scores one bundled sample window.
func (m *Module) handleScenario(w http.ResponseWriter, r *http.Request) {
	s, ok := scenario.Lookup(r.PathValue("slug"))
	if !ok {
		writeError(w, r, http.StatusNotFound, fmt.Sprintf("unknown scenario %q", r.PathValue("slug")))
		return
	}
	method, err := m.resolveMethod(r.URL.Query().Get("method"))
	if err != nil {
		m.writeDetectError(w, r, err)
		return
	}
	report, err := m.Score("", s.Records, method, m.cfg.Options())
	if err != nil {
		m.writeDetectError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// scoreUnitRequest parses the unit query and scores the unit. It writes the
// problem response itself and reports whether the caller should continue.
func (m *Module) scoreUnitRequest(w http.ResponseWriter, r *http.Request) (energy.Report, bool) {
	unitID := r.PathValue("unit_id")
	if unitID == "" {
		writeError(w, r, http.StatusBadRequest, "unit_id is required")
		return energy.Report{}, false
	}
	method, limit, opts, err := m.parseUnitQuery(r)
	if err != nil {
		m.writeDetectError(w, r, err)
		return energy.Report{}, false
	}
	report, err := m.ScoreUnit(r.Context(), unitID, limit, method, opts)
	if err != nil {
		m.writeDetectError(w, r, err)
		return energy.Report{}, false
	}
	return report, true
}

// parseUnitQuery reads method, limit and threshold overrides from the query.
func (m *Module) parseUnitQuery(r *http.Request) (anomaly.Method, int, energy.Options, error) {
	q := r.URL.Query()

	method, err := m.resolveMethod(q.Get("method"))
	if err != nil {
		return "", 0, energy.Options{}, err
	}

	limit := m.cfg.DefaultWindowDays
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > m.cfg.MaxWindowDays {
			return "", 0, energy.Options{}, fmt.Errorf("%w: limit must be an integer between 1 and %d, got %q",
				anomaly.ErrInvalidArgument, m.cfg.MaxWindowDays, s)
		}
		limit = n
	}

	var in optionsInput
	for key, dst := range map[string]**float64{
		"window_threshold_percent": &in.WindowThresholdPercent,
		"absolute_threshold":       &in.AbsoluteThreshold,
	} {
		s := q.Get(key)
		if s == "" {
			continue
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return "", 0, energy.Options{}, fmt.Errorf("%w: %s must be a number, got %q",
				anomaly.ErrInvalidArgument, key, s)
		}
		*dst = &f
	}
	return method, limit, m.mergeOptions(&in), nil
}

func (m *Module) mergeOptions(in *optionsInput) energy.Options {
	opts := m.cfg.Options()
	if in == nil {
		return opts
	}
	if in.WindowThresholdPercent != nil {
		opts.WindowThresholdPercent = *in.WindowThresholdPercent
	}
	if in.AbsoluteThreshold != nil {
		opts.AbsoluteThreshold = *in.AbsoluteThreshold
	}
	return opts
}

// writeDetectError maps detection errors to problem responses.
func (m *Module) writeDetectError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, anomaly.ErrInvalidArgument):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNoSource):
		writeError(w, r, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, ErrSource):
		m.logger.Warn("records source failed", zap.Error(err))
		writeError(w, r, http.StatusBadGateway, err.Error())
	default:
		m.logger.Error("detection request failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "detection failed")
	}
}

// decodeJSON reads a bounded JSON body into v. Decode failures wrap
// anomaly.ErrInvalidArgument.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", anomaly.ErrInvalidArgument, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, detail string) {
	server.WriteProblem(w, server.ProblemFor(status, detail, r.URL.Path))
}
