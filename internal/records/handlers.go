package records

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/HerbHall/solarwatch/internal/anomaly"
	"github.com/HerbHall/solarwatch/internal/server"
	"github.com/HerbHall/solarwatch/pkg/energy"
	"github.com/HerbHall/solarwatch/pkg/plugin"
)

const (
	defaultListLimit = 30
	maxListLimit     = 1000
	maxBodyBytes     = 4 << 20
)

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "GET", Path: "/units", Handler: m.handleListUnits},
		{Method: "GET", Path: "/units/{unit_id}", Handler: m.handleUnitRecords},
		{Method: "POST", Path: "/units/{unit_id}", Handler: m.handleImport},
	}
}

// importRequest is the body of POST /units/{unit_id}.
type importRequest struct {
	Records []energy.RecordInput `json:"records"`
}

// importResponse reports a successful import.
type importResponse struct {
	UnitID   string `json:"unitId"`
	Imported int    `json:"imported"`
}

// handleListUnits returns the units held in the local store.
func (m *Module) handleListUnits(w http.ResponseWriter, r *http.Request) {
	if m.store == nil {
		m.writeSourceError(w, r, m.unavailable())
		return
	}
	units, err := m.store.Units(r.Context())
	if err != nil {
		m.logger.Error("list units failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "failed to list units")
		return
	}
	writeJSON(w, http.StatusOK, units)
}

// handleUnitRecords returns the most recent records of a unit, oldest first.
func (m *Module) handleUnitRecords(w http.ResponseWriter, r *http.Request) {
	unitID := r.PathValue("unit_id")
	if unitID == "" {
		writeError(w, r, http.StatusBadRequest, "unit_id is required")
		return
	}
	if m.source == nil {
		m.writeSourceError(w, r, ErrNoSource)
		return
	}
	limit, err := parseLimit(r, defaultListLimit)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	recs, err := m.source.Window(r.Context(), unitID, limit)
	if err != nil {
		m.writeSourceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, anomaly.SortByDate(recs))
}

// handleImport stores a batch of records for a unit.
func (m *Module) handleImport(w http.ResponseWriter, r *http.Request) {
	unitID := r.PathValue("unit_id")

	var req importRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	recs, err := anomaly.FromInput(req.Records)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	n, err := m.Import(r.Context(), unitID, recs)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, importResponse{UnitID: unitID, Imported: n})
	case errors.Is(err, anomaly.ErrInvalidArgument):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrImportUnsupported), errors.Is(err, ErrNoSource):
		m.writeSourceError(w, r, err)
	default:
		m.logger.Error("import failed", zap.String("unit_id", unitID), zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "failed to import records")
	}
}

func (m *Module) unavailable() error {
	if m.cfg.Source == BackendAPI {
		return ErrImportUnsupported
	}
	return ErrNoSource
}

// writeSourceError maps a records source failure to a problem response.
func (m *Module) writeSourceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrImportUnsupported):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, ErrNoSource):
		writeError(w, r, http.StatusServiceUnavailable, err.Error())
	default:
		m.logger.Warn("records source failed", zap.Error(err))
		writeError(w, r, http.StatusBadGateway, "records source: "+err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, detail string) {
	server.WriteProblem(w, server.ProblemFor(status, detail, r.URL.Path))
}

// parseLimit reads the limit query parameter. Absent means defaultLimit;
// anything outside 1..maxListLimit is rejected.
func parseLimit(r *http.Request, defaultLimit int) (int, error) {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return defaultLimit, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 || n > maxListLimit {
		return 0, fmt.Errorf("limit must be an integer between 1 and %d, got %q", maxListLimit, s)
	}
	return n, nil
}
