package server

import (
	"encoding/json"
	"net/http"
)

// RFC 7807 problem type URIs.
const (
	ProblemTypeBadRequest       = "https://solarwatch.dev/problems/bad-request"
	ProblemTypeNotFound         = "https://solarwatch.dev/problems/not-found"
	ProblemTypeMethodNotAllowed = "https://solarwatch.dev/problems/method-not-allowed"
	ProblemTypeConflict         = "https://solarwatch.dev/problems/conflict"
	ProblemTypeRateLimited      = "https://solarwatch.dev/problems/rate-limited"
	ProblemTypeInternal         = "https://solarwatch.dev/problems/internal-error"
	ProblemTypeBadGateway       = "https://solarwatch.dev/problems/upstream-error"
	ProblemTypeUnavailable      = "https://solarwatch.dev/problems/unavailable"
)

// Problem is an RFC 7807 problem details body.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// WriteProblem writes p as application/problem+json.
func WriteProblem(w http.ResponseWriter, p Problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// ProblemFor builds a problem with the canonical type and title for status.
func ProblemFor(status int, detail, instance string) Problem {
	return Problem{
		Type:     problemType(status),
		Title:    http.StatusText(status),
		Status:   status,
		Detail:   detail,
		Instance: instance,
	}
}

func problemType(status int) string {
	switch status {
	case http.StatusBadRequest:
		return ProblemTypeBadRequest
	case http.StatusNotFound:
		return ProblemTypeNotFound
	case http.StatusMethodNotAllowed:
		return ProblemTypeMethodNotAllowed
	case http.StatusConflict:
		return ProblemTypeConflict
	case http.StatusTooManyRequests:
		return ProblemTypeRateLimited
	case http.StatusBadGateway, http.StatusGatewayTimeout:
		return ProblemTypeBadGateway
	case http.StatusServiceUnavailable:
		return ProblemTypeUnavailable
	default:
		return ProblemTypeInternal
	}
}

// BadRequest writes a 400 problem.
func BadRequest(w http.ResponseWriter, detail, instance string) {
	WriteProblem(w, ProblemFor(http.StatusBadRequest, detail, instance))
}

// NotFound writes a 404 problem.
func NotFound(w http.ResponseWriter, detail, instance string) {
	WriteProblem(w, ProblemFor(http.StatusNotFound, detail, instance))
}

// InternalError writes a 500 problem.
func InternalError(w http.ResponseWriter, detail, instance string) {
	WriteProblem(w, ProblemFor(http.StatusInternalServerError, detail, instance))
}

// RateLimited writes a 429 problem.
func RateLimited(w http.ResponseWriter, detail, instance string) {
	WriteProblem(w, ProblemFor(http.StatusTooManyRequests, detail, instance))
}
