package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/HerbHall/solarwatch/pkg/plugin"
)

type fakeSource struct {
	plugins []plugin.Plugin
	routes  map[string][]plugin.Route
}

func (f *fakeSource) AllRoutes() map[string][]plugin.Route { return f.routes }
func (f *fakeSource) All() []plugin.Plugin                  { return f.plugins }

type stubPlugin struct {
	info   plugin.PluginInfo
	health string
}

func (s *stubPlugin) Info() plugin.PluginInfo                       { return s.info }
func (s *stubPlugin) Init(context.Context, plugin.Dependencies) error { return nil }
func (s *stubPlugin) Start(context.Context) error                   { return nil }
func (s *stubPlugin) Stop(context.Context) error                    { return nil }

type healthyStub struct{ *stubPlugin }

func (s healthyStub) Health(context.Context) plugin.HealthStatus {
	return plugin.HealthStatus{Status: s.health}
}

func newTestServer(t *testing.T, ready ReadinessChecker, opts Options, plugins ...plugin.Plugin) http.Handler {
	t.Helper()
	src := &fakeSource{
		plugins: plugins,
		routes: map[string][]plugin.Route{
			"records": {{
				Method: http.MethodGet,
				Path:   "/units/{unit_id}",
				Handler: func(w http.ResponseWriter, r *http.Request) {
					_, _ = w.Write([]byte(r.PathValue("unit_id")))
				},
			}, {
				Method:  http.MethodPost,
				Path:    "/units/{unit_id}",
				Handler: func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusCreated) },
			}},
		},
	}
	return New("127.0.0.1:0", src, zap.NewNop(), ready, opts).Handler()
}

func do(h http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, path, http.NoBody))
	return w
}

func TestHealthz(t *testing.T) {
	w := do(newTestServer(t, nil, Options{}), http.MethodGet, "/healthz")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "alive") {
		t.Errorf("GET /healthz = %d %s", w.Code, w.Body.String())
	}
}

func TestReadyz(t *testing.T) {
	tests := []struct {
		name  string
		ready ReadinessChecker
		want  int
	}{
		{name: "no checker", want: http.StatusOK},
		{name: "ready", ready: func(context.Context) error { return nil }, want: http.StatusOK},
		{name: "not ready", ready: func(context.Context) error { return errors.New("db closed") }, want: http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(newTestServer(t, tt.ready, Options{}), http.MethodGet, "/readyz")
			if w.Code != tt.want {
				t.Errorf("GET /readyz = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestHealth_AggregatesPlugins(t *testing.T) {
	records := healthyStub{&stubPlugin{info: plugin.PluginInfo{Name: "records"}, health: plugin.StatusHealthy}}
	detection := healthyStub{&stubPlugin{info: plugin.PluginInfo{Name: "detection"}, health: plugin.StatusDegraded}}
	plain := &stubPlugin{info: plugin.PluginInfo{Name: "plain"}}

	w := do(newTestServer(t, nil, Options{}, records, detection, plain), http.MethodGet, "/api/v1/health")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != plugin.StatusDegraded {
		t.Errorf("Status = %q, want degraded", resp.Status)
	}
	if resp.Service != "solarwatch" || resp.Version["version"] == "" {
		t.Errorf("resp = %+v", resp)
	}
	if len(resp.Plugins) != 2 {
		t.Errorf("Plugins = %v, want records and detection", resp.Plugins)
	}
}

func TestPlugins(t *testing.T) {
	p := &stubPlugin{info: plugin.PluginInfo{Name: "records", Version: "0.1.0", Roles: []string{"energy_source"}}}
	w := do(newTestServer(t, nil, Options{}, p), http.MethodGet, "/api/v1/plugins")

	var got []PluginResponse
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Name != "records" || got[0].Roles[0] != "energy_source" {
		t.Errorf("plugins = %+v", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(t, nil, Options{})
	do(h, http.MethodGet, "/api/v1/records/units/u-1")

	w := do(h, http.MethodGet, "/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /metrics = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "solarwatch_http_requests_total") {
		t.Error("request counter not exported")
	}
}

func TestPluginRoutesMounted(t *testing.T) {
	h := newTestServer(t, nil, Options{})

	w := do(h, http.MethodGet, "/api/v1/records/units/u-42")
	if w.Code != http.StatusOK || w.Body.String() != "u-42" {
		t.Errorf("GET unit = %d %q", w.Code, w.Body.String())
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("middleware chain not applied")
	}
}

func TestReadOnlyServer(t *testing.T) {
	h := newTestServer(t, nil, Options{ReadOnly: true, ComputePrefixes: []string{"/api/v1/detection/"}})

	if w := do(h, http.MethodPost, "/api/v1/records/units/u-1"); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST in read-only mode = %d, want 405", w.Code)
	}
	if w := do(h, http.MethodGet, "/api/v1/records/units/u-1"); w.Code != http.StatusOK {
		t.Errorf("GET in read-only mode = %d, want 200", w.Code)
	}
}

func TestSwaggerDevMode(t *testing.T) {
	w := do(newTestServer(t, nil, Options{DevMode: true}), http.MethodGet, "/swagger/doc.json")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /swagger/doc.json = %d, want 200", w.Code)
	}
	var doc struct {
		Swagger string                    `json:"swagger"`
		Paths   map[string]map[string]any `json:"paths"`
	}
	if err := json.NewDecoder(w.Body).Decode(&doc); err != nil {
		t.Fatalf("doc.json is not JSON: %v", err)
	}
	if doc.Swagger != "2.0" {
		t.Errorf("swagger = %q, want 2.0", doc.Swagger)
	}
	for path, method := range map[string]string{
		"/detection/detect":                    "post",
		"/detection/units/{unit_id}/anomalies": "get",
		"/detection/scenarios/{slug}":          "get",
		"/records/units/{unit_id}":             "post",
	} {
		if _, ok := doc.Paths[path][method]; !ok {
			t.Errorf("doc.json has no %s %s", method, path)
		}
	}

	if w := do(newTestServer(t, nil, Options{}), http.MethodGet, "/swagger/doc.json"); w.Code != http.StatusNotFound {
		t.Errorf("GET /swagger/doc.json without dev mode = %d, want 404", w.Code)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "solarwatch.yaml")
	content := "server:\n  port: 9191\nplugins:\n  detection:\n    max_window_days: 30\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SW_LOGGING_LEVEL", "debug")

	v, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	cfg, err := ServerConfig(v)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 9191 || cfg.Host != "0.0.0.0" {
		t.Errorf("server config = %+v", cfg)
	}
	if cfg.Addr() != "0.0.0.0:9191" {
		t.Errorf("Addr() = %q", cfg.Addr())
	}
	if got := v.GetInt("plugins.detection.max_window_days"); got != 30 {
		t.Errorf("max_window_days = %d, want 30", got)
	}
	if got := v.GetInt("plugins.detection.default_window_days"); got != 7 {
		t.Errorf("default_window_days = %d, want default 7", got)
	}
	if got := v.GetString("logging.level"); got != "debug" {
		t.Errorf("logging.level = %q, want env override debug", got)
	}
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("LoadConfig() with missing explicit file succeeded")
	}
}

func TestServerConfig_DefaultsWithEnv(t *testing.T) {
	t.Setenv("SW_SERVER_PORT", "9090")
	v, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	cfg, err := ServerConfig(v)
	if err != nil {
		t.Fatal(err)
	}
	want := Config{
		Host:    "0.0.0.0",
		Port:    9090,
		DataDir: "./data",
		Limit:   RateLimitConfig{RPS: 50, Burst: 100},
	}
	if cfg != want {
		t.Errorf("ServerConfig() = %+v, want %+v", cfg, want)
	}
}

func TestServerConfig_PartialFileWithEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "solarwatch.yaml")
	content := "server:\n  host: 127.0.0.1\n  rate_limit:\n    burst: 10\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SW_SERVER_PORT", "9090")
	t.Setenv("SW_SERVER_DEV_MODE", "true")

	v, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	cfg, err := ServerConfig(v)
	if err != nil {
		t.Fatal(err)
	}
	want := Config{
		Host:    "127.0.0.1",
		Port:    9090,
		DataDir: "./data",
		DevMode: true,
		Limit:   RateLimitConfig{RPS: 50, Burst: 10},
	}
	if cfg != want {
		t.Errorf("ServerConfig() = %+v, want %+v", cfg, want)
	}
	if cfg.Addr() != "127.0.0.1:9090" {
		t.Errorf("Addr() = %q, want 127.0.0.1:9090", cfg.Addr())
	}
}

func TestServerConfig_PortOutOfRange(t *testing.T) {
	v, err := LoadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	v.Set("server.port", 70000)
	if _, err := ServerConfig(v); err == nil {
		t.Error("ServerConfig() with port 70000 succeeded")
	}
}
