package route

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/czkultura/dataserve/internal/app"
	"github.com/czkultura/dataserve/internal/config"
	"github.com/czkultura/dataserve/internal/dataset"
	"github.com/czkultura/dataserve/internal/probe"
	"github.com/czkultura/dataserve/internal/refresh"
	"github.com/czkultura/dataserve/internal/snapshot"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubProber keeps route tests off the network.
type stubProber struct{}

func (stubProber) Probe(ctx context.Context, ds dataset.Dataset) probe.Result {
	return probe.Result{Outcome: probe.OutcomeUnreachable, Err: errors.New("stub: offline")}
}

func newTestRouter(t *testing.T) (*gin.Engine, *app.App) {
	t.Helper()

	dir := t.TempDir()
	reg, err := dataset.NewRegistry(dir)
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}

	store := snapshot.NewStore()
	econ, _ := reg.Get(dataset.NameEconomicIndicators)
	seeded := &dataset.EconomicIndicators{
		CultureShareGDP:         1.4,
		TotalFinancialResources: 48.2,
		AvgMonthlyWage:          28500,
		HistoricalGrowth: dataset.HistoricalGrowth{
			Years:           []int{2023},
			AvgWageCulture:  []float64{28500},
			AvgWageNational: []float64{43400},
			EmploymentK:     []float64{91.2},
		},
	}
	if err := store.Write(econ, seeded); err != nil {
		t.Fatalf("failed to seed economics: %v", err)
	}

	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:           8080,
			RequestTimeout: 2 * time.Second,
		},
		Data: config.DataConfig{Dir: dir},
		Probe: config.ProbeConfig{
			RequestTimeout: 100 * time.Millisecond,
			RefreshTimeout: 100 * time.Millisecond,
		},
		Refresh: config.RefreshConfig{
			Enabled: false,
			At:      "06:00",
			Poll:    30 * time.Second,
		},
		Misc: config.MiscConfig{
			GinMode:  "test",
			Timezone: "UTC",
		},
	}
	a, err := app.New(cfg, reg, store, stubProber{})
	if err != nil {
		t.Fatalf("failed to build app: %v", err)
	}
	t.Cleanup(a.Shutdown)

	return SetupRoutes(a), a
}

func request(t *testing.T, r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req, err := http.NewRequest(method, path, nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSetupRoutes_Health(t *testing.T) {
	r, _ := newTestRouter(t)

	w := request(t, r, http.MethodGet, "/health")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if body["message"] != "UP" {
		t.Errorf("expected message UP, got %q", body["message"])
	}
}

func TestSetupRoutes_DatasetsListing(t *testing.T) {
	r, _ := newTestRouter(t)

	w := request(t, r, http.MethodGet, "/api/datasets")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var infos []map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &infos); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(infos) != 5 {
		t.Errorf("expected 5 datasets, got %d", len(infos))
	}
}

func TestSetupRoutes_DatasetAccessor(t *testing.T) {
	r, _ := newTestRouter(t)

	if w := request(t, r, http.MethodGet, "/api/dataset/economic_indicators"); w.Code != http.StatusOK {
		t.Errorf("seeded economics: expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if w := request(t, r, http.MethodGet, "/api/dataset/artist_status"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("unseeded artists: expected status 503, got %d", w.Code)
	}
	if w := request(t, r, http.MethodGet, "/api/dataset/weather"); w.Code != http.StatusNotFound {
		t.Errorf("unknown dataset: expected status 404, got %d", w.Code)
	}
}

func TestSetupRoutes_RefreshEndpoints(t *testing.T) {
	r, a := newTestRouter(t)

	w := request(t, r, http.MethodGet, "/api/refresh/status")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var status refresh.StatusSnapshot
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("failed to unmarshal status: %v", err)
	}
	if status.State != refresh.StateIdle {
		t.Errorf("expected idle state, got %s", status.State)
	}

	if w := request(t, r, http.MethodPost, "/api/refresh/run"); w.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d: %s", w.Code, w.Body.String())
	}

	deadline := time.Now().Add(2 * time.Second)
	for a.Refresh.Status().LastRun == nil {
		if time.Now().After(deadline) {
			t.Fatal("manual run never finished")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSetupRoutes_CORSPreflight(t *testing.T) {
	r, _ := newTestRouter(t)

	w := request(t, r, http.MethodOptions, "/api/datasets")
	if w.Code != http.StatusNoContent {
		t.Errorf("expected status 204, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("expected ACAO '*', got %q", got)
	}
}

func TestSetupRoutes_UnknownPath(t *testing.T) {
	r, _ := newTestRouter(t)

	if w := request(t, r, http.MethodGet, "/nope"); w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}
