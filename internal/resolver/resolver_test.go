package resolver

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/czkultura/dataserve/internal/cache"
	"github.com/czkultura/dataserve/internal/dataset"
	"github.com/czkultura/dataserve/internal/probe"
	"github.com/czkultura/dataserve/internal/snapshot"
)

// stubProber returns canned results per dataset name and counts calls.
type stubProber struct {
	mu      sync.Mutex
	calls   int
	results map[string]probe.Result
}

func (s *stubProber) Probe(ctx context.Context, ds dataset.Dataset) probe.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if r, ok := s.results[ds.Name]; ok {
		return r
	}
	return probe.Result{Outcome: probe.OutcomeUnreachable, Err: errors.New("stub: no live source")}
}

func (s *stubProber) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

const economicsSnapshot = `{
  "culture_share_gdp": 1.4,
  "total_financial_resources": 48.2,
  "financial_resources_growth": 3.1,
  "avg_monthly_wage": 28500,
  "unemployment_rate_culture": 2.8,
  "inflation_rate_2024": 2.4,
  "historical_growth": {
    "years": [2022, 2023],
    "avg_wage_culture": [27200, 28500],
    "avg_wage_national": [40300, 43400],
    "employment_k": [89.4, 91.2]
  }
}`

const budgetSnapshot = `Year,Category,Amount_CZK,Description
2023,Heritage Protection,1200500000,Monument restoration programmes
2024,Heritage Protection,1310000000,Monument restoration programmes
2024,Performing Arts,890250000,Theatre and orchestra grants
`

const unescoSnapshot = `name,lat,lon,visitors_2024,renovation_roi
Prague Castle,50.0911,14.4016,2400000,3.4
Cesky Krumlov,48.8127,14.3175,480000,3.0
Telc,49.1843,15.4530,180000,2.1
`

func newTestService(t *testing.T, prober probe.Prober) (*Service, *dataset.Registry) {
	t.Helper()
	reg, err := dataset.NewRegistry(t.TempDir())
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}
	r := NewResolver(prober, snapshot.NewStore(), time.Second)
	return NewService(reg, cache.New(), r, time.UTC), reg
}

func seedSnapshot(t *testing.T, reg *dataset.Registry, name, content string) {
	t.Helper()
	ds, ok := reg.Get(name)
	if !ok {
		t.Fatalf("unknown dataset %s", name)
	}
	if err := os.WriteFile(ds.SnapshotFile, []byte(content), 0644); err != nil {
		t.Fatalf("failed to seed snapshot: %v", err)
	}
}

func TestService_EconomicIndicators_SnapshotFallback(t *testing.T) {
	prober := &stubProber{}
	svc, reg := newTestService(t, prober)
	seedSnapshot(t, reg, dataset.NameEconomicIndicators, economicsSnapshot)

	econ, err := svc.EconomicIndicators(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if econ.AvgMonthlyWage != 28500 {
		t.Errorf("expected wage 28500 from snapshot, got %d", econ.AvgMonthlyWage)
	}

	// Second read hits the cache, nothing probes again.
	if _, err := svc.EconomicIndicators(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prober.callCount() != 1 {
		t.Errorf("expected 1 probe, got %d", prober.callCount())
	}
}

func TestService_Nameday_Live(t *testing.T) {
	prober := &stubProber{results: map[string]probe.Result{
		dataset.NameNameday: {
			Outcome: probe.OutcomeSuccess,
			Payload: []byte(`[{"date":"2208","name":"Bohuslav"}]`),
		},
	}}
	svc, _ := newTestService(t, prober)

	nd, err := svc.Nameday(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if nd.Name != "Bohuslav" {
		t.Errorf("expected name 'Bohuslav', got '%s'", nd.Name)
	}
}

func TestService_Nameday_LiveDown_Unavailable(t *testing.T) {
	svc, _ := newTestService(t, &stubProber{})

	_, err := svc.Nameday(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestService_ArtistStatus_MissingEverywhere(t *testing.T) {
	// Endpoint down and no snapshot file on disk: the caller must get an
	// unavailability error, never a zero-count record.
	svc, _ := newTestService(t, &stubProber{})

	status, err := svc.ArtistStatus(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if status != nil {
		t.Errorf("expected no record, got %+v", status)
	}
}

func TestService_Budget_FilterAndTotal(t *testing.T) {
	svc, reg := newTestService(t, &stubProber{})
	seedSnapshot(t, reg, dataset.NameBudget, budgetSnapshot)

	report, err := svc.Budget(context.Background(), 2024)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Year != 2024 {
		t.Errorf("expected year 2024, got %d", report.Year)
	}
	if len(report.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(report.Lines))
	}
	if report.TotalCZK != 2200250000 {
		t.Errorf("expected total 2200250000, got %v", report.TotalCZK)
	}
	for _, line := range report.Lines {
		if line.Year != 2024 {
			t.Errorf("unexpected year %d in filtered report", line.Year)
		}
	}
}

func TestService_Budget_EmptyYear_Unavailable(t *testing.T) {
	svc, reg := newTestService(t, &stubProber{})
	seedSnapshot(t, reg, dataset.NameBudget, budgetSnapshot)

	_, err := svc.Budget(context.Background(), 1999)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable for empty year, got %v", err)
	}
}

func TestService_Budget_FailureNotCached(t *testing.T) {
	prober := &stubProber{}
	svc, reg := newTestService(t, prober)
	seedSnapshot(t, reg, dataset.NameBudget, budgetSnapshot)

	_, _ = svc.Budget(context.Background(), 1999)
	_, _ = svc.Budget(context.Background(), 1999)

	// Each failed lookup resolves anew; only successes are memoized.
	if prober.callCount() != 2 {
		t.Errorf("expected 2 resolutions for repeated failure, got %d probes", prober.callCount())
	}

	if _, err := svc.Budget(context.Background(), 2024); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Budget(context.Background(), 2024); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prober.callCount() != 3 {
		t.Errorf("expected cached success to skip resolution, got %d probes", prober.callCount())
	}
}

func TestService_HeritageSites(t *testing.T) {
	svc, reg := newTestService(t, &stubProber{})
	seedSnapshot(t, reg, dataset.NameUnescoSites, unescoSnapshot)

	sites, err := svc.HeritageSites(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sites.VisitorsYear != 2024 {
		t.Errorf("expected visitors year 2024, got %d", sites.VisitorsYear)
	}
	if len(sites.Sites) != 3 {
		t.Errorf("expected 3 sites, got %d", len(sites.Sites))
	}
}

// stubCodec lets resolver tests build datasets without exposing the real
// codecs outside the dataset package.
type stubCodec struct {
	rec dataset.Record
}

func (c stubCodec) Decode(data []byte) (dataset.Record, error) {
	return c.rec, nil
}

func (c stubCodec) Encode(rec dataset.Record) ([]byte, error) {
	return []byte("stub"), nil
}

func TestResolver_RejectedLivePayload_FallsBack(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "calendar.json")
	if err := os.WriteFile(path, []byte("{}"), 0644); err != nil {
		t.Fatalf("failed to seed snapshot: %v", err)
	}

	ds := dataset.Dataset{
		Name:         "calendar",
		TTL:          time.Hour,
		Endpoint:     "http://live.example",
		SnapshotFile: path,
		Shape:        dataset.ShapeDocument,
		Codec:        stubCodec{rec: &dataset.Nameday{Name: "Snapshot", Date: "0101"}},
		Transform:    dataset.TransformNameday,
	}
	prober := &stubProber{results: map[string]probe.Result{
		"calendar": {Outcome: probe.OutcomeSuccess, Payload: []byte(`{"unexpected":"shape"}`)},
	}}
	r := NewResolver(prober, snapshot.NewStore(), time.Second)

	rec, err := r.Resolve(context.Background(), ds)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.(*dataset.Nameday).Name != "Snapshot" {
		t.Errorf("expected snapshot record after rejected payload, got %+v", rec)
	}
}

func TestResolver_CorruptSnapshot_Unavailable(t *testing.T) {
	reg, err := dataset.NewRegistry(t.TempDir())
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}
	econ, _ := reg.Get(dataset.NameEconomicIndicators)
	if err := os.WriteFile(econ.SnapshotFile, []byte("garbage"), 0644); err != nil {
		t.Fatalf("failed to seed snapshot: %v", err)
	}

	r := NewResolver(&stubProber{}, snapshot.NewStore(), time.Second)
	_, err = r.Resolve(context.Background(), econ)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable for corrupt snapshot, got %v", err)
	}
}
