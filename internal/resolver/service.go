package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/czkultura/dataserve/internal/cache"
	"github.com/czkultura/dataserve/internal/dataset"
)

// Service is the typed read surface over the acquisition pipeline. Every
// accessor goes through the TTL cache; a miss resolves live-then-snapshot
// via the Resolver.
type Service struct {
	registry *dataset.Registry
	cache    *cache.Cache
	resolver *Resolver
	loc      *time.Location
}

func NewService(registry *dataset.Registry, c *cache.Cache, r *Resolver, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		registry: registry,
		cache:    c,
		resolver: r,
		loc:      loc,
	}
}

func (s *Service) get(ctx context.Context, name string) (dataset.Record, error) {
	ds, ok := s.registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown dataset %s", name)
	}
	return s.cache.GetOrResolve(ctx, ds.Name, ds.TTL, func(ctx context.Context) (dataset.Record, error) {
		return s.resolver.Resolve(ctx, ds)
	})
}

// EconomicIndicators returns the culture-sector KPI document.
func (s *Service) EconomicIndicators(ctx context.Context) (*dataset.EconomicIndicators, error) {
	rec, err := s.get(ctx, dataset.NameEconomicIndicators)
	if err != nil {
		return nil, err
	}
	econ, ok := rec.(*dataset.EconomicIndicators)
	if !ok {
		return nil, fmt.Errorf("economic indicators: unexpected record type %T", rec)
	}
	return econ, nil
}

// HeritageSites returns the full heritage site table.
func (s *Service) HeritageSites(ctx context.Context) (dataset.HeritageSites, error) {
	rec, err := s.get(ctx, dataset.NameUnescoSites)
	if err != nil {
		return dataset.HeritageSites{}, err
	}
	sites, ok := rec.(dataset.HeritageSites)
	if !ok {
		return dataset.HeritageSites{}, fmt.Errorf("unesco sites: unexpected record type %T", rec)
	}
	return sites, nil
}

// Budget returns the allocations for one budget year together with their
// exact total. A year with no allocations is unavailable, and since failed
// resolutions are never cached, a later snapshot update can still fill it.
func (s *Service) Budget(ctx context.Context, year int) (*dataset.BudgetReport, error) {
	ds, ok := s.registry.Get(dataset.NameBudget)
	if !ok {
		return nil, fmt.Errorf("unknown dataset %s", dataset.NameBudget)
	}

	key := fmt.Sprintf("%s:%d", ds.Name, year)
	rec, err := s.cache.GetOrResolve(ctx, key, ds.TTL, func(ctx context.Context) (dataset.Record, error) {
		full, err := s.resolver.Resolve(ctx, ds)
		if err != nil {
			return nil, err
		}
		lines, ok := full.(dataset.BudgetLines)
		if !ok {
			return nil, fmt.Errorf("budget: unexpected record type %T", full)
		}
		filtered := lines.FilterYear(year)
		if len(filtered) == 0 {
			return nil, fmt.Errorf("budget %d: no allocations: %w", year, ErrUnavailable)
		}
		return &dataset.BudgetReport{Year: year, Lines: filtered, TotalCZK: filtered.Total()}, nil
	})
	if err != nil {
		return nil, err
	}
	report, ok := rec.(*dataset.BudgetReport)
	if !ok {
		return nil, fmt.Errorf("budget: unexpected record type %T", rec)
	}
	return report, nil
}

// ArtistStatus returns the artist registry summary.
func (s *Service) ArtistStatus(ctx context.Context) (*dataset.ArtistStatus, error) {
	rec, err := s.get(ctx, dataset.NameArtistStatus)
	if err != nil {
		return nil, err
	}
	status, ok := rec.(*dataset.ArtistStatus)
	if !ok {
		return nil, fmt.Errorf("artist status: unexpected record type %T", rec)
	}
	return status, nil
}

// Nameday returns today's nameday from the live calendar.
func (s *Service) Nameday(ctx context.Context) (*dataset.Nameday, error) {
	rec, err := s.get(ctx, dataset.NameNameday)
	if err != nil {
		return nil, err
	}
	nd, ok := rec.(*dataset.Nameday)
	if !ok {
		return nil, fmt.Errorf("nameday: unexpected record type %T", rec)
	}
	return nd, nil
}

// DefaultBudgetYear is the current year in the service timezone, used when a
// caller asks for the budget without naming a year.
func (s *Service) DefaultBudgetYear() int {
	return time.Now().In(s.loc).Year()
}

// Cached reports whether a dataset currently has an unexpired cache entry.
// Budget is keyed per year, so its default year stands in.
func (s *Service) Cached(name string) bool {
	ds, ok := s.registry.Get(name)
	if !ok {
		return false
	}
	key := ds.Name
	if ds.Name == dataset.NameBudget {
		key = fmt.Sprintf("%s:%d", ds.Name, s.DefaultBudgetYear())
	}
	return s.cache.Has(key)
}
