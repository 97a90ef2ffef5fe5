package dataset

import (
	"errors"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Record is a normalized in-memory dataset value. Every record can check its
// own integrity; the snapshot store refuses to read or write records that fail.
type Record interface {
	Validate() error
}

// EconomicIndicators is the scalar KPI record backing the executive overview.
// JSON tags match the snapshot file keys and must stay stable.
type EconomicIndicators struct {
	CultureShareGDP          float64          `json:"culture_share_gdp" validate:"gt=0"`
	TotalFinancialResources  float64          `json:"total_financial_resources" validate:"gt=0"`
	FinancialResourcesGrowth float64          `json:"financial_resources_growth"`
	AvgMonthlyWage           int              `json:"avg_monthly_wage" validate:"gt=0"`
	UnemploymentRateCulture  float64          `json:"unemployment_rate_culture" validate:"gte=0"`
	InflationRate2024        float64          `json:"inflation_rate_2024"`
	HistoricalGrowth         HistoricalGrowth `json:"historical_growth"`
}

// HistoricalGrowth holds parallel yearly series. All four slices must have the
// same length; the year at index i labels the values at index i.
type HistoricalGrowth struct {
	Years           []int     `json:"years"`
	AvgWageCulture  []float64 `json:"avg_wage_culture"`
	AvgWageNational []float64 `json:"avg_wage_national"`
	EmploymentK     []float64 `json:"employment_k"`
}

func (e *EconomicIndicators) Validate() error {
	if err := validate.Struct(e); err != nil {
		return fmt.Errorf("economic indicators: %w", err)
	}
	h := e.HistoricalGrowth
	n := len(h.Years)
	if len(h.AvgWageCulture) != n || len(h.AvgWageNational) != n || len(h.EmploymentK) != n {
		return fmt.Errorf("economic indicators: historical_growth series lengths differ (years=%d culture=%d national=%d employment=%d)",
			n, len(h.AvgWageCulture), len(h.AvgWageNational), len(h.EmploymentK))
	}
	return nil
}

// HeritageSite is one UNESCO or national heritage location.
type HeritageSite struct {
	Name          string  `json:"name" validate:"required"`
	Lat           float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon           float64 `json:"lon" validate:"gte=-180,lte=180"`
	Visitors      int     `json:"visitors" validate:"gte=0"`
	RenovationROI float64 `json:"renovation_roi" validate:"gte=0"`
}

// HeritageSites is the tabular heritage record. VisitorsYear is the year
// parsed from the snapshot's visitors_<year> column header.
type HeritageSites struct {
	VisitorsYear int            `json:"visitors_year"`
	Sites        []HeritageSite `json:"sites"`
}

func (h HeritageSites) Validate() error {
	if h.VisitorsYear < 1900 || h.VisitorsYear > 2999 {
		return fmt.Errorf("heritage sites: implausible visitors year %d", h.VisitorsYear)
	}
	if len(h.Sites) == 0 {
		return errors.New("heritage sites: no rows")
	}
	for i, s := range h.Sites {
		if err := validate.Struct(s); err != nil {
			return fmt.Errorf("heritage sites: row %d (%s): %w", i, s.Name, err)
		}
	}
	return nil
}

// TopByVisitors returns the n sites with the highest visitor counts, ordered
// descending. Equal counts are broken by ascending name so the ranking is
// deterministic. The receiver is never mutated.
func (h HeritageSites) TopByVisitors(n int) []HeritageSite {
	ranked := make([]HeritageSite, len(h.Sites))
	copy(ranked, h.Sites)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Visitors != ranked[j].Visitors {
			return ranked[i].Visitors > ranked[j].Visitors
		}
		return ranked[i].Name < ranked[j].Name
	})
	if n < 0 {
		n = 0
	}
	if n > len(ranked) {
		n = len(ranked)
	}
	return ranked[:n]
}

// BudgetLine is one budget allocation row. JSON tags mirror the snapshot
// column labels.
type BudgetLine struct {
	Year        int     `json:"Year" validate:"gt=1900"`
	Category    string  `json:"Category" validate:"required"`
	AmountCZK   float64 `json:"Amount_CZK" validate:"gte=0"`
	Description string  `json:"Description"`
}

// BudgetLines is the full multi-year budget table as persisted.
type BudgetLines []BudgetLine

func (b BudgetLines) Validate() error {
	if len(b) == 0 {
		return errors.New("budget: no rows")
	}
	for i, line := range b {
		if err := validate.Struct(line); err != nil {
			return fmt.Errorf("budget: row %d: %w", i, err)
		}
	}
	return nil
}

// FilterYear returns the lines for a single budget year, preserving row order.
func (b BudgetLines) FilterYear(year int) BudgetLines {
	var out BudgetLines
	for _, line := range b {
		if line.Year == year {
			out = append(out, line)
		}
	}
	return out
}

// Total sums Amount_CZK over all lines.
func (b BudgetLines) Total() float64 {
	var total float64
	for _, line := range b {
		total += line.AmountCZK
	}
	return total
}

// BudgetReport is the per-year view served to callers: the filtered lines and
// their exact total.
type BudgetReport struct {
	Year     int         `json:"year"`
	Lines    BudgetLines `json:"lines"`
	TotalCZK float64     `json:"total_czk"`
}

func (r *BudgetReport) Validate() error {
	if r.Year <= 1900 {
		return fmt.Errorf("budget report: implausible year %d", r.Year)
	}
	return r.Lines.Validate()
}

// ArtistStatus summarizes the artist registry: the total registration count
// and the percentage breakdown by discipline.
type ArtistStatus struct {
	RegisteredCount int                `json:"registered_count" validate:"gt=0"`
	Disciplines     map[string]float64 `json:"disciplines" validate:"min=1"`
}

func (a *ArtistStatus) Validate() error {
	if err := validate.Struct(a); err != nil {
		return fmt.Errorf("artist status: %w", err)
	}
	return nil
}

// Nameday is the live-only calendar record: whose nameday is celebrated today.
type Nameday struct {
	Name string `json:"name" validate:"required"`
	Date string `json:"date"`
}

func (n *Nameday) Validate() error {
	if err := validate.Struct(n); err != nil {
		return fmt.Errorf("nameday: %w", err)
	}
	return nil
}
