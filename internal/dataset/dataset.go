package dataset

import (
	"fmt"
	"path/filepath"
	"time"
)

// Shape tells consumers whether a dataset is a single document of named
// values or a row-oriented table.
type Shape string

const (
	ShapeDocument Shape = "document"
	ShapeTable    Shape = "table"
)

// Dataset names. Callers address datasets by these keys.
const (
	NameEconomicIndicators = "economic_indicators"
	NameUnescoSites        = "unesco_sites"
	NameBudget             = "budget"
	NameArtistStatus       = "artist_status"
	NameNameday            = "nameday"
)

// Live endpoints per dataset.
const (
	endpointEconomics = "https://data.csu.gov.cz/api/katalog/v1/sady/mzdy/ukazatele"
	endpointUnesco    = "https://data.gov.cz/soubor/kulturni-pamatky.csv"
	endpointArtists   = "https://docs.google.com/spreadsheets/d/e/2PACX-1vR_placeholder_id/pub?output=csv"
	endpointNameday   = "https://svatky.adresa.info/json"
)

// Dataset describes one acquirable dataset: where its live source is, where
// its local snapshot lives, how long cached values stay fresh, and how its
// bytes map to a Record.
type Dataset struct {
	Name         string
	TTL          time.Duration
	Endpoint     string // empty means no live source exists
	SnapshotFile string // empty means no local snapshot exists
	Shape        Shape
	Codec        Codec
	Transform    TransformFunc // nil means the live payload is not mapped yet
}

// LiveWired reports whether the dataset's live source is fully usable: an
// endpoint to fetch and a transform to interpret the response.
func (d Dataset) LiveWired() bool {
	return d.Endpoint != "" && d.Transform != nil
}

// HasEndpoint reports whether any live source exists at all.
func (d Dataset) HasEndpoint() bool {
	return d.Endpoint != ""
}

// HasSnapshot reports whether a local snapshot file backs the dataset.
func (d Dataset) HasSnapshot() bool {
	return d.SnapshotFile != ""
}

func (d Dataset) validate() error {
	if d.Name == "" {
		return fmt.Errorf("dataset with empty name")
	}
	if d.TTL <= 0 {
		return fmt.Errorf("dataset %s: TTL must be positive, got %s", d.Name, d.TTL)
	}
	if d.Shape != ShapeDocument && d.Shape != ShapeTable {
		return fmt.Errorf("dataset %s: unknown shape %q", d.Name, d.Shape)
	}
	if !d.HasEndpoint() && !d.HasSnapshot() {
		return fmt.Errorf("dataset %s: neither endpoint nor snapshot, can never resolve", d.Name)
	}
	if d.HasSnapshot() && d.Codec == nil {
		return fmt.Errorf("dataset %s: snapshot file without codec", d.Name)
	}
	if d.Transform != nil && !d.HasEndpoint() {
		return fmt.Errorf("dataset %s: transform without endpoint", d.Name)
	}
	return nil
}

// Registry is the fixed set of datasets the service knows. It is built once
// at startup and never changes afterwards.
type Registry struct {
	byName map[string]Dataset
	order  []string
}

// NewRegistry builds the production registry with snapshot paths rooted at
// dataDir. It fails fast on any malformed entry.
func NewRegistry(dataDir string) (*Registry, error) {
	return buildRegistry([]Dataset{
		{
			Name:         NameEconomicIndicators,
			TTL:          24 * time.Hour,
			Endpoint:     endpointEconomics,
			SnapshotFile: filepath.Join(dataDir, "fallback_economics.json"),
			Shape:        ShapeDocument,
			Codec:        economicsCodec{},
			// Transform stays nil: the wage catalogue response shape is not
			// mapped yet, so the endpoint is probed for connectivity only.
		},
		{
			Name:         NameUnescoSites,
			TTL:          7 * 24 * time.Hour,
			Endpoint:     endpointUnesco,
			SnapshotFile: filepath.Join(dataDir, "fallback_unesco.csv"),
			Shape:        ShapeTable,
			Codec:        heritageCodec{},
			// Transform stays nil: see ParseWKTPoint for the settled part of
			// the monuments feed mapping.
		},
		{
			Name:         NameBudget,
			TTL:          24 * time.Hour,
			SnapshotFile: filepath.Join(dataDir, "budget_official.csv"),
			Shape:        ShapeTable,
			Codec:        budgetCodec{},
		},
		{
			Name:         NameArtistStatus,
			TTL:          24 * time.Hour,
			Endpoint:     endpointArtists,
			SnapshotFile: filepath.Join(dataDir, "fallback_artists.csv"),
			Shape:        ShapeTable,
			Codec:        artistCodec{},
		},
		{
			Name:      NameNameday,
			TTL:       time.Hour,
			Endpoint:  endpointNameday,
			Shape:     ShapeDocument,
			Transform: TransformNameday,
		},
	})
}

func buildRegistry(datasets []Dataset) (*Registry, error) {
	r := &Registry{byName: make(map[string]Dataset, len(datasets))}
	for _, d := range datasets {
		if err := d.validate(); err != nil {
			return nil, err
		}
		if _, dup := r.byName[d.Name]; dup {
			return nil, fmt.Errorf("dataset %s registered twice", d.Name)
		}
		r.byName[d.Name] = d
		r.order = append(r.order, d.Name)
	}
	return r, nil
}

// Get looks a dataset up by name.
func (r *Registry) Get(name string) (Dataset, bool) {
	d, ok := r.byName[name]
	return d, ok
}

// All returns the datasets in registration order.
func (r *Registry) All() []Dataset {
	out := make([]Dataset, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// Names returns the dataset names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
