package dataset

import (
	"testing"
	"time"
)

func TestNewRegistry(t *testing.T) {
	reg, err := NewRegistry("data")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	names := reg.Names()
	if len(names) != 5 {
		t.Fatalf("expected 5 datasets, got %d", len(names))
	}
	if names[0] != NameEconomicIndicators {
		t.Errorf("expected '%s' first, got '%s'", NameEconomicIndicators, names[0])
	}

	budget, ok := reg.Get(NameBudget)
	if !ok {
		t.Fatal("expected budget dataset to exist")
	}
	if budget.HasEndpoint() {
		t.Error("expected budget to have no live endpoint")
	}
	if !budget.HasSnapshot() {
		t.Error("expected budget to have a snapshot file")
	}

	nameday, _ := reg.Get(NameNameday)
	if nameday.HasSnapshot() {
		t.Error("expected nameday to have no snapshot file")
	}
	if !nameday.LiveWired() {
		t.Error("expected nameday live source to be wired")
	}

	unesco, _ := reg.Get(NameUnescoSites)
	if unesco.TTL != 7*24*time.Hour {
		t.Errorf("expected weekly TTL for unesco sites, got %s", unesco.TTL)
	}
	if unesco.LiveWired() {
		t.Error("expected unesco live source to be unwired (no transform)")
	}
}

func TestRegistry_Get_Unknown(t *testing.T) {
	reg, err := NewRegistry("data")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := reg.Get("weather"); ok {
		t.Error("expected lookup of unknown dataset to fail")
	}
}

func TestBuildRegistry_DuplicateName(t *testing.T) {
	_, err := buildRegistry([]Dataset{
		{Name: "a", TTL: time.Hour, SnapshotFile: "a.csv", Shape: ShapeTable, Codec: budgetCodec{}},
		{Name: "a", TTL: time.Hour, SnapshotFile: "a.csv", Shape: ShapeTable, Codec: budgetCodec{}},
	})
	if err == nil {
		t.Error("expected error for duplicate dataset name")
	}
}

func TestBuildRegistry_Invalid(t *testing.T) {
	cases := []struct {
		label   string
		dataset Dataset
	}{
		{"zero ttl", Dataset{Name: "x", Shape: ShapeTable, SnapshotFile: "x.csv", Codec: budgetCodec{}}},
		{"no source", Dataset{Name: "x", TTL: time.Hour, Shape: ShapeTable}},
		{"bad shape", Dataset{Name: "x", TTL: time.Hour, Shape: "blob", SnapshotFile: "x.csv", Codec: budgetCodec{}}},
		{"snapshot without codec", Dataset{Name: "x", TTL: time.Hour, Shape: ShapeTable, SnapshotFile: "x.csv"}},
		{"transform without endpoint", Dataset{Name: "x", TTL: time.Hour, Shape: ShapeDocument, SnapshotFile: "x.json", Codec: economicsCodec{}, Transform: TransformNameday}},
	}
	for _, c := range cases {
		if _, err := buildRegistry([]Dataset{c.dataset}); err == nil {
			t.Errorf("%s: expected error", c.label)
		}
	}
}
