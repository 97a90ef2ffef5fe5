package dataset

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
)

// TransformFunc maps a raw live payload onto a Record. A dataset with an
// endpoint but no transform is probed for connectivity only.
type TransformFunc func(payload []byte) (Record, error)

// namedayEntry mirrors one item of the svatky.adresa.info JSON response.
type namedayEntry struct {
	Date string `json:"date"`
	Name string `json:"name"`
}

// TransformNameday maps the nameday API payload onto a Nameday record. The
// API returns a one-element array for the current day.
func TransformNameday(payload []byte) (Record, error) {
	var entries []namedayEntry
	if err := json.Unmarshal(payload, &entries); err != nil {
		return nil, fmt.Errorf("nameday payload: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("nameday payload: empty response")
	}
	rec := &Nameday{Name: entries[0].Name, Date: entries[0].Date}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return rec, nil
}

var wktPointRe = regexp.MustCompile(`POINT\s*\(\s*(-?[0-9.]+)\s+(-?[0-9.]+)\s*\)`)

// ParseWKTPoint extracts latitude and longitude from a WKT point such as
// "POINT (14.4208 50.0875)". WKT orders coordinates longitude first. The
// monuments feed publishes geometry in this form; its transform stays
// unwired until the remaining column mapping is confirmed, but the geometry
// handling is settled here.
func ParseWKTPoint(s string) (lat, lon float64, err error) {
	m := wktPointRe.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, fmt.Errorf("not a WKT point: %q", s)
	}
	lon, err = strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad longitude in %q", s)
	}
	lat, err = strconv.ParseFloat(m[2], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad latitude in %q", s)
	}
	return lat, lon, nil
}
