package dataset

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Codec translates between a dataset's snapshot bytes and its Record type.
// Decode must reject payloads that do not match the expected layout so that
// corrupt snapshots are surfaced instead of served.
type Codec interface {
	Decode(data []byte) (Record, error)
	Encode(rec Record) ([]byte, error)
}

type economicsCodec struct{}

func (economicsCodec) Decode(data []byte) (Record, error) {
	var rec EconomicIndicators
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("economics payload: %w", err)
	}
	return &rec, nil
}

func (economicsCodec) Encode(rec Record) ([]byte, error) {
	e, ok := rec.(*EconomicIndicators)
	if !ok {
		return nil, fmt.Errorf("economics codec: unexpected record type %T", rec)
	}
	return json.MarshalIndent(e, "", "  ")
}

type heritageCodec struct{}

func (heritageCodec) Decode(data []byte) (Record, error) {
	header, rows, err := readTable(data)
	if err != nil {
		return nil, fmt.Errorf("heritage table: %w", err)
	}
	cols, err := indexColumns(header, "name", "lat", "lon", "renovation_roi")
	if err != nil {
		return nil, fmt.Errorf("heritage table: %w", err)
	}
	visitorsCol, visitorsYear, err := findVisitorsColumn(header)
	if err != nil {
		return nil, fmt.Errorf("heritage table: %w", err)
	}

	out := HeritageSites{VisitorsYear: visitorsYear}
	for i, row := range rows {
		lat, err := strconv.ParseFloat(row[cols["lat"]], 64)
		if err != nil {
			return nil, fmt.Errorf("heritage table: row %d: bad lat %q", i+1, row[cols["lat"]])
		}
		lon, err := strconv.ParseFloat(row[cols["lon"]], 64)
		if err != nil {
			return nil, fmt.Errorf("heritage table: row %d: bad lon %q", i+1, row[cols["lon"]])
		}
		visitors, err := strconv.Atoi(strings.TrimSpace(row[visitorsCol]))
		if err != nil {
			return nil, fmt.Errorf("heritage table: row %d: bad visitor count %q", i+1, row[visitorsCol])
		}
		roi, err := strconv.ParseFloat(row[cols["renovation_roi"]], 64)
		if err != nil {
			return nil, fmt.Errorf("heritage table: row %d: bad renovation_roi %q", i+1, row[cols["renovation_roi"]])
		}
		out.Sites = append(out.Sites, HeritageSite{
			Name:          strings.TrimSpace(row[cols["name"]]),
			Lat:           lat,
			Lon:           lon,
			Visitors:      visitors,
			RenovationROI: roi,
		})
	}
	return out, nil
}

func (heritageCodec) Encode(rec Record) ([]byte, error) {
	h, ok := rec.(HeritageSites)
	if !ok {
		return nil, fmt.Errorf("heritage codec: unexpected record type %T", rec)
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := []string{"name", "lat", "lon", fmt.Sprintf("visitors_%d", h.VisitorsYear), "renovation_roi"}
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, s := range h.Sites {
		row := []string{
			s.Name,
			formatFloat(s.Lat),
			formatFloat(s.Lon),
			strconv.Itoa(s.Visitors),
			formatFloat(s.RenovationROI),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type budgetCodec struct{}

func (budgetCodec) Decode(data []byte) (Record, error) {
	header, rows, err := readTable(data)
	if err != nil {
		return nil, fmt.Errorf("budget table: %w", err)
	}
	cols, err := indexColumns(header, "Year", "Category", "Amount_CZK", "Description")
	if err != nil {
		return nil, fmt.Errorf("budget table: %w", err)
	}

	var out BudgetLines
	for i, row := range rows {
		year, err := strconv.Atoi(strings.TrimSpace(row[cols["Year"]]))
		if err != nil {
			return nil, fmt.Errorf("budget table: row %d: bad year %q", i+1, row[cols["Year"]])
		}
		amount, err := strconv.ParseFloat(strings.TrimSpace(row[cols["Amount_CZK"]]), 64)
		if err != nil {
			return nil, fmt.Errorf("budget table: row %d: bad amount %q", i+1, row[cols["Amount_CZK"]])
		}
		out = append(out, BudgetLine{
			Year:        year,
			Category:    strings.TrimSpace(row[cols["Category"]]),
			AmountCZK:   amount,
			Description: strings.TrimSpace(row[cols["Description"]]),
		})
	}
	return out, nil
}

func (budgetCodec) Encode(rec Record) ([]byte, error) {
	b, ok := rec.(BudgetLines)
	if !ok {
		return nil, fmt.Errorf("budget codec: unexpected record type %T", rec)
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"Year", "Category", "Amount_CZK", "Description"}); err != nil {
		return nil, err
	}
	for _, line := range b {
		row := []string{
			strconv.Itoa(line.Year),
			line.Category,
			formatFloat(line.AmountCZK),
			line.Description,
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// artistCodec reads the indicator/value key-value table. The registered_count
// row is mandatory; every other row whose value parses as a number becomes a
// discipline percentage, and non-numeric rows are skipped.
type artistCodec struct{}

func (artistCodec) Decode(data []byte) (Record, error) {
	header, rows, err := readTable(data)
	if err != nil {
		return nil, fmt.Errorf("artist table: %w", err)
	}
	cols, err := indexColumns(header, "indicator", "value")
	if err != nil {
		return nil, fmt.Errorf("artist table: %w", err)
	}

	rec := &ArtistStatus{Disciplines: map[string]float64{}}
	seenCount := false
	for i, row := range rows {
		indicator := strings.TrimSpace(row[cols["indicator"]])
		value := strings.TrimSpace(row[cols["value"]])
		if indicator == "registered_count" {
			count, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("artist table: row %d: bad registered_count %q", i+1, value)
			}
			rec.RegisteredCount = count
			seenCount = true
			continue
		}
		share, err := strconv.ParseFloat(value, 64)
		if err != nil {
			continue
		}
		rec.Disciplines[indicator] = share
	}
	if !seenCount {
		return nil, fmt.Errorf("artist table: registered_count row missing")
	}
	return rec, nil
}

func (artistCodec) Encode(rec Record) ([]byte, error) {
	a, ok := rec.(*ArtistStatus)
	if !ok {
		return nil, fmt.Errorf("artist codec: unexpected record type %T", rec)
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"indicator", "value"}); err != nil {
		return nil, err
	}
	if err := w.Write([]string{"registered_count", strconv.Itoa(a.RegisteredCount)}); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(a.Disciplines))
	for name := range a.Disciplines {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := w.Write([]string{name, formatFloat(a.Disciplines[name])}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// readTable parses CSV bytes into a trimmed header and its data rows. Every
// row must have exactly as many fields as the header.
func readTable(data []byte) ([]string, [][]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.TrimLeadingSpace = true
	all, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(all) == 0 {
		return nil, nil, fmt.Errorf("empty table")
	}
	header := all[0]
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	return header, all[1:], nil
}

// indexColumns maps the wanted column names to their positions in the header.
func indexColumns(header []string, wanted ...string) (map[string]int, error) {
	cols := make(map[string]int, len(wanted))
	for i, name := range header {
		cols[name] = i
	}
	out := make(map[string]int, len(wanted))
	for _, name := range wanted {
		idx, ok := cols[name]
		if !ok {
			return nil, fmt.Errorf("column %q missing (header: %s)", name, strings.Join(header, ","))
		}
		out[name] = idx
	}
	return out, nil
}

// findVisitorsColumn locates the single visitors_<year> column and parses the
// year out of its header.
func findVisitorsColumn(header []string) (int, int, error) {
	for i, name := range header {
		if !strings.HasPrefix(name, "visitors_") {
			continue
		}
		year, err := strconv.Atoi(strings.TrimPrefix(name, "visitors_"))
		if err != nil {
			return 0, 0, fmt.Errorf("bad visitors column %q", name)
		}
		return i, year, nil
	}
	return 0, 0, fmt.Errorf("no visitors_<year> column (header: %s)", strings.Join(header, ","))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
