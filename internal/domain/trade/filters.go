package trade

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// FilterSelection is the structured side of a query built from the
// dashboard's filter panel. Zero years mean "unset".
type FilterSelection struct {
	Sectors   []string  `json:"sectors"`
	Countries []string  `json:"countries"`
	TradeType TradeType `json:"tradeType"`
	YearFrom  int       `json:"yearFrom"`
	YearTo    int       `json:"yearTo"`
}

// DefaultFilters returns the selection the filter panel starts with
func DefaultFilters() FilterSelection {
	return FilterSelection{
		TradeType: TradeTypeBoth,
		YearFrom:  MinYear,
		YearTo:    MaxYear,
	}
}

// UnmarshalJSON accepts years as numbers or numeric strings since form
// inputs post them as text.
func (f *FilterSelection) UnmarshalJSON(data []byte) error {
	var raw struct {
		Sectors   []string        `json:"sectors"`
		Countries []string        `json:"countries"`
		TradeType TradeType       `json:"tradeType"`
		YearFrom  json.RawMessage `json:"yearFrom"`
		YearTo    json.RawMessage `json:"yearTo"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	from, err := decodeYear(raw.YearFrom)
	if err != nil {
		return err
	}
	to, err := decodeYear(raw.YearTo)
	if err != nil {
		return err
	}

	*f = FilterSelection{
		Sectors:   raw.Sectors,
		Countries: raw.Countries,
		TradeType: raw.TradeType,
		YearFrom:  from,
		YearTo:    to,
	}
	return nil
}

func decodeYear(raw json.RawMessage) (int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return 0, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, nil
		}
		return strconv.Atoi(s)
	}
	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, err
	}
	return n, nil
}

// ParseFilters decodes a filter payload. A JSON string holding the object
// is unwrapped once. Malformed input yields nil, which callers treat the
// same as "no filters".
func ParseFilters(raw []byte) *FilterSelection {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil
		}
		raw = bytes.TrimSpace([]byte(inner))
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var f FilterSelection
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil
	}
	n := f.Normalize()
	return &n
}

// Normalize returns a copy with trimmed, de-duplicated lists, a known trade
// type, and years ordered and clamped to [MinYear, MaxYear]. Unset years
// take the domain bounds.
func (f FilterSelection) Normalize() FilterSelection {
	out := FilterSelection{
		Sectors:   cleanList(f.Sectors),
		Countries: cleanList(f.Countries),
		TradeType: TradeType(strings.ToLower(strings.TrimSpace(string(f.TradeType)))),
		YearFrom:  f.YearFrom,
		YearTo:    f.YearTo,
	}
	if !out.TradeType.Valid() {
		out.TradeType = TradeTypeBoth
	}
	if out.YearFrom == 0 {
		out.YearFrom = MinYear
	}
	if out.YearTo == 0 {
		out.YearTo = MaxYear
	}
	out.YearFrom = clampYear(out.YearFrom)
	out.YearTo = clampYear(out.YearTo)
	if out.YearFrom > out.YearTo {
		out.YearFrom, out.YearTo = out.YearTo, out.YearFrom
	}
	return out
}

// HasDefaultYearRange reports whether the year range, once normalized,
// covers the whole domain and therefore constrains nothing.
func (f FilterSelection) HasDefaultYearRange() bool {
	n := f.Normalize()
	return n.YearFrom == MinYear && n.YearTo == MaxYear
}

// IsDefault reports whether the selection constrains nothing at all
func (f FilterSelection) IsDefault() bool {
	n := f.Normalize()
	return len(n.Sectors) == 0 &&
		len(n.Countries) == 0 &&
		n.TradeType == TradeTypeBoth &&
		n.HasDefaultYearRange()
}

func clampYear(y int) int {
	if y < MinYear {
		return MinYear
	}
	if y > MaxYear {
		return MaxYear
	}
	return y
}

func cleanList(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		key := strings.ToLower(item)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
