package trade

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// RoundTo rounds half away from zero to the given number of decimal places
func RoundTo(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// FormatBillions renders a value in billions as "$1,170B"
func FormatBillions(v float64) string {
	return "$" + humanize.Comma(int64(math.Round(math.Abs(v)))) + "B"
}

// FormatPercent renders a signed percentage with one decimal, e.g. "+8.5%"
func FormatPercent(v float64) string {
	d := decimal.NewFromFloat(v).Round(1)
	if d.IsPositive() {
		return "+" + d.StringFixed(1) + "%"
	}
	return d.StringFixed(1) + "%"
}

// FormatBalance renders exports minus imports as "Surplus ($20B)" or "Deficit ($270B)"
func FormatBalance(exports, imports float64) string {
	diff := exports - imports
	if diff >= 0 {
		return fmt.Sprintf("Surplus (%s)", FormatBillions(diff))
	}
	return fmt.Sprintf("Deficit (%s)", FormatBillions(diff))
}

// DeriveYearOverYear computes the percent change in total trade between
// consecutive chart points. Pairs whose previous total is zero are skipped.
func DeriveYearOverYear(points []ChartPoint) []YearChange {
	if len(points) < 2 {
		return nil
	}
	out := make([]YearChange, 0, len(points)-1)
	for i := 1; i < len(points); i++ {
		prev := points[i-1].Exports + points[i-1].Imports
		cur := points[i].Exports + points[i].Imports
		if prev == 0 {
			continue
		}
		out = append(out, YearChange{
			Year:   points[i].Year,
			Change: RoundTo((cur-prev)/prev*100, 1),
		})
	}
	return out
}

// DeriveGrowthRate returns the compound annual growth of total trade across
// the series, or "" when it cannot be computed.
func DeriveGrowthRate(points []ChartPoint) string {
	if len(points) < 2 {
		return ""
	}
	first := points[0].Exports + points[0].Imports
	last := points[len(points)-1].Exports + points[len(points)-1].Imports
	if first <= 0 || last <= 0 {
		return ""
	}
	periods := float64(len(points) - 1)
	if from, ok := points[0].Year.Int(); ok {
		if to, ok := points[len(points)-1].Year.Int(); ok && to > from {
			periods = float64(to - from)
		}
	}
	cagr := (math.Pow(last/first, 1/periods) - 1) * 100
	if math.IsNaN(cagr) || math.IsInf(cagr, 0) {
		return ""
	}
	return FormatPercent(cagr)
}

// DeriveStats builds headline stats from the chart: volume and balance of
// the latest year, and the year with the highest total trade.
func DeriveStats(points []ChartPoint) Stats {
	if len(points) == 0 {
		return Stats{}
	}
	last := points[len(points)-1]
	peak := points[0]
	for _, p := range points[1:] {
		if p.Exports+p.Imports > peak.Exports+peak.Imports {
			peak = p
		}
	}
	return Stats{
		TotalVolume: FormatBillions(last.Exports + last.Imports),
		PeakYear:    string(peak.Year),
		Balance:     FormatBalance(last.Exports, last.Imports),
	}
}

// FillDerived populates missing yearOverYearChange, growthRate and stats
// fields from chartData. Fields the model supplied are left untouched.
func FillDerived(r *AnalysisResult) {
	if r == nil || len(r.ChartData) == 0 {
		return
	}
	if len(r.YearOverYearChange) == 0 {
		r.YearOverYearChange = DeriveYearOverYear(r.ChartData)
	}
	if r.GrowthRate == "" {
		r.GrowthRate = DeriveGrowthRate(r.ChartData)
	}
	derived := DeriveStats(r.ChartData)
	if r.Stats.TotalVolume == "" {
		r.Stats.TotalVolume = derived.TotalVolume
	}
	if r.Stats.PeakYear == "" {
		r.Stats.PeakYear = derived.PeakYear
	}
	if r.Stats.Balance == "" {
		r.Stats.Balance = derived.Balance
	}
}
