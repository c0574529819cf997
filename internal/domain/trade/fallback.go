package trade

// Fixed dataset served when the model is unavailable or its output fails
// the contract. Values are in billions of USD. It deliberately carries no
// predictions; the forecast engine fills those in.

const fallbackSummary = "Due to high demand or API restrictions, we are showing estimated historical data for India's trade. " +
	"The trend shows consistent growth in both imports and exports, with a widening trade deficit in recent years " +
	"driven by energy and electronic imports."

var fallbackChart = [...]struct {
	year             int
	exports, imports float64
}{
	{2010, 220, 350},
	{2011, 300, 460},
	{2012, 290, 490},
	{2013, 310, 450},
	{2014, 320, 460},
	{2015, 260, 390},
	{2016, 270, 380},
	{2017, 300, 460},
	{2018, 330, 510},
	{2019, 320, 480},
	{2020, 290, 370},
	{2021, 420, 610},
	{2022, 450, 710},
	{2023, 430, 680},
	{2024, 450, 720},
}

var fallbackYoY = [...]struct {
	year   int
	change float64
}{
	{2011, 28.5},
	{2012, 2.5},
	{2013, -5.2},
	{2014, 3.8},
	{2015, -17.5},
	{2016, -0.8},
	{2017, 18.5},
	{2018, 10.5},
	{2019, -4.3},
	{2020, -17.8},
	{2021, 56.1},
	{2022, 12.6},
	{2023, -4.1},
	{2024, 5.9},
}

// FallbackResult returns a fresh copy of the fallback dataset. Callers may
// mutate it freely.
func FallbackResult() *AnalysisResult {
	chart := make([]ChartPoint, len(fallbackChart))
	for i, p := range fallbackChart {
		chart[i] = ChartPoint{Year: YearOf(p.year), Exports: p.exports, Imports: p.imports}
	}

	yoy := make([]YearChange, len(fallbackYoY))
	for i, c := range fallbackYoY {
		yoy[i] = YearChange{Year: YearOf(c.year), Change: c.change}
	}

	return &AnalysisResult{
		Summary: fallbackSummary,
		Stats: Stats{
			TotalVolume: "$1,100B",
			PeakYear:    "2024",
			Balance:     "Deficit ($250B)",
		},
		ChartData: chart,
		TopSectors: []Sector{
			{Name: "Petroleum", Value: 180, Percentage: 24},
			{Name: "Electronics", Value: 150, Percentage: 20},
			{Name: "Machinery", Value: 120, Percentage: 16},
			{Name: "Chemicals", Value: 90, Percentage: 12},
			{Name: "Gems & Jewelry", Value: 75, Percentage: 10},
			{Name: "Pharmaceuticals", Value: 60, Percentage: 8},
		},
		GrowthRate:         "+8.5%",
		YearOverYearChange: yoy,
		Anomalies: []Anomaly{
			{
				Year:     "2015",
				Title:    "Commodity price slump",
				Type:     AnomalyDrop,
				Severity: SeverityHigh,
				Context:  "Crude oil prices fell by more than half, shrinking the import bill and petroleum product exports together.",
				Impact:   "Total trade contracted by 17.5% despite steady volumes.",
				Recovery: "Values recovered from 2017 as prices stabilised and manufacturing demand returned.",
			},
			{
				Year:     "2020",
				Title:    "Pandemic disruption",
				Type:     AnomalyDisruption,
				Severity: SeverityCritical,
				Context:  "Nationwide lockdowns and global supply chain closures halted shipments for several months.",
				Impact:   "Imports fell faster than exports, temporarily narrowing the deficit.",
				Recovery: "A sharp rebound followed in 2021 on pent-up demand and higher commodity prices.",
			},
			{
				Year:     "2021",
				Title:    "Post-pandemic rebound",
				Type:     AnomalySpike,
				Severity: SeverityModerate,
				Context:  "Reopening demand, electronics imports and record engineering exports lifted both sides of trade.",
				Impact:   "Total trade rose 56.1%, the largest single-year gain in the series.",
				Recovery: "Growth normalised in 2022 as base effects faded.",
			},
		},
		Risks: []Risk{
			{
				Title:       "Energy import dependence",
				Description: "Crude oil and LNG make up the largest share of the import bill and move with global prices.",
				Severity:    RiskHigh,
				Timeframe:   "Ongoing",
				Mitigation:  "Diversify suppliers and accelerate domestic renewable capacity.",
			},
			{
				Title:       "Electronics trade gap",
				Description: "Consumer electronics and components imports continue to outpace domestic production.",
				Severity:    RiskMedium,
				Timeframe:   "2-3 years",
				Mitigation:  "Scale production-linked incentive schemes for components, not only assembly.",
			},
			{
				Title:       "Currency volatility",
				Description: "Rupee depreciation raises the cost of dollar-denominated imports.",
				Severity:    RiskLow,
				Timeframe:   "Short term",
				Mitigation:  "Expand rupee trade settlement arrangements with key partners.",
			},
		},
		Opportunities: []Opportunity{
			{
				Title:       "Pharmaceutical exports",
				Description: "Generic drug manufacturing gives India a cost advantage in regulated markets.",
				Potential:   "High",
				Timeframe:   "1-3 years",
				Action:      "Target expanded approvals in the US and EU markets.",
			},
			{
				Title:       "Electronics manufacturing",
				Description: "Supply chain diversification away from single-country sourcing favours Indian assembly.",
				Potential:   "High",
				Timeframe:   "3-5 years",
				Action:      "Build component ecosystems around existing assembly clusters.",
			},
		},
		AIInsights: &AIInsights{
			MarketTrends: []string{
				"Merchandise trade has roughly doubled since 2010 with imports growing faster than exports.",
				"Energy and electronics dominate the import basket.",
				"Engineering goods and pharmaceuticals lead export growth.",
			},
			StrategicRecommendations: []string{
				"Reduce energy import exposure through renewables and supplier diversification.",
				"Deepen free trade agreements with high-growth partners.",
			},
			ComparativeAnalysis: "India's trade deficit is wider than most large emerging economies, reflecting strong domestic demand and energy dependence.",
		},
	}
}
