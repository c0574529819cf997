package trade

import "google.golang.org/genai"

// SchemaVariant selects how much of the result contract the model is asked for
type SchemaVariant int

const (
	// SchemaBasic covers the historical fields only
	SchemaBasic SchemaVariant = iota
	// SchemaExtended adds predictions, anomalies, risks, opportunities and insights
	SchemaExtended
)

func (v SchemaVariant) String() string {
	if v == SchemaExtended {
		return "extended"
	}
	return "basic"
}

// ResponseSchema declares the JSON shape the model must return
func ResponseSchema(variant SchemaVariant) *genai.Schema {
	props := map[string]*genai.Schema{
		"summary": {
			Type:        "STRING",
			Description: "3-4 sentence narrative tying the numeric trend to real-world causes",
		},
		"stats": {
			Type: "OBJECT",
			Properties: map[string]*genai.Schema{
				"totalVolume": {Type: "STRING", Description: "Total trade volume with currency, e.g. $1,170B"},
				"peakYear":    {Type: "STRING", Description: "Year with the highest total trade"},
				"balance":     {Type: "STRING", Description: "Latest trade balance, e.g. Deficit ($250B)"},
			},
			Required: []string{"totalVolume", "peakYear", "balance"},
		},
		"chartData": {
			Type:        "ARRAY",
			Description: "One entry per year in chronological order, values in billions of USD",
			Items: &genai.Schema{
				Type: "OBJECT",
				Properties: map[string]*genai.Schema{
					"year":    {Type: "STRING"},
					"exports": {Type: "NUMBER"},
					"imports": {Type: "NUMBER"},
				},
				Required: []string{"year", "exports", "imports"},
			},
		},
		"topSectors": {
			Type:        "ARRAY",
			Description: "Largest sectors; percentages should sum to roughly 70-80",
			Items: &genai.Schema{
				Type: "OBJECT",
				Properties: map[string]*genai.Schema{
					"name":       {Type: "STRING"},
					"value":      {Type: "NUMBER"},
					"percentage": {Type: "NUMBER"},
				},
				Required: []string{"name", "value", "percentage"},
			},
		},
		"growthRate": {
			Type:        "STRING",
			Description: "Average annual growth, signed percentage such as +8.5%",
		},
		"yearOverYearChange": {
			Type: "ARRAY",
			Items: &genai.Schema{
				Type: "OBJECT",
				Properties: map[string]*genai.Schema{
					"year":   {Type: "STRING"},
					"change": {Type: "NUMBER", Description: "Percent change of total trade versus the previous year"},
				},
				Required: []string{"year", "change"},
			},
		},
	}
	order := []string{"summary", "stats", "chartData", "topSectors", "growthRate", "yearOverYearChange"}

	if variant == SchemaExtended {
		for name, schema := range forwardLookingProperties() {
			props[name] = schema
		}
		order = append(order, "predictions", "anomalies", "risks", "opportunities", "aiInsights")
	}

	return &genai.Schema{
		Type:             "OBJECT",
		Properties:       props,
		Required:         []string{"summary", "stats", "chartData"},
		PropertyOrdering: order,
	}
}

func forwardLookingProperties() map[string]*genai.Schema {
	return map[string]*genai.Schema{
		"predictions": {
			Type:        "ARRAY",
			Description: "Forecast years strictly after the last chartData year",
			Items: &genai.Schema{
				Type: "OBJECT",
				Properties: map[string]*genai.Schema{
					"year":       {Type: "STRING"},
					"exports":    {Type: "NUMBER"},
					"imports":    {Type: "NUMBER"},
					"confidence": {Type: "NUMBER", Minimum: float64Ptr(0), Maximum: float64Ptr(100)},
				},
				Required: []string{"year", "exports", "imports", "confidence"},
			},
		},
		"anomalies": {
			Type: "ARRAY",
			Items: &genai.Schema{
				Type: "OBJECT",
				Properties: map[string]*genai.Schema{
					"year":     {Type: "STRING"},
					"title":    {Type: "STRING"},
					"type":     {Type: "STRING", Enum: []string{"spike", "drop", "disruption"}},
					"severity": {Type: "STRING", Enum: []string{"Critical", "High", "Moderate"}},
					"context":  {Type: "STRING"},
					"impact":   {Type: "STRING"},
					"recovery": {Type: "STRING"},
				},
				Required: []string{"year", "title", "type", "severity"},
			},
		},
		"risks": {
			Type: "ARRAY",
			Items: &genai.Schema{
				Type: "OBJECT",
				Properties: map[string]*genai.Schema{
					"title":       {Type: "STRING"},
					"description": {Type: "STRING"},
					"severity":    {Type: "STRING", Enum: []string{"High", "Medium", "Low"}},
					"timeframe":   {Type: "STRING"},
					"mitigation":  {Type: "STRING"},
				},
				Required: []string{"title", "severity"},
			},
		},
		"opportunities": {
			Type: "ARRAY",
			Items: &genai.Schema{
				Type: "OBJECT",
				Properties: map[string]*genai.Schema{
					"title":       {Type: "STRING"},
					"description": {Type: "STRING"},
					"potential":   {Type: "STRING"},
					"timeframe":   {Type: "STRING"},
					"action":      {Type: "STRING"},
				},
				Required: []string{"title"},
			},
		},
		"aiInsights": {
			Type: "OBJECT",
			Properties: map[string]*genai.Schema{
				"marketTrends":             {Type: "ARRAY", Items: &genai.Schema{Type: "STRING"}},
				"strategicRecommendations": {Type: "ARRAY", Items: &genai.Schema{Type: "STRING"}},
				"comparativeAnalysis":      {Type: "STRING"},
			},
		},
	}
}

func float64Ptr(v float64) *float64 {
	return &v
}
