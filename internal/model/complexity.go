package model

// ComplexityLevel is the discretized complexity band of a quote
type ComplexityLevel string

const (
	ComplexitySimple  ComplexityLevel = "simple"
	ComplexityMedium  ComplexityLevel = "medium"
	ComplexityComplex ComplexityLevel = "complex"
)

// Impact is the qualitative weight of an insight
type Impact string

const (
	ImpactLow    Impact = "low"
	ImpactMedium Impact = "medium"
	ImpactHigh   Impact = "high"
)

// Threshold marks the upper edge of each band along one factor. Simple <= Medium <= Complex.
type Threshold struct {
	Simple  float64 `json:"simple" yaml:"simple"`
	Medium  float64 `json:"medium" yaml:"medium"`
	Complex float64 `json:"complex" yaml:"complex"`
}

// NumericFactor is a measured dimension scored against its threshold
type NumericFactor struct {
	Value     float64   `json:"value"`
	Weight    float64   `json:"weight"`
	Threshold Threshold `json:"threshold"`
}

// BoolFactor contributes its weight only when Value is true
type BoolFactor struct {
	Value  bool    `json:"value"`
	Weight float64 `json:"weight"`
}

// Factor names, used in insights, reasoning and config keys.
const (
	FactorItemCount            = "itemCount"
	FactorTotalValue           = "totalValue"
	FactorItemTypes            = "itemTypes"
	FactorCustomItemPercentage = "customItemPercentage"
	FactorQuantityVariance     = "quantityVariance"
	FactorPriceRange           = "priceRange"

	FactorHasTax         = "hasTax"
	FactorHasMarkup      = "hasMarkup"
	FactorHighTaxRate    = "highTaxRate"
	FactorHighMarkupRate = "highMarkupRate"
	FactorIsTemplate     = "isTemplate"
	FactorHasNotes       = "hasNotes"
)

// ComplexityFactors is the full factor bundle computed for one quote
type ComplexityFactors struct {
	ItemCount            NumericFactor `json:"itemCount"`
	TotalValue           NumericFactor `json:"totalValue"`
	ItemTypes            NumericFactor `json:"itemTypes"`
	CustomItemPercentage NumericFactor `json:"customItemPercentage"`
	QuantityVariance     NumericFactor `json:"quantityVariance"` // Standard deviation of quantities
	PriceRange           NumericFactor `json:"priceRange"`       // Max/min positive unit cost

	HasTax         BoolFactor `json:"hasTax"`
	HasMarkup      BoolFactor `json:"hasMarkup"`
	HighTaxRate    BoolFactor `json:"highTaxRate"`    // > 10%
	HighMarkupRate BoolFactor `json:"highMarkupRate"` // > 30%
	IsTemplate     BoolFactor `json:"isTemplate"`
	HasNotes       BoolFactor `json:"hasNotes"`
}

// NamedNumeric pairs a numeric factor with its name
type NamedNumeric struct {
	Name   string
	Factor NumericFactor
}

// NamedBool pairs a boolean factor with its name
type NamedBool struct {
	Name   string
	Factor BoolFactor
}

// Numeric lists the numeric factors in a fixed order
func (f ComplexityFactors) Numeric() []NamedNumeric {
	return []NamedNumeric{
		{FactorItemCount, f.ItemCount},
		{FactorTotalValue, f.TotalValue},
		{FactorItemTypes, f.ItemTypes},
		{FactorCustomItemPercentage, f.CustomItemPercentage},
		{FactorQuantityVariance, f.QuantityVariance},
		{FactorPriceRange, f.PriceRange},
	}
}

// Booleans lists the boolean factors in a fixed order
func (f ComplexityFactors) Booleans() []NamedBool {
	return []NamedBool{
		{FactorHasTax, f.HasTax},
		{FactorHasMarkup, f.HasMarkup},
		{FactorHighTaxRate, f.HighTaxRate},
		{FactorHighMarkupRate, f.HighMarkupRate},
		{FactorIsTemplate, f.IsTemplate},
		{FactorHasNotes, f.HasNotes},
	}
}

// Insight is a human-readable call-out about one factor
type Insight struct {
	Factor         string `json:"factor"`
	Impact         Impact `json:"impact"`
	Description    string `json:"description"`
	Recommendation string `json:"recommendation,omitempty"`
}

// ComplexityAnalysis is the scorer output. Treat as immutable once produced.
type ComplexityAnalysis struct {
	Level      ComplexityLevel   `json:"level"`
	Score      float64           `json:"score"` // 0-100
	Factors    ComplexityFactors `json:"factors"`
	Insights   []Insight         `json:"insights"`
	Confidence float64           `json:"confidence"` // 0-1
	Reasoning  []string          `json:"reasoning"`
}
