package complexity

import (
	"math"
	"strings"
	"unicode"

	"quotepulse/internal/model"
)

// computeFactors measures every factor for a quote. Degenerate inputs
// (no items, zero costs, NaN) resolve to neutral values.
func computeFactors(q *model.Quote, items []model.LineItem, library []model.LibraryItem, cfg *Config) model.ComplexityFactors {
	taxRate := finite(q.TaxRate)
	markupRate := finite(q.MarkupRate)
	w := cfg.BooleanWeights

	return model.ComplexityFactors{
		ItemCount:            numeric(float64(len(items)), cfg.ItemCount),
		TotalValue:           numeric(totalValue(q, items), cfg.TotalValue),
		ItemTypes:            numeric(float64(countItemTypes(items)), cfg.ItemTypes),
		CustomItemPercentage: numeric(customItemPercentage(items, library, cfg.DefaultCustomItemPercentage), cfg.CustomItemPercentage),
		QuantityVariance:     numeric(quantityStdDev(items), cfg.QuantityVariance),
		PriceRange:           numeric(priceRatio(items), cfg.PriceRange),

		HasTax:         model.BoolFactor{Value: taxRate > 0, Weight: w.HasTax},
		HasMarkup:      model.BoolFactor{Value: markupRate > 0, Weight: w.HasMarkup},
		HighTaxRate:    model.BoolFactor{Value: taxRate > cfg.HighTaxRate, Weight: w.HighTaxRate},
		HighMarkupRate: model.BoolFactor{Value: markupRate > cfg.HighMarkupRate, Weight: w.HighMarkupRate},
		IsTemplate:     model.BoolFactor{Value: q.IsTemplate, Weight: w.IsTemplate},
		HasNotes:       model.BoolFactor{Value: strings.TrimSpace(q.Notes) != "", Weight: w.HasNotes},
	}
}

func numeric(v float64, fc FactorConfig) model.NumericFactor {
	return model.NumericFactor{Value: v, Weight: fc.Weight, Threshold: fc.Threshold}
}

// finite maps NaN and infinities to zero
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func totalValue(q *model.Quote, items []model.LineItem) float64 {
	if t := finite(q.Total); t > 0 {
		return t
	}
	sum := 0.0
	for _, it := range items {
		sum += finite(it.Cost) * finite(it.Quantity)
	}
	return finite(sum)
}

// itemType is the normalized first token of an item name, a cheap category proxy
func itemType(name string) string {
	tokens := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(tokens) == 0 {
		return "other"
	}
	return tokens[0]
}

func countItemTypes(items []model.LineItem) int {
	types := make(map[string]struct{}, len(items))
	for _, it := range items {
		types[itemType(it.Name)] = struct{}{}
	}
	return len(types)
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func customItemPercentage(items []model.LineItem, library []model.LibraryItem, fallback float64) float64 {
	if len(items) == 0 {
		return 0
	}
	if len(library) == 0 {
		return fallback
	}
	known := make(map[string]struct{}, len(library))
	for _, li := range library {
		known[normalizeName(li.Name)] = struct{}{}
	}
	custom := 0
	for _, it := range items {
		if _, ok := known[normalizeName(it.Name)]; !ok {
			custom++
		}
	}
	return 100 * float64(custom) / float64(len(items))
}

// quantityStdDev is the population standard deviation of line-item quantities
func quantityStdDev(items []model.LineItem) float64 {
	if len(items) < 2 {
		return 0
	}
	mean := 0.0
	for _, it := range items {
		mean += finite(it.Quantity)
	}
	mean /= float64(len(items))

	variance := 0.0
	for _, it := range items {
		d := finite(it.Quantity) - mean
		variance += d * d
	}
	variance /= float64(len(items))
	return finite(math.Sqrt(variance))
}

// priceRatio is max/min over positive unit costs, 1 with fewer than two
func priceRatio(items []model.LineItem) float64 {
	lo, hi := math.Inf(1), 0.0
	positive := 0
	for _, it := range items {
		c := finite(it.Cost)
		if c <= 0 {
			continue
		}
		positive++
		lo = math.Min(lo, c)
		hi = math.Max(hi, c)
	}
	if positive < 2 {
		return 1
	}
	return hi / lo
}
