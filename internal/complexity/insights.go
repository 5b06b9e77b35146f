package complexity

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"quotepulse/internal/model"
)

const maxReasoningFactors = 3

// buildInsights reports factors at or past a threshold. Both levels use an
// inclusive boundary: a value equal to Medium is medium, equal to Complex is high.
func buildInsights(q *model.Quote, f model.ComplexityFactors) []model.Insight {
	insights := []model.Insight{}

	ic := f.ItemCount
	switch {
	case ic.Value >= ic.Threshold.Complex:
		insights = append(insights, model.Insight{
			Factor:         model.FactorItemCount,
			Impact:         model.ImpactHigh,
			Description:    fmt.Sprintf("Large quote with %d line items", int(ic.Value)),
			Recommendation: "Consider splitting the work into phases or sub-quotes",
		})
	case ic.Value >= ic.Threshold.Medium:
		insights = append(insights, model.Insight{
			Factor:      model.FactorItemCount,
			Impact:      model.ImpactMedium,
			Description: fmt.Sprintf("%d line items is more than a typical job", int(ic.Value)),
		})
	}

	tv := f.TotalValue
	switch {
	case tv.Value >= tv.Threshold.Complex:
		insights = append(insights, model.Insight{
			Factor:         model.FactorTotalValue,
			Impact:         model.ImpactHigh,
			Description:    fmt.Sprintf("High-value project at %s", money(tv.Value)),
			Recommendation: "Review scope carefully and consider milestone payments",
		})
	case tv.Value >= tv.Threshold.Medium:
		insights = append(insights, model.Insight{
			Factor:      model.FactorTotalValue,
			Impact:      model.ImpactMedium,
			Description: fmt.Sprintf("Mid-size project at %s", money(tv.Value)),
		})
	}

	if it := f.ItemTypes; it.Value >= it.Threshold.Medium {
		insights = append(insights, model.Insight{
			Factor:         model.FactorItemTypes,
			Impact:         model.ImpactMedium,
			Description:    fmt.Sprintf("Diverse service mix across %d item types", int(it.Value)),
			Recommendation: "Group related items into sections so the client can follow the scope",
		})
	}

	if cp := f.CustomItemPercentage; cp.Value >= cp.Threshold.Complex {
		insights = append(insights, model.Insight{
			Factor:         model.FactorCustomItemPercentage,
			Impact:         model.ImpactMedium,
			Description:    fmt.Sprintf("%s%% of items are not in your item library", pct(cp.Value)),
			Recommendation: "Save frequently used items to your library to quote faster",
		})
	}

	if qv := f.QuantityVariance; qv.Value >= qv.Threshold.Medium {
		insights = append(insights, model.Insight{
			Factor:      model.FactorQuantityVariance,
			Impact:      model.ImpactLow,
			Description: "Quantities vary widely between line items",
		})
	}

	pr := f.PriceRange
	switch {
	case pr.Value >= pr.Threshold.Complex:
		insights = append(insights, model.Insight{
			Factor:         model.FactorPriceRange,
			Impact:         model.ImpactHigh,
			Description:    fmt.Sprintf("Unit prices span a %.0fx range", pr.Value),
			Recommendation: "Double-check pricing on the most and least expensive items",
		})
	case pr.Value >= pr.Threshold.Medium:
		insights = append(insights, model.Insight{
			Factor:         model.FactorPriceRange,
			Impact:         model.ImpactMedium,
			Description:    fmt.Sprintf("Unit prices span a %.0fx range", pr.Value),
			Recommendation: "Re-check pricing for outliers",
		})
	}

	if f.HighMarkupRate.Value {
		insights = append(insights, model.Insight{
			Factor:         model.FactorHighMarkupRate,
			Impact:         model.ImpactMedium,
			Description:    fmt.Sprintf("Markup of %s%% suggests specialized or premium work", pct(finite(q.MarkupRate))),
			Recommendation: "Make sure the quote explains the value behind the premium",
		})
	}

	if f.HighTaxRate.Value {
		insights = append(insights, model.Insight{
			Factor:      model.FactorHighTaxRate,
			Impact:      model.ImpactLow,
			Description: fmt.Sprintf("Tax rate of %s%% is above average", pct(finite(q.TaxRate))),
		})
	}

	return insights
}

func buildReasoning(q *model.Quote, f model.ComplexityFactors, score float64, level model.ComplexityLevel) []string {
	reasoning := []string{
		fmt.Sprintf("Complexity score of %.1f/100 places this quote in the %s tier", score, level),
	}

	crossed := []model.NamedNumeric{}
	for _, n := range f.Numeric() {
		if n.Factor.Value > n.Factor.Threshold.Medium {
			crossed = append(crossed, n)
		}
	}
	sort.SliceStable(crossed, func(i, j int) bool {
		return contribution(crossed[i].Factor) > contribution(crossed[j].Factor)
	})
	if len(crossed) > maxReasoningFactors {
		crossed = crossed[:maxReasoningFactors]
	}
	for _, n := range crossed {
		reasoning = append(reasoning, describeFactor(n))
	}

	if f.HasMarkup.Value {
		reasoning = append(reasoning, fmt.Sprintf("Markup of %s%% applied", pct(finite(q.MarkupRate))))
	}
	if f.HasTax.Value {
		reasoning = append(reasoning, fmt.Sprintf("Tax of %s%% applied", pct(finite(q.TaxRate))))
	}
	if f.HasNotes.Value {
		reasoning = append(reasoning, "Includes notes for the client")
	}
	if f.IsTemplate.Value {
		reasoning = append(reasoning, "Built from a reusable template")
	}
	return reasoning
}

func contribution(n model.NumericFactor) float64 {
	return SubScore(n.Value, n.Threshold) * n.Weight
}

func describeFactor(n model.NamedNumeric) string {
	v, t := n.Factor.Value, n.Factor.Threshold
	switch n.Name {
	case model.FactorItemCount:
		return fmt.Sprintf("%d line items, above the typical %d", int(v), int(t.Medium))
	case model.FactorTotalValue:
		return fmt.Sprintf("Total value of %s exceeds %s", money(v), money(t.Medium))
	case model.FactorItemTypes:
		return fmt.Sprintf("%d distinct item types", int(v))
	case model.FactorCustomItemPercentage:
		return fmt.Sprintf("%s%% of items are custom", pct(v))
	case model.FactorQuantityVariance:
		return fmt.Sprintf("Quantities vary widely (std dev %.1f)", v)
	case model.FactorPriceRange:
		return fmt.Sprintf("Unit prices span a %.1fx range", v)
	}
	return n.Name
}

func money(v float64) string {
	return "$" + humanize.FormatFloat("#,###.##", v)
}

func pct(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	return s
}
