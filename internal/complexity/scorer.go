// Package complexity scores the structural and business complexity of a quote.
package complexity

import (
	"context"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"quotepulse/internal/model"
)

// Confidence floor and per-level ceilings
const (
	confidenceFloor = 0.6
	ceilingSimple   = 0.95
	ceilingMedium   = 0.9
	ceilingComplex  = 0.95
)

// Options are the optional inputs to Analyze
type Options struct {
	// Library is the user's saved item library. Empty means unknown.
	Library []model.LibraryItem
	// Config overrides the scorer's configuration for one call
	Config *Config
}

// Analyze scores a quote and classifies it. It is pure: identical inputs
// always produce identical results, and it never fails.
//
// The score is a weighted mean of per-factor sub-scores:
//
//	score = (Σ sub(v)·w + Σ_true 100·w_bool) / (Σ |w| + Σ |w_bool|)
//
// where sub is a three-segment piecewise-linear map of a factor value
// against its simple/medium/complex thresholds.
func Analyze(quote *model.Quote, items []model.LineItem, opts Options) *model.ComplexityAnalysis {
	cfg := opts.Config
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if quote == nil {
		quote = &model.Quote{}
	}

	factors := computeFactors(quote, items, opts.Library, cfg)
	score := aggregate(factors)
	level := classify(score, cfg.Bands)

	return &model.ComplexityAnalysis{
		Level:      level,
		Score:      score,
		Factors:    factors,
		Insights:   buildInsights(quote, factors),
		Confidence: confidence(score, level, cfg.Bands),
		Reasoning:  buildReasoning(quote, factors, score, level),
	}
}

// Scorer is Analyze bound to a configuration, recording analysis latency
type Scorer struct {
	config   *Config
	duration metric.Float64Histogram
}

// NewScorer creates a scorer. If config is nil, uses the default configuration.
func NewScorer(config *Config) *Scorer {
	if config == nil {
		config = DefaultConfig()
	}
	duration, _ := otel.Meter("quotepulse/complexity").Float64Histogram(
		"quotepulse_complexity_analysis_duration_ms",
		metric.WithDescription("Time spent scoring one quote"),
		metric.WithUnit("ms"),
	)
	return &Scorer{config: config, duration: duration}
}

// Analyze scores a quote with the scorer's configuration unless opts overrides it
func (s *Scorer) Analyze(quote *model.Quote, items []model.LineItem, opts Options) *model.ComplexityAnalysis {
	if opts.Config == nil {
		opts.Config = s.config
	}
	start := time.Now()
	analysis := Analyze(quote, items, opts)
	if s.duration != nil {
		s.duration.Record(context.Background(), float64(time.Since(start).Microseconds())/1000.0,
			metric.WithAttributes(attribute.String("level", string(analysis.Level))))
	}
	return analysis
}

// Config returns the scorer's configuration
func (s *Scorer) Config() *Config {
	return s.config
}

// SubScore maps a raw factor value onto 0-100 against its thresholds.
// At or below simple scores 10, simple..medium maps onto 10..50,
// medium..complex onto 50..90, and past complex adds at most 10 more,
// reaching 100 once the value is double the complex threshold.
func SubScore(v float64, t model.Threshold) float64 {
	v = finite(v)
	switch {
	case v <= t.Simple:
		return 10
	case v <= t.Medium:
		return lerp(v, t.Simple, t.Medium, 10, 50)
	case v <= t.Complex:
		return lerp(v, t.Medium, t.Complex, 50, 90)
	}
	over := (v - t.Complex) / math.Max(t.Complex, 1)
	return 90 + 10*math.Min(over, 1)
}

func lerp(v, lo, hi, outLo, outHi float64) float64 {
	if hi <= lo {
		return outHi
	}
	return outLo + (v-lo)/(hi-lo)*(outHi-outLo)
}

func aggregate(f model.ComplexityFactors) float64 {
	var num, den float64
	for _, n := range f.Numeric() {
		num += SubScore(n.Factor.Value, n.Factor.Threshold) * n.Factor.Weight
		den += math.Abs(n.Factor.Weight)
	}
	// Booleans always count toward the denominator and only add to the
	// numerator when set, so a negative weight lowers the ceiling even when false.
	for _, b := range f.Booleans() {
		den += math.Abs(b.Factor.Weight)
		if b.Factor.Value {
			num += 100 * b.Factor.Weight
		}
	}
	if den == 0 {
		return 0
	}
	return round2(clamp(num/den, 0, 100))
}

func classify(score float64, b Bands) model.ComplexityLevel {
	switch {
	case score <= b.Simple:
		return model.ComplexitySimple
	case score <= b.Medium:
		return model.ComplexityMedium
	default:
		return model.ComplexityComplex
	}
}

// confidence grows with distance from the nearest internal band boundary
func confidence(score float64, level model.ComplexityLevel, b Bands) float64 {
	var rel, ceiling float64
	switch level {
	case model.ComplexitySimple:
		ceiling = ceilingSimple
		rel = (b.Simple - score) / math.Max(b.Simple, 1)
	case model.ComplexityMedium:
		ceiling = ceilingMedium
		half := (b.Medium - b.Simple) / 2
		rel = math.Min(score-b.Simple, b.Medium-score) / math.Max(half, 1)
	default:
		ceiling = ceilingComplex
		rel = (score - b.Medium) / math.Max(100-b.Medium, 1)
	}
	rel = clamp(rel, 0, 1)
	return round2(confidenceFloor + (ceiling-confidenceFloor)*rel)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
