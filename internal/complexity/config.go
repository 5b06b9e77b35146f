package complexity

import (
	"errors"
	"fmt"

	"quotepulse/internal/model"
)

// ErrInvalidConfig is returned by Validate for thresholds or bands that cannot score sensibly
var ErrInvalidConfig = errors.New("invalid complexity config")

// FactorConfig holds the weight and band thresholds of one numeric factor
type FactorConfig struct {
	Weight    float64         `json:"weight" yaml:"weight"`
	Threshold model.Threshold `json:"threshold" yaml:"threshold"`
}

// BoolWeights holds the weight of each boolean business-configuration factor.
// Negative weights are allowed and penalize the score when the flag is set.
type BoolWeights struct {
	HasTax         float64 `json:"hasTax" yaml:"has_tax"`
	HasMarkup      float64 `json:"hasMarkup" yaml:"has_markup"`
	HighTaxRate    float64 `json:"highTaxRate" yaml:"high_tax_rate"`
	HighMarkupRate float64 `json:"highMarkupRate" yaml:"high_markup_rate"`
	IsTemplate     float64 `json:"isTemplate" yaml:"is_template"`
	HasNotes       float64 `json:"hasNotes" yaml:"has_notes"`
}

// Bands are the global score boundaries: score <= Simple is simple,
// score <= Medium is medium, anything above is complex.
type Bands struct {
	Simple float64 `json:"simple" yaml:"simple"`
	Medium float64 `json:"medium" yaml:"medium"`
}

// Config configures the scorer
type Config struct {
	ItemCount            FactorConfig `json:"itemCount" yaml:"item_count"`
	TotalValue           FactorConfig `json:"totalValue" yaml:"total_value"`
	ItemTypes            FactorConfig `json:"itemTypes" yaml:"item_types"`
	CustomItemPercentage FactorConfig `json:"customItemPercentage" yaml:"custom_item_percentage"`
	QuantityVariance     FactorConfig `json:"quantityVariance" yaml:"quantity_variance"`
	PriceRange           FactorConfig `json:"priceRange" yaml:"price_range"`

	BooleanWeights BoolWeights `json:"booleanWeights" yaml:"boolean_weights"`
	Bands          Bands       `json:"bands" yaml:"bands"`

	// Rates above these (percent) set the high-tax and high-markup flags
	HighTaxRate    float64 `json:"highTaxRate" yaml:"high_tax_rate"`
	HighMarkupRate float64 `json:"highMarkupRate" yaml:"high_markup_rate"`

	// Used for the custom-item factor when the caller has no item library
	DefaultCustomItemPercentage float64 `json:"defaultCustomItemPercentage" yaml:"default_custom_item_percentage"`
}

// DefaultConfig returns the production scoring configuration
func DefaultConfig() *Config {
	return &Config{
		ItemCount: FactorConfig{
			Weight:    0.25,
			Threshold: model.Threshold{Simple: 3, Medium: 8, Complex: 15},
		},
		TotalValue: FactorConfig{
			Weight:    0.20,
			Threshold: model.Threshold{Simple: 1000, Medium: 5000, Complex: 20000},
		},
		ItemTypes: FactorConfig{
			Weight:    0.15,
			Threshold: model.Threshold{Simple: 2, Medium: 4, Complex: 7},
		},
		CustomItemPercentage: FactorConfig{
			Weight:    0.10,
			Threshold: model.Threshold{Simple: 20, Medium: 50, Complex: 80},
		},
		QuantityVariance: FactorConfig{
			Weight:    0.10,
			Threshold: model.Threshold{Simple: 5, Medium: 20, Complex: 50},
		},
		PriceRange: FactorConfig{
			Weight:    0.10,
			Threshold: model.Threshold{Simple: 5, Medium: 20, Complex: 100},
		},
		BooleanWeights: BoolWeights{
			HasTax:         0.02,
			HasMarkup:      0.03,
			HighTaxRate:    0.02,
			HighMarkupRate: 0.05,
			IsTemplate:     -0.02,
			HasNotes:       0.03,
		},
		Bands:                       Bands{Simple: 33, Medium: 66},
		HighTaxRate:                 10,
		HighMarkupRate:              30,
		DefaultCustomItemPercentage: 50,
	}
}

// Validate checks threshold ordering and band boundaries. The scorer never
// calls it; hosts validate once at load time.
func (c *Config) Validate() error {
	factors := map[string]FactorConfig{
		model.FactorItemCount:            c.ItemCount,
		model.FactorTotalValue:           c.TotalValue,
		model.FactorItemTypes:            c.ItemTypes,
		model.FactorCustomItemPercentage: c.CustomItemPercentage,
		model.FactorQuantityVariance:     c.QuantityVariance,
		model.FactorPriceRange:           c.PriceRange,
	}
	for name, f := range factors {
		t := f.Threshold
		if t.Simple > t.Medium || t.Medium > t.Complex {
			return fmt.Errorf("%w: %s thresholds must be non-decreasing (got %v/%v/%v)",
				ErrInvalidConfig, name, t.Simple, t.Medium, t.Complex)
		}
	}
	if c.Bands.Simple < 0 || c.Bands.Simple > c.Bands.Medium || c.Bands.Medium > 100 {
		return fmt.Errorf("%w: bands must satisfy 0 <= simple <= medium <= 100 (got %v/%v)",
			ErrInvalidConfig, c.Bands.Simple, c.Bands.Medium)
	}
	return nil
}
