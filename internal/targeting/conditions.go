// Package targeting derives survey trigger conditions from a scored quote
// and picks the survey a user should see next.
package targeting

import (
	"strings"

	"quotepulse/internal/model"
)

// Condition tags that do not depend on the complexity level
const (
	CondQuoteCreated          = "quote_created"
	CondNewUser               = "new_user"
	CondFirstQuoteEver        = "first_quote_ever"
	CondPowerUser             = "power_user"
	CondMultipleComplexQuotes = "multiple_complex_quotes"
	CondHighValueQuote        = "high_value_quote"
	CondEnterprisePotential   = "enterprise_potential"
	CondMilestoneReached      = "milestone_reached"
	CondLongSession           = "long_session"
)

// Rules holds the thresholds behind the condition tags
type Rules struct {
	HighValueQuote       float64 `yaml:"high_value_quote" json:"highValueQuote"`
	EnterpriseValue      float64 `yaml:"enterprise_value" json:"enterpriseValue"`
	PowerUserQuotes      int     `yaml:"power_user_quotes" json:"powerUserQuotes"`
	MultipleComplexMin   int     `yaml:"multiple_complex_min" json:"multipleComplexMin"`
	EnterpriseComplexMin int     `yaml:"enterprise_complex_min" json:"enterpriseComplexMin"`
	MilestoneEvery       int     `yaml:"milestone_every" json:"milestoneEvery"`
	LongSessionMinutes   float64 `yaml:"long_session_minutes" json:"longSessionMinutes"`
}

// DefaultRules returns the default condition thresholds
func DefaultRules() Rules {
	return Rules{
		HighValueQuote:       10000,
		EnterpriseValue:      25000,
		PowerUserQuotes:      10,
		MultipleComplexMin:   5,
		EnterpriseComplexMin: 3,
		MilestoneEvery:       5,
		LongSessionMinutes:   15,
	}
}

// LevelCreated is the "<level>_quote_created" tag
func LevelCreated(level model.ComplexityLevel) string {
	return string(level) + "_quote_created"
}

// FirstOfLevel is the "first_<level>_quote" tag
func FirstOfLevel(level model.ComplexityLevel) string {
	return "first_" + string(level) + "_quote"
}

// TierTag is the "<tier>_tier" tag, empty when no tier is set
func TierTag(tier string) string {
	tier = strings.ToLower(strings.TrimSpace(tier))
	if tier == "" {
		return ""
	}
	return tier + "_tier"
}

// DeriveConditions returns the condition tags for a scored quote, in a fixed order.
// total is the analysed quote value, so it agrees with the scorer's fallback
// to the line-item sum when the stored total is unset.
func DeriveConditions(level model.ComplexityLevel, total float64, user model.UserContext, rules Rules) []string {
	conds := []string{CondQuoteCreated, LevelCreated(level)}

	if user.IsFirstTimeUser {
		conds = append(conds, CondNewUser, CondFirstQuoteEver)
	}
	if user.QuotesCreated == 1 {
		conds = append(conds, FirstOfLevel(level))
	}
	if user.QuotesCreated >= rules.PowerUserQuotes {
		conds = append(conds, CondPowerUser)
	}
	if user.QuotesCreated >= rules.MultipleComplexMin && level == model.ComplexityComplex {
		conds = append(conds, CondMultipleComplexQuotes)
	}

	if total > rules.HighValueQuote {
		conds = append(conds, CondHighValueQuote)
	}
	if total > rules.EnterpriseValue || recentComplex(user.RecentComplexity) >= rules.EnterpriseComplexMin {
		conds = append(conds, CondEnterprisePotential)
	}
	if rules.MilestoneEvery > 0 && user.QuotesCreated > 0 && user.QuotesCreated%rules.MilestoneEvery == 0 {
		conds = append(conds, CondMilestoneReached)
	}

	if rules.LongSessionMinutes > 0 && user.TimeSpentMinutes >= rules.LongSessionMinutes {
		conds = append(conds, CondLongSession)
	}
	if tag := TierTag(user.SubscriptionTier); tag != "" {
		conds = append(conds, tag)
	}
	return conds
}

func recentComplex(levels []model.ComplexityLevel) int {
	n := 0
	for _, l := range levels {
		if l == model.ComplexityComplex {
			n++
		}
	}
	return n
}

// Urgency classifies how soon the delivery layer should act on a survey
func Urgency(level model.ComplexityLevel, user model.UserContext, rules Rules) model.SurveyPriority {
	switch {
	case level == model.ComplexityComplex || user.IsFirstTimeUser:
		return model.PriorityHigh
	case level == model.ComplexityMedium || user.QuotesCreated >= rules.PowerUserQuotes:
		return model.PriorityMedium
	default:
		return model.PriorityLow
	}
}
