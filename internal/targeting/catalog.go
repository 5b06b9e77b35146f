package targeting

import (
	"fmt"
	"time"

	"quotepulse/internal/model"
)

// Candidate is one survey a level may show, with the tags that make it eligible
type Candidate struct {
	SurveyID string        `yaml:"survey_id" json:"surveyId"`
	Priority int           `yaml:"priority" json:"priority"` // Lower wins
	Triggers []string      `yaml:"triggers" json:"triggers"`
	Delay    time.Duration `yaml:"delay" json:"delay"`
}

// Catalog maps each complexity level to its candidate surveys
type Catalog map[model.ComplexityLevel][]Candidate

// DefaultCatalog returns the built-in survey catalog
func DefaultCatalog() Catalog {
	return Catalog{
		model.ComplexitySimple: {
			{SurveyID: "simple-quote-onboarding", Priority: 1, Triggers: []string{CondFirstQuoteEver, FirstOfLevel(model.ComplexitySimple)}, Delay: 2 * time.Second},
			{SurveyID: "simple-quote-speed", Priority: 2, Triggers: []string{CondMilestoneReached}, Delay: 3 * time.Second},
			{SurveyID: "simple-quote-upsell", Priority: 3, Triggers: []string{CondPowerUser, CondLongSession}, Delay: 5 * time.Second},
		},
		model.ComplexityMedium: {
			{SurveyID: "medium-quote-first-experience", Priority: 1, Triggers: []string{CondNewUser, FirstOfLevel(model.ComplexityMedium)}, Delay: 2 * time.Second},
			{SurveyID: "medium-quote-features", Priority: 2, Triggers: []string{LevelCreated(model.ComplexityMedium), CondHighValueQuote}, Delay: 3 * time.Second},
			{SurveyID: "medium-quote-workflow", Priority: 3, Triggers: []string{CondPowerUser, CondMilestoneReached}, Delay: 5 * time.Second},
		},
		model.ComplexityComplex: {
			{SurveyID: "complex-quote-enterprise", Priority: 1, Triggers: []string{CondEnterprisePotential}, Delay: 0},
			{SurveyID: "complex-quote-pain-points", Priority: 2, Triggers: []string{CondMultipleComplexQuotes, CondHighValueQuote}, Delay: 2 * time.Second},
			{SurveyID: "complex-quote-feedback", Priority: 3, Triggers: []string{LevelCreated(model.ComplexityComplex)}, Delay: 3 * time.Second},
		},
	}
}

// Validate rejects candidates that could never be selected or identified
func (c Catalog) Validate() error {
	for level, candidates := range c {
		seen := make(map[string]bool, len(candidates))
		for i, cand := range candidates {
			if cand.SurveyID == "" {
				return fmt.Errorf("catalog %s[%d]: survey id is required", level, i)
			}
			if len(cand.Triggers) == 0 {
				return fmt.Errorf("catalog %s survey %q: at least one trigger is required", level, cand.SurveyID)
			}
			if cand.Delay < 0 {
				return fmt.Errorf("catalog %s survey %q: negative delay", level, cand.SurveyID)
			}
			if seen[cand.SurveyID] {
				return fmt.Errorf("catalog %s: duplicate survey %q", level, cand.SurveyID)
			}
			seen[cand.SurveyID] = true
		}
	}
	return nil
}

// Eligible reports whether any of the candidate's triggers is in conds
func (cand Candidate) Eligible(conds map[string]struct{}) bool {
	for _, t := range cand.Triggers {
		if _, ok := conds[t]; ok {
			return true
		}
	}
	return false
}

// Select returns the eligible, unshown candidate with the lowest priority.
// Ties keep declaration order. ok is false when nothing qualifies.
func Select(candidates []Candidate, conditions []string, shown func(surveyID string) bool) (best Candidate, ok bool) {
	set := make(map[string]struct{}, len(conditions))
	for _, c := range conditions {
		set[c] = struct{}{}
	}

	for _, cand := range candidates {
		if !cand.Eligible(set) || (shown != nil && shown(cand.SurveyID)) {
			continue
		}
		if !ok || cand.Priority < best.Priority {
			best, ok = cand, true
		}
	}
	return best, ok
}
