package targeting

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"quotepulse/internal/model"
)

func TestDeriveConditions(t *testing.T) {
	rules := DefaultRules()

	tests := []struct {
		name  string
		level model.ComplexityLevel
		total float64
		user  model.UserContext
		want  []string
	}{
		{
			name:  "returning user, small quote",
			level: model.ComplexitySimple,
			total: 450,
			user:  model.UserContext{QuotesCreated: 3},
			want:  []string{"quote_created", "simple_quote_created"},
		},
		{
			name:  "first-time user first quote",
			level: model.ComplexityMedium,
			total: 2500,
			user:  model.UserContext{QuotesCreated: 1, IsFirstTimeUser: true},
			want:  []string{"quote_created", "medium_quote_created", "new_user", "first_quote_ever", "first_medium_quote"},
		},
		{
			name:  "power user large complex quote",
			level: model.ComplexityComplex,
			total: 28000,
			user:  model.UserContext{QuotesCreated: 10, SubscriptionTier: "Pro"},
			want: []string{
				"quote_created", "complex_quote_created", "power_user", "multiple_complex_quotes",
				"high_value_quote", "enterprise_potential", "milestone_reached", "pro_tier",
			},
		},
		{
			name:  "multiple complex needs complex level",
			level: model.ComplexityMedium,
			total: 100,
			user:  model.UserContext{QuotesCreated: 6},
			want:  []string{"quote_created", "medium_quote_created"},
		},
		{
			name:  "complex history implies enterprise potential",
			level: model.ComplexitySimple,
			total: 100,
			user: model.UserContext{
				QuotesCreated:    7,
				RecentComplexity: []model.ComplexityLevel{"complex", "simple", "complex", "complex"},
			},
			want: []string{"quote_created", "simple_quote_created", "enterprise_potential"},
		},
		{
			name:  "line-item value without a stored total",
			level: model.ComplexitySimple,
			total: 30000,
			user:  model.UserContext{QuotesCreated: 2},
			want:  []string{"quote_created", "simple_quote_created", "high_value_quote", "enterprise_potential"},
		},
		{
			name:  "thresholds are strict on value",
			level: model.ComplexityMedium,
			total: 10000,
			user:  model.UserContext{QuotesCreated: 2},
			want:  []string{"quote_created", "medium_quote_created"},
		},
		{
			name:  "long session",
			level: model.ComplexitySimple,
			total: 10,
			user:  model.UserContext{QuotesCreated: 2, TimeSpentMinutes: 15},
			want:  []string{"quote_created", "simple_quote_created", "long_session"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveConditions(tt.level, tt.total, tt.user, rules)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDeriveConditions_ZeroValue(t *testing.T) {
	got := DeriveConditions(model.ComplexitySimple, 0, model.UserContext{}, DefaultRules())
	assert.Equal(t, []string{"quote_created", "simple_quote_created"}, got)
}

func TestDeriveConditions_MilestoneDisabled(t *testing.T) {
	rules := DefaultRules()
	rules.MilestoneEvery = 0
	got := DeriveConditions(model.ComplexitySimple, 0, model.UserContext{QuotesCreated: 5}, rules)
	assert.NotContains(t, got, CondMilestoneReached)
}

func TestUrgency(t *testing.T) {
	rules := DefaultRules()

	tests := []struct {
		name  string
		level model.ComplexityLevel
		user  model.UserContext
		want  model.SurveyPriority
	}{
		{"complex", model.ComplexityComplex, model.UserContext{QuotesCreated: 2}, model.PriorityHigh},
		{"first-time overrides medium", model.ComplexityMedium, model.UserContext{IsFirstTimeUser: true}, model.PriorityHigh},
		{"first-time overrides simple", model.ComplexitySimple, model.UserContext{IsFirstTimeUser: true}, model.PriorityHigh},
		{"medium", model.ComplexityMedium, model.UserContext{QuotesCreated: 2}, model.PriorityMedium},
		{"power user on simple", model.ComplexitySimple, model.UserContext{QuotesCreated: 12}, model.PriorityMedium},
		{"simple", model.ComplexitySimple, model.UserContext{QuotesCreated: 2}, model.PriorityLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Urgency(tt.level, tt.user, rules))
		})
	}
}

func TestTierTag(t *testing.T) {
	assert.Equal(t, "", TierTag("  "))
	assert.Equal(t, "enterprise_tier", TierTag(" Enterprise "))
}
