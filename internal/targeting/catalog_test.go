package targeting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quotepulse/internal/model"
)

func TestSelect_LowestPriorityWins(t *testing.T) {
	candidates := []Candidate{
		{SurveyID: "c", Priority: 3, Triggers: []string{"quote_created"}},
		{SurveyID: "a", Priority: 1, Triggers: []string{"power_user"}},
		{SurveyID: "b", Priority: 2, Triggers: []string{"quote_created"}},
	}

	got, ok := Select(candidates, []string{"quote_created", "power_user"}, nil)
	require.True(t, ok)
	assert.Equal(t, "a", got.SurveyID)

	got, ok = Select(candidates, []string{"quote_created"}, nil)
	require.True(t, ok)
	assert.Equal(t, "b", got.SurveyID)
}

func TestSelect_TiesKeepDeclarationOrder(t *testing.T) {
	candidates := []Candidate{
		{SurveyID: "first", Priority: 1, Triggers: []string{"x"}},
		{SurveyID: "second", Priority: 1, Triggers: []string{"x"}},
	}
	got, ok := Select(candidates, []string{"x"}, nil)
	require.True(t, ok)
	assert.Equal(t, "first", got.SurveyID)
}

func TestSelect_SkipsShown(t *testing.T) {
	candidates := []Candidate{
		{SurveyID: "a", Priority: 1, Triggers: []string{"x"}},
		{SurveyID: "b", Priority: 2, Triggers: []string{"x"}},
	}
	shown := map[string]bool{"a": true}

	got, ok := Select(candidates, []string{"x"}, func(id string) bool { return shown[id] })
	require.True(t, ok)
	assert.Equal(t, "b", got.SurveyID)

	shown["b"] = true
	_, ok = Select(candidates, []string{"x"}, func(id string) bool { return shown[id] })
	assert.False(t, ok)
}

func TestSelect_NoIntersectionIsSilent(t *testing.T) {
	candidates := []Candidate{{SurveyID: "a", Priority: 1, Triggers: []string{"enterprise_potential"}}}
	_, ok := Select(candidates, []string{"quote_created"}, nil)
	assert.False(t, ok)

	_, ok = Select(nil, []string{"quote_created"}, nil)
	assert.False(t, ok)
}

func TestDefaultCatalog_FirstTimeMediumUser(t *testing.T) {
	user := model.UserContext{QuotesCreated: 1, IsFirstTimeUser: true}
	conds := DeriveConditions(model.ComplexityMedium, 2400, user, DefaultRules())

	got, ok := Select(DefaultCatalog()[model.ComplexityMedium], conds, nil)
	require.True(t, ok)
	assert.Equal(t, "medium-quote-first-experience", got.SurveyID)
	assert.Equal(t, model.PriorityHigh, Urgency(model.ComplexityMedium, user, DefaultRules()))
}

func TestDefaultCatalog_EveryLevelReachable(t *testing.T) {
	catalog := DefaultCatalog()
	require.NoError(t, catalog.Validate())

	for _, level := range []model.ComplexityLevel{model.ComplexitySimple, model.ComplexityMedium, model.ComplexityComplex} {
		assert.NotEmpty(t, catalog[level], "level %s has no surveys", level)
	}
}

func TestCatalogValidate(t *testing.T) {
	tests := []struct {
		name    string
		catalog Catalog
	}{
		{"missing id", Catalog{model.ComplexitySimple: {{Priority: 1, Triggers: []string{"x"}}}}},
		{"no triggers", Catalog{model.ComplexitySimple: {{SurveyID: "a", Priority: 1}}}},
		{"negative delay", Catalog{model.ComplexitySimple: {{SurveyID: "a", Triggers: []string{"x"}, Delay: -time.Second}}}},
		{"duplicate", Catalog{model.ComplexitySimple: {
			{SurveyID: "a", Triggers: []string{"x"}},
			{SurveyID: "a", Triggers: []string{"y"}},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.catalog.Validate())
		})
	}
}
