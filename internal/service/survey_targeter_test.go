package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"quotepulse/internal/cache"
	"quotepulse/internal/complexity"
	"quotepulse/internal/model"
	"quotepulse/internal/targeting"
)

// =============================================================================
// Fakes
// =============================================================================

type fakeDelivery struct {
	mu       sync.Mutex
	attrs    map[string]map[string]interface{}
	shown    []string
	attrErr  error
	showErr  error
	showDone chan string
}

func newFakeDelivery() *fakeDelivery {
	return &fakeDelivery{
		attrs:    make(map[string]map[string]interface{}),
		showDone: make(chan string, 16),
	}
}

func (d *fakeDelivery) SetAttributes(_ context.Context, userID string, attrs map[string]interface{}) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.attrErr != nil {
		return d.attrErr
	}
	d.attrs[userID] = attrs
	return nil
}

func (d *fakeDelivery) ShowSurvey(_ context.Context, userID, surveyID string) error {
	d.mu.Lock()
	err := d.showErr
	if err == nil {
		d.shown = append(d.shown, userID+"/"+surveyID)
	}
	d.mu.Unlock()
	d.showDone <- surveyID
	return err
}

func (d *fakeDelivery) Shown() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.shown...)
}

type recordingSink struct {
	mu     sync.Mutex
	events []*model.SurveyEvent
}

func (s *recordingSink) Emit(_ context.Context, e *model.SurveyEvent) error {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
	return nil
}

func (s *recordingSink) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, len(s.events))
	for i, e := range s.events {
		names[i] = e.Name
	}
	return names
}

type failingHistory struct {
	cache.SurveyHistory
}

func (failingHistory) MarkShown(context.Context, string, string, time.Time) error {
	return errors.New("redis down")
}

// =============================================================================
// Suite
// =============================================================================

type TargeterSuite struct {
	suite.Suite
	history  cache.SurveyHistory
	delivery *fakeDelivery
	sink     *recordingSink
	now      time.Time
	targeter *SurveyTargeter
}

func (s *TargeterSuite) SetupTest() {
	s.history = cache.NewMemorySurveyHistory()
	s.delivery = newFakeDelivery()
	s.sink = &recordingSink{}
	s.now = time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)
	s.targeter = s.newTargeter(TargeterConfig{Catalog: testCatalog()})
}

func (s *TargeterSuite) TearDownTest() {
	s.targeter.Stop()
}

func (s *TargeterSuite) newTargeter(cfg TargeterConfig) *SurveyTargeter {
	cfg.Now = func() time.Time { return s.now }
	return NewSurveyTargeter(s.history, s.delivery, s.sink, cfg)
}

func TestTargeterSuite(t *testing.T) {
	suite.Run(t, new(TargeterSuite))
}

// testCatalog has no delays unless a test adds them
func testCatalog() targeting.Catalog {
	return targeting.Catalog{
		model.ComplexityMedium: {
			{SurveyID: "medium-first", Priority: 1, Triggers: []string{targeting.CondNewUser}},
			{SurveyID: "medium-general", Priority: 2, Triggers: []string{targeting.LevelCreated(model.ComplexityMedium)}},
		},
		model.ComplexityComplex: {
			{SurveyID: "complex-enterprise", Priority: 1, Triggers: []string{targeting.CondEnterprisePotential}},
			{SurveyID: "complex-general", Priority: 2, Triggers: []string{targeting.LevelCreated(model.ComplexityComplex)}},
		},
	}
}

func analysisAt(level model.ComplexityLevel, score, total float64) *model.ComplexityAnalysis {
	a := &model.ComplexityAnalysis{Level: level, Score: score}
	a.Factors.TotalValue.Value = total
	a.Factors.ItemCount.Value = 6
	return a
}

// =============================================================================
// DetermineSurvey
// =============================================================================

func (s *TargeterSuite) TestFirstTimeMediumUserGetsHighPriority() {
	user := model.UserContext{UserID: "u1", QuotesCreated: 1, IsFirstTimeUser: true}
	quote := &model.Quote{ID: "q1", Total: 2400}

	sc, err := s.targeter.DetermineSurvey(context.Background(), analysisAt(model.ComplexityMedium, 45, 2400), quote, user)

	s.Require().NoError(err)
	s.Require().NotNil(sc)
	s.Equal("medium-first", sc.RecommendedSurvey.SurveyID)
	s.Equal(model.PriorityHigh, sc.RecommendedSurvey.Priority)
	s.Contains(sc.TriggerConditions, "first_medium_quote")
}

func (s *TargeterSuite) TestSilenceWhenNothingMatches() {
	user := model.UserContext{UserID: "u1", QuotesCreated: 3}

	sc, err := s.targeter.DetermineSurvey(context.Background(), analysisAt(model.ComplexitySimple, 12, 300), &model.Quote{ID: "q1"}, user)

	s.NoError(err)
	s.Nil(sc)
	s.Empty(s.delivery.Shown())
	s.Empty(s.sink.Names())
}

func (s *TargeterSuite) TestNilAnalysisOrUnknownUserSelectsNothing() {
	sc, err := s.targeter.DetermineSurvey(context.Background(), nil, nil, model.UserContext{UserID: "u1"})
	s.NoError(err)
	s.Nil(sc)

	sc, err = s.targeter.DetermineSurvey(context.Background(), analysisAt(model.ComplexityMedium, 40, 100), &model.Quote{}, model.UserContext{})
	s.NoError(err)
	s.Nil(sc)
}

func (s *TargeterSuite) TestUserIDFallsBackToQuoteOwner() {
	sc, err := s.targeter.DetermineSurvey(context.Background(), analysisAt(model.ComplexityMedium, 40, 100),
		&model.Quote{ID: "q1", UserID: "owner"}, model.UserContext{QuotesCreated: 2})
	s.Require().NoError(err)
	s.Require().NotNil(sc)
	s.Equal("owner", sc.User.UserID)
}

func (s *TargeterSuite) TestValueConditionsUseAnalysedTotal() {
	catalog := targeting.Catalog{}
	for _, level := range []model.ComplexityLevel{model.ComplexitySimple, model.ComplexityMedium, model.ComplexityComplex} {
		catalog[level] = []targeting.Candidate{{SurveyID: "high-value", Priority: 1, Triggers: []string{targeting.CondHighValueQuote}}}
	}
	targeter := s.newTargeter(TargeterConfig{Catalog: catalog})
	defer targeter.Stop()

	// No stored total; the scorer sums the line items
	quote := &model.Quote{ID: "q1", UserID: "u1", LineItems: []model.LineItem{{ID: "1", Name: "Retaining wall", Cost: 15000, Quantity: 2}}}
	analysis := complexity.Analyze(quote, quote.LineItems, complexity.Options{})
	s.Require().Equal(30000.0, analysis.Factors.TotalValue.Value)

	sc, err := targeter.DetermineSurvey(context.Background(), analysis, quote, model.UserContext{UserID: "u1", QuotesCreated: 2})
	s.Require().NoError(err)
	s.Require().NotNil(sc)
	s.Equal("high-value", sc.RecommendedSurvey.SurveyID)
	s.Contains(sc.TriggerConditions, targeting.CondHighValueQuote)
	s.Contains(sc.TriggerConditions, targeting.CondEnterprisePotential)
}

func (s *TargeterSuite) TestDedupAcrossTriggers() {
	ctx := context.Background()
	user := model.UserContext{UserID: "u1", QuotesCreated: 4}
	quote := &model.Quote{ID: "q1", Total: 30000}
	analysis := analysisAt(model.ComplexityComplex, 80, 30000)

	first, err := s.targeter.DetermineSurvey(ctx, analysis, quote, user)
	s.Require().NoError(err)
	s.Require().NotNil(first)
	s.Equal("complex-enterprise", first.RecommendedSurvey.SurveyID)
	s.True(s.targeter.Trigger(ctx, first))

	second, err := s.targeter.DetermineSurvey(ctx, analysis, quote, user)
	s.Require().NoError(err)
	s.Require().NotNil(second)
	s.Equal("complex-general", second.RecommendedSurvey.SurveyID)
	s.True(s.targeter.Trigger(ctx, second))

	third, err := s.targeter.DetermineSurvey(ctx, analysis, quote, user)
	s.NoError(err)
	s.Nil(third)

	shown, err := s.targeter.ShownSurveys(ctx, "u1")
	s.NoError(err)
	s.Equal([]string{"complex-enterprise", "complex-general"}, shown)
}

func (s *TargeterSuite) TestCooldownSuppressesSelection() {
	ctx := context.Background()
	targeter := s.newTargeter(TargeterConfig{Catalog: testCatalog(), Cooldown: time.Hour})
	defer targeter.Stop()
	user := model.UserContext{UserID: "u1", QuotesCreated: 2}

	require.NoError(s.T(), s.history.MarkShown(ctx, "u1", "something-else", s.now.Add(-30*time.Minute)))

	sc, err := targeter.DetermineSurvey(ctx, analysisAt(model.ComplexityMedium, 40, 100), &model.Quote{}, user)
	s.NoError(err)
	s.Nil(sc)

	s.now = s.now.Add(31 * time.Minute)
	sc, err = targeter.DetermineSurvey(ctx, analysisAt(model.ComplexityMedium, 40, 100), &model.Quote{}, user)
	s.NoError(err)
	s.NotNil(sc)
}

// =============================================================================
// Trigger
// =============================================================================

func (s *TargeterSuite) TestTriggerImmediate() {
	ctx := context.Background()
	user := model.UserContext{UserID: "u1", QuotesCreated: 2, SubscriptionTier: "pro", TimeSpentMinutes: 7.5}

	sc, err := s.targeter.DetermineSurvey(ctx, analysisAt(model.ComplexityMedium, 41.5, 2400), &model.Quote{ID: "q9"}, user)
	s.Require().NoError(err)
	s.Require().NotNil(sc)

	s.True(s.targeter.Trigger(ctx, sc))

	s.Equal([]string{"u1/medium-general"}, s.delivery.Shown())
	attrs := s.delivery.attrs["u1"]
	s.Equal("medium", attrs["complexity_level"])
	s.Equal(41.5, attrs["complexity_score"])
	s.Equal(2400.0, attrs["quote_value"])
	s.Equal(6, attrs["quote_item_count"])
	s.Equal("pro", attrs["subscription_tier"])
	s.Equal(2, attrs["quotes_created"])
	s.Equal(7.5, attrs["time_spent_minutes"])
	s.Equal(false, attrs["is_first_time_user"])

	s.Require().Equal([]string{model.EventSurveyTriggered}, s.sink.Names())
	props := s.sink.events[0].Properties
	s.Equal("medium-general", props["surveyId"])
	s.Equal("q9", props["quoteId"])
	s.Equal(int64(0), props["delayMs"])
	s.Equal(sc.TriggerConditions, props["triggerConditions"])
}

func (s *TargeterSuite) TestTriggerMarksShownEvenWhenDisplayFails() {
	ctx := context.Background()
	s.delivery.showErr = errors.New("platform unavailable")
	user := model.UserContext{UserID: "u1", QuotesCreated: 2}

	ok := s.targeter.TriggerComplexityBasedSurvey(ctx, analysisAt(model.ComplexityMedium, 40, 100), &model.Quote{ID: "q1"}, user)

	s.False(ok)
	shown, _ := s.history.HasShown(ctx, "u1", "medium-general")
	s.True(shown, "survey is recorded before display")
	s.Equal([]string{model.EventSurveyTriggered, model.EventSurveyDisplayFailed}, s.sink.Names())
}

func (s *TargeterSuite) TestTriggerAttributeFailureIsSoft() {
	s.delivery.attrErr = errors.New("timeout")
	ok := s.targeter.TriggerComplexityBasedSurvey(context.Background(), analysisAt(model.ComplexityMedium, 40, 100),
		&model.Quote{ID: "q1"}, model.UserContext{UserID: "u1", QuotesCreated: 2})

	s.False(ok)
	s.Empty(s.delivery.Shown())
}

func (s *TargeterSuite) TestTriggerHistoryFailureIsSoft() {
	targeter := NewSurveyTargeter(failingHistory{cache.NewMemorySurveyHistory()}, s.delivery, s.sink, TargeterConfig{Catalog: testCatalog()})
	defer targeter.Stop()

	ok := targeter.TriggerComplexityBasedSurvey(context.Background(), analysisAt(model.ComplexityMedium, 40, 100),
		&model.Quote{ID: "q1"}, model.UserContext{UserID: "u1", QuotesCreated: 2})

	s.False(ok)
	s.Empty(s.delivery.Shown())
}

func (s *TargeterSuite) TestTriggerRejectsEmptyContext() {
	s.False(s.targeter.Trigger(context.Background(), nil))
	s.False(s.targeter.Trigger(context.Background(), &model.ComplexitySurveyContext{}))
}

func (s *TargeterSuite) TestTriggerNothingSelected() {
	ok := s.targeter.TriggerComplexityBasedSurvey(context.Background(), analysisAt(model.ComplexitySimple, 5, 10),
		&model.Quote{ID: "q1"}, model.UserContext{UserID: "u1"})
	s.False(ok)
	s.Empty(s.sink.Names())
}

// =============================================================================
// Delayed display
// =============================================================================

func delayedCatalog(delay time.Duration) targeting.Catalog {
	return targeting.Catalog{
		model.ComplexityMedium: {
			{SurveyID: "medium-delayed", Priority: 1, Triggers: []string{targeting.LevelCreated(model.ComplexityMedium)}, Delay: delay},
		},
	}
}

func (s *TargeterSuite) TestDelayedTriggerDoesNotBlock() {
	targeter := s.newTargeter(TargeterConfig{Catalog: delayedCatalog(100 * time.Millisecond)})
	defer targeter.Stop()

	start := time.Now()
	ok := targeter.TriggerComplexityBasedSurvey(context.Background(), analysisAt(model.ComplexityMedium, 40, 100),
		&model.Quote{ID: "q1"}, model.UserContext{UserID: "u1", QuotesCreated: 2})
	s.True(ok)
	s.Less(time.Since(start), 100*time.Millisecond)
	s.Equal(1, targeter.Pending("u1"))

	select {
	case id := <-s.delivery.showDone:
		s.Equal("medium-delayed", id)
	case <-time.After(2 * time.Second):
		s.Fail("delayed survey was not displayed")
	}
	s.Eventually(func() bool { return targeter.Pending("u1") == 0 }, time.Second, 5*time.Millisecond)
}

func (s *TargeterSuite) TestCancelPending() {
	targeter := s.newTargeter(TargeterConfig{Catalog: delayedCatalog(time.Hour)})
	defer targeter.Stop()

	s.True(targeter.TriggerComplexityBasedSurvey(context.Background(), analysisAt(model.ComplexityMedium, 40, 100),
		&model.Quote{ID: "q1"}, model.UserContext{UserID: "u1", QuotesCreated: 2}))

	s.Equal(1, targeter.CancelPending("u1"))
	s.Equal(0, targeter.Pending("u1"))
	s.Equal(0, targeter.CancelPending("u1"))
	s.Empty(s.delivery.Shown())
}

func (s *TargeterSuite) TestStopRefusesNewDelayedTriggers() {
	targeter := s.newTargeter(TargeterConfig{Catalog: delayedCatalog(time.Hour)})
	s.True(targeter.TriggerComplexityBasedSurvey(context.Background(), analysisAt(model.ComplexityMedium, 40, 100),
		&model.Quote{ID: "q1"}, model.UserContext{UserID: "u1", QuotesCreated: 2}))

	targeter.Stop()
	s.Equal(0, targeter.Pending("u1"))

	s.False(targeter.TriggerComplexityBasedSurvey(context.Background(), analysisAt(model.ComplexityMedium, 40, 100),
		&model.Quote{ID: "q2"}, model.UserContext{UserID: "u2", QuotesCreated: 2}))
}

func (s *TargeterSuite) TestResetUserHistory() {
	ctx := context.Background()
	user := model.UserContext{UserID: "u1", QuotesCreated: 2}
	analysis := analysisAt(model.ComplexityMedium, 40, 100)

	s.True(s.targeter.TriggerComplexityBasedSurvey(ctx, analysis, &model.Quote{ID: "q1"}, user))
	s.False(s.targeter.TriggerComplexityBasedSurvey(ctx, analysis, &model.Quote{ID: "q1"}, user))

	s.Require().NoError(s.targeter.ResetUserHistory(ctx, "u1"))

	s.True(s.targeter.TriggerComplexityBasedSurvey(ctx, analysis, &model.Quote{ID: "q1"}, user))
}

func TestMultiDelivery(t *testing.T) {
	ctx := context.Background()
	good := newFakeDelivery()
	bad := newFakeDelivery()
	bad.showErr = errors.New("offline")

	assert.NoError(t, MultiDelivery{bad, good}.ShowSurvey(ctx, "u1", "s1"))
	assert.Equal(t, []string{"u1/s1"}, good.Shown())

	assert.ErrorContains(t, MultiDelivery{bad}.ShowSurvey(ctx, "u1", "s1"), "offline")
	assert.Error(t, MultiDelivery{}.ShowSurvey(ctx, "u1", "s1"))
}
