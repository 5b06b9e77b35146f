package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"quotepulse/internal/cache"
	"quotepulse/internal/events"
	"quotepulse/internal/model"
	"quotepulse/internal/targeting"
)

// delayedDisplayTimeout bounds a scheduled display once its timer fires
const delayedDisplayTimeout = 10 * time.Second

// TargeterConfig configures NewSurveyTargeter. Zero values take defaults.
type TargeterConfig struct {
	Catalog targeting.Catalog
	Rules   *targeting.Rules
	// Cooldown is the minimum gap between two surveys for one user; zero disables it
	Cooldown time.Duration
	Now      func() time.Time
}

// SurveyTargeter picks at most one survey per scored quote and hands it to delivery
type SurveyTargeter struct {
	history  cache.SurveyHistory
	delivery SurveyDelivery
	sink     events.Sink
	catalog  targeting.Catalog
	rules    targeting.Rules
	cooldown time.Duration
	now      func() time.Time

	mu      sync.Mutex
	pending map[string]map[uint64]*time.Timer // userID -> timer id -> timer
	nextID  uint64
	stopped bool

	triggered metric.Int64Counter
	failed    metric.Int64Counter
}

// NewSurveyTargeter creates a new survey targeter
func NewSurveyTargeter(history cache.SurveyHistory, delivery SurveyDelivery, sink events.Sink, cfg TargeterConfig) *SurveyTargeter {
	if cfg.Catalog == nil {
		cfg.Catalog = targeting.DefaultCatalog()
	}
	rules := targeting.DefaultRules()
	if cfg.Rules != nil {
		rules = *cfg.Rules
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if sink == nil {
		sink = events.Discard
	}

	meter := otel.Meter("quotepulse/targeting")
	triggered, _ := meter.Int64Counter("quotepulse_surveys_triggered_total",
		metric.WithDescription("Surveys handed to delivery"))
	failed, _ := meter.Int64Counter("quotepulse_survey_trigger_failures_total",
		metric.WithDescription("Survey triggers that failed softly"))

	return &SurveyTargeter{
		history:   history,
		delivery:  delivery,
		sink:      sink,
		catalog:   cfg.Catalog,
		rules:     rules,
		cooldown:  cfg.Cooldown,
		now:       cfg.Now,
		pending:   make(map[string]map[uint64]*time.Timer),
		triggered: triggered,
		failed:    failed,
	}
}

// DetermineSurvey returns the survey to show for a scored quote, or nil when
// no candidate qualifies. A nil context is the normal "show nothing" outcome.
func (t *SurveyTargeter) DetermineSurvey(ctx context.Context, analysis *model.ComplexityAnalysis, quote *model.Quote, user model.UserContext) (*model.ComplexitySurveyContext, error) {
	if analysis == nil {
		return nil, nil
	}
	if user.UserID == "" && quote != nil {
		user.UserID = quote.UserID
	}
	if user.UserID == "" {
		return nil, nil
	}

	if t.cooldown > 0 {
		last, err := t.history.LastShownAt(ctx, user.UserID)
		if err != nil {
			return nil, fmt.Errorf("load last survey time: %w", err)
		}
		if !last.IsZero() && t.now().Sub(last) < t.cooldown {
			log.Debug().Str("userId", user.UserID).Time("lastShownAt", last).Msg("Survey cooldown active")
			return nil, nil
		}
	}

	shownIDs, err := t.history.Shown(ctx, user.UserID)
	if err != nil {
		return nil, fmt.Errorf("load survey history: %w", err)
	}
	shown := make(map[string]bool, len(shownIDs))
	for _, id := range shownIDs {
		shown[id] = true
	}

	conds := targeting.DeriveConditions(analysis.Level, analysis.Factors.TotalValue.Value, user, t.rules)
	cand, ok := targeting.Select(t.catalog[analysis.Level], conds, func(id string) bool { return shown[id] })
	if !ok {
		return nil, nil
	}

	return &model.ComplexitySurveyContext{
		Analysis:          analysis,
		Quote:             quote,
		User:              user,
		TriggerConditions: conds,
		RecommendedSurvey: model.RecommendedSurvey{
			SurveyID: cand.SurveyID,
			Priority: targeting.Urgency(analysis.Level, user, t.rules),
			Delay:    cand.Delay,
		},
	}, nil
}

// Trigger records the survey as shown, forwards attributes, emits the decision
// event and displays the survey now or after its delay. Every failure is soft:
// it is logged and reported as false.
func (t *SurveyTargeter) Trigger(ctx context.Context, sc *model.ComplexitySurveyContext) bool {
	if sc == nil || sc.Analysis == nil || sc.RecommendedSurvey.SurveyID == "" || sc.User.UserID == "" {
		return false
	}
	userID, surveyID := sc.User.UserID, sc.RecommendedSurvey.SurveyID
	logger := log.With().Str("userId", userID).Str("surveyId", surveyID).Logger()

	// Marked before display so a slow or failed display is never retried
	if err := t.history.MarkShown(ctx, userID, surveyID, t.now()); err != nil {
		logger.Error().Err(err).Msg("Failed to record survey as shown")
		t.fail(ctx, sc, "history", err)
		return false
	}

	if err := t.delivery.SetAttributes(ctx, userID, surveyAttributes(sc)); err != nil {
		logger.Warn().Err(err).Msg("Failed to set survey attributes")
		t.fail(ctx, sc, "attributes", err)
		return false
	}

	if err := t.sink.Emit(ctx, events.New(model.EventSurveyTriggered, userID, quoteID(sc), triggerProperties(sc))); err != nil {
		logger.Warn().Err(err).Msg("Failed to emit survey event")
	}

	if delay := sc.RecommendedSurvey.Delay; delay > 0 {
		if !t.schedule(sc, delay) {
			logger.Warn().Msg("Targeter stopped, survey not scheduled")
			return false
		}
		logger.Info().Dur("delay", delay).Msg("Survey scheduled")
		t.count(ctx, t.triggered, sc)
		return true
	}

	if err := t.delivery.ShowSurvey(ctx, userID, surveyID); err != nil {
		logger.Warn().Err(err).Msg("Failed to display survey")
		t.fail(ctx, sc, "display", err)
		return false
	}
	logger.Info().Str("level", string(sc.Analysis.Level)).Msg("Survey displayed")
	t.count(ctx, t.triggered, sc)
	return true
}

// TriggerComplexityBasedSurvey determines and triggers in one step.
// It returns false when no survey was selected or triggering failed.
func (t *SurveyTargeter) TriggerComplexityBasedSurvey(ctx context.Context, analysis *model.ComplexityAnalysis, quote *model.Quote, user model.UserContext) bool {
	sc, err := t.DetermineSurvey(ctx, analysis, quote, user)
	if err != nil {
		log.Warn().Err(err).Str("userId", user.UserID).Msg("Failed to determine survey")
		return false
	}
	if sc == nil {
		return false
	}
	return t.Trigger(ctx, sc)
}

// ShownSurveys lists the surveys the user has been shown
func (t *SurveyTargeter) ShownSurveys(ctx context.Context, userID string) ([]string, error) {
	return t.history.Shown(ctx, userID)
}

// ResetUserHistory forgets every survey shown to the user and cancels pending displays
func (t *SurveyTargeter) ResetUserHistory(ctx context.Context, userID string) error {
	t.CancelPending(userID)
	return t.history.Reset(ctx, userID)
}

// CancelPending stops the user's scheduled displays and returns how many it stopped
func (t *SurveyTargeter) CancelPending(userID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelLocked(userID)
}

// Pending returns how many displays are scheduled for the user
func (t *SurveyTargeter) Pending(userID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending[userID])
}

// Stop cancels every scheduled display; later delayed triggers are refused
func (t *SurveyTargeter) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	n := 0
	for userID := range t.pending {
		n += t.cancelLocked(userID)
	}
	if n > 0 {
		log.Info().Int("cancelled", n).Msg("Cancelled pending survey displays")
	}
}

func (t *SurveyTargeter) cancelLocked(userID string) int {
	cancelled := 0
	for _, timer := range t.pending[userID] {
		if timer.Stop() {
			cancelled++
		}
	}
	delete(t.pending, userID)
	return cancelled
}

func (t *SurveyTargeter) schedule(sc *model.ComplexitySurveyContext, delay time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return false
	}

	userID := sc.User.UserID
	id := t.nextID
	t.nextID++
	if t.pending[userID] == nil {
		t.pending[userID] = make(map[uint64]*time.Timer)
	}
	t.pending[userID][id] = time.AfterFunc(delay, func() {
		t.mu.Lock()
		_, live := t.pending[userID][id]
		delete(t.pending[userID], id)
		if len(t.pending[userID]) == 0 {
			delete(t.pending, userID)
		}
		t.mu.Unlock()
		if !live {
			return
		}
		t.displayDelayed(sc)
	})
	return true
}

func (t *SurveyTargeter) displayDelayed(sc *model.ComplexitySurveyContext) {
	ctx, cancel := context.WithTimeout(context.Background(), delayedDisplayTimeout)
	defer cancel()

	if err := t.delivery.ShowSurvey(ctx, sc.User.UserID, sc.RecommendedSurvey.SurveyID); err != nil {
		log.Warn().Err(err).
			Str("userId", sc.User.UserID).
			Str("surveyId", sc.RecommendedSurvey.SurveyID).
			Msg("Failed to display delayed survey")
		t.fail(ctx, sc, "display", err)
		return
	}
	log.Info().Str("userId", sc.User.UserID).Str("surveyId", sc.RecommendedSurvey.SurveyID).Msg("Delayed survey displayed")
}

func (t *SurveyTargeter) fail(ctx context.Context, sc *model.ComplexitySurveyContext, stage string, err error) {
	t.count(ctx, t.failed, sc)
	props := map[string]interface{}{
		"surveyId": sc.RecommendedSurvey.SurveyID,
		"stage":    stage,
		"error":    err.Error(),
	}
	if emitErr := t.sink.Emit(ctx, events.New(model.EventSurveyDisplayFailed, sc.User.UserID, quoteID(sc), props)); emitErr != nil {
		log.Debug().Err(emitErr).Msg("Failed to emit survey failure event")
	}
}

func (t *SurveyTargeter) count(ctx context.Context, counter metric.Int64Counter, sc *model.ComplexitySurveyContext) {
	if counter == nil {
		return
	}
	counter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("level", string(sc.Analysis.Level)),
		attribute.String("survey", sc.RecommendedSurvey.SurveyID),
	))
}

func surveyAttributes(sc *model.ComplexitySurveyContext) map[string]interface{} {
	return map[string]interface{}{
		"complexity_level":   string(sc.Analysis.Level),
		"complexity_score":   sc.Analysis.Score,
		"quote_value":        sc.Analysis.Factors.TotalValue.Value,
		"quote_item_count":   int(sc.Analysis.Factors.ItemCount.Value),
		"subscription_tier":  sc.User.SubscriptionTier,
		"quotes_created":     sc.User.QuotesCreated,
		"time_spent_minutes": sc.User.TimeSpentMinutes,
		"is_first_time_user": sc.User.IsFirstTimeUser,
	}
}

func triggerProperties(sc *model.ComplexitySurveyContext) map[string]interface{} {
	return map[string]interface{}{
		"surveyId":          sc.RecommendedSurvey.SurveyID,
		"priority":          string(sc.RecommendedSurvey.Priority),
		"complexityLevel":   string(sc.Analysis.Level),
		"complexityScore":   sc.Analysis.Score,
		"quoteId":           quoteID(sc),
		"quoteValue":        sc.Analysis.Factors.TotalValue.Value,
		"triggerConditions": sc.TriggerConditions,
		"delayMs":           sc.RecommendedSurvey.Delay.Milliseconds(),
	}
}

func quoteID(sc *model.ComplexitySurveyContext) string {
	if sc.Quote == nil {
		return ""
	}
	return sc.Quote.ID
}
