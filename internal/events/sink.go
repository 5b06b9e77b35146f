// Package events records survey targeting decisions to one or more sinks.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"quotepulse/internal/model"
)

// Sink accepts named events with a flat property map
type Sink interface {
	Emit(ctx context.Context, event *model.SurveyEvent) error
}

// New builds an event with a fresh id and timestamp
func New(name, userID, quoteID string, props map[string]interface{}) *model.SurveyEvent {
	if props == nil {
		props = map[string]interface{}{}
	}
	return &model.SurveyEvent{
		ID:         uuid.New().String(),
		Name:       name,
		UserID:     userID,
		QuoteID:    quoteID,
		Properties: props,
		OccurredAt: time.Now().UTC(),
	}
}

// LogSink writes events to the structured log
type LogSink struct{}

// NewLogSink creates a sink backed by the global zerolog logger
func NewLogSink() *LogSink {
	return &LogSink{}
}

func (LogSink) Emit(_ context.Context, event *model.SurveyEvent) error {
	log.Info().
		Str("event", event.Name).
		Str("eventId", event.ID).
		Str("userId", event.UserID).
		Str("quoteId", event.QuoteID).
		Fields(event.Properties).
		Msg("Survey event")
	return nil
}

// MultiSink fans an event out to every sink; one failing sink does not stop the rest
type MultiSink []Sink

func (m MultiSink) Emit(ctx context.Context, event *model.SurveyEvent) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Emit(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every event
var Discard Sink = discard{}

type discard struct{}

func (discard) Emit(context.Context, *model.SurveyEvent) error { return nil }
