package model

import "time"

// Event names emitted by the targeting path
const (
	EventSurveyTriggered     = "complexity_survey_triggered"
	EventSurveyDisplayFailed = "complexity_survey_display_failed"
)

// SurveyEvent is a structured telemetry record with a flat property map
type SurveyEvent struct {
	ID         string                 `json:"id" bson:"_id"`
	Name       string                 `json:"name" bson:"name"`
	UserID     string                 `json:"userId" bson:"userId"`
	QuoteID    string                 `json:"quoteId,omitempty" bson:"quoteId,omitempty"`
	Properties map[string]interface{} `json:"properties" bson:"properties"`
	OccurredAt time.Time              `json:"occurredAt" bson:"occurredAt"`
}
