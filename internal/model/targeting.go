package model

import "time"

// SurveyPriority is the urgency hint passed to the delivery layer
type SurveyPriority string

const (
	PriorityHigh   SurveyPriority = "high"
	PriorityMedium SurveyPriority = "medium"
	PriorityLow    SurveyPriority = "low"
)

// UserContext is the caller-supplied user/session state used for targeting
type UserContext struct {
	UserID           string            `json:"userId"`
	SessionID        string            `json:"sessionId,omitempty"`
	SubscriptionTier string            `json:"subscriptionTier,omitempty"` // e.g. "free", "pro", "enterprise"
	QuotesCreated    int               `json:"quotesCreated"`
	TimeSpentMinutes float64           `json:"timeSpentMinutes"`
	IsFirstTimeUser  bool              `json:"isFirstTimeUser"`
	RecentComplexity []ComplexityLevel `json:"recentComplexity,omitempty"` // Most recent first
}

// RecommendedSurvey is the single survey chosen for a context
type RecommendedSurvey struct {
	SurveyID string         `json:"surveyId"`
	Priority SurveyPriority `json:"priority"`
	Delay    time.Duration  `json:"delay"`
}

// ComplexitySurveyContext is produced per evaluation and never persisted
type ComplexitySurveyContext struct {
	Analysis          *ComplexityAnalysis `json:"analysis"`
	Quote             *Quote              `json:"quote"`
	User              UserContext         `json:"user"`
	TriggerConditions []string            `json:"triggerConditions"`
	RecommendedSurvey RecommendedSurvey   `json:"recommendedSurvey"`
}
