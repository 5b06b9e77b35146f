package service

import (
	"context"
	"errors"
)

// SurveyDelivery is the external capability that shows surveys to a user
// (implemented by the survey platform client and the WebSocket hub)
type SurveyDelivery interface {
	SetAttributes(ctx context.Context, userID string, attrs map[string]interface{}) error
	ShowSurvey(ctx context.Context, userID, surveyID string) error
}

// MultiDelivery forwards to every delivery and succeeds if at least one does
type MultiDelivery []SurveyDelivery

func (m MultiDelivery) SetAttributes(ctx context.Context, userID string, attrs map[string]interface{}) error {
	return m.each(func(d SurveyDelivery) error { return d.SetAttributes(ctx, userID, attrs) })
}

func (m MultiDelivery) ShowSurvey(ctx context.Context, userID, surveyID string) error {
	return m.each(func(d SurveyDelivery) error { return d.ShowSurvey(ctx, userID, surveyID) })
}

func (m MultiDelivery) each(fn func(SurveyDelivery) error) error {
	var errs []error
	ok := false
	for _, d := range m {
		if err := fn(d); err != nil {
			errs = append(errs, err)
			continue
		}
		ok = true
	}
	if ok {
		return nil
	}
	if len(errs) == 0 {
		return errors.New("no survey delivery configured")
	}
	return errors.Join(errs...)
}
