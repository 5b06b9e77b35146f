package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"quotepulse/internal/model"
)

// SurveyEventRepo stores survey targeting events. It satisfies events.Sink.
type SurveyEventRepo interface {
	Emit(ctx context.Context, event *model.SurveyEvent) error
	ListByUser(ctx context.Context, userID string, limit int64) ([]*model.SurveyEvent, error)
}

type surveyEventRepo struct {
	collection *mongo.Collection
}

// NewSurveyEventRepo creates a new survey event repository
func NewSurveyEventRepo(db *mongo.Database) SurveyEventRepo {
	return &surveyEventRepo{
		collection: db.Collection("survey_events"),
	}
}

func (r *surveyEventRepo) Emit(ctx context.Context, event *model.SurveyEvent) error {
	if _, err := r.collection.InsertOne(ctx, event); err != nil {
		return fmt.Errorf("insert survey event: %w", err)
	}
	return nil
}

// ListByUser returns a user's events, newest first
func (r *surveyEventRepo) ListByUser(ctx context.Context, userID string, limit int64) ([]*model.SurveyEvent, error) {
	opts := options.Find().SetSort(bson.D{{Key: "occurredAt", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cursor, err := r.collection.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var list []*model.SurveyEvent
	if err := cursor.All(ctx, &list); err != nil {
		return nil, err
	}
	return list, nil
}
