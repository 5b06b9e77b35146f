package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"quotepulse/internal/model"
)

// QuoteRepo reads quotes owned by the quoting application
type QuoteRepo interface {
	GetByID(ctx context.Context, id string) (*model.Quote, error)
	Save(ctx context.Context, quote *model.Quote) error
}

type quoteRepo struct {
	collection *mongo.Collection
}

// NewQuoteRepo creates a new quote repository
func NewQuoteRepo(db *mongo.Database) QuoteRepo {
	return &quoteRepo{
		collection: db.Collection("quotes"),
	}
}

func (r *quoteRepo) GetByID(ctx context.Context, id string) (*model.Quote, error) {
	var quote model.Quote
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&quote)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &quote, nil
}

// Save upserts a quote by id
func (r *quoteRepo) Save(ctx context.Context, quote *model.Quote) error {
	now := time.Now()
	if quote.CreatedAt.IsZero() {
		quote.CreatedAt = now
	}
	quote.UpdatedAt = now

	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": quote.ID}, quote, options.Replace().SetUpsert(true))
	return err
}
