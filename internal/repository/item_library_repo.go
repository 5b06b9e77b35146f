package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"quotepulse/internal/model"
)

// ItemLibraryRepo reads a user's saved reusable items
type ItemLibraryRepo interface {
	ListByUser(ctx context.Context, userID string) ([]model.LibraryItem, error)
}

type itemLibraryRepo struct {
	collection *mongo.Collection
}

// NewItemLibraryRepo creates a new item library repository
func NewItemLibraryRepo(db *mongo.Database) ItemLibraryRepo {
	return &itemLibraryRepo{
		collection: db.Collection("item_library"),
	}
}

func (r *itemLibraryRepo) ListByUser(ctx context.Context, userID string) ([]model.LibraryItem, error) {
	opts := options.Find().SetProjection(bson.M{"name": 1, "unit": 1, "cost": 1, "userId": 1})
	cursor, err := r.collection.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := []model.LibraryItem{}
	if err := cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}
