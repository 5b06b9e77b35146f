package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"quotepulse/internal/config"
	"quotepulse/internal/model"
	"quotepulse/internal/repository"
	"quotepulse/internal/service"
)

// Seeds one quote per complexity tier plus an item library for the configured login user.
func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	defer client.Disconnect(ctx)

	db := client.Database(cfg.Mongo.Database)

	// Owner is the user the configured credentials log in as
	login, err := service.NewAuthService(service.AuthConfig{
		Username:  cfg.Auth.Username,
		Password:  cfg.Auth.Password,
		JWTSecret: cfg.Auth.JWTSecret,
		TokenTTL:  cfg.Auth.TokenTTL,
	}).Login(cfg.Auth.Username, cfg.Auth.Password)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to resolve seed user")
	}
	userID := login.UserID

	library := []model.LibraryItem{
		{ID: "lib_mulch", Name: "Mulch", Unit: "yard", Cost: 45},
		{ID: "lib_sod", Name: "Sod", Unit: "sq ft", Cost: 0.85},
		{ID: "lib_labor", Name: "Labor", Unit: "hour", Cost: 65},
		{ID: "lib_gravel", Name: "Gravel", Unit: "ton", Cost: 38},
	}
	libColl := db.Collection("item_library")
	for _, item := range library {
		item.UserID = userID
		_, err := libColl.ReplaceOne(ctx, bson.M{"_id": item.ID}, item, options.Replace().SetUpsert(true))
		if err != nil {
			log.Fatal().Err(err).Str("item", item.Name).Msg("Failed to seed library item")
		}
	}

	quotes := repository.NewQuoteRepo(db)
	for _, q := range seedQuotes(userID) {
		if err := quotes.Save(ctx, q); err != nil {
			log.Fatal().Err(err).Str("quoteId", q.ID).Msg("Failed to seed quote")
		}
	}

	fmt.Printf("Seeded %d library items and 3 quotes for user '%s'\n", len(library), userID)
}

func seedQuotes(userID string) []*model.Quote {
	simple := &model.Quote{
		ID:     "quote_seed_simple",
		UserID: userID,
		Name:   "Front bed refresh",
		LineItems: []model.LineItem{
			{ID: "1", Name: "Mulch", Unit: "yard", Cost: 45, Quantity: 3},
			{ID: "2", Name: "Labor", Unit: "hour", Cost: 65, Quantity: 2},
		},
	}

	medium := &model.Quote{
		ID:         "quote_seed_medium",
		UserID:     userID,
		Name:       "Backyard sod and edging",
		TaxRate:    8.25,
		MarkupRate: 15,
		Notes:      "Includes removal of existing turf.",
		LineItems: []model.LineItem{
			{ID: "1", Name: "Sod", Unit: "sq ft", Cost: 0.85, Quantity: 1200},
			{ID: "2", Name: "Labor", Unit: "hour", Cost: 65, Quantity: 16},
			{ID: "3", Name: "Steel edging", Unit: "ft", Cost: 4.5, Quantity: 120},
			{ID: "4", Name: "Topsoil", Unit: "yard", Cost: 42, Quantity: 6},
			{ID: "5", Name: "Turf removal", Unit: "sq ft", Cost: 0.6, Quantity: 1200},
			{ID: "6", Name: "Starter fertilizer", Unit: "bag", Cost: 28, Quantity: 4},
		},
	}

	complexQuote := &model.Quote{
		ID:         "quote_seed_complex",
		UserID:     userID,
		Name:       "Full landscape renovation",
		TaxRate:    9.5,
		MarkupRate: 35,
		Notes:      "Phased over six weeks. Client to confirm plant list.",
	}
	units := []string{"sq ft", "hour", "yard", "ton", "each", "ft", "bag"}
	for i := 0; i < 28; i++ {
		complexQuote.LineItems = append(complexQuote.LineItems, model.LineItem{
			ID:       fmt.Sprintf("%d", i+1),
			Name:     fmt.Sprintf("Phase %d item %d", i/7+1, i%7+1),
			Unit:     units[i%len(units)],
			Cost:     float64(5 + i*i*40),
			Quantity: float64(1 + (i%5)*20),
		})
	}

	return []*model.Quote{simple, medium, complexQuote}
}
