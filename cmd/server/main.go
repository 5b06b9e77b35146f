package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"quotepulse/internal/cache"
	"quotepulse/internal/complexity"
	"quotepulse/internal/config"
	"quotepulse/internal/events"
	"quotepulse/internal/repository"
	"quotepulse/internal/service"
	"quotepulse/internal/telemetry"
	"quotepulse/internal/transport/rest"
	"quotepulse/internal/transport/ws"
)

// Version is set at build time
var Version = "dev"

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	setupLogging(cfg.Log)
	log.Info().Str("version", Version).Msg("quotepulse starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Metrics
	metrics, err := telemetry.Setup(ctx, telemetry.Config{
		Endpoint:       cfg.Telemetry.OTLPEndpoint,
		Insecure:       cfg.Telemetry.Insecure,
		Interval:       cfg.Telemetry.Interval,
		ServiceVersion: Version,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up metrics")
	}
	if metrics == nil {
		log.Info().Msg("OTLP endpoint not set, metrics disabled")
	}

	// MongoDB connection
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	defer mongoClient.Disconnect(context.Background())

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mongoClient.Ping(pingCtx, nil); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping MongoDB")
	}
	log.Info().Str("database", cfg.Mongo.Database).Msg("Connected to MongoDB")

	db := mongoClient.Database(cfg.Mongo.Database)

	// Initialize repositories
	quoteRepo := repository.NewQuoteRepo(db)
	libraryRepo := repository.NewItemLibraryRepo(db)
	eventRepo := repository.NewSurveyEventRepo(db)

	// Survey history: Redis when configured, otherwise process memory
	history := cache.NewMemorySurveyHistory()
	if cfg.Redis.URI != "" {
		redisOpts, err := redis.ParseURL(cfg.Redis.URI)
		if err != nil {
			// Bare host:port
			redisOpts = &redis.Options{Addr: cfg.Redis.URI}
		}
		rdb := redis.NewClient(redisOpts)
		defer rdb.Close()

		if _, err := rdb.Ping(ctx).Result(); err != nil {
			log.Fatal().Err(err).Msg("Failed to ping Redis")
		}
		history = cache.NewRedisSurveyHistory(rdb, cfg.Redis.HistoryTTL)
		log.Info().Msg("Connected to Redis, survey history is durable")
	} else {
		log.Warn().Msg("REDIS_URI not set, survey history will not survive restarts")
	}

	// Event sinks
	sinks := events.MultiSink{events.NewLogSink(), eventRepo}
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaSink := events.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer kafkaSink.Close()
		sinks = append(sinks, kafkaSink)
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("Kafka event sink enabled")
	}

	// Survey delivery: WebSocket push plus the hosted platform when configured
	wsHub := ws.NewHub()
	defer wsHub.Close()
	delivery := service.MultiDelivery{wsHub}
	platform := service.NewSurveyPlatformClient(cfg.SurveyPlatform.URL, cfg.SurveyPlatform.Token, cfg.SurveyPlatform.Timeout)
	if platform.IsConfigured() {
		delivery = append(delivery, platform)
		log.Info().Str("url", cfg.SurveyPlatform.URL).Msg("Survey platform delivery enabled")
	}

	// Initialize services
	analysisCache := cache.NewAnalysisCache(cache.AnalysisCacheConfig{
		TTL:        cfg.Cache.TTL,
		MaxEntries: cfg.Cache.MaxEntries,
		Version:    cfg.Cache.Version,
	})
	go analysisCache.RunJanitor(ctx, cfg.Cache.JanitorInterval)

	authSvc := service.NewAuthService(service.AuthConfig{
		Username:  cfg.Auth.Username,
		Password:  cfg.Auth.Password,
		JWTSecret: cfg.Auth.JWTSecret,
		TokenTTL:  cfg.Auth.TokenTTL,
	})
	complexitySvc := service.NewComplexityService(complexity.NewScorer(cfg.Complexity), analysisCache, quoteRepo, libraryRepo)
	targeter := service.NewSurveyTargeter(history, delivery, sinks, service.TargeterConfig{
		Catalog:  cfg.Targeting.Catalog,
		Rules:    &cfg.Targeting.Rules,
		Cooldown: cfg.Targeting.Cooldown,
	})
	defer targeter.Stop()

	// Create router with container
	router := rest.NewRouter(&rest.Container{
		AuthService:       authSvc,
		ComplexityService: complexitySvc,
		SurveyTargeter:    targeter,
		SurveyEvents:      eventRepo,
		WSHub:             wsHub,
		CORS:              rest.CORSConfig{AllowedOrigins: cfg.Server.CORSOrigins},
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("ListenAndServe")
		}
	}()

	// Wait for interrupt
	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	if err := metrics.Close(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Failed to flush metrics")
	}

	log.Info().Msg("Server exited")
}

func setupLogging(cfg config.LogConfig) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if cfg.Format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}
