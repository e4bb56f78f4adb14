package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	_ "github.com/livequestions/ama-api/docs"
	"github.com/livequestions/ama-api/internal/api"
	"github.com/livequestions/ama-api/internal/core/liveview"
	"github.com/livequestions/ama-api/internal/core/ports"
	"github.com/livequestions/ama-api/internal/core/service"
	"github.com/livequestions/ama-api/internal/infrastructure/db/memory"
	mongostore "github.com/livequestions/ama-api/internal/infrastructure/db/mongo"
	redisstore "github.com/livequestions/ama-api/internal/infrastructure/db/redis"
	"github.com/livequestions/ama-api/internal/infrastructure/http/handlers"
	"github.com/livequestions/ama-api/internal/infrastructure/improve"
	"github.com/livequestions/ama-api/internal/infrastructure/queue"
	"github.com/livequestions/ama-api/internal/pkg/config"
	"github.com/livequestions/ama-api/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

// @title                       Live Questions API
// @version                     1.0
// @description                 Ask questions during a live session, upvote them and let the host answer them.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	cfg := config.Load()
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: "ama-api",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks := map[string]handlers.Pinger{}
	var closers []func()
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	// --- Redis (optional) ---
	var rdb *goredis.Client
	if cfg.Redis.Addr != "" {
		client, err := redisstore.Connect(ctx, redisstore.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("redis connection failed")
		}
		rdb = client
		closers = append(closers, func() { _ = rdb.Close() })
		checks["redis"] = handlers.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}

	// --- Question store and change feed ---
	repo, feed := openStore(ctx, cfg, log, checks, &closers)
	if cfg.FeedDriver == config.FeedRedis {
		redisFeed := redisstore.NewFeed(rdb, cfg.Redis.Channel, logger.Component("redis_feed"))
		repo = service.NewPublishingRepository(repo, redisFeed, logger.Component("publisher"))
		feed = redisFeed
	}

	// --- Collaborators ---
	var idem ports.IdempotencyStore
	if rdb != nil {
		idem = redisstore.NewIdempotencyStore(rdb, cfg.Redis.IdempotencyTTL)
	}

	var improver ports.TextImprover = improve.Noop{}
	if cfg.Improver.URL != "" {
		improver = improve.NewClient(improve.Config{
			BaseURL:     cfg.Improver.URL,
			APIKey:      cfg.Improver.APIKey,
			Model:       cfg.Improver.Model,
			Temperature: cfg.Improver.Temperature,
			MaxTokens:   cfg.Improver.MaxTokens,
			Timeout:     cfg.Improver.Timeout,
		})
	} else {
		log.Info().Msg("no improver configured, questions are stored as typed")
	}

	// --- Live view ---
	view := liveview.NewView()
	syncer := liveview.NewSync(repo, feed, view, cfg.RefreshInterval, logger.Component("liveview"))
	if err := syncer.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("initial question load failed")
	}
	defer syncer.Stop()

	coordinator := service.NewCoordinator(repo, improver, idem, view, logger.Component("coordinator"))
	auth := service.NewAuthService(cfg.AdminName, cfg.AdminPasswordHash, cfg.JWTSecret, cfg.TokenTTL)
	if cfg.AdminPasswordHash == "" {
		log.Warn().Msg("ADMIN_PASSWORD_HASH not set, admin login disabled")
	}

	e := api.NewRouter(api.Deps{
		Questions:   coordinator,
		Auth:        auth,
		JWTSecret:   cfg.JWTSecret,
		CORSOrigins: cfg.CORSOrigins,
		Checks:      checks,
		Log:         logger.Component("http"),
	})

	go func() {
		log.Info().Str("port", cfg.Port).Str("store", cfg.StoreDriver).Str("feed", cfg.FeedDriver).Msg("server starting")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// openStore connects the configured question store and returns it with its
// native change feed.
func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger, checks map[string]handlers.Pinger, closers *[]func()) (ports.QuestionRepository, ports.ChangeFeed) {
	if cfg.StoreDriver == config.StoreMongo {
		client, db, err := mongostore.Connect(ctx, mongostore.Config{
			URI:      cfg.Mongo.URI,
			Database: cfg.Mongo.Database,
			AppName:  "ama-api",
		})
		if err != nil {
			log.Fatal().Err(err).Msg("mongo connection failed")
		}
		*closers = append(*closers, func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = client.Disconnect(disconnectCtx)
		})
		checks["mongo"] = handlers.PingFunc(func(ctx context.Context) error { return client.Ping(ctx, readpref.Primary()) })

		questions := mongostore.NewQuestionRepository(db)
		if err := questions.EnsureIndexes(ctx); err != nil {
			log.Fatal().Err(err).Msg("mongo index creation failed")
		}
		return questions, mongostore.NewChangeStream(db, logger.Component("change_stream"))
	}

	questions := memory.NewQuestionRepository()
	if cfg.FeedDriver == config.FeedRedis {
		return questions, nil
	}
	broadcaster := queue.NewBroadcaster(0, logger.Component("broadcaster"))
	*closers = append(*closers, broadcaster.Close)
	return service.NewPublishingRepository(questions, broadcaster, logger.Component("publisher")), broadcaster
}
