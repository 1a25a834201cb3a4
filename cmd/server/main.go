package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"boardsync/internal/api"
	"boardsync/internal/cleanup"
	"boardsync/internal/config"
	"boardsync/internal/directory"
	"boardsync/internal/registry"
	"boardsync/internal/routers"
	"boardsync/internal/session"
	"boardsync/internal/store"
	mongostore "boardsync/internal/store/mongo"
)

// Seams for tests.
var (
	listenAndServe = func(server *http.Server) error { return server.ListenAndServe() }
	exitFunc       = func(error) { os.Exit(1) }
)

func main() {
	if err := run(context.Background()); err != nil {
		exitFunc(err)
	}
}

func run(ctx context.Context) error {
	cfg := config.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()
	sugar := logger.Sugar()

	// Durable room store. Without MONGO_URI the service still runs, backed
	// by process memory, which is enough for local development.
	var st store.RoomStore = store.NewMemStore()
	if cfg.Mongo.URI != "" {
		client, err := mongostore.NewClient(ctx, cfg.Mongo.URI)
		if err != nil {
			sugar.Errorw("mongo connection failed", "error", err)
			return err
		}
		defer client.Close(context.Background())

		repo, err := mongostore.NewRoomRepo(client, cfg.Mongo.DBName)
		if err != nil {
			sugar.Errorw("room repository init failed", "error", err)
			return err
		}
		st = repo
		sugar.Infow("durable room store ready", "db", cfg.Mongo.DBName)
	} else {
		sugar.Warnw("MONGO_URI not set, using in-memory room store")
	}

	// Room directory in Redis is optional; the service degrades to
	// store-only operation when it is absent.
	var dir *directory.Directory
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			sugar.Warnw("redis unreachable, room directory disabled", "error", err)
		} else {
			dir = directory.New(rdb, cfg.Rooms.TTL)
			sugar.Infow("room directory ready", "addr", cfg.Redis.Addr)
		}
	}

	hub := session.NewHub()
	reg := registry.New()
	handlers := api.NewHandlers(sugar, hub, reg, st, dir, []byte(cfg.Auth.JWTSecret))

	sweeper := cleanup.New(sugar, st, dir, cfg.Rooms.TTL)
	if err := sweeper.Start(cfg.Rooms.SweepSchedule); err != nil {
		sugar.Errorw("cleanup schedule invalid", "schedule", cfg.Rooms.SweepSchedule, "error", err)
		return err
	}
	defer sweeper.Stop()

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Mount("/", routers.New(handlers))

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		shutdownChan := make(chan os.Signal, 1)
		signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)
		<-shutdownChan

		sugar.Infow("board sync service shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			sugar.Errorw("server forced to shutdown", "error", err)
		}
	}()

	sugar.Infow("board sync service starting", "addr", server.Addr)
	if err := listenAndServe(server); err != nil && err != http.ErrServerClosed {
		return err
	}
	sugar.Infow("board sync service exited")
	return nil
}
