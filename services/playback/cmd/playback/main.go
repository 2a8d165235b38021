package main

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/example/lesson-platform/internal/platform/auth"
	"github.com/example/lesson-platform/internal/platform/config"
	"github.com/example/lesson-platform/internal/platform/events"
	"github.com/example/lesson-platform/internal/platform/httpserver"
	"github.com/example/lesson-platform/internal/platform/logging"
	"github.com/example/lesson-platform/internal/platform/natsconn"
	"github.com/example/lesson-platform/internal/platform/run"
	"github.com/example/lesson-platform/services/playback/internal/clients"
	svcconfig "github.com/example/lesson-platform/services/playback/internal/config"
	"github.com/example/lesson-platform/services/playback/internal/credentials"
	"github.com/example/lesson-platform/services/playback/internal/handlers"
	"github.com/example/lesson-platform/services/playback/internal/progress"
	"github.com/example/lesson-platform/services/playback/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.LogLevel, cfg.ServiceName)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	svcCfg, err := svcconfig.Load()
	if err != nil {
		log.Error("config", zap.Error(err))
		run.Exit(1)
	}

	// Playback events are best-effort; the service runs without NATS.
	publisher := events.New(nil, log)
	if url := strings.TrimSpace(os.Getenv("NATS_URL")); url != "" {
		nc, err := natsconn.Connect(natsconn.Options{URL: url, ClientName: cfg.ServiceName})
		if err != nil {
			log.Warn("nats unavailable, events disabled", zap.Error(err))
		} else {
			defer nc.Close()
			if js, err := nc.JetStream(); err == nil {
				publisher = events.New(js, log)
			} else {
				log.Warn("jetstream unavailable, events disabled", zap.Error(err))
			}
		}
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     "catalog",
		Interval: time.Minute,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info("circuit-breaker state change", zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})

	catalogClient := clients.NewCatalogClient(svcCfg.CatalogBaseURL, clients.CatalogConfig{}, log, clients.WithCircuitBreaker(cb))
	credentialClient := clients.NewCredentialClient(svcCfg.CredentialBaseURL, log)
	progressClient := clients.NewProgressClient(svcCfg.ProgressBaseURL, log)

	var sinks []credentials.Sink
	if svcCfg.RedisDSN != "" {
		sinks = append(sinks, credentials.NewRedisSink(svcCfg.RedisDSN))
	}
	manager := credentials.NewManager(credentialClient, sinks, log)

	store := progress.NewStore()
	syncer := progress.NewSyncer(store, progressClient, publisher, log, progress.Options{Window: svcCfg.ThrottleWindow})

	registry := session.NewRegistry(func(userID string) *session.Controller {
		return session.NewController(userID, catalogClient, manager, syncer, svcCfg.PlaybackBaseURL, log)
	})

	verifier := auth.JWTVerifier{Secret: svcCfg.JWTSecret}

	r := chi.NewRouter()
	httpserver.SetupRouter(r)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser(verifier))
		r.Get("/v1/playback/series/{series_id}", handlers.Series(registry, log))
		r.Post("/v1/playback/select/{item_id}", handlers.Select(registry, manager, publisher, log))
		r.Post("/v1/playback/progress", handlers.Sample(syncer))
		r.Get("/v1/playback/continue-watching", handlers.ContinueWatching(registry, store))
		r.Get("/v1/playback/navigation", handlers.Navigation(registry))
		r.Delete("/v1/playback/session", handlers.EndSession(registry, syncer))

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAdmin)
			r.Delete("/v1/playback/users/{user_id}/session", handlers.ForceEndSession(registry, syncer, log))
		})
	})

	srv := httpserver.New(httpserver.Options{Addr: cfg.HTTP.Addr, ServiceName: cfg.ServiceName, Logger: log, Router: r})

	runner := run.New(log)
	code := runner.WithSignals(func(ctx context.Context) error {
		go func() {
			<-ctx.Done()
			runner.Graceful(srv.Shutdown, cfg.HTTP.ShutdownTimeout)
		}()
		return srv.Start(log)
	})

	log.Info("exit", zap.Int("code", code))
	run.Exit(code)
}
