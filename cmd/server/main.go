package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/playcrack/trivia/internal/config"
	"github.com/playcrack/trivia/internal/content"
	"github.com/playcrack/trivia/internal/dbconfig"
	"github.com/playcrack/trivia/internal/game"
	"github.com/playcrack/trivia/internal/gateway"
	"github.com/playcrack/trivia/internal/player"
	"github.com/playcrack/trivia/internal/ranking"
	"github.com/playcrack/trivia/internal/relay"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load(os.Getenv("TRIVIA_CONFIG"))
	if err != nil {
		log.Fatal().Err(err).Msg("load configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()

	// Player directory backend.
	var store player.Store
	switch cfg.Storage {
	case "memory":
		log.Warn().Msg("using in-memory player store; scores will not survive a restart")
		store = player.NewMemoryStore()
	default:
		dbCfg := dbconfig.NewConfigFromEnv()
		pool, err := dbCfg.NewPool(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("connect to database")
		}
		defer pool.Close()
		store = player.NewPostgresStore(pool)

		// Question authoring and settings API rides on the same database.
		repo := content.NewRepository(pool)
		content.NewHandler(repo, repo).RegisterRoutes(mux)

		log.Info().Str("database", dbCfg.Database).Msg("connected to postgres")
	}

	// Optional redis ranking mirror.
	var mirror *ranking.RedisMirror
	if cfg.Redis.Addr != "" {
		rc := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{cfg.Redis.Addr}})
		if err := rc.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("ping redis")
		}
		defer rc.Close()
		mirror = ranking.NewRedisMirror(rc)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("ranking mirror enabled")
	}
	view := ranking.NewView(store, mirror)

	// Wire the hub and coordinator; each needs the other, so the hub's
	// dispatcher is bound through a forwarder set after construction.
	fwd := &forwarder{}
	hub := gateway.NewHub(gateway.DefaultConnectionConfig(), fwd)

	// Optional NATS event relay in front of the hub.
	var bus game.Broadcaster = hub
	if cfg.NATS.URL != "" {
		relayCfg := relay.DefaultJetStreamConfig()
		relayCfg.URL = cfg.NATS.URL
		pub, err := relay.NewPublisher(relayCfg)
		if err != nil {
			log.Fatal().Err(err).Str("url", cfg.NATS.URL).Msg("connect to NATS")
		}
		defer pub.Close()
		bus = relay.NewTee(hub, pub)
		log.Info().Str("url", cfg.NATS.URL).Msg("event relay enabled")
	}

	coordinator := game.NewCoordinator(view, bus, game.Config{
		DefaultTimeLimit: time.Duration(cfg.Game.DefaultTimeLimitSec) * time.Second,
		GraceWindow:      time.Duration(cfg.Game.GraceWindowSec) * time.Second,
		DefaultPoints:    cfg.Game.DefaultPoints,
		RankingSize:      cfg.Game.RankingSize,
	})
	fwd.Dispatcher = coordinator

	go coordinator.Run(ctx)
	go hub.Start(ctx)

	hub.RegisterRoutes(mux)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodHead, http.MethodGet, http.MethodPost},
		AllowedOrigins: allowedOrigins(cfg),
		AllowedHeaders: []string{"*"},
	})

	server := &http.Server{
		Addr:    cfg.Addr,
		Handler: c.Handler(mux),
	}

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
}

func allowedOrigins(cfg config.Config) []string {
	if len(cfg.AllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.AllowedOrigins
}

// forwarder breaks the hub/coordinator construction cycle.
type forwarder struct {
	gateway.Dispatcher
}
