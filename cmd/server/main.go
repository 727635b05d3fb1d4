package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/tgaller/triviador-server/internal/auth"
	"github.com/tgaller/triviador-server/internal/config"
	"github.com/tgaller/triviador-server/internal/engine"
	"github.com/tgaller/triviador-server/internal/handler"
	"github.com/tgaller/triviador-server/internal/logger"
	"github.com/tgaller/triviador-server/internal/middleware"
	"github.com/tgaller/triviador-server/internal/question"
	"github.com/tgaller/triviador-server/internal/repository/postgres"
	redisrepo "github.com/tgaller/triviador-server/internal/repository/redis"
	"github.com/tgaller/triviador-server/internal/service"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file")
	flag.Parse()

	logger.Init()

	var cfg *config.Config
	if *configPath != "" {
		var err error
		cfg, err = config.LoadFile(*configPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", *configPath).Msg("Config file failed to load")
		}
	} else {
		cfg = config.Load()
	}
	log.Info().Str("env", cfg.Env).Str("port", cfg.Port).Msg("Config loaded")

	// Database
	db, err := postgres.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Database connection failed")
	}
	defer db.Close()

	// Redis
	redisClient, err := redisrepo.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Redis connection failed")
	}
	defer redisClient.Close()

	// Repos
	questionRepo := postgres.NewQuestionRepo(db)
	matchRepo := postgres.NewMatchRepo(db)

	// Auth
	jwtMgr := auth.NewJWTManager(cfg.JWTSecret)

	// WebSocket hub
	wsHub := handler.NewHub()

	// Services
	questions := question.NewService(questionRepo, redisClient)
	lobby := service.NewLobby(service.Options{
		Config: service.Config{
			Engine: engine.Config{
				SelectTimeout:  cfg.SelectTimeout,
				AnswerTimeout:  cfg.AnswerTimeout,
				TipTimeout:     cfg.TipTimeout,
				BarrierTimeout: cfg.BarrierTimeout,
			},
			MatchWait:   cfg.MatchWait,
			BotThinkMin: cfg.BotThinkMin,
			BotThinkMax: cfg.BotThinkMax,
		},
		JWT:         jwtMgr,
		Questions:   questions,
		Archive:     matchRepo,
		Projection:  redisClient,
		Broadcaster: wsHub,
	})

	// Handlers
	gameHandler := handler.NewGameHandler(lobby, cfg.PollWindow)
	observeHandler := handler.NewObserveHandler(lobby, matchRepo, redisClient)
	wsHandler := handler.NewWSHandler(wsHub, jwtMgr)

	// Router
	mux := http.NewServeMux()

	// Health
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Metrics
	mux.Handle("GET /metrics", promhttp.Handler())

	// Game channels (Command and Listen share the endpoint)
	mux.HandleFunc("POST /game", gameHandler.ServeGame)

	// Observer API
	api := http.NewServeMux()
	api.HandleFunc("GET /matches", observeHandler.ListMatches)
	api.HandleFunc("GET /matches/{id}", observeHandler.GetMatch)
	mux.Handle("/api/", http.StripPrefix("/api", middleware.JSON(api)))

	// WebSocket (auth via query param, not middleware)
	mux.HandleFunc("GET /ws/observe", wsHandler.ServeWS)

	// Apply global middleware
	root := middleware.Chain(mux, middleware.Logger, middleware.CORS(cfg.AllowedOrigins))

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     root,
		ReadTimeout: 15 * time.Second,
		// WriteTimeout must outlast a held Listen poll.
		WriteTimeout: cfg.PollWindow + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	// Closing the lobby releases every held Listen, so the HTTP drain
	// below can finish inside its deadline.
	if err := lobby.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Lobby shutdown error")
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server shutdown error")
	}
	log.Info().Msg("Server stopped")
}
