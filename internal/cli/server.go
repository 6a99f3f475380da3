package cli

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"quiz-maker-service/internal/app"
	"quiz-maker-service/internal/config"
	"quiz-maker-service/internal/infra/memory"
	pgstore "quiz-maker-service/internal/infra/postgres"
	redisstore "quiz-maker-service/internal/infra/redis"
	"quiz-maker-service/internal/opentdb"
	transport "quiz-maker-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz maker server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	client := opentdb.NewClient(&http.Client{
		Timeout: config.TTLDuration(cfg.Trivia.Timeout, 10*time.Second),
	}, cfg.Trivia.BaseURL)

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 30*time.Minute)
	categoriesTTL := config.TTLDuration(cfg.Categories.TTL, time.Hour)

	var gateway app.Gateway
	var store app.SessionRepository
	if redisClient != nil {
		gateway = redisstore.NewCategoryCache(redisClient, client, categoriesTTL)
		store = redisstore.NewSessionStore(redisClient, redisTTL)
	} else {
		gateway = memory.NewCategoryCache(client, categoriesTTL)
		store = memory.NewSessionStore()
	}

	var results app.ResultStore = memory.NewResultStore(100)
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		results = pgstore.NewResultStore(pool)
	}

	service := app.NewQuizService(store, gateway, results,
		app.WithQuestionCount(cfg.Trivia.QuestionCount),
		app.WithReplaceAttempts(cfg.Trivia.ReplaceAttempts),
	)
	wsHandler := transport.NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("starting quiz maker on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
