package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"contest-grading-service/internal/app"
	"contest-grading-service/internal/config"
	"contest-grading-service/internal/domain"
	"contest-grading-service/internal/infra/memory"
	pgstore "contest-grading-service/internal/infra/postgres"
	rediscache "contest-grading-service/internal/infra/redis"
	transport "contest-grading-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// catalog is what the service needs from a contest cache.
type catalog interface {
	app.ContestWindow
	app.QuestionProvider
}

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the grading server",
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
	loc, err := cfg.Location()
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

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var loader memory.ContestLoader = memory.NewStaticContestLoader(sampleContests())
	var ledger app.Ledger = memory.NewLedger()
	if pool != nil {
		loader = pgstore.NewContestLoader(pool)
		db := openBun(cfg.Postgres.URL)
		defer db.Close()
		ledger = pgstore.NewLedger(db)
	} else {
		log.Printf("postgres not configured: using in-memory contests and results")
	}

	catalogTTL := config.TTLDuration(cfg.Catalog.TTL, 10*time.Minute)
	var contests catalog
	var locker app.Locker
	if redisClient != nil {
		contests = rediscache.NewContestCatalog(redisClient, loader, catalogTTL)
		locker = rediscache.NewLocker(redisClient, config.TTLDuration(cfg.Redis.LockTTL, 30*time.Second))
	} else {
		contests = memory.NewContestCatalog(loader, catalogTTL)
		locker = memory.NewKeyedLocker()
	}

	service := app.NewGradingService(contests, contests, ledger, locker, app.Config{
		Location:    loc,
		LockTimeout: config.TTLDuration(cfg.Grading.LockTimeout, 5*time.Second),
		Guard: app.GuardConfig{
			MaxConsecutiveFailures: cfg.Storage.MaxConsecutiveFailures,
			CoolDown:               config.TTLDuration(cfg.Storage.CoolDown, 10*time.Second),
		},
	})

	// WriteTimeout stays zero: leaderboard streams are long-lived.
	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           transport.NewMux(service),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
	}

	go func() {
		log.Printf("starting grading service on :%s (timezone %s)", finalPort, loc)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleContests lets the service run without Postgres; swap in the
// Postgres loader for real contests.
func sampleContests() map[string]domain.Contest {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 12, 31, 23, 59, 59, 0, time.UTC)
	return map[string]domain.Contest{
		"demo-objective": {
			ID:        "demo-objective",
			Title:     "Arithmetic warm-up",
			Type:      domain.ContestObjective,
			Status:    domain.ContestActive,
			StartTime: start,
			EndTime:   end,
			Questions: []domain.Question{
				{ID: "q1", ContestID: "demo-objective", Type: domain.QuestionObjective, Points: 5, CorrectOption: "B", Order: 1, Prompt: "What is 2 + 2? A) 3 B) 4 C) 5"},
				{ID: "q2", ContestID: "demo-objective", Type: domain.QuestionObjective, Points: 5, CorrectOption: "C", Order: 2, Prompt: "What is 3 x 3? A) 6 B) 8 C) 9"},
			},
		},
		"demo-essay": {
			ID:          "demo-essay",
			Title:       "Write about a place you know",
			Type:        domain.ContestEssay,
			Status:      domain.ContestActive,
			StartTime:   start,
			EndTime:     end,
			TotalPoints: 20,
			Questions: []domain.Question{
				{ID: "essay", ContestID: "demo-essay", Type: domain.QuestionEssay, Points: 20, Order: 1, Prompt: "Describe a place that shaped you."},
			},
		},
	}
}
