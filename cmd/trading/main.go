// Command trading is the CLI entrypoint for the perpetual-futures trading
// core: `trading start` runs the scheduler until an interrupt signal, `db
// init` applies the schema and seeds the initial account row. Grounded on
// the teacher's root main.go signal.Notify/graceful-shutdown shape, recast
// onto a spf13/cobra command tree per raykavin-backnrun/cmd/backnrun's
// rootCmd/AddCommand/Execute pattern (pack entry) instead of the teacher's
// flat flag-parsed main.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/kvantix/perpfutures-core/config"
	"github.com/kvantix/perpfutures-core/internal/exchange"
	"github.com/kvantix/perpfutures-core/internal/exchange/inverse"
	"github.com/kvantix/perpfutures-core/internal/exchange/linear"
	"github.com/kvantix/perpfutures-core/internal/exchange/mock"
	"github.com/kvantix/perpfutures-core/internal/lock"
	"github.com/kvantix/perpfutures-core/internal/logging"
	"github.com/kvantix/perpfutures-core/internal/scheduler"
	"github.com/kvantix/perpfutures-core/internal/store"
)

const exitOK, exitConfigError, exitRuntimeError = 0, 1, 2

func main() {
	root := &cobra.Command{
		Use:     "trading",
		Short:   "Autonomous perpetual-futures trading core",
		Version: "1.0.0",
	}
	root.AddCommand(startCmd(), dbCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitConfigError)
	}
}

func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the trading scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart()
		},
	}
}

func dbCmd() *cobra.Command {
	db := &cobra.Command{Use: "db", Short: "Database maintenance"}
	db.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Apply schema and seed the initial account row",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInit()
		},
	})
	return db
}

func runStart() error {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(exitConfigError)
	}

	log := logging.New(cfg.ToLoggingConfig())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		log.Error(err, "database connection failed")
		os.Exit(exitConfigError)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.Error(err, "database ping failed")
		os.Exit(exitConfigError)
	}

	redisClient := redis.NewClient(cfg.RedisOptions())
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error(err, "redis ping failed")
		os.Exit(exitConfigError)
	}

	st := store.New(pool, redisClient)
	locker := lock.New(pool)
	adapter := buildAdapter(cfg, log)

	holder := defaultHolder()
	sched := scheduler.New(cfg.ToSchedulerConfig(holder), adapter, st, locker, log.With("scheduler"))

	startMetricsServer(log)

	log.Info("trading core starting")
	if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error(err, "scheduler exited with error")
		os.Exit(exitRuntimeError)
	}
	log.Info("trading core stopped")
	os.Exit(exitOK)
	return nil
}

func runDBInit() error {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(exitConfigError)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "database connection failed:", err)
		os.Exit(exitConfigError)
	}
	defer pool.Close()

	redisClient := redis.NewClient(cfg.RedisOptions())
	defer redisClient.Close()

	st := store.New(pool, redisClient)
	if err := st.Migrate(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "schema migration failed:", err)
		os.Exit(exitConfigError)
	}
	if err := st.SeedInitialAccount(ctx, cfg.Scheduler.InitialBalance, time.Now()); err != nil {
		fmt.Fprintln(os.Stderr, "initial account seed failed:", err)
		os.Exit(exitConfigError)
	}

	fmt.Println("database initialized")
	os.Exit(exitOK)
	return nil
}

func buildAdapter(cfg *config.Config, log *logging.Logger) exchange.Adapter {
	if cfg.Exchange.MockMode {
		return mock.New(cfg.ExchangeKind())
	}
	creds := cfg.Credentials()
	if cfg.Exchange.Name == "inverse" {
		return inverse.New(creds, log.With("exchange.inverse"))
	}
	return linear.New(creds, log.With("exchange.linear"))
}

func startMetricsServer(log *logging.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: ":9090", Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(err, "metrics server stopped")
		}
	}()
}

func defaultHolder() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown-host"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
