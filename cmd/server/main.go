// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	_ "optimization-service/docs"
	"optimization-service/internal/config"
	"optimization-service/internal/logger"
	"optimization-service/internal/optimizer"
	"optimization-service/internal/repository/memory"
	"optimization-service/internal/service"
	httptransport "optimization-service/internal/transport/http"
	"optimization-service/internal/worker"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "optimization-service",
		Short:         "HTTP service that runs memory optimization jobs in the background",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
	config.BindFlags(cmd.Flags())
	return cmd
}

func run(ctx context.Context, cfg config.Config) error {
	lg, closer, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	}, os.Stdout)
	if err != nil {
		return err
	}
	defer closer.Close()

	lg.Info().
		Str("addr", cfg.Server.Addr).
		Str("optimizer", cfg.Optimizer.Binary+" "+cfg.Optimizer.Subcommand).
		Dur("optimizer_timeout", cfg.Optimizer.Timeout).
		Int("workers", cfg.Workers.MaxConcurrent).
		Dur("retention_max_age", cfg.Retention.MaxAge).
		Dur("retention_interval", cfg.Retention.Interval).
		Str("redis_addr", redactAddr(cfg.Redis.Addr)).
		Msg("config")

	// Redis (optional)
	var events service.EventPublisher = service.NopEventPublisher{}
	if cfg.Redis.Addr != "" {
		rdb, err := newRedisClient(cfg.Redis.Addr)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		events = service.NewRedisEventPublisher(rdb, cfg.Redis.Channel, cfg.Redis.EventsKey, cfg.Redis.EventsSize)
	}

	// DI
	store := memory.NewJobStore()
	adapter := optimizer.NewCLIAdapter(optimizer.Config{
		Binary:   cfg.Optimizer.Binary,
		BaseArgs: []string{cfg.Optimizer.Subcommand},
		Timeout:  cfg.Optimizer.Timeout,
	}, lg)

	processor := worker.NewProcessor(store, adapter, events, lg)
	pool := worker.NewPool(ctx, processor, cfg.Workers.MaxConcurrent, lg)

	jobSvc := service.NewJobService(store, pool, adapter,
		service.WithEvents(events),
		service.WithLogger(lg.With().Str("component", "service").Logger()),
	)

	if cfg.Retention.Interval > 0 {
		go runSweeper(ctx, jobSvc, cfg.Retention, lg)
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      httptransport.Routes(httptransport.NewHandler(jobSvc), lg),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		lg.Info().Str("addr", srv.Addr).Msg("http server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	lg.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error().Err(err).Msg("http shutdown")
	}

	// ctx is done here, so the pool has stopped taking jobs and running
	// optimizer processes are being killed.
	pool.Wait()
	lg.Info().Int("jobs_held", store.Len()).Msg("server stopped")
	return nil
}

// runSweeper periodically drops jobs older than the retention age.
func runSweeper(ctx context.Context, jobSvc *service.JobService, cfg config.RetentionConfig, lg zerolog.Logger) {
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res := jobSvc.Cleanup(ctx, cfg.MaxAge)
			if res.Deleted > 0 {
				lg.Info().Int("deleted", res.Deleted).Int("remaining", res.Remaining).Msg("swept old jobs")
			}
		}
	}
}

// newRedisClient accepts either host:port or a redis:// URL.
func newRedisClient(addr string) (*redis.Client, error) {
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		opts, err := redis.ParseURL(addr)
		if err != nil {
			return nil, err
		}
		return redis.NewClient(opts), nil
	}
	return redis.NewClient(&redis.Options{Addr: addr}), nil
}

var credentialsRe = regexp.MustCompile(`://([^:/?#]+):([^@/]+)@`)

// redactAddr masks the password of a URL-style address: user:pass@ -> user:****@.
func redactAddr(addr string) string {
	return credentialsRe.ReplaceAllString(addr, `://$1:****@`)
}
