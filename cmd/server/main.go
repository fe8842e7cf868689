package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"secretpass/config"
	"secretpass/internal/api"
	"secretpass/internal/crypto"
	"secretpass/internal/logger"
	"secretpass/internal/secrets"
	"secretpass/internal/store"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:          "secretpass",
		Short:        "Share a secret through a link that can be opened exactly once",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			return run(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer log.Sync()

	st, err := initStore(cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	svc := secrets.NewService(st, log)
	router := api.SetupRouter(svc, cfg, log)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("server starting",
			zap.String("addr", cfg.Addr()),
			zap.String("base_url", cfg.Server.BaseURL),
			zap.String("store", cfg.Store.Type),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down", zap.Duration("timeout", cfg.Server.ShutdownTimeout))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped with error", zap.Error(err))
		return err
	}
	log.Info("server stopped")
	return nil
}

func initStore(cfg *config.Config, log *zap.Logger) (store.Store, error) {
	ids, err := crypto.NewIDGenerator(cfg.Secrets.IDFormat)
	if err != nil {
		return nil, err
	}
	policy := store.Policy{
		DefaultTTL: cfg.Secrets.DefaultTTL,
		MaxTTL:     cfg.Secrets.MaxTTL,
	}

	switch cfg.Store.Type {
	case "redis":
		st, err := store.NewRedisStore(&redis.Options{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		},
			store.WithRedisPolicy(policy),
			store.WithRedisIDGenerator(ids),
			store.WithRedisLogger(log),
		)
		if err != nil {
			return nil, fmt.Errorf("redis connection failed: %w", err)
		}
		return st, nil
	default:
		return store.NewMemoryStore(
			store.WithShards(cfg.Store.Shards),
			store.WithSweepInterval(cfg.Store.SweepInterval),
			store.WithPolicy(policy),
			store.WithIDGenerator(ids),
			store.WithLogger(log),
		), nil
	}
}
