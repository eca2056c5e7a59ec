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

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"interiorDesignAi/internal/cache"
	"interiorDesignAi/internal/config"
	"interiorDesignAi/internal/design"
	"interiorDesignAi/internal/events"
	"interiorDesignAi/internal/logging"
	"interiorDesignAi/internal/media"
	"interiorDesignAi/internal/server"
	"interiorDesignAi/internal/session"
	"interiorDesignAi/internal/storage"
	"interiorDesignAi/internal/vision"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath, envFile string

	cmd := &cobra.Command{
		Use:   "interior-design-api",
		Short: "Serve the AI interior design API",
		Long: `interior-design-api runs the HTTP API behind the redesign workflow:
room photo upload, dimension estimate, design analysis and the three
visualizations.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath, envFile)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.CompletionOptions.DisableDefaultCmd = true
	cmd.Flags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to a .env file (defaults to ./.env when present)")
	return cmd
}

func serve(ctx context.Context, cfg config.Config) error {
	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	store, err := storage.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer store.Close()
	if cfg.DatabaseURL == "" {
		logger.Info("report store: in memory (DATABASE_URL not set)")
	}

	renders, err := newRenderStore(ctx, cfg.Media, logger)
	if err != nil {
		return err
	}

	estimates, closeCache, err := newCache(ctx, cfg.RedisURL, cfg.Session.EstimateCacheTTL(), logger)
	if err != nil {
		return err
	}
	defer closeCache()

	creds := vision.EnvCredentials{Vars: cfg.AI.CredentialEnv}
	if _, err := creds.APIKey(); errors.Is(err, design.ErrConfig) {
		logger.Warn("AI credential missing; AI calls will fail until it is set", zap.Error(err))
	}

	gemini := vision.NewGeminiGateway(creds, vision.GeminiConfig{
		TextModel:       cfg.AI.TextModel,
		EditModel:       cfg.AI.EditModel,
		ViewModel:       cfg.AI.ViewModel,
		ViewAspectRatio: cfg.AI.ViewAspectRatio,
		Timeout:         cfg.AI.Timeout(),
		ContractMode:    design.ParseContractMode(cfg.AI.ContractMode),
		BaseURL:         cfg.AI.BaseURL,
	}, logger)

	imagenCfg := vision.VertexImagenConfig{
		ProjectID:          cfg.Vertex.ProjectID,
		Location:           cfg.Vertex.Location,
		Model:              cfg.Vertex.Model,
		AspectRatio:        cfg.AI.ViewAspectRatio,
		APIKey:             cfg.Vertex.APIKey,
		ServiceAccount:     cfg.Vertex.ServiceAccount,
		ServiceAccountJSON: cfg.Vertex.ServiceAccountJSON,
	}
	if imagenCfg.Enabled() {
		gemini.WithViewRenderer(vision.NewVertexImagen(imagenCfg))
		logger.Info("view renderer: Vertex AI Imagen", zap.String("project", cfg.Vertex.ProjectID))
	}

	gateway := vision.NewCachedGateway(gemini, creds, estimates, cfg.Session.EstimateCacheTTL(), logger)

	broker := events.NewBroker()
	manager := session.NewManager(session.Options{
		Gateway:               gateway,
		Archive:               session.NewReportArchive(store, renders, logger),
		Publisher:             broker,
		Logger:                logger,
		SurfaceEstimateErrors: cfg.Session.SurfaceEstimateErrors,
		TTL:                   cfg.Session.TTL(),
	})
	defer manager.Close()
	go manager.Run(ctx)

	srv := server.New(cfg.Port, session.Handler{
		Manager:        manager,
		Broker:         broker,
		Reports:        store,
		SampleImageURL: cfg.Session.SampleImageURL,
	}, logger)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", zap.Error(err))
		_ = srv.Close()
	}
	return nil
}

func newRenderStore(ctx context.Context, cfg config.MediaConfig, logger *zap.Logger) (media.Store, error) {
	if cfg.Bucket != "" && cfg.Region != "" {
		store, err := media.NewS3Store(ctx, media.Config{
			Bucket:          cfg.Bucket,
			Region:          cfg.Region,
			Endpoint:        cfg.Endpoint,
			PublicURL:       cfg.PublicURL,
			KeyPrefix:       cfg.KeyPrefix,
			ForcePathStyle:  cfg.ForcePathStyle,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
		})
		if err != nil {
			return nil, fmt.Errorf("init media store: %w", err)
		}
		logger.Info("render store: S3", zap.String("bucket", cfg.Bucket))
		return store, nil
	}
	if cfg.LocalDir != "" {
		store, err := media.NewLocalStore(cfg.LocalDir)
		if err != nil {
			return nil, fmt.Errorf("init local media storage: %w", err)
		}
		logger.Info("render store: local directory", zap.String("dir", store.BaseDir))
		return store, nil
	}
	logger.Info("render store: disabled (S3 and local dir not configured)")
	return media.Disabled(), nil
}

func newCache(ctx context.Context, redisURL string, ttl time.Duration, logger *zap.Logger) (cache.Cache, func(), error) {
	if ttl <= 0 {
		logger.Info("estimate cache: off (ESTIMATE_CACHE_TTL_MINUTES not set)")
		return nil, func() {}, nil
	}
	if redisURL == "" {
		return cache.NewMemory(), func() {}, nil
	}
	rc, err := cache.NewRedis(ctx, redisURL, "")
	if err != nil {
		return nil, nil, fmt.Errorf("init redis cache: %w", err)
	}
	logger.Info("estimate cache: redis")
	return rc, func() { _ = rc.Close() }, nil
}
