package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/promptparty-backend/internal/config"
	"github.com/DoyleJ11/promptparty-backend/internal/content"
	"github.com/DoyleJ11/promptparty-backend/internal/engine"
	"github.com/DoyleJ11/promptparty-backend/internal/httpapi"
	"github.com/DoyleJ11/promptparty-backend/internal/hub"
	"github.com/DoyleJ11/promptparty-backend/internal/lobby"
	"github.com/DoyleJ11/promptparty-backend/internal/platform/logging"
	platformotel "github.com/DoyleJ11/promptparty-backend/internal/platform/otel"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	shutdownTracing, err := platformotel.Setup(ctx, "promptparty", cfg.OTelEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("tracing shutdown", zap.Error(err))
		}
	}()

	provider, err := buildProvider(ctx, cfg, logger)
	if err != nil {
		return err
	}

	h := hub.NewHub(ctx, hub.Config{
		Provider:     provider,
		Log:          logger,
		Game:         engine.Options{Timings: cfg.Timings()},
		IdleTTL:      cfg.LobbyIdleTTL,
		FetchTimeout: cfg.FetchTimeout,
	})
	h.Listen(func(c lobby.Change) {
		logger.Debug("lobby changed",
			zap.String("lobby", c.LobbyID),
			zap.Int("version", c.Version),
			zap.String("phase", string(c.Phase)),
			zap.Int("round", c.Round))
	})

	// Build the router *with* the hub injected
	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: httpapi.SetupRoutes(h, httpapi.Options{
			Log:            logger,
			PublicBaseURL:  cfg.PublicBaseURL,
			OriginPatterns: cfg.AllowedOrigins,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.Addr), zap.String("content", cfg.ContentSource))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = h.Shutdown(sctx)
		<-h.Done()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

// buildProvider picks the card source. The catalog is always backed by
// generated cards so a database outage degrades instead of failing starts.
func buildProvider(ctx context.Context, cfg config.Config, logger *zap.Logger) (content.Provider, error) {
	generated := content.Generated{BaseURL: cfg.CardImageBaseURL}

	var p content.Provider = generated
	if cfg.ContentSource == config.ContentCatalog {
		catalog, err := content.OpenCatalog(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		mctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := catalog.Migrate(mctx); err != nil {
			logger.Warn("catalog unavailable, serving generated cards until it recovers", zap.Error(err))
		}
		p = content.Fallback{Primary: catalog, Secondary: generated, Log: logger}
	}

	return content.Traced{Next: p, Tracer: otel.Tracer("promptparty/content")}, nil
}
