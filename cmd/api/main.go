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

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gamescrow/internal/adapter/api"
	"gamescrow/internal/adapter/api/handler"
	apimiddleware "gamescrow/internal/adapter/api/middleware"
	"gamescrow/internal/adapter/api/router"
	"gamescrow/internal/infrastructure/ratelimit"
	"gamescrow/internal/infrastructure/realtime"
	"gamescrow/internal/usecase"
	"gamescrow/pkg/config"
	"gamescrow/pkg/logger"
	"gamescrow/pkg/metrics"
	"gamescrow/pkg/syncutil"
	"gamescrow/pkg/tracing"
)

// Version is set by ldflags.
var Version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Init(cfg.Environment, cfg.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.OTLPEndpoint, Version)
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}

	hub := realtime.NewHub(0)

	deps, err := newDependencies(ctx, cfg, hub)
	if err != nil {
		log.Fatalf("Failed to initialize dependencies: %v", err)
	}
	defer deps.Close()

	if deps.bridge != nil {
		deps.bridge.Attach()
	}

	limiter := ratelimit.NewRateLimiter(map[string]ratelimit.Limit{
		ratelimit.ActionSendMessage: {PerMinute: cfg.ChatRatePerMinute, Burst: cfg.ChatRatePerMinute/3 + 1},
		ratelimit.ActionAPI:         {PerMinute: 60, Burst: 20},
	})
	locks := syncutil.NewKeyLock()

	walletUseCase := usecase.NewWalletUseCase(deps.wallets, deps.tx, cfg.CurrencyScale, usecase.SystemClock)
	orderUseCase := usecase.NewOrderUseCase(
		deps.tx,
		deps.orders,
		deps.idempotency,
		deps.chats,
		walletUseCase,
		deps.catalog,
		hub,
		locks,
		usecase.SystemClock,
		usecase.OrderConfig{
			AcceptWindow: cfg.EscrowAcceptWindow,
			TradeWindow:  cfg.TradeWindow,
		},
	)
	disputeUseCase := usecase.NewDisputeUseCase(orderUseCase)
	chatUseCase := usecase.NewChatUseCase(
		deps.tx,
		deps.orders,
		deps.chats,
		hub,
		deps.attachments,
		limiter,
		locks,
		usecase.SystemClock,
		cfg.AttachmentExpiry,
	)
	sweeper := usecase.NewEscrowSweeper(orderUseCase, cfg.SweepInterval, cfg.TradeTimeoutEscalation)

	handler.Setup(orderUseCase, chatUseCase, walletUseCase, disputeUseCase, hub, cfg.SSEHeartbeat, deps.healthChecks)
	if deps.devTokens != nil {
		handler.SetupDevTokenHandler(deps.devTokens)
	}

	e := newEcho()

	authMiddleware := apimiddleware.NewAuthMiddleware(deps.verifier, cfg.SessionCookieName)
	adminMiddleware := apimiddleware.NewAdminMiddleware()

	router.Setup(e, authMiddleware, adminMiddleware, limiter)
	router.SetupDevRouter(e, cfg.Environment)

	g, gctx := errgroup.WithContext(ctx)
	limiter.StartCleanupRoutine(gctx, 10*time.Minute)

	g.Go(func() error {
		logger.Info("Starting server on port %s (storage=%s, auth=%s, catalog=%s)",
			cfg.ServerPort, cfg.StorageDriver, cfg.AuthProvider, cfg.CatalogProvider)
		if err := e.Start(":" + cfg.ServerPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return sweeper.Run(gctx)
	})

	if deps.bridge != nil {
		g.Go(func() error {
			return deps.bridge.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err := e.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown failed: %v", err)
		}
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Error("Tracing shutdown failed: %v", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Server stopped with error: %v", err)
		os.Exit(1)
	}
	logger.Info("Server stopped")
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = api.NewValidator()

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORS())
	e.Use(metrics.Middleware())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURIPath:   true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.L().Info("request",
				zap.String("method", v.Method),
				zap.String("path", v.URIPath),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("request_id", v.RequestID),
			)
			return nil
		},
	}))

	return e
}
