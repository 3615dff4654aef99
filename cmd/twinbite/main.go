// Package main запускает HTTP-сервер сервиса приёма заказов.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Six9one/twinbite-order-sub002/internal/config"
	"github.com/Six9one/twinbite-order-sub002/internal/handler"
	"github.com/Six9one/twinbite-order-sub002/internal/loyalty"
	"github.com/Six9one/twinbite-order-sub002/internal/middleware"
	"github.com/Six9one/twinbite-order-sub002/internal/notifier"
	"github.com/Six9one/twinbite-order-sub002/internal/pricing"
	"github.com/Six9one/twinbite-order-sub002/internal/repository"
	"github.com/Six9one/twinbite-order-sub002/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	// .env не обязателен: в продакшене переменные приходят из окружения.
	_ = godotenv.Load()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}
	defer repo.Close()

	var notifierClient service.Notifier
	if cfg.NotifierAddress != "" {
		notifierClient = notifier.NewClient(cfg.NotifierAddress)
	}

	loyaltyCfg := loyalty.DefaultConfig()
	if cfg.StampsPerFreeItem > 0 {
		loyaltyCfg.StampsPerFreeItem = cfg.StampsPerFreeItem
	}
	if len(cfg.LoyaltyCategories) > 0 {
		loyaltyCfg.QualifyingCategories = cfg.LoyaltyCategories
	}

	svc := service.NewService(repo, notifierClient, logger, service.Options{
		Prices:      pricing.DefaultPriceTable(),
		Loyalty:     loyaltyCfg,
		OrderPrefix: cfg.OrderPrefix,
	})
	defer svc.Close()

	authSecret := cfg.AuthSecret
	if authSecret == "" {
		authSecret = "twinbite-secret"
	}

	authMiddleware := middleware.NewAuthMiddleware(authSecret)
	h := handler.NewHandler(svc, logger, authMiddleware)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Запуск фонового процесса отправки уведомлений
	g.Go(func() error {
		svc.StartNotificationUpdates(ctx)
		return nil
	})

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting twinbite server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
