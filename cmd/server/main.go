package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"mystronium-backend-go/internal/api"
	"mystronium-backend-go/internal/config"
	"mystronium-backend-go/internal/core"
	"mystronium-backend-go/internal/db"
	"mystronium-backend-go/internal/middleware"
	"mystronium-backend-go/internal/payment"
	"mystronium-backend-go/pkg/cache"
	"mystronium-backend-go/pkg/messagequeue"
)

func main() {
	appConfig, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("CRITICAL_ERROR: Failed to load application configuration: %v", err)
	}

	zapLogger, err := newLogger(appConfig)
	if err != nil {
		log.Fatalf("CRITICAL_ERROR: Failed to initialize Zap logger: %v", err)
	}
	defer zapLogger.Sync()

	// --- Firebase (Firestore, Auth) ---
	initCtx, cancelInitCtx := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelInitCtx()
	clients, err := db.InitFirestore(initCtx, appConfig, zapLogger)
	if err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to initialize Firestore and Firebase Admin SDK", zap.Error(err))
	}
	defer clients.Close()

	// --- Repositories ---
	userRepo := db.NewFirestoreUserRepository(clients.Firestore)
	billingEventRepo := db.NewFirestoreBillingEventRepository(clients.Firestore)

	// --- Payment provider ---
	stripeProvider, err := payment.NewStripeProvider(appConfig.StripeSecretKey, appConfig.StripeWebhookSecret)
	if err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to initialize Stripe client", zap.Error(err))
	}

	// --- Services ---
	billingOpts := []core.BillingOption{core.WithCreditBonus(appConfig.SubscriptionCreditBonus)}

	if appConfig.RedisEnabled() {
		redisCache, err := cache.NewRedisCache(initCtx, cache.NewRedisCacheConfig{
			Address:  appConfig.RedisAddr,
			Password: appConfig.RedisPassword,
			DB:       appConfig.RedisDB,
		})
		if err != nil {
			zapLogger.Fatal("CRITICAL_ERROR: Failed to connect to Redis", zap.Error(err))
		}
		defer redisCache.Close()
		billingOpts = append(billingOpts, core.WithEventDeduper(core.NewCacheEventDeduper(redisCache, appConfig.EventDedupeTTL)))
		zapLogger.Info("Webhook event dedupe enabled", zap.String("redis_addr", appConfig.RedisAddr), zap.Duration("ttl", appConfig.EventDedupeTTL))
	}

	if appConfig.RabbitMQEnabled() {
		publisher, err := messagequeue.NewRabbitMQService(messagequeue.NewRabbitMQServiceConfig{URL: appConfig.RabbitMQURL})
		if err != nil {
			zapLogger.Fatal("CRITICAL_ERROR: Failed to connect to RabbitMQ", zap.Error(err))
		}
		defer publisher.Close()
		billingOpts = append(billingOpts, core.WithNotifier(core.NewQueueNotifier(publisher, appConfig.BillingEventsQueue)))
		zapLogger.Info("Billing notifications enabled", zap.String("queue", appConfig.BillingEventsQueue))
	}

	auditService := core.NewAuditService(billingEventRepo)
	userService := core.NewUserService(userRepo)
	billingService := core.NewBillingService(stripeProvider, userRepo, auditService, zapLogger.Named("billing"), billingOpts...)

	// --- HTTP ---
	if strings.EqualFold(appConfig.GinMode, "release") {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()
	router.Use(middleware.RequestLogger(zapLogger))
	router.Use(middleware.RecoveryMiddleware(zapLogger))

	authMW := middleware.NewAuthMiddleware(clients.Auth, zapLogger)
	api.SetupRoutes(router, appConfig, zapLogger, authMW, userService, billingService)

	serverAddr := fmt.Sprintf(":%s", appConfig.Port)
	httpServer := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	zapLogger.Info("Starting HTTP server...", zap.String("address", serverAddr), zap.String("ginMode", gin.Mode()))
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	quitChannel := make(chan os.Signal, 1)
	signal.Notify(quitChannel, syscall.SIGINT, syscall.SIGTERM)
	receivedSignal := <-quitChannel
	zapLogger.Info("Shutdown signal received", zap.String("signal", receivedSignal.String()))

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("HTTP server forced to shutdown", zap.Error(err))
	}
	zapLogger.Info("Server exited")
}

// newLogger builds a production JSON logger in release mode and a development
// logger otherwise, at LOG_LEVEL.
func newLogger(appConfig *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(appConfig.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", appConfig.LogLevel, err)
	}
	cfg := zap.NewDevelopmentConfig()
	if strings.EqualFold(appConfig.GinMode, "release") {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	return cfg.Build()
}
