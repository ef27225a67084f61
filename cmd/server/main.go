// Server runs the authentication service: token issuance, session lifecycle,
// the HTTP surface, and the background sweeps.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rh-aiservices-bu/litemaas-sub010/internal/audit"
	auditrepo "github.com/rh-aiservices-bu/litemaas-sub010/internal/audit/repository"
	authhandler "github.com/rh-aiservices-bu/litemaas-sub010/internal/auth/handler"
	authservice "github.com/rh-aiservices-bu/litemaas-sub010/internal/auth/service"
	"github.com/rh-aiservices-bu/litemaas-sub010/internal/config"
	"github.com/rh-aiservices-bu/litemaas-sub010/internal/db"
	"github.com/rh-aiservices-bu/litemaas-sub010/internal/events"
	"github.com/rh-aiservices-bu/litemaas-sub010/internal/events/producer"
	healthhandler "github.com/rh-aiservices-bu/litemaas-sub010/internal/health/handler"
	"github.com/rh-aiservices-bu/litemaas-sub010/internal/idp"
	"github.com/rh-aiservices-bu/litemaas-sub010/internal/security"
	"github.com/rh-aiservices-bu/litemaas-sub010/internal/server"
	"github.com/rh-aiservices-bu/litemaas-sub010/internal/server/middleware"
	sessionhandler "github.com/rh-aiservices-bu/litemaas-sub010/internal/session/handler"
	sessionrepo "github.com/rh-aiservices-bu/litemaas-sub010/internal/session/repository"
	sessionservice "github.com/rh-aiservices-bu/litemaas-sub010/internal/session/service"
	"github.com/rh-aiservices-bu/litemaas-sub010/internal/session/store"
	"github.com/rh-aiservices-bu/litemaas-sub010/internal/sweeper"
	tokenrepo "github.com/rh-aiservices-bu/litemaas-sub010/internal/token/repository"
	tokenservice "github.com/rh-aiservices-bu/litemaas-sub010/internal/token/service"
	userrepo "github.com/rh-aiservices-bu/litemaas-sub010/internal/user/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	var logger *zap.Logger
	if cfg.Env == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	sqlDB, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database open failed", zap.Error(err))
	}
	defer sqlDB.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Identity provider.
	var provider idp.Provider
	if cfg.AuthMode == "mock" {
		logger.Warn("using mock identity provider; not for production")
		provider = idp.NewMockProvider()
	} else {
		provider, err = idp.NewOIDCProvider(ctx, cfg.OIDCIssuer, cfg.OIDCClientID,
			cfg.OIDCClientSecret, cfg.OIDCRedirectURL, cfg.ExchangeTimeout(), logger)
		if err != nil {
			logger.Fatal("oidc provider init failed", zap.Error(err))
		}
	}

	// Security event stream; nil emitter disables it.
	var emitter events.Emitter
	kafkaProducer, err := producer.NewKafkaProducer(cfg.KafkaBrokersList(), cfg.SecurityEventsTopic)
	if err != nil {
		logger.Fatal("kafka producer init failed", zap.Error(err))
	}
	if kafkaProducer != nil {
		emitter = kafkaProducer
		defer kafkaProducer.Close()
	}

	// Session cache: Redis when configured, in-memory otherwise.
	var cache store.Store
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Fatal("redis ping failed", zap.Error(err))
		}
		defer client.Close()
		cache = store.NewRedisStore(client)
		logger.Info("session cache: redis", zap.String("addr", cfg.RedisAddr))
	} else {
		cache = store.NewMemoryStore()
		logger.Info("session cache: in-memory (single instance only)")
	}

	// Core services.
	users := userrepo.NewPostgresRepository(sqlDB)
	tokens := tokenrepo.NewPostgresRepository(sqlDB)
	sessions := sessionrepo.NewPostgresRepository(sqlDB)
	auditor := audit.NewLogger(auditrepo.NewPostgresRepository(sqlDB))

	signer := security.NewSigner([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL())
	issuer := tokenservice.NewIssuer(signer, tokens, users, cfg.RefreshTTL(), cfg.Retention(), logger)
	registry := sessionservice.NewRegistry(issuer, sessions, cache, cfg.MaxSessionsPerUser, cfg.RefreshTTL(), emitter, logger)
	authSvc := authservice.NewService(provider, users, registry, auditor, emitter, logger)

	gate := middleware.NewGate(issuer, registry, auditor, emitter, logger)
	router := server.NewRouter(server.Deps{
		Gate:     gate,
		Auth:     authhandler.NewHandler(authSvc, registry, logger),
		Sessions: sessionhandler.NewHandler(registry, auditor, logger),
		Health:   healthhandler.NewHandler(sqlDB),
		Logger:   logger,
	})

	// Background sweeps are owned here, not by the services they clean up.
	sw := sweeper.New(issuer, registry, cfg.TokenSweep(), cfg.SessionSweep(), logger)
	go sw.Run(ctx)

	srv := server.NewHTTPServer(cfg.HTTPAddr, router)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("serve failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
	// Give in-flight async event emits time to complete before the producer closes.
	time.Sleep(events.ShutdownDrainDuration)
	logger.Info("server stopped")
}
