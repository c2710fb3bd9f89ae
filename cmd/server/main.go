package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"stream-resolver/internal/cache"
	"stream-resolver/internal/config"
	"stream-resolver/internal/gateway"
	apphttp "stream-resolver/internal/http"
	"stream-resolver/internal/lock"
	"stream-resolver/internal/repository/sqlite"
	"stream-resolver/internal/service"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		logger.Fatalf("auth jwt secret is required")
	}
	if strings.TrimSpace(cfg.Auth.RegisterPassword) == "" {
		logger.Fatalf("auth registration password is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()

	userRepo := sqlite.NewUserRepository(db)
	resolutionRepo := sqlite.NewResolutionRepository(db)

	if err := userRepo.Init(ctx); err != nil {
		logger.Fatalf("init user repository: %v", err)
	}
	if err := resolutionRepo.Init(ctx); err != nil {
		logger.Fatalf("init resolution repository: %v", err)
	}

	links, locks := buildCoordination(ctx, cfg, logger)

	gw, err := gateway.New(cfg.Gateway.Variant, gateway.Options{
		BaseURL:          cfg.Gateway.URL,
		Credential:       cfg.Gateway.Credential,
		DownloadingReady: cfg.Gateway.DownloadingReady,
		Logger:           logger,
	})
	if err != nil {
		logger.Fatalf("setup gateway: %v", err)
	}

	resolver := service.NewResolveService(service.ResolveConfig{
		PositiveTTL:         time.Duration(cfg.Cache.PositiveTTLMinutes) * time.Minute,
		NegativeTTL:         time.Duration(cfg.Cache.NegativeTTLSeconds) * time.Second,
		LockTTL:             time.Duration(cfg.Lock.TTLSeconds) * time.Second,
		WaitAcquireTimeout:  time.Duration(cfg.Lock.WaitAcquireSeconds) * time.Second,
		FastAcquireTimeout:  time.Duration(cfg.Lock.FastAcquireSeconds) * time.Second,
		PollAttempts:        cfg.Poll.Attempts,
		PollInterval:        time.Duration(cfg.Poll.IntervalSeconds) * time.Second,
		BlindStreamFallback: cfg.Gateway.BlindStream,
	}, gw, links, locks, resolutionRepo, logger)

	userService := service.NewUserService(userRepo, cfg.Auth.RegisterPassword)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(
		resolver,
		userService,
		resolutionRepo,
		gw,
		cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.TokenTTLMinutes)*time.Minute,
		logger,
	)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}

	logger.Info("bye")
}

// buildCoordination picks Redis-backed caching and locking when an address
// is configured, in-process fallbacks otherwise. The fallbacks are only
// safe for single-instance deployments.
func buildCoordination(ctx context.Context, cfg config.Config, logger *logrus.Logger) (cache.Store, lock.Locker) {
	if cfg.Redis.Addr == "" {
		logger.Info("redis not configured, using in-process cache and locks")
		return cache.NewMemoryStore(), lock.NewMemoryLocker()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Fatalf("connect redis %s: %v", cfg.Redis.Addr, err)
	}

	logger.Infof("using redis at %s", cfg.Redis.Addr)
	return cache.NewRedisStore(client), lock.NewRedisLocker(client)
}
