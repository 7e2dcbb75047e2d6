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

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"

	"github.com/music-spaces/internal/auth"
	"github.com/music-spaces/internal/config"
	"github.com/music-spaces/internal/resolver"
	"github.com/music-spaces/internal/space"
	"github.com/music-spaces/internal/stream"
	"github.com/music-spaces/pkg/database"
	"github.com/music-spaces/pkg/events"
	"github.com/music-spaces/pkg/jwt"
	"github.com/music-spaces/pkg/logger"
	"github.com/music-spaces/pkg/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logg, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logg.Sync() }()

	if !cfg.EnvFileLoaded {
		logg.Warn(".env file not found, using process environment")
	}
	if err := cfg.Validate(); err != nil {
		logg.Fatal("invalid configuration", zap.Error(err))
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Open(cfg.Database, logg, gormLogLevel(cfg.LogLevel))
	if err != nil {
		logg.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	redisClient := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		logg.Fatal("failed to connect to redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	}
	cancel()

	var publisher events.Publisher = events.Nop{}
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaClient := events.NewKafkaClient(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID, logg)
		defer kafkaClient.Close()
		publisher = kafkaClient
	} else {
		logg.Warn("KAFKA_BROKERS not set, domain events are dropped")
	}

	var locker stream.Locker = redis.NewLocker(redisClient, cfg.Limits.AdvanceLockTTL)
	if cfg.Limits.AdvanceLocker == "local" {
		locker = stream.NewLocalLocker()
	}

	issuer := jwt.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)
	sessions := redis.NewSessionStore(redisClient)
	guards := auth.NewMiddleware(issuer, sessions, logg).Guards()

	spaceService := space.NewService(db, redis.NewSpaceCache(redisClient), publisher, cfg.Limits.MaxSpacesPerUser, logg)
	trackResolver, err := resolver.New(cfg.Resolver, logg)
	if err != nil {
		logg.Fatal("failed to build track resolver", zap.Error(err))
	}
	streamService := stream.NewService(db, spaceService, trackResolver, locker, publisher, cfg.Limits, logg)

	authHandler := auth.NewHandler(db, issuer, sessions, cfg.IdentitySharedSecret, cfg.IsProduction(), logg)
	spaceHandler := space.NewHandler(spaceService, logg)
	streamHandler := stream.NewHandler(streamService, logg)

	router := gin.New()
	router.Use(logger.Gin(logg), logger.Recovery(logg))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", auth.SecretHeader},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	router.GET("/health", healthHandler(logg,
		healthCheck{name: "database", check: db.Ping},
		healthCheck{name: "redis", check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
	))

	v1 := router.Group("/api/v1")
	authHandler.RegisterRoutes(v1, guards)
	spaceHandler.RegisterRoutes(v1, guards)
	streamHandler.RegisterRoutes(v1, guards)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		logg.Info("shutting down gracefully")
		shctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shctx); err != nil {
			logg.Error("shutdown failed", zap.Error(err))
		}
	}()

	logg.Info("server starting", zap.String("port", cfg.Port), zap.String("db_driver", cfg.Database.Driver))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Fatal("failed to start server", zap.Error(err))
	}
}

func gormLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "debug":
		return gormlogger.Info
	case "error":
		return gormlogger.Error
	default:
		return gormlogger.Warn
	}
}
