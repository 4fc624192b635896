package main

import (
	"context"   // context package is needed for Redis operations and shutdown
	"errors"    // errors.Is for server close
	"net/http"  // HTTP server
	"os"        // Signals
	"os/signal" // Signal handling
	"syscall"   // SIGTERM
	"time"      // Timeouts

	"marketplace/internal/api"     // Custom package for API handlers
	"marketplace/internal/config"  // Custom package for configuration
	"marketplace/internal/db"      // Custom package for the database
	"marketplace/internal/events"  // Custom package for transaction events
	"marketplace/internal/mailer"  // Custom package for mail delivery
	"marketplace/internal/service" // Custom package for business operations
	"marketplace/internal/utils"   // Tokens and cache

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logrus for structured logging
)

// Main function to set up and run the server
func main() {
	cfg, err := config.LoadConfig() // Load configuration
	if err != nil {
		logrus.Fatalf("invalid configuration: %v", err)
	}

	// Setup logger
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if cfg.IsProd {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(level)
	}

	// Connect to the database
	conn, err := db.Open(cfg)
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err) // Fatal error if DB connection fails
	}
	if cfg.AutoMigrate {
		if err := db.Migrate(conn); err != nil {
			logrus.Fatalf("migration failed: %v", err)
		}
	}

	// Setup Redis client; caching is optional
	var cache *utils.Cache
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr, // Redis server address
			Password: cfg.RedisPass, // Redis password
			DB:       cfg.RedisDB,   // Redis database number
		})
		defer redisClient.Close()
		// Test Redis connection
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logrus.Fatalf("failed to connect to Redis: %v", err)
		}
		cache = utils.NewCache(redisClient, cfg.CacheTTL)
	}

	// Transaction events go to Kafka when brokers are configured
	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
		publisher = kp
	}

	// Reset mails go through SMTP when a host is configured
	var mail mailer.Mailer = mailer.LogMailer{}
	if cfg.SMTPHost != "" {
		smtpMailer, err := mailer.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom)
		if err != nil {
			logrus.Fatalf("invalid SMTP settings: %v", err)
		}
		mail = smtpMailer
	}

	tokens := utils.NewTokenManager(cfg.JWTSecret, cfg.ResetSecret, cfg.SessionTTL, cfg.ResetTTL)
	services := api.Services{
		Auth: &service.AuthService{
			DB:             conn,
			Tokens:         tokens,
			Mailer:         mail,
			Cache:          cache,
			Events:         publisher,
			StartingWallet: cfg.StartingWallet,
			HashCost:       cfg.BcryptCost,
			ResetURL:       cfg.ResetURL,
		},
		Users:          &service.UserService{DB: conn, Cache: cache, HashCost: cfg.BcryptCost},
		Products:       &service.ProductService{DB: conn, Cache: cache, UploadDir: cfg.UploadDir},
		Transactions:   &service.TransactionEngine{DB: conn, Cache: cache, Events: publisher},
		UploadDir:      cfg.UploadDir,
		MaxUploadBytes: cfg.MaxUploadMB << 20,
	}

	// Set Mode to Release if in production
	if cfg.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}
	r := api.NewRouter(services)
	// Set trusted proxies for Gin
	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		logrus.Fatalf("failed to set trusted proxies: %v", err)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logrus.Info("Server running on " + cfg.AppPort) // Log server start
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("Shutdown failed")
	}
	if sqlDB, err := conn.DB(); err == nil {
		_ = sqlDB.Close()
	}
	logrus.Info("Server stopped")
}
