package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/phillip/levy-collector-go/compliance"
	"github.com/phillip/levy-collector-go/config"
	"github.com/phillip/levy-collector-go/controllers"
	"github.com/phillip/levy-collector-go/logging"
	"github.com/phillip/levy-collector-go/metrics"
	"github.com/phillip/levy-collector-go/middleware"
	"github.com/phillip/levy-collector-go/realtime"
	"github.com/phillip/levy-collector-go/routes"
	"github.com/phillip/levy-collector-go/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}

	lg, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		slog.Error("logger", "err", err)
		os.Exit(1)
	}
	defer lg.Close()
	log := lg.Logger
	slog.SetDefault(log)

	// amounts go over the wire as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Backends ---
	startCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	if err := cfg.OpenStore(startCtx); err != nil {
		cancel()
		log.Error("store", "driver", cfg.DBDriver, "err", err)
		os.Exit(1)
	}
	cfg.Redis = config.ConnectRedis(startCtx, cfg.RedisAddr)
	if err := controllers.EnsureAdmin(startCtx, cfg); err != nil {
		log.Error("admin seed failed", "err", err)
	}
	cancel()

	cfg.Metrics = metrics.New()

	if cfg.Messaging.Enabled() {
		cfg.Sender = utils.NewMessagingGateway(cfg.Messaging.URL, cfg.Messaging.APIKey, cfg.Messaging.Sender)
	} else {
		log.Info("messaging gateway not configured, reminders are logged only")
		cfg.Sender = compliance.LogSender{Logger: log}
	}
	if cfg.Cloudinary.Enabled() {
		up, err := utils.NewCloudinaryUploader(cfg.Cloudinary.CloudName, cfg.Cloudinary.APIKey, cfg.Cloudinary.APISecret)
		if err != nil {
			log.Error("cloudinary disabled", "err", err)
		} else {
			cfg.Uploader = up
		}
	}

	// --- Change feed ---
	cfg.Hub = realtime.NewHub(cfg.Metrics, log)
	go cfg.Hub.Run(ctx)

	publisher, err := realtime.NewPublisher(cfg.Kafka, cfg.Metrics, log)
	if err != nil {
		log.Error("kafka", "err", err)
		os.Exit(1)
	}
	publisher.Start(ctx)

	pump := &realtime.Pump{Feed: cfg.Store, Hub: cfg.Hub, Publisher: publisher, Metrics: cfg.Metrics, Log: log}
	go pump.Run(ctx)

	// --- HTTP ---
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "If-None-Match"},
		ExposeHeaders:    []string{"ETag", "Last-Modified", "Content-Disposition", "X-Total-Count"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(middleware.Metrics(cfg.Metrics))
	r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))

	routes.SetupRoutes(r, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Info("server listening", "port", cfg.Port, "store", cfg.DBDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "err", err)
	}
	if err := publisher.Stop(); err != nil {
		log.Error("kafka close", "err", err)
	}
	if cfg.Redis != nil {
		cfg.Redis.Close()
	}
	if err := cfg.Store.Close(shutdownCtx); err != nil {
		log.Error("store close", "err", err)
	}
	log.Info("server stopped")
}
