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

	"github.com/edu-notify-api/internal/application/device"
	"github.com/edu-notify-api/internal/application/dispatch"
	"github.com/edu-notify-api/internal/application/notification"
	"github.com/edu-notify-api/internal/config"
	"github.com/edu-notify-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/edu-notify-api/internal/infrastructure/jwt"
	"github.com/edu-notify-api/internal/infrastructure/natsintake"
	"github.com/edu-notify-api/internal/infrastructure/redisrelay"
	"github.com/edu-notify-api/internal/infrastructure/sns"
	"github.com/edu-notify-api/internal/pkg/logger"
	"github.com/edu-notify-api/internal/realtime"
	transporthttp "github.com/edu-notify-api/internal/transport/http"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	envErr := godotenv.Load()

	cfg := config.Load()
	log := logger.New(cfg.LogFile, cfg.IsProduction())
	defer func() { _ = log.Sync() }()
	if envErr != nil {
		log.Info("no .env file found, reading from environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("service stopped with error", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient, err := dynamo.NewClient(ctx, cfg)
	if err != nil {
		return fmt.Errorf("dynamo client: %w", err)
	}
	dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables, log.Named("bootstrap"))

	// JWT provider (optional, graceful fallback if keys are missing).
	var jwtProvider *jwtinfra.Provider
	if p, err := jwtinfra.NewProvider(cfg); err == nil {
		jwtProvider = p
	} else {
		log.Warn("JWT provider not available; authenticated routes disabled", zap.Error(err))
	}

	gateway, err := sns.NewGateway(ctx, cfg, log.Named("push"))
	if err != nil {
		return fmt.Errorf("push gateway: %w", err)
	}

	hub := realtime.NewHub(log.Named("realtime"))
	var relay *redisrelay.Relay
	if cfg.RedisURL != "" {
		relay, err = redisrelay.New(ctx, cfg.RedisURL, cfg.RedisChannel, log.Named("relay"))
		if err != nil {
			return fmt.Errorf("realtime relay: %w", err)
		}
		hub.SetRelay(relay)
		go func() {
			if err := relay.Run(ctx, hub); err != nil {
				log.Error("realtime relay stopped", zap.Error(err))
			}
		}()
	} else {
		log.Warn("REDIS_URL not set; realtime delivery is local to this instance")
	}

	deviceSvc := device.NewService(
		dynamo.NewDeviceRegistrationRepo(dynamoClient, cfg.DynamoTables.DeviceRegistrations),
		gateway,
		log.Named("devices"),
	)
	notifSvc := notification.NewService(dynamo.NewNotificationRepo(dynamoClient, cfg.DynamoTables.Notifications))
	directory := dispatch.NewCachedDirectory(
		dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users),
		cfg.RecipientCacheTTL,
	)
	dispatcher := dispatch.New(notifSvc, hub, gateway, deviceSvc, directory, cfg.PushTimeout, log.Named("dispatcher"))

	var intake *natsintake.Consumer
	if cfg.NATSURL != "" {
		nc, err := natsintake.Connect(cfg.NATSURL, log.Named("nats"))
		if err != nil {
			return err
		}
		intake = natsintake.NewConsumer(nc, dispatcher, deviceSvc, directory, cfg.PushTimeout, log.Named("intake"))
		if err := intake.Start(cfg.NATSSubject); err != nil {
			nc.Close()
			return err
		}
	} else {
		log.Warn("NATS_URL not set; event intake disabled")
	}

	router := transporthttp.NewRouter(ctx, cfg, &transporthttp.Deps{
		DeviceSvc:       deviceSvc,
		NotificationSvc: notifSvc,
		Notifier:        dispatcher,
		Hub:             hub,
		JWTProvider:     jwtProvider,
	}, log)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("port", cfg.AppPort), zap.String("env", cfg.AppEnv))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if intake != nil {
		if err := intake.Close(); err != nil {
			log.Warn("close event intake", zap.Error(err))
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("forced shutdown", zap.Error(err))
	}
	hub.Shutdown()
	if err := dispatcher.Wait(shutdownCtx); err != nil {
		log.Warn("background deliveries abandoned", zap.Error(err))
	}
	if relay != nil {
		if err := relay.Close(); err != nil {
			log.Warn("close realtime relay", zap.Error(err))
		}
	}
	log.Info("server stopped")
	return nil
}
