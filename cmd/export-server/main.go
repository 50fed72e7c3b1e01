// Command export-server exposes the child-site export pipeline over HTTP:
// imports are started, batched, finished, and cancelled per session, with
// user settings and the publisher directory persisted in Redis.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	"github.com/pubops/admanager-site-export/internal/sheet"
	"github.com/pubops/admanager-site-export/pkg/admanager"
	"github.com/pubops/admanager-site-export/pkg/export"
	"github.com/pubops/admanager-site-export/pkg/importer"
	"github.com/pubops/admanager-site-export/pkg/logging"
	"github.com/pubops/admanager-site-export/pkg/quota"
	"github.com/pubops/admanager-site-export/pkg/settings"
)

func loadConfig() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("EXPORT")
	v.AutomaticEnv()

	v.SetDefault("port", "8080")
	v.SetDefault("redis_url", "localhost:6379")
	v.SetDefault("network_code", "")
	v.SetDefault("base_url", "https://admanager.googleapis.com")
	v.SetDefault("api_version", "v202502")
	v.SetDefault("user_agent", "admanager-site-export/0.1.0")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", false)
	v.SetDefault("format", "summary")
	v.SetDefault("directory_ttl", settings.DefaultDirectoryTTL)
	v.SetDefault("max_concurrent_imports", quota.DefaultConfig().MaxConcurrentImports)

	return v
}

func main() {
	cfg := loadConfig()

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.GetString("log_level")),
		Pretty: cfg.GetBool("log_pretty"),
	})

	networkCode := cfg.GetString("network_code")
	if networkCode == "" {
		logger.Fatal().Msg("EXPORT_NETWORK_CODE is required")
	}

	format, err := export.ParseFormat(cfg.GetString("format"))
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid output format")
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.GetString("redis_url"),
	})
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Str("redis_url", cfg.GetString("redis_url")).Msg("Failed to connect to Redis")
	}
	logger.Info().Str("redis_url", cfg.GetString("redis_url")).Msg("Connected to Redis")

	guardConfig := quota.DefaultConfig()
	guardConfig.MaxConcurrentImports = cfg.GetInt("max_concurrent_imports")
	guard := quota.NewGuard(redisClient, guardConfig, logging.NewLogger("quota-guard"))

	clientConfig := admanager.DefaultConfig(networkCode)
	clientConfig.BaseURL = cfg.GetString("base_url")
	clientConfig.APIVersion = cfg.GetString("api_version")
	clientConfig.UserAgent = cfg.GetString("user_agent")
	clientConfig.Quota = guard
	client, err := admanager.New(clientConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create Ad Manager client")
	}

	store := settings.NewStore(redisClient, cfg.GetDuration("directory_ttl"))
	sink := sheet.NewMemory()

	serviceConfig := export.DefaultConfig(networkCode)
	serviceConfig.Format = format
	svc := export.NewService(client, sink, autoDialog{}, importer.NewLogRenderer(), guard, serviceConfig)

	srv := newServer(svc, client, store, sink, redisClient, networkCode)

	addr := ":" + cfg.GetString("port")
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info().Str("addr", addr).Str("network_code", networkCode).Msg("Starting export server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-shutdownCtx.Done()
	logger.Info().Msg("Shutting down")

	timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(timeoutCtx); err != nil {
		logger.Error().Err(err).Msg("Shutdown did not complete cleanly")
	}
}
