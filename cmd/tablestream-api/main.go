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

	"github.com/duckmesh/tablestream/internal/api"
	"github.com/duckmesh/tablestream/internal/auth"
	"github.com/duckmesh/tablestream/internal/config"
	"github.com/duckmesh/tablestream/internal/observability"
	"github.com/duckmesh/tablestream/internal/storage"
	hdfsfs "github.com/duckmesh/tablestream/internal/storage/hdfs"
	s3store "github.com/duckmesh/tablestream/internal/storage/s3"
)

func main() {
	cfg, err := config.LoadFromEnv("tablestream-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	s3Resolver, err := s3store.NewResolver(s3store.Config{
		Endpoint:        cfg.S3.Endpoint,
		Region:          cfg.S3.Region,
		AccessKeyID:     cfg.S3.AccessKeyID,
		SecretAccessKey: cfg.S3.SecretAccessKey,
		SessionToken:    cfg.S3.SessionToken,
		UseSSL:          cfg.S3.UseSSL,
		PathStyle:       cfg.S3.PathStyle,
	})
	if err != nil {
		logger.Error("failed to initialize s3 resolver", slog.Any("error", err))
		os.Exit(1)
	}
	hdfsResolver := hdfsfs.NewResolver(hdfsfs.Config{
		NameNode: cfg.HDFS.NameNode,
		User:     cfg.HDFS.User,
	})

	distributed := storage.NewDistributedTransport().
		Register(s3Resolver, s3store.Schemes...).
		Register(hdfsResolver, hdfsfs.Schemes...)

	client := storage.NewClient(storage.ClientOptions{
		Logger: logger,
		HTTP: storage.NewHTTPTransport(cfg.Source.ExternalAPIMarker, storage.BasicCredentials{
			Username: cfg.Source.BoondUsername,
			Password: cfg.Source.BoondPassword,
			Host:     cfg.Source.CredentialsHost,
		}),
		Distributed: distributed,
		Local:       storage.LocalTransport{},
	})

	deps := api.Dependencies{
		Logger: logger,
		Tables: client,
		Readiness: api.CombineReadinessChecks(
			api.CheckS3Config(cfg),
			api.CheckHDFSConfig(cfg),
		),
		DependencyTimeout: time.Second,
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.Any("schemas", client.SchemaNames()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
