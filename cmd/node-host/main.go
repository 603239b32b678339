// cmd/node-host/main.go
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"outputrocks-nodes/internal/common/aws"
	"outputrocks-nodes/internal/common/camunda"
	"outputrocks-nodes/internal/common/config"
	"outputrocks-nodes/internal/common/database"
	commonhttp "outputrocks-nodes/internal/common/http"
	"outputrocks-nodes/internal/common/logger"
	"outputrocks-nodes/internal/common/observability"
	"outputrocks-nodes/internal/credentials"
	"outputrocks-nodes/internal/nodes"
	"outputrocks-nodes/internal/server"
	"outputrocks-nodes/internal/waiting"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info", "console")
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog).WithFields(map[string]interface{}{
		"app":     cfg.App.Name,
		"version": cfg.App.Version,
	})

	zapLog.Info("Starting node host...", zap.String("environment", cfg.App.Environment))

	ctx := context.Background()

	obs, err := observability.New(cfg.App.Name)
	if err != nil {
		zapLog.Warn("otel prometheus exporter unavailable", zap.Error(err))
	}
	defer func() { _ = obs.Shutdown(context.Background()) }()

	// --- Redis (credential and/or waiting backend) ---
	var rdb *redis.Client
	if cfg.Credentials.Backend == "redis" || cfg.Waiting.Backend == "redis" {
		err = retryWithBackoff(func() error {
			var err error
			rdb, err = database.NewRedis(ctx, cfg.Database.Redis)
			return err
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer rdb.Close()
		zapLog.Info("Redis connected successfully")
	}

	// --- PostgreSQL (credential backend) ---
	var pg *sql.DB
	if cfg.Credentials.Backend == "postgres" {
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(ctx, cfg.Database.Postgres)
			return err
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()
		zapLog.Info("PostgreSQL connected successfully")
	}

	credStore, err := newCredentialStore(ctx, cfg, rdb, pg)
	if err != nil {
		zapLog.Fatal("credential store init failed", zap.Error(err))
	}
	if err := credentials.Seed(ctx, credStore, cfg.Credentials.Seed); err != nil {
		zapLog.Fatal("credential seed failed", zap.Error(err))
	}

	var waitStore waiting.Store = waiting.NewMemoryStore()
	if cfg.Waiting.Backend == "redis" {
		waitStore = waiting.NewRedisStore(rdb, config.GetDuration(cfg.Waiting.Grace))
	}

	nodeSet, err := nodes.Build(cfg, nodes.Dependencies{Logger: log, Observability: obs})
	if err != nil {
		zapLog.Fatal("node setup failed", zap.Error(err))
	}

	httpClient := commonhttp.NewClient(config.GetDuration(cfg.Renderer.Timeout), cfg.App.Name+"/"+cfg.App.Version)

	// --- Zeebe ---
	var (
		zeebe   *camunda.Client
		workers []*camunda.CamundaWorker
	)
	if cfg.Camunda.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			zeebe, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
				GatewayAddress:         cfg.Camunda.BrokerAddress,
				UsePlaintextConnection: cfg.Camunda.Plaintext,
				RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
			})
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		zapLog.Info("Zeebe client connected successfully")

		jobDeps := camunda.NodeJobDependencies{
			Credentials: credStore,
			Waiting:     waitStore,
			Client:      httpClient,
			PublicURL:   cfg.Server.PublicURL,
			Logger:      log,
		}

		for _, node := range nodeSet.RenderNodes() {
			variant := node.Variant()
			nodeCfg := node.Config()
			if variant.Resumable && cfg.Server.PublicURL == "" {
				zapLog.Warn("server.public_url is empty; resume URLs will not be sent", zap.String("node", variant.Name))
			}

			credentialIDs := map[string]string{}
			if nodeCfg.CredentialID != "" {
				credentialIDs[credentials.APITokenType] = nodeCfg.CredentialID
			}

			handler := camunda.NewNodeJobHandler(camunda.NodeJobOptions{
				NodeName:      variant.Name,
				Node:          node,
				Defaults:      variant.Defaults(),
				CredentialIDs: credentialIDs,
				Timeout:       nodeCfg.Timeout,
			}, jobDeps)

			w := camunda.NewWorker(zeebe.GetClient(), camunda.WorkerOptions{
				TaskType:      nodes.TaskType(cfg, variant),
				MaxJobsActive: nodeCfg.MaxJobsActive,
				Timeout:       nodeCfg.Timeout + 5*time.Second,
			}, handler, log)
			w.Start()
			workers = append(workers, w)
		}
	} else {
		zapLog.Warn("camunda disabled; render nodes are not polled and webhooks do not reach a workflow")
	}

	// --- Webhook server ---
	deps := server.Deps{
		TriggerNode:  nodeSet.Trigger,
		ResumeNode:   nodeSet.Resume,
		Triggers:     triggers(cfg),
		Credentials:  credStore,
		Waiting:      waitStore,
		MessageName:  cfg.Waiting.MessageName,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		Logger:       log,
		Ready: func(ctx context.Context) error {
			if rdb != nil {
				if err := rdb.Ping(ctx).Err(); err != nil {
					return fmt.Errorf("redis: %w", err)
				}
			}
			if pg != nil {
				if err := pg.PingContext(ctx); err != nil {
					return fmt.Errorf("postgres: %w", err)
				}
			}
			if zeebe != nil {
				return zeebe.HealthCheck(ctx)
			}
			return nil
		},
	}
	if zeebe != nil {
		deps.Engine = zeebe
	}
	if cfg.Notifications.SNS.Enabled {
		snsClient, err := aws.NewSNSClient(ctx, cfg.Notifications.SNS.Region)
		if err != nil {
			zapLog.Fatal("sns client init failed", zap.Error(err))
		}
		deps.Notifier = aws.NewDeliveryNotifier(snsClient, cfg.Notifications.SNS.TopicARN)
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           server.New(deps).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zapLog.Info("Webhook server listening", zap.String("address", cfg.Server.Address))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("webhook server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping node host...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down webhook server", zap.Error(err))
	}
	for _, w := range workers {
		w.Stop()
	}
	if zeebe != nil {
		if err := zeebe.Close(); err != nil {
			zapLog.Error("Error closing Zeebe client", zap.Error(err))
		}
	}

	zapLog.Info("Node host stopped")
}

func newCredentialStore(ctx context.Context, cfg *config.Config, rdb *redis.Client, pg *sql.DB) (credentials.Store, error) {
	switch cfg.Credentials.Backend {
	case "redis":
		return credentials.NewRedisStore(rdb), nil
	case "postgres":
		store := credentials.NewPostgresStore(pg)
		if err := store.Migrate(ctx); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return credentials.NewMemoryStore(), nil
	}
}

func triggers(cfg *config.Config) []server.Trigger {
	out := make([]server.Trigger, 0, len(cfg.Triggers))
	for _, t := range cfg.Triggers {
		out = append(out, server.Trigger{
			Path:         t.Path,
			CredentialID: t.CredentialID,
			ProcessID:    t.ProcessID,
		})
	}
	return out
}
