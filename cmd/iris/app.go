package main

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/Ramsey-B/iris/config"
	appctx "github.com/Ramsey-B/iris/pkg/context"
	"github.com/Ramsey-B/iris/pkg/expressions"
	"github.com/Ramsey-B/iris/pkg/httpclient"
	"github.com/Ramsey-B/iris/pkg/kafka"
	"github.com/Ramsey-B/iris/pkg/provider"
	"github.com/Ramsey-B/iris/pkg/redis"
	"github.com/Ramsey-B/iris/pkg/repositories"
	"github.com/Ramsey-B/iris/pkg/syncer"
	"github.com/Ramsey-B/iris/pkg/tracing"
	"github.com/Ramsey-B/iris/pkg/tracing/exporters"
)

// app holds the long-lived collaborators shared by every command.
type app struct {
	cfg          *config.Config
	logger       ectologger.Logger
	orchestrator *syncer.Orchestrator

	opener   *repositories.Opener
	redis    *redis.Client
	producer *kafka.Producer
	tracer   *sdktrace.TracerProvider
}

func newLogger(cfg *config.Config) (ectologger.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
	}

	zapConfig := zap.NewProductionConfig()
	if cfg.PrettyLogs {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.Level = level

	zapLogger, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}
	return zapadapter.NewZapEctoLogger(zapLogger, appctx.EnrichLogMessage), nil
}

func newApp(ctx context.Context, cfg *config.Config, logger ectologger.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	if err := a.setupTracing(ctx); err != nil {
		return nil, err
	}

	attributes, err := provider.NewAttributes(provider.AttributeConfig{
		UserName:       cfg.Okta.UserNameExpression,
		UserDepartment: cfg.Okta.UserDepartmentExpression,
		UserTitle:      cfg.Okta.UserTitleExpression,
		AppWebsite:     cfg.Okta.AppWebsiteExpression,
	}, expressions.NewEvaluator())
	if err != nil {
		return nil, err
	}

	a.opener = repositories.NewOpener(repositories.OpenerConfig{
		MaxOpenConns:        cfg.Storage.MaxOpenConns,
		MaxIdleConns:        cfg.Storage.MaxIdleConns,
		ConnMaxLifetime:     cfg.Storage.ConnMaxLifetime,
		RetryCount:          cfg.Storage.ReconnectRetryCount,
		MigrationFolderPath: cfg.Storage.MigrationFolderPath,
		AutoRollback:        cfg.Storage.MigrationAutoRollback,
	}, logger)

	httpClient := httpclient.NewClient(httpclient.DefaultConfig(), logger)
	limiter := provider.NewLimiter(cfg.Okta.RateLimit)

	deps := syncer.Dependencies{
		Settings: config.EnvSettings{Fallback: cfg.SyncSettings()},
		OpenStore: func(ctx context.Context, databaseURL string) (syncer.Store, error) {
			store, err := a.opener.Open(ctx, databaseURL)
			if err != nil {
				return nil, err
			}
			return store, nil
		},
		NewProvider: func(settings syncer.Settings) syncer.Provider {
			return provider.NewClient(provider.Config{
				Domain:              settings.ProviderDomain,
				Token:               settings.ProviderToken,
				UsersPageSize:       cfg.Okta.UsersPageSize,
				AppsPageSize:        cfg.Okta.AppsPageSize,
				AssignmentsPageSize: cfg.Okta.AssignmentsPageSize,
			}, httpClient, limiter, logger)
		},
		Attributes: attributes,
		Logger:     logger,
	}

	if cfg.RedisEnabled {
		a.redis, err = redis.NewClient(redis.Config{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, logger)
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
		deps.Locker = redis.NewLocker(a.redis, redis.DefaultKeyPrefix)
	}

	if cfg.KafkaEnabled {
		a.producer, err = kafka.NewProducer(kafka.ParseConfig(cfg.KafkaBrokers, cfg.KafkaAuditTopic), logger)
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
		deps.Publisher = a.producer
	}

	a.orchestrator, err = syncer.NewOrchestrator(syncer.Config{
		MaxRunDuration:  cfg.Sync.MaxRunDuration,
		RecentRunsLimit: cfg.Sync.RecentRunsLimit,
	}, deps)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	return a, nil
}

// setupTracing exports spans over OTLP when enabled, or to the log at debug
// level. Otherwise spans are not recorded.
func (a *app) setupTracing(ctx context.Context) error {
	var exporter sdktrace.SpanExporter
	switch {
	case a.cfg.OTLPEnabled:
		otlp, err := exporters.NewOTLPExporter(ctx, exporters.OTLPConfig{
			Endpoint: a.cfg.OTLPEndpoint,
			Protocol: a.cfg.OTLPProtocol,
			Insecure: a.cfg.OTLPInsecure,
		})
		if err != nil {
			return err
		}
		exporter = otlp
	case a.cfg.LogLevel == "debug":
		exporter = exporters.NewConsoleExporter(a.logger)
	default:
		return nil
	}
	a.tracer = tracing.Setup(a.cfg.AppName, exporter)
	return nil
}

// Close releases everything newApp opened. It is safe on a partially built app.
func (a *app) Close(ctx context.Context) {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.WithError(err).Warn("failed to close kafka producer")
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.WithError(err).Warn("failed to close redis client")
		}
	}
	if a.opener != nil {
		if err := a.opener.Close(); err != nil {
			a.logger.WithError(err).Warn("failed to close database pools")
		}
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.WithError(err).Warn("failed to shut down tracer provider")
		}
	}
}
