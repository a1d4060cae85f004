package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/linkrelay/linkrelay/internal/config"
	"github.com/linkrelay/linkrelay/internal/discord"
	"github.com/linkrelay/linkrelay/internal/handlers"
	gatewaychecker "github.com/linkrelay/linkrelay/internal/healthcheck/checkers/gateway"
	"github.com/linkrelay/linkrelay/internal/logger"
	"github.com/linkrelay/linkrelay/internal/preview"
	"github.com/linkrelay/linkrelay/internal/relay"
	"github.com/linkrelay/linkrelay/internal/server"
)

func runServe(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	app := fx.New(
		fx.Supply(cfg),
		fx.Provide(
			provideLogger,
			provideRegistry,
			provideMetrics,
			provideAdapter,
			provideFetcher,
			provideResolver,
			provideService,

			provideServerHandler(handlers.NewPingHandler),
			provideServerHandler(provideHealthHandler),
			provideServerHandler(provideMetricsHandler),

			provideServer,
		),
		fx.Invoke(
			startGateway,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	)
	if err := app.Err(); err != nil {
		return err
	}
	app.Run()
	return nil
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func provideMetrics(reg *prometheus.Registry) *relay.Metrics {
	return relay.NewMetrics(reg)
}

func provideAdapter(log *slog.Logger, cfg config.Config) (*discord.Adapter, error) {
	return discord.NewAdapter(log, cfg.Token)
}

func provideFetcher(log *slog.Logger, cfg config.Config) *preview.Fetcher {
	return preview.NewFetcher(log, cfg.Preview.UserAgent, cfg.Preview.FetchTimeout())
}

func provideResolver(log *slog.Logger, cfg config.Config, adapter *discord.Adapter) *relay.Resolver {
	return relay.NewResolver(log, adapter.Session(), adapter.Channels(), cfg.Relay.WebhookName)
}

func provideService(log *slog.Logger, cfg config.Config, adapter *discord.Adapter, resolver *relay.Resolver, fetcher *preview.Fetcher, metrics *relay.Metrics) *relay.Service {
	labels := preview.Labels{Price: cfg.Preview.PriceLabel, Rating: cfg.Preview.RatingLabel}
	return relay.NewService(log, adapter.Session(), resolver, fetcher, labels, metrics)
}

func provideHealthHandler(log *slog.Logger, adapter *discord.Adapter) *handlers.HealthHandler {
	return handlers.NewHealthHandler(log, gatewaychecker.NewChecker(log, adapter.Connection()))
}

func provideMetricsHandler(log *slog.Logger, reg *prometheus.Registry) *handlers.MetricsHandler {
	return handlers.NewMetricsHandler(log, reg)
}

type serverParams struct {
	fx.In

	Logger         *slog.Logger
	Config         config.Config
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Logger, params.Config.Server.Addr, params.ServerHandlers...)
}

func startGateway(lc fx.Lifecycle, log *slog.Logger, adapter *discord.Adapter, svc *relay.Service) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if _, err := adapter.Connect(ctx, svc); err != nil {
				cancel()
				return fmt.Errorf("gateway connect: %w", err)
			}
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			err := adapter.Connection().Stop(stopCtx)

			done := make(chan struct{})
			go func() {
				svc.Close()
				close(done)
			}()
			select {
			case <-done:
			case <-stopCtx.Done():
				log.Warn("stopped before in-flight relays finished", slog.Any("error", stopCtx.Err()))
			}
			if err != nil && !errors.Is(err, discord.ErrStopNotSupported) {
				return fmt.Errorf("gateway stop: %w", err)
			}
			return nil
		},
	})
}

func startServer(lc fx.Lifecycle, log *slog.Logger, cfg config.Config, srv *server.Server, shutdowner fx.Shutdowner) {
	if cfg.Server.Addr == "" {
		log.Info("http server disabled")
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Info("http server listening", slog.String("addr", srv.Addr()))
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
