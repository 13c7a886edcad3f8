package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/safar/go-procurement/internal/approval"
	"github.com/safar/go-procurement/internal/config"
	"github.com/safar/go-procurement/internal/dashboard"
	"github.com/safar/go-procurement/internal/database"
	"github.com/safar/go-procurement/internal/logger"
	"github.com/safar/go-procurement/internal/metrics"
	"github.com/safar/go-procurement/internal/pricing"
	"github.com/safar/go-procurement/internal/purchase"
	"github.com/safar/go-procurement/internal/registration"
	"github.com/safar/go-procurement/internal/server"
	"github.com/safar/go-procurement/internal/store/memory"
	"github.com/safar/go-procurement/internal/store/postgres"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	app := fx.New(
		fx.Provide(
			config.Load,
			logger.NewFromConfig,
			newMetricsRegistry,
			newMetrics,
			newRepositories,
			newAggregator,
			newApprovalRegistry,
			newPurchaseService,
			newRegistrationService,
			newDashboardService,
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
		server.Module,
	)
	app.Run()
}

func newMetricsRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func newMetrics(reg *prometheus.Registry) *metrics.Metrics {
	return metrics.New(reg)
}

type repositories struct {
	fx.Out

	Purchases     purchase.Repository
	Approvals     approval.Repository
	Registrations registration.Repository
	Dashboard     dashboard.Source
}

func newRepositories(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, reg *prometheus.Registry) (repositories, error) {
	if cfg.Store.Driver == "memory" {
		log.Warn("using in-memory store, data is lost on restart")
		s := memory.New()
		return repositories{Purchases: s, Approvals: s, Registrations: s, Dashboard: s}, nil
	}

	db, err := database.NewConnection(&cfg.Database, log)
	if err != nil {
		return repositories{}, err
	}
	reg.MustRegister(collectors.NewDBStatsCollector(db, "procurement"))
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return db.Close()
		},
	})

	s := postgres.New(db, log)
	return repositories{Purchases: s, Approvals: s, Registrations: s, Dashboard: s}, nil
}

func newAggregator(cfg *config.Config) (*pricing.Aggregator, error) {
	policy, err := pricing.ParseDiscountPolicy(cfg.Pricing.DiscountPolicy)
	if err != nil {
		return nil, err
	}
	return pricing.NewAggregator(policy), nil
}

func newApprovalRegistry(repo approval.Repository, cfg *config.Config, log *zap.Logger, m *metrics.Metrics) (*approval.Registry, error) {
	kinds, err := approval.ParseGatedKinds(cfg.Approval.GatedKinds)
	if err != nil {
		return nil, err
	}
	return approval.NewRegistry(approval.Params{
		Repository: repo,
		Logger:     log,
		Metrics:    m,
		GatedKinds: kinds,
	}), nil
}

func newPurchaseService(repo purchase.Repository, agg *pricing.Aggregator, cfg *config.Config, log *zap.Logger, m *metrics.Metrics) *purchase.Service {
	return purchase.NewService(purchase.Params{
		Repository:         repo,
		Aggregator:         agg,
		Logger:             log,
		Metrics:            m,
		MaxConflictRetries: cfg.Workflow.MaxConflictRetries,
	})
}

func newRegistrationService(repo registration.Repository, registry *approval.Registry, log *zap.Logger) *registration.Service {
	return registration.NewService(registration.Params{
		Repository: repo,
		Registry:   registry,
		Logger:     log,
	})
}

func newDashboardService(src dashboard.Source, agg *pricing.Aggregator, cfg *config.Config, log *zap.Logger, m *metrics.Metrics) *dashboard.Service {
	return dashboard.NewService(dashboard.Params{
		Source:      src,
		Aggregator:  agg,
		Logger:      log,
		Metrics:     m,
		RecentLimit: cfg.Dashboard.RecentActivityLimit,
	})
}
