package bootstrap

import (
	"context"
	"log/slog"
	"time"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"minerva/internal/bootstrap/config"
	"minerva/internal/bootstrap/database"
	"minerva/internal/bootstrap/logging"
	domainbridge "minerva/internal/domain/bridge"
	dedupinfra "minerva/internal/infrastructure/dedup"
	"minerva/internal/infrastructure/githubapi"
	"minerva/internal/ports"
	bridgeuc "minerva/internal/usecase/bridge"
	ledgeruc "minerva/internal/usecase/ledger"
	operateuc "minerva/internal/usecase/operate"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(provideApp),
	fx.Provide(provideRepoHost),
	fx.Provide(provideDedup),
	fx.Provide(provideResponder),
	fx.Provide(provideBridgeService),
	fx.Provide(providePoller),
	fx.Provide(provideLedgerService),
	fx.Provide(provideOperateService),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	return config.Load(ctx, p.ConfigFile)
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}

func provideApp(cfg config.Config, db *gorm.DB) *App {
	return &App{
		Config: cfg,
		DB:     db,
	}
}

func provideRepoHost(ctx context.Context, cfg config.Config) (ports.RepoHost, error) {
	httpClient, err := githubapi.NewHTTPClient(ctx, cfg.GitHub)
	if err != nil {
		return nil, err
	}
	return githubapi.New(httpClient, cfg.GitHub.Owner, cfg.GitHub.Repo), nil
}

// provideDedup selects the handled-item store. The sqlite store doubles as
// the delivery log; the memory store pairs with a no-op log.
func provideDedup(ctx context.Context, cfg config.Config, db *gorm.DB) (ports.DedupStore, ports.DeliveryLog, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	if cfg.Dedup.Store == "sqlite" {
		logging.Info(logCtx, "using sqlite dedup store", slog.String("dsn", cfg.Database.DSN))
		store := dedupinfra.NewSQLiteStore(db)
		return store, store, nil
	}

	logging.Info(logCtx, "using in-memory dedup store")
	return dedupinfra.NewMemoryStore(), dedupinfra.NopDeliveryLog{}, nil
}

func provideResponder(cfg config.Config) (*domainbridge.Responder, error) {
	rules := domainbridge.DefaultRules()
	if cfg.Bridge.RulesFile != "" {
		loaded, err := bridgeuc.LoadRules(cfg.Bridge.RulesFile)
		if err != nil {
			return nil, err
		}
		rules = loaded
	}
	return domainbridge.NewResponder(cfg.Bridge.Self, cfg.Bridge.Peer, rules), nil
}

func provideBridgeService(host ports.RepoHost, store ports.DedupStore, responder *domainbridge.Responder, cfg config.Config) *bridgeuc.Service {
	return bridgeuc.NewService(host, store, responder, bridgeuc.Config{
		BaseBranch:     cfg.GitHub.BaseBranch,
		Label:          cfg.Bridge.Label,
		AutoMergeLabel: cfg.Bridge.AutoMergeLabel,
		InboxDir:       cfg.Bridge.InboxDir,
		OutboxDir:      cfg.Bridge.OutboxDir,
		PagesDir:       cfg.Bridge.PagesDir,
		AllowedPaths:   cfg.Bridge.AllowedPaths,
	})
}

func providePoller(svc *bridgeuc.Service, cfg config.Config) *bridgeuc.Poller {
	return bridgeuc.NewPoller(
		svc,
		time.Duration(cfg.Poll.IntervalMS)*time.Millisecond,
		time.Duration(cfg.Poll.ItemDelayMS)*time.Millisecond,
	)
}

func provideLedgerService(host ports.RepoHost, cfg config.Config) *ledgeruc.Service {
	return ledgeruc.NewService(host, ledgeruc.Config{
		Path:       cfg.Ledger.Path,
		BaseBranch: cfg.GitHub.BaseBranch,
		OnConflict: ledgeruc.ConflictPolicy(cfg.Ledger.OnConflict),
		RetryLimit: cfg.Ledger.RetryLimit,
	})
}

func provideOperateService(host ports.RepoHost, ledger *ledgeruc.Service, cfg config.Config) *operateuc.Service {
	return operateuc.NewService(host, ledger, operateuc.Config{
		BaseBranch: cfg.GitHub.BaseBranch,
		Owner:      cfg.Bridge.Self,
	})
}
