package bootstrap

import (
	"context"
	"log/slog"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"policyguard/internal/bootstrap/config"
	"policyguard/internal/bootstrap/database"
	"policyguard/internal/bootstrap/logging"
	cacheinfra "policyguard/internal/infrastructure/cache"
	"policyguard/internal/infrastructure/datasource"
	"policyguard/internal/infrastructure/llm"
	"policyguard/internal/infrastructure/persistence/sqlite/model"
	sqliterepo "policyguard/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "policyguard/internal/infrastructure/persistence/sqlite/uow"
	"policyguard/internal/infrastructure/textextract"
	"policyguard/internal/ports"
	"policyguard/internal/usecase/compliance"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(provideApp),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewComplianceRepository,
			fx.As(new(ports.ComplianceRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliteuow.NewUnitOfWork,
			fx.As(new(ports.UnitOfWork)),
		),
	),
	fx.Provide(
		fx.Annotate(
			cacheinfra.NewKVCache,
			fx.As(new(ports.Cache)),
		),
	),
	fx.Provide(
		fx.Annotate(
			datasource.NewOpener,
			fx.As(new(ports.DataSourceOpener)),
		),
	),
	fx.Provide(
		fx.Annotate(
			textextract.New,
			fx.As(new(ports.TextExtractor)),
		),
	),
	fx.Provide(provideGenerator),
	fx.Provide(provideScanOptions),
	fx.Provide(compliance.NewService),
	fx.Invoke(registerStartup),
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

func provideGenerator(ctx context.Context, cfg config.Config) ports.TextGenerator {
	generator := llm.New(llm.Config{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
	})
	if _, ok := generator.(llm.Unavailable); ok {
		logging.Warn(
			logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx")),
			"llm.api_key is empty, rule extraction and remediation advice are disabled",
		)
	}
	return generator
}

func provideScanOptions(cfg config.Config) compliance.Options {
	return compliance.Options{
		ReferenceDSN:      cfg.Scheduler.ReferenceDSN,
		ExtractionRetries: cfg.Scan.ExtractionRetries,
		TempDir:           cfg.Scan.TempDir,
		HistoryLimit:      cfg.Scan.HistoryLimit,
		Temperature:       cfg.LLM.Temperature,
		MaxTokens:         cfg.LLM.MaxTokens,
		FallbackInterval:  cfg.Scheduler.FallbackInterval,
	}
}

// registerStartup migrates the schema when configured and makes sure the
// system config row exists before any command runs.
func registerStartup(lc fx.Lifecycle, app *App, svc *compliance.Service) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if app.Config.Database.AutoMigrate {
				if err := app.InitSchema(ctx); err != nil {
					return err
				}
			} else if !app.DB.WithContext(ctx).Migrator().HasTable(&model.SystemConfig{}) {
				logging.Warn(
					logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx")),
					"schema not initialised, run init-db",
				)
				return nil
			}
			_, err := svc.EnsureSystemConfig(ctx)
			return err
		},
	})
}
