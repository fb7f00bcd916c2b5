package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"resume-wizard/internal/gateway"
	"resume-wizard/internal/jobs"
	"resume-wizard/internal/services/health"
	"resume-wizard/internal/shared/config"
	"resume-wizard/internal/shared/server"
	"resume-wizard/internal/shared/server/middleware"
	"resume-wizard/internal/shared/storage/db"
	"resume-wizard/internal/shared/storage/spool"
	"resume-wizard/internal/shared/telemetry"
	"resume-wizard/internal/users"
)

// App holds shared dependencies.
type App struct {
	Config       config.Config
	Router       *gin.Engine
	DB           *sql.DB
	Gateway      gateway.ProcessingGateway
	Spool        *spool.Spool
	RateLimiter  *middleware.RateLimiter
	JobsRepo     jobs.Repo
	UsersRepo    users.Repo
	JobsService  *jobs.Service
	UsersService *users.Service
	JobsHandler  *jobs.Handler
}

type Option func(*options)

type options struct {
	gateway gateway.ProcessingGateway
}

// WithGateway replaces the subprocess gateway, mainly for tests.
func WithGateway(gw gateway.ProcessingGateway) Option {
	return func(o *options) {
		o.gateway = gw
	}
}

// Build prepares dependencies and the router.
func Build(cfg config.Config, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	gw := o.gateway
	if gw == nil {
		gw = gateway.NewProcess(gateway.Commands{
			Extract: config.Command(cfg.ExtractCommand),
			Parse:   config.Command(cfg.ParseCommand),
			Score:   config.Command(cfg.ScoreCommand),
			Enhance: config.Command(cfg.EnhanceCommand),
			Format:  config.Command(cfg.FormatCommand),
		}, cfg.StageTimeout)
	}

	app := &App{
		Config:  cfg,
		DB:      sqlDB,
		Gateway: gw,
		Spool:   spool.New(cfg.UploadDir),
	}
	if cfg.RateLimitRPS > 0 {
		app.RateLimiter = middleware.NewRateLimiter(cfg.RateLimitRPS)
	}
	buildServices(app)

	app.Router = server.NewRouter(server.RouterDeps{
		Config:      app.Config,
		Health:      health.NewService(app.DB),
		JobsHandler: app.JobsHandler,
		RateLimiter: app.RateLimiter,
	})
	return app, nil
}

// Close releases the database pool, if any.
func (a *App) Close() error {
	if a == nil || a.DB == nil {
		return nil
	}
	return a.DB.Close()
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if config.IsDevLike(cfg.Env) {
			telemetry.Info("bootstrap.memory_store", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	if err == nil {
		err = db.RunMigrations(ctx, sqlDB)
		if err != nil {
			sqlDB.Close()
		}
	}
	if err != nil {
		if config.IsDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.memory_store", map[string]any{"reason": "database unavailable", "error": err.Error()})
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func buildServices(app *App) {
	if app.DB != nil {
		app.JobsRepo = &jobs.PGRepo{DB: app.DB}
		app.UsersRepo = &users.PGRepo{DB: app.DB}
	} else {
		app.JobsRepo = jobs.NewMemoryRepo()
		app.UsersRepo = users.NewMemoryRepo()
	}

	app.JobsService = &jobs.Service{
		Repo:           app.JobsRepo,
		Gateway:        app.Gateway,
		Spool:          app.Spool,
		MaxUploadBytes: app.Config.MaxUploadBytes,
	}
	app.UsersService = users.NewService(app.UsersRepo)
	app.JobsHandler = jobs.NewHandler(app.JobsService)
}
