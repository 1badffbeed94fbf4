// Package server wires configuration, storage and services together and runs
// the HTTP API and the gRPC health service until a shutdown signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/blogify/internal/logging"
	"github.com/dmitrijs2005/blogify/internal/server/auth"
	"github.com/dmitrijs2005/blogify/internal/server/config"
	"github.com/dmitrijs2005/blogify/internal/server/ratelimit"
	"github.com/dmitrijs2005/blogify/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/blogify/internal/server/rest"
	"github.com/dmitrijs2005/blogify/internal/server/services"
	goredis "github.com/redis/go-redis/v9"

	gs "github.com/dmitrijs2005/blogify/internal/server/grpc"
)

const healthCheckInterval = 10 * time.Second

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	redis  *goredis.Client
	http   *rest.HTTPServer
	health *gs.HealthServer
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.New(os.Stdout, c.LogLevel, c.LogFormat)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	db, err := repomanager.OpenDB(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	app := &App{config: c, logger: logger, db: db}

	var limiter ratelimit.Limiter
	if c.RedisURL != "" {
		rdb, err := ratelimit.NewRedisClient(ctx, c.RedisURL)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("redis init error: %w", err)
		}
		app.redis = rdb
		limiter = ratelimit.NewRedisLimiter(rdb, c.LoginMaxAttempts, c.LoginWindow)
	} else {
		logger.Warn(ctx, "REDIS_URL not set, login throttling disabled")
	}

	issuer := auth.NewTokenIssuer(c.AccessTokenSecret, c.RefreshTokenSecret,
		c.AccessTokenValidityDuration, c.RefreshTokenValidityDuration)

	us := services.NewUserService(db, rm, auth.NewBcryptHasher(c.BcryptCost), issuer, limiter, logger)
	cs := services.NewContentService(db, rm, logger)
	as := services.NewAvatarService(c)

	app.http = rest.NewHTTPServer(c, logger, us, cs, as)
	app.health = gs.NewHealthServer(c.EndpointAddrGRPC, logger, db, healthCheckInterval)

	return app, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.http.Run(ctx); err != nil {
		app.logger.Error(ctx, "HTTP server failed", "error", err)
		cancelFunc()
	}
}

func (app *App) startHealthServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.health.Run(ctx); err != nil {
		app.logger.Error(ctx, "gRPC health server failed", "error", err)
		cancelFunc()
	}
}

// Run blocks until a signal arrives or one of the servers fails, then
// releases the database and Redis connections.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startHealthServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.close(ctx)
	app.logger.Info(ctx, "App stopped")
}

func (app *App) close(ctx context.Context) {
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error(ctx, "closing redis", "error", err)
		}
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "closing database", "error", err)
	}
}
