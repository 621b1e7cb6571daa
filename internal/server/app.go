// Package server initializes and runs the Kiwes membership server.
// It opens storage, applies migrations, builds the token engine and the
// social login registry, and runs the HTTP and gRPC servers until a
// shutdown signal arrives.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/kiwes/internal/logging"
	"github.com/dmitrijs2005/kiwes/internal/server/auth"
	"github.com/dmitrijs2005/kiwes/internal/server/config"
	"github.com/dmitrijs2005/kiwes/internal/server/metrics"
	"github.com/dmitrijs2005/kiwes/internal/server/providers"
	"github.com/dmitrijs2005/kiwes/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/kiwes/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/kiwes/internal/server/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	gs "github.com/dmitrijs2005/kiwes/internal/server/grpc"
	hs "github.com/dmitrijs2005/kiwes/internal/server/http"
)

const (
	startupTimeout  = 15 * time.Second
	shutdownTimeout = 10 * time.Second
)

var openDB = func(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	redis    *redis.Client
	engine   *auth.Engine
	members  *services.AuthService
	images   *services.ProfileImageService
	limiter  *hs.RateLimiter
	registry *prometheus.Registry
	metrics  *metrics.Collector
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	settings, err := c.Settings()
	if err != nil {
		return nil, err
	}

	startCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	db, err := openDB(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := db.PingContext(startCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	app := &App{config: c, logger: logger, db: db}

	digester := refreshtokens.NewDigester(settings.Secret)
	rm := repomanager.NewPostgresRepositoryManager(digester, logger)
	if err := rm.RunMigrations(startCtx, db); err != nil {
		app.close()
		return nil, err
	}

	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.metrics = metrics.NewCollector(app.registry)

	store, err := app.refreshStore(startCtx, rm, digester)
	if err != nil {
		app.close()
		return nil, err
	}

	directory := services.NewUserDirectory(db, rm, logger)

	app.engine, err = auth.NewEngine(settings, store, directory, logger, app.metrics)
	if err != nil {
		app.close()
		return nil, err
	}

	// Provider key sets fetch lazily with this context, so it must outlive
	// startup.
	reg, err := buildRegistry(ctx, c)
	if err != nil {
		app.close()
		return nil, err
	}
	logger.Info(ctx, "social login providers", "enabled", reg.Tags())

	app.members = services.NewAuthService(reg, directory, app.engine, store, logger, app.metrics)
	if c.S3.Enabled() {
		app.images = services.NewProfileImageService(c.S3.Service(), directory)
	}
	app.limiter = hs.NewRateLimiter(c.RateLimit.PerSecond, c.RateLimit.Burst, logger, app.metrics)

	return app, nil
}

// refreshStore picks the refresh token store named by the config.
func (app *App) refreshStore(ctx context.Context, rm repomanager.RepositoryManager, d *refreshtokens.Digester) (refreshtokens.Repository, error) {
	switch app.config.RefreshStore {
	case config.RefreshStoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     app.config.RedisAddr,
			Password: app.config.RedisPassword,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		app.redis = client
		return refreshtokens.NewRedisRepository(client, d), nil
	default:
		return rm.RefreshTokens(app.db), nil
	}
}

// buildRegistry registers a resolver for every configured provider.
func buildRegistry(ctx context.Context, c *config.Config) (*providers.Registry, error) {
	var list []providers.Resolver
	if c.Google.Enabled() {
		list = append(list, providers.NewGoogleResolver(ctx, c.Google.Provider()))
	}
	if c.Kakao.Enabled() {
		list = append(list, providers.NewKakaoResolver(c.Kakao.Provider()))
	}
	if c.Apple.Enabled() {
		apple, err := providers.NewAppleResolver(ctx, c.Apple.Provider())
		if err != nil {
			return nil, fmt.Errorf("apple: %w", err)
		}
		list = append(list, apple)
	}
	return providers.NewRegistry(list...), nil
}

func (app *App) router() http.Handler {
	deps := hs.RouterDeps{
		Members:        app.members,
		Auth:           app.engine,
		Limiter:        app.limiter,
		Metrics:        app.metrics,
		MetricsHandler: metrics.Handler(app.registry),
		Logger:         app.logger,
		AllowedOrigins: app.config.AllowedOrigins,

		TrustProxyHeaders: app.config.TrustProxy,
	}
	// A nil *ProfileImageService must not become a non-nil interface.
	if app.images != nil {
		deps.Images = app.images
	}
	return hs.NewRouter(deps)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	srv := &http.Server{
		Addr:              app.config.HTTPAddr,
		Handler:           app.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		app.logger.Info(ctx, "stopping HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(ctx, "http shutdown", "error", err)
		}
	}()

	app.logger.Info(ctx, "starting HTTP server", "address", app.config.HTTPAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, "http server", "error", err)
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.GRPCAddr, app.engine, app.logger)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, "grpc server", "error", err)
		cancelFunc()
	}
}

// Run serves until ctx is cancelled or a shutdown signal arrives, then
// releases every resource NewApp acquired.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting app")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	if app.config.GRPCAddr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startGRPCServer(ctx, cancelFunc)
		}()
	}

	wg.Wait()
	app.close()
	app.logger.Info(context.Background(), "app stopped")
}

func (app *App) close() {
	if app.limiter != nil {
		app.limiter.Stop()
	}
	if app.redis != nil {
		_ = app.redis.Close()
	}
	if app.db != nil {
		_ = app.db.Close()
	}
}
