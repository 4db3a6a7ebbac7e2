package app

import (
	"context"
	"database/sql"
	"fmt"
	"net"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	libdb "parkmeter/backend/libs/db"
	libredis "parkmeter/backend/libs/redis"
	"parkmeter/backend/services/parking-server/internal/config"
	"parkmeter/backend/services/parking-server/internal/handler"
	httpserver "parkmeter/backend/services/parking-server/internal/http"
	"parkmeter/backend/services/parking-server/internal/location"
	"parkmeter/backend/services/parking-server/internal/reconcile"
	redisstore "parkmeter/backend/services/parking-server/internal/redis"
	"parkmeter/backend/services/parking-server/internal/repository"
	"parkmeter/backend/services/parking-server/internal/service"
	"parkmeter/backend/services/parking-server/internal/tcp"
)

// App wires all dependencies for the parking server.
type App struct {
	tcpServer     *tcp.Server
	metricsServer *httpserver.Server
	job           *reconcile.Job
	store         *service.SessionStore
	db            *sql.DB
	redisClient   *redis.Client
	logger        *zap.Logger
}

// New builds the application graph. Storage problems at this point are fatal.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	sqlDB, err := libdb.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("app: open storage: %w", err)
	}
	a := &App{db: sqlDB, logger: logger}

	if err := repository.EnsureSchema(ctx, sqlDB); err != nil {
		a.Close()
		return nil, err
	}
	if err := repository.ValidateSchema(ctx, sqlDB); err != nil {
		a.Close()
		return nil, err
	}

	priceRepo := repository.NewPriceRepository(sqlDB, cfg.Database.Driver)
	if cfg.Prices.Seed {
		if err := priceRepo.SeedDefaults(ctx, location.DefaultPrices); err != nil {
			a.Close()
			return nil, err
		}
	}
	sessionRepo := repository.NewSessionRepository(sqlDB, cfg.Database.Driver)
	resolver := location.NewResolver(priceRepo)

	interrupted, err := sessionRepo.List(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	if len(interrupted) > 0 {
		logger.Info("interrupted sessions awaiting resume", zap.Int("count", len(interrupted)))
	}

	var opts []service.Option
	if cfg.RedisEnabled() {
		a.redisClient, err = libredis.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("app: connect redis: %w", err)
		}
		opts = append(opts, service.WithActiveCache(redisstore.NewStore(a.redisClient, cfg.Redis.TTL)))
	}
	a.store = service.NewSessionStore(sessionRepo, resolver, logger, opts...)

	sessionHandler := handler.NewSessionHandler(a.store, resolver, handler.Options{
		ReadTimeout:  cfg.TCP.ReadTimeout,
		WriteTimeout: cfg.TCP.WriteTimeout,
	}, logger)

	a.tcpServer = tcp.NewServer(tcp.Options{
		Addr:            cfg.TCPAddress(),
		MaxSessions:     cfg.TCP.MaxSessions,
		ShutdownTimeout: cfg.ShutdownTimeout(),
	}, sessionHandler, tcp.NewManager(), logger)

	a.job = reconcile.NewJob(a.store, cfg.Reconcile.Period, logger)

	if cfg.MetricsEnabled() {
		router := httpserver.NewRouter(httpserver.Routes{
			Metrics: promhttp.Handler(),
			Health:  httpserver.NewHealthHandler(sqlDB),
		})
		a.metricsServer = httpserver.NewServer(cfg.Metrics.Addr, router, logger)
	}

	return a, nil
}

// Run serves devices until ctx is done. The reconciliation job outlives the
// listener so its final flush runs after every handler has drained.
func (a *App) Run(ctx context.Context) error {
	jobCtx, stopJob := context.WithCancel(context.WithoutCancel(ctx))
	jobDone := make(chan struct{})
	go func() {
		defer close(jobDone)
		a.job.Run(jobCtx)
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.tcpServer.Run(gctx)
	})
	if a.metricsServer != nil {
		g.Go(func() error {
			return a.metricsServer.Run(gctx)
		})
	}
	err := g.Wait()

	stopJob()
	<-jobDone
	return err
}

// TCPAddr returns the device listener address once it is bound.
func (a *App) TCPAddr() net.Addr {
	return a.tcpServer.Addr()
}

// Close releases resources.
func (a *App) Close() {
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
}
