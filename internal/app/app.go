package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/MrSnakeDoc/tenders/internal/clock"
	"github.com/MrSnakeDoc/tenders/internal/config"
	"github.com/MrSnakeDoc/tenders/internal/domain"
	"github.com/MrSnakeDoc/tenders/internal/httpserver"
	"github.com/MrSnakeDoc/tenders/internal/httpserver/deps"
	"github.com/MrSnakeDoc/tenders/internal/logger"
	"github.com/MrSnakeDoc/tenders/internal/ratelimit"
	"github.com/MrSnakeDoc/tenders/internal/redis"
	"github.com/MrSnakeDoc/tenders/internal/scheduler"
	"github.com/MrSnakeDoc/tenders/internal/sources/gosplan"
	"github.com/MrSnakeDoc/tenders/internal/store"
	"github.com/MrSnakeDoc/tenders/internal/store/memory"
	"github.com/MrSnakeDoc/tenders/internal/store/postgres"
	redisstore "github.com/MrSnakeDoc/tenders/internal/store/redis"
	"github.com/MrSnakeDoc/tenders/internal/store/sqlite"
	"github.com/MrSnakeDoc/tenders/internal/version"
)

// App owns every long-lived component. One App per process: the upstream
// Spacer it builds is the only one.
type App struct {
	cfg    *config.Config
	logger logger.Logger
	clock  clock.Clock

	store       store.Store
	redisClient *goredis.Client
	cache       *redisstore.Store

	client    *gosplan.Client
	search    *scheduler.SearchScheduler
	retention *scheduler.RetentionSweeper
	seeder    *scheduler.SeedSyncer
}

// New opens storage and the optional Redis cache, then wires the upstream
// client and both background jobs. Nothing runs until Serve, Ingest or
// Sweep is called.
func New(ctx context.Context, cfg *config.Config, loggerClient logger.Logger) (*App, error) {
	c := clock.Real()

	st, err := openStore(ctx, cfg, c, loggerClient)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:    cfg,
		logger: loggerClient,
		clock:  c,
		store:  st,
		client: NewUpstreamClient(cfg, c, loggerClient),
	}

	if cfg.RedisAddr != "" {
		a.connectRedis(ctx)
	} else {
		loggerClient.Info("redis not configured, stats cache and run reports disabled")
	}

	var (
		cycleSink scheduler.CycleSink
		sweepSink scheduler.SweepSink
	)
	if a.cache != nil {
		cycleSink = a.cache
		sweepSink = a.cache
	}

	a.search = scheduler.NewSearchScheduler(st, st, a.client, cycleSink, c,
		loggerClient.Named("search"),
		scheduler.SearchConfig{QueryLimit: cfg.SearchQueryLimit, Pacing: cfg.SearchQueryPacing})
	a.retention = scheduler.NewRetentionSweeper(st, sweepSink, c,
		loggerClient.Named("retention"), cfg.CleanupGrace)

	if cfg.QuerySeedFile != "" {
		a.seeder = scheduler.NewSeedSyncer(cfg.QuerySeedFile, st, loggerClient.Named("seed"))
	}

	return a, nil
}

// NewUpstreamClient builds the upstream client with its own Spacer. Use it
// only where no App exists in the process.
func NewUpstreamClient(cfg *config.Config, c clock.Clock, loggerClient logger.Logger) *gosplan.Client {
	spacer := ratelimit.NewSpacer(cfg.UpstreamRequestDelay, c, loggerClient.Named("ratelimit"))
	return gosplan.NewClient(gosplan.Options{
		BaseURL:    cfg.UpstreamBaseURL,
		UserAgent:  cfg.UpstreamUserAgent,
		Timeout:    cfg.UpstreamTimeout,
		MaxRetries: cfg.UpstreamMaxRetries,
	}, spacer, loggerClient.Named("upstream"))
}

func openStore(ctx context.Context, cfg *config.Config, c clock.Clock, loggerClient logger.Logger) (store.Store, error) {
	switch cfg.Storage {
	case config.StoragePostgres:
		loggerClient.Info("connecting to postgres")
		st, err := postgres.Connect(ctx, cfg.DatabaseURL, c, loggerClient.Named("postgres"))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		return st, nil
	case config.StorageSQLite:
		loggerClient.Info("opening sqlite database", logger.String("path", cfg.SQLitePath))
		st, err := sqlite.Open(ctx, cfg.SQLitePath, c, loggerClient.Named("sqlite"))
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite: %w", err)
		}
		return st, nil
	case config.StorageMemory:
		loggerClient.Warn("using in-memory storage, data is lost on exit")
		return memory.New(c), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
	}
}

// connectRedis is best effort: without Redis the app still ingests and
// serves, only the stats cache and run reports are missing.
func (a *App) connectRedis(ctx context.Context) {
	a.logger.Infof("Connecting to Redis at %s", a.cfg.RedisAddr)
	client, err := redis.New(ctx, redis.ConnectOptions{
		Addr:           a.cfg.RedisAddr,
		User:           a.cfg.RedisUser,
		Password:       a.cfg.RedisPassword,
		RedisDB:        a.cfg.RedisDB,
		DialTimeout:    a.cfg.RedisDT,
		ReadTimeout:    a.cfg.RedisRT,
		WriteTimeout:   a.cfg.RedisWT,
		PoolSize:       a.cfg.RedisPoolSize,
		ConnectTimeout: a.cfg.RedisConnectTimeout,
		RetryInterval:  a.cfg.RedisRetryInterval,
		MaxWait:        a.cfg.RedisMaxWait,
		PingTimeout:    a.cfg.RedisPingTimeout,
		WarnThreshold:  a.cfg.RedisWarnThreshold,
	}, a.logger.Named("redis"))
	if err != nil {
		a.logger.Warn("redis unavailable, continuing without cache", logger.Error(err))
		return
	}
	a.redisClient = client
	a.cache = redisstore.NewStore(client, a.cfg.StatsCacheTTL)
	a.logger.Info("Redis initialized successfully")
}

// Client exposes the upstream client for one-shot commands.
func (a *App) Client() *gosplan.Client { return a.client }

// Ingest runs one search cycle now.
func (a *App) Ingest(ctx context.Context) (domain.CycleReport, error) {
	a.syncSeed(ctx)
	return a.search.RunCycle(ctx)
}

// Sweep runs one retention pass now.
func (a *App) Sweep(ctx context.Context) (domain.SweepReport, error) {
	return a.retention.Sweep(ctx)
}

func (a *App) syncSeed(ctx context.Context) {
	if a.seeder == nil {
		return
	}
	if _, err := a.seeder.Sync(ctx); err != nil {
		a.logger.Error("failed to seed saved queries", logger.Error(err))
	}
}

// Serve starts both loops and the HTTP API, and blocks until SIGINT or
// SIGTERM, ctx cancellation, or a server failure.
func (a *App) Serve(ctx context.Context) error {
	a.logger.Infof("🚀 Starting tenders v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Info(version.String())

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	searchSchedule, err := scheduler.ParseSchedule(a.cfg.SearchSchedule)
	if err != nil {
		return err
	}
	cleanupSchedule, err := scheduler.ParseSchedule(a.cfg.CleanupSchedule)
	if err != nil {
		return err
	}

	a.syncSeed(ctx)
	if a.seeder != nil {
		w, err := a.seeder.Watch(ctx)
		if err != nil {
			a.logger.Warn("seed file hot reload disabled", logger.Error(err))
		} else {
			defer w.Stop()
		}
	}

	searchLoop := a.newLoop("search", searchSchedule, a.cfg.SearchInitialDelay, a.search.Job())
	retentionLoop := a.newLoop("retention", cleanupSchedule, a.cfg.CleanupInitialDelay, a.retention.Job())

	loopCtx, cancelLoops := context.WithCancel(ctx)
	var wg sync.WaitGroup
	for _, l := range []*scheduler.Loop{searchLoop, retentionLoop} {
		wg.Add(1)
		go func(l *scheduler.Loop) {
			defer wg.Done()
			l.Run(loopCtx)
		}(l)
	}

	server := httpserver.New(a.cfg, a.logger, deps.Deps{
		Logger:        a.logger,
		StartTime:     a.clock.Now(),
		Version:       version.Version,
		Commit:        version.Commit,
		BuildDate:     version.BuildDate,
		GoVersion:     version.GoVersion,
		Clock:         a.clock,
		AllowedCIDRS:  a.cfg.AllowedCIDRS,
		TrustProxy:    a.cfg.TrustProxy,
		RateBurst:     a.cfg.APIRateBurst,
		RatePerMin:    a.cfg.APIRatePerMin,
		Storage:       a.cfg.Storage,
		Store:         a.store,
		Cache:         a.cache,
		SearchLoop:    searchLoop,
		RetentionLoop: retentionLoop,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("failed to stop server: %w", err))
	}

	// An in-flight cycle observes the cancellation at its next wait or
	// upstream call and stops there.
	cancelLoops()
	wg.Wait()

	if runErr == nil {
		a.logger.Info("✅ tenders stopped cleanly")
	}
	return runErr
}

func (a *App) newLoop(name string, schedule cron.Schedule, initialDelay time.Duration, job scheduler.Job) *scheduler.Loop {
	return scheduler.NewLoop(scheduler.LoopOptions{
		Name:         name,
		Schedule:     schedule,
		InitialDelay: initialDelay,
		Clock:        a.clock,
		Logger:       a.logger.Named(name),
	}, job)
}

// Close releases storage and Redis.
func (a *App) Close() error {
	var errs []error
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		} else {
			a.logger.Info("✅ Redis closed cleanly")
		}
	}
	if err := a.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	return errors.Join(errs...)
}
