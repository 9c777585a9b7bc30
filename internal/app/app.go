// Package app builds the catalog's dependency graph once, explicitly.
// Nothing in the domain layer reaches for a global: every store, disk and
// service is constructed here and passed down.
package app

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/shashiranjanraj/catalog/app/repositories"
	"github.com/shashiranjanraj/catalog/app/services"
	"github.com/shashiranjanraj/catalog/config"
	"github.com/shashiranjanraj/catalog/pkg/auth"
	"github.com/shashiranjanraj/catalog/pkg/cache"
	"github.com/shashiranjanraj/catalog/pkg/imaging"
	"github.com/shashiranjanraj/catalog/pkg/logger"
	"github.com/shashiranjanraj/catalog/pkg/middleware"
	"github.com/shashiranjanraj/catalog/pkg/schedule"
	"github.com/shashiranjanraj/catalog/pkg/storage"
	"github.com/shashiranjanraj/catalog/pkg/workerpool"
)

// watermarkBox bounds the watermark before it is composited.
const watermarkBox = 200

// App holds the wired components of a running catalog.
type App struct {
	DB     *Database
	Stores repositories.Stores
	Disk   storage.Disk
	Imager *imaging.Processor
	Issuer *auth.TokenIssuer

	Limiter middleware.Limiter
	Authn   *middleware.Auth

	Auth        *services.AuthService
	Products    *services.ProductService
	Favourites  *services.FavouriteService
	Maintenance *services.MaintenanceService

	pool    *workerpool.Pool
	redis   *redis.Client
	logSink *logger.MongoHandler
}

// New connects every backend and constructs the services. On error,
// whatever was opened is closed again.
func New(ctx context.Context) (_ *App, err error) {
	if err := config.Load(); err != nil {
		return nil, err
	}

	a := &App{}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	a.attachLogSink()

	if a.DB, err = OpenDatabase(ctx); err != nil {
		return nil, err
	}
	if a.DB.Mongo != nil {
		if err = repositories.EnsureMongoIndexes(ctx, a.DB.Mongo); err != nil {
			return nil, err
		}
	}
	disk, err := storage.New(storage.ConfigFromEnv())
	if err != nil {
		return nil, err
	}

	a.pool = workerpool.New(config.ImageWorkers())
	imager := imaging.NewProcessor(imagingOptions(), a.pool)
	issuer := auth.NewTokenIssuer(config.JWTSecret(), config.JWTTTL(), config.TokenRenewWithin())
	a.wire(a.DB, disk, imager, issuer, a.newLimiter(ctx))

	logger.Info("application ready",
		"db_driver", a.DB.Driver,
		"storage", config.StorageDefault(),
		"rate_limit", a.Limiter.Name(),
	)
	return a, nil
}

// Assemble wires the stores and services over already-open components.
// Tests use it to build an App without touching the environment.
func Assemble(db *Database, disk storage.Disk, imager *imaging.Processor, issuer *auth.TokenIssuer, limiter middleware.Limiter) *App {
	a := &App{}
	a.wire(db, disk, imager, issuer, limiter)
	return a
}

func (a *App) wire(db *Database, disk storage.Disk, imager *imaging.Processor, issuer *auth.TokenIssuer, limiter middleware.Limiter) {
	a.DB = db
	a.Stores = db.Stores()
	a.Disk = disk
	a.Imager = imager
	a.Issuer = issuer
	a.Limiter = limiter
	a.Authn = middleware.NewAuth(issuer, a.Stores.Users, config.CookieSecure())

	a.Auth = services.NewAuthService(a.Stores.Users, issuer)
	a.Products = services.NewProductService(a.Stores, disk, imager)
	a.Favourites = services.NewFavouriteService(a.Stores, a.Products)
	a.Maintenance = services.NewMaintenanceService(a.Stores)
}

func imagingOptions() imaging.Options {
	opts := imaging.DefaultOptions()
	opts.MaxFileSize = config.MaxFileSize()
	opts.MaxFiles = config.MaxUploadFiles()
	if px := config.MaxImagePixels(); px > 0 {
		opts.MaxPixels = px
	}
	opts.AllowedTypes = config.UploadAllowedTypes()

	if path := config.WatermarkPath(); path != "" {
		mark, err := imaging.LoadWatermark(path, watermarkBox)
		if err != nil {
			logger.Warn("watermark disabled", "path", path, "error", err)
		} else {
			opts.Watermark = mark
		}
	}
	return opts
}

// newLimiter returns the Redis limiter when configured and reachable, the
// in-memory one otherwise.
func (a *App) newLimiter(ctx context.Context) middleware.Limiter {
	limit, window := config.RateLimitMax(), config.RateLimitWindow()
	if config.RateLimitDriver() != "redis" {
		return middleware.NewMemoryLimiter(limit, window)
	}

	rdb, err := cache.Connect(ctx, cache.Options{
		Addr:     config.RedisAddr(),
		Password: config.RedisPassword(),
	})
	if err != nil {
		logger.Warn("redis unavailable, rate limiting in memory", "error", err)
		return middleware.NewMemoryLimiter(limit, window)
	}
	a.redis = rdb
	return middleware.NewRedisLimiter(rdb, limit, window)
}

// attachLogSink fans log records out to MongoDB when LOG_MONGO_URI is set.
func (a *App) attachLogSink() {
	uri := config.LogMongoURI()
	if uri == "" {
		return
	}
	h, err := logger.NewMongoHandler(uri, config.LogMongoDB(), config.LogMongoCollection(), slog.LevelInfo)
	if err != nil {
		logger.Warn("mongo log sink disabled", "error", err)
		return
	}
	a.logSink = h
	logger.Use(logger.NewHandler(os.Stdout, config.AppEnv()), h)
}

// Scheduler returns the background tasks serve runs alongside the
// listeners.
func (a *App) Scheduler() *schedule.Scheduler {
	s := schedule.New()
	s.Every("orphans.sweep", config.OrphanSweepInterval(), func(ctx context.Context) error {
		report, err := a.Maintenance.SweepOrphans(ctx, false)
		if err == nil && len(report.OrphanProductIDs)+len(report.OrphanUserIDs) > 0 {
			logger.Info("scheduled orphan sweep", "products", len(report.OrphanProductIDs), "users", len(report.OrphanUserIDs))
		}
		return err
	})
	return s
}

// Ping reports whether the database answers.
func (a *App) Ping(ctx context.Context) error {
	return a.DB.Ping(ctx)
}

// LocalRoot returns the directory served under STORAGE_URL when the local
// disk is in use.
func (a *App) LocalRoot() (string, bool) {
	local, ok := a.Disk.(*storage.LocalDisk)
	if !ok {
		return "", false
	}
	return local.Root(), true
}

// Close releases every resource New acquired. It is safe on a partially
// built App.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.pool != nil {
		a.pool.Shutdown()
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close(ctx))
	}
	if a.logSink != nil {
		logger.Use(logger.NewHandler(os.Stdout, config.AppEnv()))
		a.logSink.Close()
	}
	return errors.Join(errs...)
}
