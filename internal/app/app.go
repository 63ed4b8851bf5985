package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mx-space/contentgen/internal/config"
	"github.com/mx-space/contentgen/internal/middleware"
	"github.com/mx-space/contentgen/internal/modules/content/generation"
	"github.com/mx-space/contentgen/internal/modules/content/pipeline"
	"github.com/mx-space/contentgen/internal/modules/processing/extract"
	"github.com/mx-space/contentgen/internal/modules/processing/generate"
	"github.com/mx-space/contentgen/internal/modules/processing/imagegen"
	"github.com/mx-space/contentgen/internal/modules/processing/llm"
	"github.com/mx-space/contentgen/internal/modules/storage/bundle"
	"github.com/mx-space/contentgen/internal/pkg/cron"
	"github.com/mx-space/contentgen/internal/pkg/objectstore"
	pkgredis "github.com/mx-space/contentgen/internal/pkg/redis"
	"github.com/mx-space/contentgen/internal/pkg/taskqueue"
)

const (
	apiPrefix          = "/api/v1"
	assetsPath         = "/assets"
	maxMultipartMemory = 16 << 20

	uploadSweepInterval = time.Hour
	uploadMaxAge        = 24 * time.Hour
)

// App holds all application dependencies.
type App struct {
	cfg    *config.AppConfig
	router *gin.Engine
	rc     *pkgredis.Client
	svc    *generation.Service
	jobs   *cron.Scheduler
	stop   context.CancelFunc
	logger *zap.Logger
}

// New wires config → Redis → storage → pipeline → routes.
func New(logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if err := applyRuntimeSettings(cfg); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rc, err := pkgredis.Connect(ctx, cfg.Redis.URLValue())
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}

	archive, mirror, err := newObjectStores(cfg)
	if err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("object storage: %w", err)
	}

	store, err := bundle.New(cfg.ResultsDir(), mirror, logger.Named("bundle"))
	if err != nil {
		_ = rc.Close()
		return nil, err
	}

	if !cfg.LLM.Configured() {
		logger.Warn("llm is not fully configured, content stages will fail until api_key, base_url and model are set")
	}
	runner := pipeline.New(
		extract.New(logger.Named("extract")),
		generate.New(llm.New(cfg.LLM, &http.Client{}), cfg.Brand, logger.Named("generate")),
		imagegen.New(cfg.Image, nil, archive, logger.Named("imagegen")),
		cfg.LLM,
		cfg.Toggles,
		logger.Named("pipeline"),
	)
	svc := generation.NewService(runner, store, taskqueue.NewService(rc), cfg.UploadsDir(), cfg.Upload, logger.Named("generation"))

	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.MaxMultipartMemory = maxMultipartMemory
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(cors.New(corsConfig(cfg)))

	jobs := cron.New(logger.Named("cron"))
	jobs.Register(cron.Job{
		Name:     "sweep-uploads",
		Interval: uploadSweepInterval,
		Fn: func(ctx context.Context) error {
			_, err := svc.SweepUploads(ctx, uploadMaxAge)
			return err
		},
	})
	jobsCtx, stop := context.WithCancel(context.Background())
	jobs.Start(jobsCtx)

	app := &App{cfg: cfg, router: router, rc: rc, svc: svc, jobs: jobs, stop: stop, logger: logger}
	app.registerRoutes()
	return app, nil
}

// newObjectStores returns the store archived panel images go to and the
// bundle mirror. Without S3 images are archived under the assets directory
// and bundles are not mirrored.
func newObjectStores(cfg *config.AppConfig) (archive, mirror objectstore.Store, err error) {
	if cfg.Storage.S3.Enabled() {
		s3, err := objectstore.NewS3(cfg.Storage.S3, nil)
		if err != nil {
			return nil, nil, err
		}
		return s3, s3, nil
	}
	return objectstore.NewLocal(cfg.AssetsDir(), assetsPath), nil, nil
}

func corsConfig(cfg *config.AppConfig) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", middleware.IdempotenceHeader},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "Retry-After"},
		AllowCredentials: true,
	}
	if len(cfg.AllowedOrigins) > 0 && !cfg.IsDev() {
		patterns := cfg.AllowedOrigins
		c.AllowOriginFunc = func(origin string) bool {
			host := extractOriginHost(origin)
			for _, pattern := range patterns {
				if matchOriginPattern(pattern, host) {
					return true
				}
			}
			return false
		}
	} else {
		c.AllowOriginFunc = func(origin string) bool { return true }
	}
	return c
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Shutdown stops background jobs, waits for queued runs, then closes Redis.
func (a *App) Shutdown(ctx context.Context) error {
	a.stop()
	a.jobs.Wait()
	waitErr := a.svc.Wait(ctx)
	if waitErr != nil {
		a.logger.Warn("queued runs still in flight at shutdown", zap.Error(waitErr))
	}
	return errors.Join(waitErr, a.rc.Close())
}

var processStart = time.Now()
