package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github-faces/internal/avatar"
	"github-faces/internal/cache"
	"github-faces/internal/config"
	"github-faces/internal/github"
	apphttp "github-faces/internal/http"
	"github-faces/internal/pipeline"
	"github-faces/internal/render"
	"github-faces/internal/repository/sqlite"
	"github-faces/internal/storage"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := "fetch"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "fetch":
		runFetch(ctx, cfg, logger)
	case "render":
		runRender(cfg, logger)
	case "serve":
		runServe(ctx, cfg, logger)
	default:
		logger.Fatalf("unknown command %q (expected fetch, render or serve)", cmd)
	}
}

func runFetch(ctx context.Context, cfg config.Config, logger *logrus.Logger) {
	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()

	runRepo := sqlite.NewRunRepository(db)
	if err := runRepo.Init(ctx); err != nil {
		logger.Fatalf("init run repository: %v", err)
	}

	storageSvc, err := buildStorage(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup storage: %v", err)
	}

	if cfg.GitHub.Token == "" {
		logger.Warn("no GITHUB_TOKEN set: rate limits are low and sponsorship counts stay unknown")
	}

	client := github.NewClient(github.Config{
		Token:  cfg.GitHub.Token,
		Query:  cfg.GitHub.Query,
		Logger: logger,
	})
	syncer := avatar.NewSyncer(avatar.Config{
		Dir:    cfg.Faces.Dir,
		Logger: logger,
	})
	store := cache.NewStore(cfg.Cache.Path, logger)

	p := pipeline.New(pipeline.Config{
		Client:      client,
		Avatars:     syncer,
		Cache:       store,
		Runs:        runRepo,
		Storage:     storageSvc,
		Bucket:      cfg.Storage.Bucket,
		KeyPrefix:   cfg.Storage.KeyPrefix,
		TargetUsers: cfg.GitHub.TargetUsers,
		Logger:      logger,
	})

	if _, err := p.Run(ctx); err != nil {
		if errors.Is(err, pipeline.ErrNoUsers) {
			logger.Fatal("no valid users fetched, exiting")
		}
		logger.Fatalf("fetch: %v", err)
	}
}

func runRender(cfg config.Config, logger *logrus.Logger) {
	store := cache.NewStore(cfg.Cache.Path, logger)
	users, err := store.Load()
	if err != nil {
		logger.Fatalf("load cache (run fetch first): %v", err)
	}
	if len(users) == 0 {
		logger.Fatal("no users found in cache, run fetch first")
	}

	r := render.New(render.Config{
		SiteDir: cfg.Site.Dir,
		BaseURL: cfg.Site.BaseURL,
		Logger:  logger,
	})
	if err := r.Render(users); err != nil {
		logger.Fatalf("render: %v", err)
	}
}

func runServe(ctx context.Context, cfg config.Config, logger *logrus.Logger) {
	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()

	runRepo := sqlite.NewRunRepository(db)
	if err := runRepo.Init(ctx); err != nil {
		logger.Fatalf("init run repository: %v", err)
	}

	store := cache.NewStore(cfg.Cache.Path, logger)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(store, runRepo, cfg.Site.Dir, cfg.Faces.Dir)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
}

func buildStorage(ctx context.Context, cfg config.Config, logger *logrus.Logger) (storage.Service, error) {
	if cfg.Storage.Bucket == "" {
		return nil, nil // mirroring disabled
	}

	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.Storage.Region),
	}
	if cfg.AWS.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.AWS.Profile))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Infof("mirroring avatars to s3 bucket %s (region %s)", cfg.Storage.Bucket, cfg.Storage.Region)
	return storage.NewS3Service(client), nil
}
