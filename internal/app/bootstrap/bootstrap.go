package bootstrap

import (
	"context"
	"errors"

	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"pagegen/app/internal/access"
	"pagegen/app/internal/analytics"
	"pagegen/app/internal/assets"
	"pagegen/app/internal/branding"
	"pagegen/app/internal/config"
	"pagegen/app/internal/db"
	"pagegen/app/internal/directory"
	"pagegen/app/internal/events"
	"pagegen/app/internal/generator"
	apphttp "pagegen/app/internal/http"
	"pagegen/app/internal/listing"
	"pagegen/app/internal/management"
	"pagegen/app/internal/notify"
	"pagegen/app/internal/pages"
	"pagegen/app/internal/registry"
)

type Dependencies struct {
	Config    *config.Config
	Logger    *logrus.Logger
	SentryHub *sentry.Hub
}

type Result struct {
	HTTPServer *apphttp.Server
	// Consumer is nil when no broker is configured.
	Consumer *events.Consumer
	Database *gorm.DB
	Cleanup  func() error
}

// Build composes the landing page services and returns the constructed components.
func Build(ctx context.Context, deps Dependencies) (Result, error) {
	if deps.Config == nil {
		return Result{}, eris.New("configuration is required")
	}
	cfg := deps.Config
	logger := deps.Logger

	database, err := db.Open(db.Options{
		Driver: cfg.DBDriver,
		Path:   cfg.DBPath,
		DSN:    cfg.DatabaseURL,
	})
	if err != nil {
		return Result{}, eris.Wrap(err, "opening database")
	}

	var closers []func() error
	closers = append(closers, func() error { return db.Close(database) })
	cleanup := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	closeOnError := func(wrapper error) (Result, error) {
		if closeErr := cleanup(); closeErr != nil && logger != nil {
			logger.WithError(closeErr).Error("releasing resources after bootstrap failure")
		}
		return Result{}, wrapper
	}

	if err := pages.Migrate(ctx, database, logger); err != nil {
		return closeOnError(eris.Wrap(err, "running page migrations"))
	}

	repo, err := pages.NewRepository(database, logger)
	if err != nil {
		return closeOnError(eris.Wrap(err, "creating page repository"))
	}

	reg := registry.Default()
	dispatcher := events.NewDispatcher(logger)

	dir, err := buildDirectory(ctx, cfg, database, dispatcher, logger)
	if err != nil {
		return closeOnError(err)
	}

	resolver, err := access.NewResolver(dir, logger)
	if err != nil {
		return closeOnError(eris.Wrap(err, "creating access resolver"))
	}

	store, closeStore, err := buildCounterStore(ctx, cfg, repo)
	if err != nil {
		return closeOnError(err)
	}
	if closeStore != nil {
		closers = append(closers, closeStore)
	}

	counters, err := analytics.NewService(analytics.Options{
		Store:     store,
		Logger:    logger,
		SentryHub: deps.SentryHub,
	})
	if err != nil {
		return closeOnError(eris.Wrap(err, "creating analytics service"))
	}

	gen, err := generator.New(generator.Options{
		Registry:         reg,
		Repository:       repo,
		Directory:        dir,
		DirectoryTimeout: cfg.DirectoryTimeout,
		Logger:           logger,
		SentryHub:        deps.SentryHub,
	})
	if err != nil {
		return closeOnError(eris.Wrap(err, "creating page generator"))
	}

	queries, err := listing.NewService(listing.Options{
		Repository:    repo,
		Registry:      reg,
		Access:        resolver,
		Counters:      counters,
		PublicBaseURL: cfg.PublicBaseURL,
		Logger:        logger,
	})
	if err != nil {
		return closeOnError(eris.Wrap(err, "creating listing service"))
	}

	manager, err := management.NewService(management.Options{
		Repository: repo,
		Access:     resolver,
		Logger:     logger,
		SentryHub:  deps.SentryHub,
	})
	if err != nil {
		return closeOnError(eris.Wrap(err, "creating management service"))
	}

	assetStore, err := buildAssetStore(ctx, cfg, logger)
	if err != nil {
		return closeOnError(err)
	}

	notifier, err := buildNotifier(cfg, logger)
	if err != nil {
		return closeOnError(err)
	}

	dispatcher.OnLeadCaptured(events.RecordConversions(counters, logger))
	dispatcher.OnLeadCapturedFollowup(events.NotifyLeadRecipients(events.LeadNotifierOptions{
		Pages:     repo,
		Directory: dir,
		Notifier:  notifier,
		PageURL:   queries.URL,
		Logger:    logger,
	}))
	dispatcher.OnProfileImageChanged(events.ProfileImageSync(repo, logger))

	var consumer *events.Consumer
	if cfg.AMQPURL != "" {
		consumer, err = events.NewConsumer(events.ConsumerOptions{
			URL:        cfg.AMQPURL,
			Queue:      cfg.AMQPQueue,
			Dispatcher: dispatcher,
			Logger:     logger,
		})
		if err != nil {
			return closeOnError(eris.Wrap(err, "creating event consumer"))
		}
		closers = append(closers, consumer.Close)
	}

	httpServer, err := apphttp.NewServer(apphttp.Options{
		Generator:  gen,
		Listing:    queries,
		Management: manager,
		Counters:   counters,
		Access:     resolver,
		Events:     dispatcher,
		Repository: repo,
		Directory:  dir,
		Registry:   reg,
		Assets:     assetStore,
		Branding: branding.Defaults{
			PrimaryColor:       cfg.Branding.PrimaryColor,
			SecondaryColor:     cfg.Branding.SecondaryColor,
			LogoRef:            cfg.Branding.LogoRef,
			BackgroundVideoRef: cfg.Branding.BackgroundVideoRef,
		},
		PublicBaseURL: cfg.PublicBaseURL,
		Auth: apphttp.AuthSettings{
			Secret: cfg.JWTSecret,
			Issuer: cfg.JWTIssuer,
		},
		WebhookSecret: cfg.WebhookSecret,
		Database:      database,
		Logger:        logger,
		SentryHub:     deps.SentryHub,
		RateLimiter: apphttp.RateLimiterSettings{
			Burst:             cfg.RateLimit.Burst,
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			ClientTTL:         cfg.RateLimit.ClientTTL,
		},
	})
	if err != nil {
		return closeOnError(eris.Wrap(err, "initialising http server"))
	}
	closers = append(closers, func() error {
		httpServer.Close()
		return nil
	})

	return Result{
		HTTPServer: httpServer,
		Consumer:   consumer,
		Database:   database,
		Cleanup:    cleanup,
	}, nil
}

// buildDirectory prefers the remote directory service and falls back to local tables.
func buildDirectory(ctx context.Context, cfg *config.Config, database *gorm.DB, dispatcher *events.Dispatcher, logger *logrus.Logger) (directory.Directory, error) {
	if cfg.DirectoryURL != "" {
		client, err := directory.NewHTTPClient(directory.HTTPClientOptions{
			BaseURL: cfg.DirectoryURL,
			Token:   cfg.DirectoryToken,
			Timeout: cfg.DirectoryTimeout,
			Logger:  logger,
		})
		if err != nil {
			return nil, eris.Wrap(err, "creating directory client")
		}
		return client, nil
	}

	local, err := directory.NewGormDirectory(database, logger)
	if err != nil {
		return nil, eris.Wrap(err, "creating local directory")
	}
	if err := local.Migrate(ctx); err != nil {
		return nil, eris.Wrap(err, "running directory migrations")
	}
	local.OnHeadshotChange(func(ctx context.Context, userID int64, headshotRef string) error {
		return dispatcher.ProfileImageChanged(ctx, events.ProfileImageChanged{
			UserID:      userID,
			HeadshotRef: headshotRef,
		})
	})
	if logger != nil {
		logger.Warn("DIRECTORY_URL not set; using local profile tables")
	}
	return local, nil
}

func buildCounterStore(ctx context.Context, cfg *config.Config, repo pages.Repository) (analytics.Store, func() error, error) {
	if cfg.RedisAddr == "" {
		store, err := analytics.NewRepositoryStore(repo)
		if err != nil {
			return nil, nil, eris.Wrap(err, "creating counter store")
		}
		return store, nil, nil
	}

	store, err := analytics.NewRedisStore(analytics.RedisOptions{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		Pages:    repo,
	})
	if err != nil {
		return nil, nil, eris.Wrap(err, "creating redis counter store")
	}
	if err := store.Ping(ctx); err != nil {
		_ = store.Close()
		return nil, nil, eris.Wrap(err, "connecting to redis")
	}
	return store, store.Close, nil
}

// buildAssetStore returns nil when neither an object store nor an asset base URL is configured.
func buildAssetStore(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (assets.Store, error) {
	if cfg.Minio.Enabled() {
		store, err := assets.NewMinioStore(assets.MinioOptions{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			Bucket:    cfg.Minio.Bucket,
			UseSSL:    cfg.Minio.UseSSL,
			Logger:    logger,
		})
		if err != nil {
			return nil, eris.Wrap(err, "creating asset store")
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, eris.Wrap(err, "preparing asset bucket")
		}
		return store, nil
	}

	if cfg.AssetBaseURL != "" {
		store, err := assets.NewURLStore(cfg.AssetBaseURL)
		if err != nil {
			return nil, eris.Wrap(err, "creating asset url store")
		}
		return store, nil
	}

	return nil, nil
}

func buildNotifier(cfg *config.Config, logger *logrus.Logger) (notify.Notifier, error) {
	if cfg.ResendAPIKey == "" {
		if logger != nil {
			logger.Warn("RESEND_API_KEY not set; lead notifications are logged only")
		}
		return notify.NewNoopNotifier(logger), nil
	}

	notifier, err := notify.NewResendNotifier(notify.ResendOptions{
		APIKey: cfg.ResendAPIKey,
		From:   cfg.NotifyFrom,
		Logger: logger,
	})
	if err != nil {
		return nil, eris.Wrap(err, "creating resend notifier")
	}
	return notifier, nil
}
