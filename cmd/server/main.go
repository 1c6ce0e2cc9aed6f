package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/goliatone/go-router"
	auth "github.com/goliatone/go-userauth"
	"github.com/goliatone/go-userauth/config"
	"github.com/goliatone/go-userauth/logging"
	"github.com/goliatone/go-userauth/mailer"
	"github.com/goliatone/go-userauth/middleware/ratelimit"
	"github.com/goliatone/go-userauth/storage"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"golang.org/x/time/rate"
)

func main() {
	cfg, err := config.Load(config.Options{
		EnvFiles: []string{".env"},
		Args:     os.Args[1:],
	})
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(logging.Options{Format: cfg.LogFormat, Level: cfg.LogLevel})

	ctx := context.Background()

	db, err := openDB(ctx, cfg, logger)
	if err != nil {
		logger.Error("database init failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	repo := auth.NewRepositoryManager(db, auth.WithDefaultSubscription(cfg.DefaultSubscription))
	repo.MustValidate()

	store, err := avatarStore(ctx, cfg)
	if err != nil {
		logger.Error("avatar storage init failed", "error", err)
		os.Exit(1)
	}

	service := auth.NewAccountService(repo, cfg).
		WithLogger(logger.With("component", "auth")).
		WithMailer(newMailer(cfg, logger)).
		WithActivitySink(auth.NewLoggerActivitySink(logger.With("component", "activity"))).
		WithAvatarProcessor(
			auth.NewAvatarProcessor(auth.NewImagingResizer(), store, cfg.AvatarSize).
				WithLogger(logger.With("component", "avatar")),
		)

	if err := os.MkdirAll(cfg.TempDir, 0o755); err != nil {
		logger.Error("temp dir init failed", "error", err)
		os.Exit(1)
	}

	limiter := ratelimit.New(ratelimit.Config{
		Rate:  rate.Limit(cfg.RateLimit),
		Burst: cfg.RateBurst,
	})
	stop := make(chan struct{})
	go limiter.Run(time.Minute, stop)

	srv := router.NewFiberAdapter(func(_ *fiber.App) *fiber.App {
		app := fiber.New(fiber.Config{
			UnescapePath: true,
			ErrorHandler: auth.ErrorHandler(logger),
			BodyLimit:    5 * 1024 * 1024,
		})
		app.Use(recover.New())
		app.Use(fiberlogger.New())
		app.Use(cors.New())
		app.Use(ratelimit.CaptureClientIP())
		app.Static("/", cfg.PublicDir)
		return app
	})

	auth.RegisterAuthRoutes(srv.Router().Group(auth.DefaultRoutePrefix),
		auth.WithAccountService(service),
		auth.WithControllerLogger(logger.With("component", "auth:ctrl")),
		auth.WithTempDir(cfg.TempDir),
		auth.WithCredentialLimiter(limiter.Middleware()),
	)

	srv.WrappedRouter().Use(func(c *fiber.Ctx) error {
		return fiber.ErrNotFound
	})

	go func() {
		logger.Info("server listening", "addr", cfg.ListenAddr())
		if err := srv.Serve(cfg.ListenAddr()); err != nil {
			logger.Error("server stopped", "error", err)
		}
	}()

	sig := WaitExitSignal()
	logger.Info("shutting down", "signal", sig.String())

	close(stop)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}

func openDB(ctx context.Context, cfg *config.Config, logger *logging.SlogLogger) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())

	if err := auth.Migrate(ctx, db, logger.With("component", "migrate")); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func avatarStore(ctx context.Context, cfg *config.Config) (auth.AvatarStore, error) {
	if cfg.AvatarStorage != config.AvatarStorageS3 {
		return storage.NewLocalStore(cfg.PublicDir), nil
	}

	s3cfg := storage.S3Config{
		Bucket:    cfg.S3Bucket,
		Region:    cfg.S3Region,
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
	}

	client, err := storage.NewS3Client(ctx, s3cfg)
	if err != nil {
		return nil, err
	}

	return storage.NewS3Store(client, s3cfg), nil
}

func newMailer(cfg *config.Config, logger *logging.SlogLogger) auth.Mailer {
	if cfg.SMTPUser == "" {
		logger.Warn("SMTP_USER not set, verification emails are logged only")
		return mailer.NewLogMailer(logger.With("component", "mailer"))
	}

	return mailer.NewSMTPMailer(mailer.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.MailSender(),
	}, logger.With("component", "mailer"))
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
