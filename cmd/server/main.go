package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	config "github.com/maheshrc27/packflow/configs"
	"github.com/maheshrc27/packflow/internal/api/handlers"
	"github.com/maheshrc27/packflow/internal/api/middleware"
	"github.com/maheshrc27/packflow/internal/bot"
	"github.com/maheshrc27/packflow/internal/database"
	job "github.com/maheshrc27/packflow/internal/jobs"
	"github.com/maheshrc27/packflow/internal/logging"
	"github.com/maheshrc27/packflow/internal/queue"
	"github.com/maheshrc27/packflow/internal/repository"
	"github.com/maheshrc27/packflow/internal/service"
	"github.com/maheshrc27/packflow/internal/telegram"
	"github.com/maheshrc27/packflow/pkg/utils"
	"github.com/robfig/cron"
	"golang.org/x/sync/errgroup"
)

const shutdownGrace = 30 * time.Second

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("failed to load .env file", "error", err)
	}

	cfg := config.LoadConfig()
	slog.SetDefault(logging.NewSlogLogger(os.Stdout, cfg.LogLevel))

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer closeDB(db)

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database is unreachable: %w", err)
	}
	if err := database.Migrate(ctx, db); err != nil {
		return err
	}

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	client := asynq.NewClient(redisConn)
	defer client.Close()
	inspector := asynq.NewInspector(redisConn)
	defer inspector.Close()

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return fmt.Errorf("connect to bot api: %w", err)
	}
	slog.Info("authorized on telegram", "bot", api.Self.UserName)

	transport := telegram.NewBotTransport(api, nil)
	packRepo := repository.NewPackRepository(db)
	scheduler := queue.NewScheduler(client, inspector)

	lease := service.NewChannelLease()
	captions := service.NewCaptionRewriter(cfg.ReplacementHandle)
	packService := service.NewPackService(packRepo, scheduler)
	publisher := service.NewPublisherService(packRepo, transport, lease, captions, service.PublisherOptions{
		TempDir:     cfg.TempDir,
		ItemDelay:   cfg.Publish.ItemDelay,
		MaxAttempts: cfg.Publish.MaxAttempts,
	})
	immediate := service.NewImmediateService(transport, transport, lease, captions, service.ImmediateOptions{
		ChannelID:   cfg.ChannelID,
		TempDir:     cfg.TempDir,
		MaxAttempts: cfg.Publish.MaxAttempts,
	})
	// Background tasks and update lanes stop when appCtx is cancelled.
	appCtx, cancelApp := context.WithCancel(ctx)
	defer cancelApp()
	tasks := service.NewTaskRegistry(appCtx, transport)

	deps := bot.Deps{
		API:       api,
		Packs:     packService,
		Scheduler: scheduler,
		Publisher: publisher,
		Immediate: immediate,
		Uploader:  transport,
		Tasks:     tasks,
	}

	if cfg.MTProto.Enabled() {
		zlog, err := logging.NewZapLogger(cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("build mtproto logger: %w", err)
		}
		defer func() { _ = zlog.Sync() }()

		source := telegram.NewMTProtoSource(cfg.MTProto.AppID, cfg.MTProto.AppHash, cfg.MTProto.SessionFile, zlog)
		deps.Mirror = service.NewMirrorService(source, transport, lease, captions, service.MirrorOptions{
			PhotoPause:  cfg.Mirror.PhotoPause,
			BlockPause:  cfg.Mirror.BlockPause,
			MaxAttempts: cfg.Mirror.MaxAttempts,
		})
	} else {
		slog.Info("pro mode disabled, TG_API_ID/TG_API_HASH/TG_SESSION_FILE not set")
	}

	if cfg.OpenSubtitles.APIKey != "" {
		var archiver service.SubtitleArchiver
		if cfg.R2.Enabled() {
			archiver = service.NewR2Service(cfg.R2)
		}
		deps.Subtitles = service.NewSubtitleService(cfg.OpenSubtitles, nil, archiver)
	} else {
		slog.Info("subtitle search disabled, OPENSUBTITLES_API_KEY not set")
	}

	b := bot.New(deps, bot.Options{
		ChannelID:      cfg.ChannelID,
		AdminUserID:    cfg.AdminUserID,
		OperatorChatID: cfg.OperatorChatID,
		Location:       cfg.Location(),
	})
	dispatcher := bot.NewDispatcher(appCtx, b)

	// cron jobs
	sweepJob := job.NewOrphanSweepJob(packRepo, scheduler)
	c := cron.New()
	if err := c.AddFunc("@every 00h10m00s", sweepJob.Run); err != nil {
		return fmt.Errorf("register sweep job: %w", err)
	}
	c.Start()
	defer c.Stop()

	// queue
	queueW := queue.NewQueue(publisher)
	server := asynq.NewServer(redisConn, asynq.Config{
		Concurrency: 10,
		Queues:      map[string]int{queue.DefaultQueue: 1},
		Logger:      asynqLogger{},
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskTypePublishPack, queueW.HandlePublishPackTask)
	if err := server.Start(mux); err != nil {
		return fmt.Errorf("start asynq server: %w", err)
	}
	defer server.Shutdown()

	app := newApp(cfg, db, packService, scheduler)

	g, gctx := errgroup.WithContext(ctx)

	webhookSecret := cfg.WebhookSecret
	if cfg.WebhookURL != "" {
		if webhookSecret == "" {
			if webhookSecret, err = utils.GenerateSecret(24); err != nil {
				return fmt.Errorf("generate webhook secret: %w", err)
			}
		}
		mountWebhook(app, cfg, webhookSecret, dispatcher)
		url := strings.TrimRight(cfg.WebhookURL, "/") + "/telegram/webhook/" + webhookSecret
		if err := bot.RegisterWebhook(api, url); err != nil {
			return fmt.Errorf("register webhook: %w", err)
		}
		slog.Info("receiving updates by webhook")
	} else {
		g.Go(func() error { return bot.Poll(gctx, api, dispatcher) })
	}

	g.Go(func() error {
		slog.Info("http server listening", "addr", cfg.HTTPAddr)
		return app.Listen(cfg.HTTPAddr)
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server...")

		if err := app.ShutdownWithTimeout(shutdownGrace); err != nil {
			slog.Error("failed to shut down http server", "error", err)
		}
		cancelApp()
		dispatcher.Wait()

		wctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := tasks.Wait(wctx); err != nil {
			slog.Warn("background tasks still running at shutdown", "error", err)
		}
		return nil
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	slog.Info("server shutdown complete")
	return err
}

func newApp(cfg *config.Config, db *sql.DB, packs service.PackService, jobs queue.Scheduler) *fiber.App {
	app := fiber.New(fiber.Config{
		ReadTimeout:           time.Minute,
		WriteTimeout:          time.Minute,
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			slog.Error("request failed", "path", c.Path(), "error", err)
			code := fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(recover.New())
	app.Use(logger.New())

	health := handlers.NewHealthHandler(db)
	app.Get("/healthz", health.Health)

	authMiddleware := middleware.NewAuthMiddleware(*cfg)
	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	packHandler := handlers.NewPackHandler(packs)
	api.Get("/packs", packHandler.ListPacks)
	api.Get("/packs/:name", packHandler.PackInfo)

	schedules := handlers.NewScheduleHandler(jobs)
	api.Get("/schedules", schedules.ListSchedules)
	api.Delete("/schedules/:id", schedules.RemoveSchedule)

	return app
}

func mountWebhook(app *fiber.App, cfg *config.Config, secret string, d *bot.Dispatcher) {
	authMiddleware := middleware.NewAuthMiddleware(*cfg)
	webhook := handlers.NewWebhookHandler(d)
	app.Post("/telegram/webhook/:secret", authMiddleware.WebhookSecret(secret), webhook.Receive)
}

func closeDB(db *sql.DB) {
	if err := db.Close(); err != nil {
		slog.Error("failed to close database", "error", err)
		return
	}
	slog.Info("database connection closed")
}

// asynqLogger routes asynq's internal logging through slog.
type asynqLogger struct{}

func (asynqLogger) Debug(args ...interface{}) { slog.Debug(fmt.Sprint(args...)) }
func (asynqLogger) Info(args ...interface{})  { slog.Info(fmt.Sprint(args...)) }
func (asynqLogger) Warn(args ...interface{})  { slog.Warn(fmt.Sprint(args...)) }
func (asynqLogger) Error(args ...interface{}) { slog.Error(fmt.Sprint(args...)) }
func (asynqLogger) Fatal(args ...interface{}) {
	slog.Error(fmt.Sprint(args...))
	os.Exit(1)
}
