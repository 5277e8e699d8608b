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

	"github.com/go-redis/redis/v8"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xavierca1/ligue-crm/internal/config"
	"github.com/xavierca1/ligue-crm/internal/infra/database"
	"github.com/xavierca1/ligue-crm/internal/infra/http/handlers"
	"github.com/xavierca1/ligue-crm/internal/infra/http/middleware"
	"github.com/xavierca1/ligue-crm/internal/infra/http/router"
	"github.com/xavierca1/ligue-crm/internal/infra/integration/gemini"
	"github.com/xavierca1/ligue-crm/internal/infra/logger"
	"github.com/xavierca1/ligue-crm/internal/infra/mail"
	"github.com/xavierca1/ligue-crm/internal/infra/queue"
	"github.com/xavierca1/ligue-crm/internal/infra/worker"
	"github.com/xavierca1/ligue-crm/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run migrations and start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Database
	db, err := database.NewDBConnection(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	if err := database.MigrateUp(ctx, db.DB); err != nil {
		return err
	}

	// 2. Repositories
	leadRepo := database.NewLeadRepository(db)
	dealRepo := database.NewDealRepository(db)
	interactionRepo := database.NewInteractionRepository(db)
	taskRepo := database.NewTaskRepository(db)

	automation := usecase.NewFollowUpAutomation(leadRepo, taskRepo, log)
	automation.OnScheduled = func(rule usecase.AutomationRule, n int) {
		middleware.RecordAutomationTasks(string(rule), n)
	}

	g, gctx := errgroup.WithContext(ctx)

	// 3. Stage-change events: RabbitMQ when configured, in process otherwise.
	var (
		publisher  usecase.EventPublisher
		rabbitConn *amqp.Connection
	)
	if cfg.RabbitMQ.URL != "" {
		rabbit, err := queue.NewRabbitMQ(cfg.RabbitMQ.URL)
		if err != nil {
			return err
		}
		defer rabbit.Close()
		rabbitConn = rabbit.Conn
		publisher = queue.NewProducer(rabbit.Ch)

		consumeCh, err := rabbit.Conn.Channel()
		if err != nil {
			return fmt.Errorf("open consumer channel: %w", err)
		}
		consumer := queue.NewWorker(consumeCh, automation, log.Named("worker"))
		g.Go(func() error {
			return consumer.Start(gctx, queue.QueueName)
		})
	} else {
		log.Info("RABBITMQ_URL not set, running automation in process")
		publisher = queue.NewInProcessPublisher(automation)
	}

	overdue := worker.NewOverdueTaskWorker(taskRepo, log.Named("overdue"))
	overdue.OnSweep = middleware.SetOverdueTasks
	g.Go(func() error {
		overdue.Start(gctx)
		return nil
	})

	// 4. AI rate limit store
	var (
		rdb        *redis.Client
		limitStore middleware.Store
	)
	if cfg.HTTP.AIRateLimit > 0 {
		if cfg.Redis.URL != "" {
			opts, err := redis.ParseURL(cfg.Redis.URL)
			if err != nil {
				return fmt.Errorf("parse REDIS_URL: %w", err)
			}
			rdb = redis.NewClient(opts)
			defer rdb.Close()
			limitStore = middleware.NewRedisStore(rdb, cfg.HTTP.AIRateLimit, time.Minute)
		} else {
			mem := middleware.NewMemoryStore(cfg.HTTP.AIRateLimit, time.Minute)
			defer mem.Close()
			limitStore = mem
		}
	}

	// 5. Optional integrations. Interfaces stay nil when not configured.
	var model usecase.Generator
	if cfg.Gemini.Enabled() {
		client, err := gemini.NewClient(ctx, gemini.Options{
			APIKey:           cfg.Gemini.APIKey,
			Model:            cfg.Gemini.Model,
			BaseURL:          cfg.Gemini.BaseURL,
			StructuredOutput: cfg.Gemini.StructuredOutput,
		})
		if err != nil {
			return err
		}
		model = client
	} else {
		log.Warn("GEMINI_API_KEY not set, /ai endpoints answer 503")
	}

	var mailer usecase.EmailService
	if cfg.SMTP.Enabled() {
		mailer = mail.NewEmailSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.User, cfg.SMTP.Password, cfg.SMTP.From)
	}

	// 6. Use cases and handlers
	timeline := usecase.NewLeadTimelineUseCase(leadRepo, dealRepo, interactionRepo, taskRepo)
	bulk := usecase.NewBulkCreateLeadsUseCase(leadRepo, log)
	changeStage := usecase.NewChangeDealStageUseCase(dealRepo, publisher, log)
	pipeline := usecase.NewPipelineUseCase(dealRepo)
	assistant := usecase.NewAssistantUseCase(model, leadRepo, interactionRepo, log.Named("assistant"))
	inbound := usecase.NewInboundEventsUseCase(leadRepo, dealRepo, interactionRepo, log.Named("webhooks"))
	sendEmail := usecase.NewSendEmailUseCase(leadRepo, interactionRepo, mailer, log)

	health := handlers.NewHealthHandler(db, rabbitConn, rdb)
	health.GeminiConfigured = cfg.Gemini.Enabled()
	health.SMTPConfigured = cfg.SMTP.Enabled()

	handler := router.New(router.Handlers{
		Health:       health,
		Leads:        handlers.NewLeadHandler(leadRepo, timeline, bulk, log),
		Deals:        handlers.NewDealHandler(dealRepo, changeStage, pipeline, log),
		Interactions: handlers.NewInteractionHandler(interactionRepo, log),
		Tasks:        handlers.NewTaskHandler(taskRepo, automation, log),
		AI:           handlers.NewAIHandler(assistant, log),
		Webhooks:     handlers.NewWebhookHandler(inbound, cfg.Calendly.SigningKey, log),
		Email:        handlers.NewEmailHandler(sendEmail, log),
	}, router.Options{
		AllowedOrigins:    cfg.HTTP.AllowedOrigins,
		AIRateLimit:       limitStore,
		RequestLog:        true,
		TrustProxyHeaders: cfg.HTTP.TrustProxyHeaders,
		Logger:            log,
	})

	// 7. Server
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		log.Info("crm api listening", zap.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
