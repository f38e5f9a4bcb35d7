package main

import (
	"context"
	"fmt"
	"time"

	common_api "go-catalog-sync/internal/common/api"
	"go-catalog-sync/internal/config"
	"go-catalog-sync/internal/database"
	emails "go-catalog-sync/internal/email"
	"go-catalog-sync/internal/events"
	"go-catalog-sync/internal/features/catalog"
	"go-catalog-sync/internal/features/credential"
	"go-catalog-sync/internal/features/notification"
	"go-catalog-sync/internal/features/schedule"
	"go-catalog-sync/internal/features/sync"
	"go-catalog-sync/internal/features/system"
	"go-catalog-sync/internal/features/webhook"
	"go-catalog-sync/internal/guard"
	"go-catalog-sync/internal/logger"
	"go-catalog-sync/internal/middleware"
	"go-catalog-sync/internal/scheduler"
	"go-catalog-sync/internal/source"
	"go-catalog-sync/pkg/nextrun"
	"go-catalog-sync/pkg/secrets"
	"go-catalog-sync/pkg/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// NewFiberServer creates a new Fiber app instance
func NewFiberServer(cfg *config.Config) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(middleware.CORSMiddleware(cfg.DashboardURL))

	return app
}

// AsRoute is a helper function to reduce boilerplate.
// It tags the constructor so Fx knows to add it to the "routes" group.
func AsRoute(f any) any {
	return fx.Annotate(
		f,
		fx.As(new(common_api.Route)),
		fx.ResultTags(`group:"routes"`),
	)
}

// RegisterAllRoutes calls Setup() on every route in the "routes" group
func RegisterAllRoutes(app *fiber.App, routes []common_api.Route, log *zap.Logger) {
	log.Info("Registering routes", zap.Int("count", len(routes)))
	for _, route := range routes {
		log.Debug("Setting up route", zap.String("route", fmt.Sprintf("%T", route)))
		route.Setup(app)
	}
}

var RegisterAllRoutesWithAnnotation = fx.Annotate(
	RegisterAllRoutes,
	fx.ParamTags(``, `group:"routes"`, ``),
)

// StartServer starts Fiber in a goroutine and shuts it down when the app exits
func StartServer(lc fx.Lifecycle, app *fiber.App, cfg *config.Config, log *zap.Logger, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				port := fmt.Sprintf(":%s", cfg.Port)
				log.Info("HTTP server listening", zap.String("addr", port))
				if err := app.Listen(port); err != nil {
					log.Error("Server failed to start", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return app.ShutdownWithContext(ctx)
		},
	})
}

// InitializeIndexes ensures that necessary database indexes are created
func InitializeIndexes(
	lc fx.Lifecycle,
	log *zap.Logger,
	schedules *schedule.ScheduleRepositoryImpl,
	credentials *credential.CredentialRepositoryImpl,
	syncLogs *sync.SyncLogRepositoryImpl,
	webhooks *webhook.WebhookRepositoryImpl,
	webhookLogs *webhook.WebhookLogRepositoryImpl,
	notifications *notification.NotificationRepositoryImpl,
	feed *catalog.FeedRefresher,
) {
	ensurers := map[string]database.IndexEnsurer{
		"sync_schedules":      schedules,
		"tenant_credentials":  credentials,
		"sync_logs":           syncLogs,
		"webhooks":            webhooks,
		"webhook_logs":        webhookLogs,
		"admin_notifications": notifications,
		"catalog_feeds":       feed,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()

				for name, e := range ensurers {
					if err := e.EnsureIndexes(ctx); err != nil {
						log.Error("Failed to ensure indexes", zap.String("collection", name), zap.Error(err))
					}
				}
			}()
			return nil
		},
	})
}

// NewSecretsCodec builds the codec shared by credentials and webhook auth
func NewSecretsCodec(cfg *config.Config) (secrets.Codec, error) {
	return secrets.NewSecretBoxCodec(cfg.EncryptionKey)
}

// NewSourceClient wraps the HTTP source client with the configured retry policy
func NewSourceClient(cfg *config.Config, log *zap.Logger) source.Client {
	return source.NewRetryingClient(
		source.NewHTTPClient(cfg.Source.Timeout, log),
		cfg.Source.MaxAttempts,
		cfg.Source.BaseDelay,
		log,
	)
}

func NewNextRunCalculator() nextrun.Calculator {
	return nextrun.NewCronCalculator()
}

func main() {
	app := fx.New(
		fx.Provide(
			// Load Config
			config.LoadConfig,

			// Initialize Database & Logger
			database.NewDatabase,
			logger.NewLogger,

			// Initialize Fiber Server
			NewFiberServer,

			// Infrastructure
			NewSecretsCodec,
			NewSourceClient,
			NewNextRunCalculator,
			guard.NewGuard,
			events.NewPublisher,
			catalog.NewStore,
			catalog.NewFeedRefresher,

			// Initialize Repository
			schedule.NewScheduleRepository,
			credential.NewCredentialRepository,
			sync.NewSyncLogRepository,
			webhook.NewWebhookRepository,
			webhook.NewWebhookLogRepository,
			notification.NewNotificationRepository,
			emails.NewRepository,

			// Initialize Service
			schedule.NewScheduleService,
			credential.NewCredentialService,
			notification.NewNotificationService,
			notification.NewDispatcher,
			emails.NewService,
			webhook.NewEngine,
			webhook.NewWebhookService,
			sync.NewSyncService,
			scheduler.New,

			// Interface adapters
			func(r *schedule.ScheduleRepositoryImpl) schedule.ScheduleRepository { return r },
			func(r *credential.CredentialRepositoryImpl) credential.CredentialRepository { return r },
			func(r *sync.SyncLogRepositoryImpl) sync.SyncLogRepository { return r },
			func(r *webhook.WebhookRepositoryImpl) webhook.WebhookRepository { return r },
			func(r *webhook.WebhookLogRepositoryImpl) webhook.WebhookLogRepository { return r },
			func(r *notification.NotificationRepositoryImpl) notification.NotificationRepository { return r },
			func(r *emails.Repository) emails.EmailRepository { return r },
			func(s *emails.Service) emails.Sender { return s },
			func(s notification.NotificationService) notification.AdminSink { return s },
			func(d *notification.Dispatcher) sync.Notifier { return d },
			func(e *webhook.Engine) sync.WebhookDispatcher { return e },
			func(f *catalog.FeedRefresher) sync.FeedRefresher { return f },
			func(s schedule.ScheduleService) scheduler.DueLister { return s },
			func(s sync.SyncService) scheduler.Runner { return s },

			// Initialize Controller
			schedule.NewScheduleController,
			credential.NewCredentialController,
			sync.NewSyncController,
			webhook.NewWebhookController,
			notification.NewNotificationController,
			system.NewDebugController,

			// Initialize API Routes
			AsRoute(schedule.NewScheduleApi),
			AsRoute(credential.NewCredentialApi),
			AsRoute(sync.NewSyncApi),
			AsRoute(webhook.NewWebhookApi),
			AsRoute(notification.NewNotificationApi),
			AsRoute(system.NewHealthApi),
			AsRoute(system.NewDebugApi),
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Invoke(
			func(cfg *config.Config) { utils.SetSecret(cfg.JWTSecret) },
			RegisterAllRoutesWithAnnotation,
			InitializeIndexes,
			scheduler.Register,
			StartServer,
		),
	)

	app.Run()
}
