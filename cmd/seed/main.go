package main

import (
	"context"
	"log"
	"os"

	"go-catalog-sync/internal/config"
	"go-catalog-sync/internal/database"
	"go-catalog-sync/internal/features/credential"
	"go-catalog-sync/internal/features/schedule"
	"go-catalog-sync/internal/features/webhook"
	"go-catalog-sync/internal/logger"
	"go-catalog-sync/pkg/nextrun"
	"go-catalog-sync/pkg/secrets"
	"go-catalog-sync/pkg/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

// Seed provisions a demo tenant: store credentials, a schedule, an optional
// webhook, and prints a token for calling the API as that tenant
func Seed(
	lc fx.Lifecycle,
	cfg *config.Config,
	credentials credential.CredentialService,
	schedules schedule.ScheduleService,
	webhooks webhook.WebhookService,
	logger *zap.Logger,
	shutdowner fx.Shutdowner,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				defer func() {
					if err := shutdowner.Shutdown(); err != nil {
						logger.Error("Failed to shutdown", zap.Error(err))
					}
				}()

				ctx := context.Background()
				utils.SetSecret(cfg.JWTSecret)

				tenantID := primitive.NewObjectID()
				if hex := os.Getenv("DEMO_TENANT_ID"); hex != "" {
					id, err := primitive.ObjectIDFromHex(hex)
					if err != nil {
						logger.Error("Invalid DEMO_TENANT_ID", zap.Error(err))
						return
					}
					tenantID = id
				}
				log := logger.With(zap.String("tenant_id", tenantID.Hex()))
				log.Info("Seeding demo tenant")

				active := true
				if _, err := credentials.Save(ctx, tenantID, credential.CredentialInput{
					StoreName:    getEnv("DEMO_STORE_NAME", "Demo Store"),
					APIURL:       getEnv("DEMO_STORE_URL", "http://localhost:9090"),
					ClientID:     getEnv("DEMO_CLIENT_ID", "demo-client"),
					ClientSecret: getEnv("DEMO_CLIENT_SECRET", "demo-secret"),
					IsActive:     &active,
				}); err != nil {
					log.Error("Failed to save credentials", zap.Error(err))
					return
				}

				notifyOnSuccess := false
				if _, err := schedules.Upsert(ctx, tenantID, schedule.ScheduleInput{
					Enabled:            &active,
					ScheduleExpression: getEnv("DEMO_SCHEDULE", schedule.DefaultExpression),
					Timezone:           getEnv("DEMO_TIMEZONE", "UTC"),
					NotifyOnSuccess:    &notifyOnSuccess,
					NotifyEmail:        os.Getenv("DEMO_NOTIFY_EMAIL"),
				}); err != nil {
					log.Error("Failed to save schedule", zap.Error(err))
					return
				}

				if url := os.Getenv("DEMO_WEBHOOK_URL"); url != "" {
					wh, err := webhooks.CreateWebhook(ctx, tenantID, "seed", webhook.WebhookInput{
						Name: "Demo webhook",
						URL:  url,
						Type: webhook.WebhookType(getEnv("DEMO_WEBHOOK_TYPE", string(webhook.TypeCustom))),
					})
					if err != nil {
						log.Error("Failed to create webhook", zap.Error(err))
						return
					}
					log.Info("Webhook created", zap.String("webhook_id", wh.ID.Hex()))
				}

				token, err := utils.GenerateToken(primitive.NewObjectID(), tenantID, []string{"admin"})
				if err != nil {
					log.Error("Failed to generate token", zap.Error(err))
					return
				}

				log.Info("Seeding complete", zap.String("token", token))
			}()
			return nil
		},
	})
}

func main() {
	app := fx.New(
		fx.Provide(
			config.LoadConfig,
			logger.NewLogger,
			database.NewDatabase,
			func(cfg *config.Config) (secrets.Codec, error) {
				return secrets.NewSecretBoxCodec(cfg.EncryptionKey)
			},
			func() nextrun.Calculator { return nextrun.NewCronCalculator() },

			fx.Annotate(credential.NewCredentialRepository, fx.As(new(credential.CredentialRepository))),
			fx.Annotate(schedule.NewScheduleRepository, fx.As(new(schedule.ScheduleRepository))),
			fx.Annotate(webhook.NewWebhookRepository, fx.As(new(webhook.WebhookRepository))),
			fx.Annotate(webhook.NewWebhookLogRepository, fx.As(new(webhook.WebhookLogRepository))),

			credential.NewCredentialService,
			schedule.NewScheduleService,
			webhook.NewEngine,
			webhook.NewWebhookService,
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Invoke(Seed),
	)

	if err := app.Start(context.Background()); err != nil {
		log.Fatal(err)
	}

	<-app.Done()
}
