package webhook

import (
	"context"
	"fmt"

	"go-catalog-sync/internal/config"
	"go-catalog-sync/pkg/secrets"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type WebhookService interface {
	CreateWebhook(ctx context.Context, tenantID primitive.ObjectID, createdBy string, input WebhookInput) (*Webhook, error)
	ListWebhooks(ctx context.Context, tenantID primitive.ObjectID) ([]Webhook, error)
	GetWebhook(ctx context.Context, tenantID, id primitive.ObjectID) (*Webhook, error)
	UpdateWebhook(ctx context.Context, tenantID, id primitive.ObjectID, input WebhookInput) (*Webhook, error)
	DeleteWebhook(ctx context.Context, tenantID, id primitive.ObjectID) error
	ListLogs(ctx context.Context, tenantID, id primitive.ObjectID, status DeliveryStatus, page, limit int64) ([]WebhookLog, int64, error)
	SendTest(ctx context.Context, tenantID, id primitive.ObjectID) (DeliveryResult, error)
}

type WebhookServiceImpl struct {
	Repo     WebhookRepository
	LogRepo  WebhookLogRepository
	Engine   *Engine
	Codec    secrets.Codec
	defaults config.WebhookConfig
	validate *validator.Validate
	logger   *zap.Logger
}

func NewWebhookService(repo WebhookRepository, logRepo WebhookLogRepository, engine *Engine, codec secrets.Codec, cfg *config.Config, logger *zap.Logger) WebhookService {
	return &WebhookServiceImpl{
		Repo:     repo,
		LogRepo:  logRepo,
		Engine:   engine,
		Codec:    codec,
		defaults: cfg.Webhook,
		validate: validator.New(),
		logger:   logger,
	}
}

func (s *WebhookServiceImpl) CreateWebhook(ctx context.Context, tenantID primitive.ObjectID, createdBy string, input WebhookInput) (*Webhook, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, err
	}

	webhook := &Webhook{
		TenantID:         tenantID,
		IsEnabled:        true,
		TriggerOnSuccess: true,
		TriggerOnError:   true,
		AuthType:         AuthNone,
		RetryEnabled:     true,
		MaxRetries:       s.defaults.DefaultMaxRetries,
		RetryDelayMs:     int(s.defaults.DefaultRetryDelay.Milliseconds()),
		TimeoutMs:        int(s.defaults.DefaultTimeout.Milliseconds()),
		CreatedBy:        createdBy,
	}
	if err := s.apply(webhook, input); err != nil {
		return nil, err
	}

	if err := s.Repo.Create(ctx, webhook); err != nil {
		return nil, err
	}

	s.logger.Info("Webhook created",
		zap.String("tenant_id", tenantID.Hex()),
		zap.String("webhook_id", webhook.ID.Hex()),
		zap.String("type", string(webhook.Type)))
	return webhook, nil
}

func (s *WebhookServiceImpl) ListWebhooks(ctx context.Context, tenantID primitive.ObjectID) ([]Webhook, error) {
	return s.Repo.List(ctx, tenantID)
}

func (s *WebhookServiceImpl) GetWebhook(ctx context.Context, tenantID, id primitive.ObjectID) (*Webhook, error) {
	return s.Repo.Get(ctx, tenantID, id)
}

func (s *WebhookServiceImpl) UpdateWebhook(ctx context.Context, tenantID, id primitive.ObjectID, input WebhookInput) (*Webhook, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, err
	}

	webhook, err := s.Repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(webhook, input); err != nil {
		return nil, err
	}

	if err := s.Repo.Update(ctx, webhook); err != nil {
		return nil, err
	}
	return webhook, nil
}

func (s *WebhookServiceImpl) DeleteWebhook(ctx context.Context, tenantID, id primitive.ObjectID) error {
	return s.Repo.Delete(ctx, tenantID, id)
}

func (s *WebhookServiceImpl) ListLogs(ctx context.Context, tenantID, id primitive.ObjectID, status DeliveryStatus, page, limit int64) ([]WebhookLog, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	if _, err := s.Repo.Get(ctx, tenantID, id); err != nil {
		return nil, 0, err
	}
	return s.LogRepo.ListByWebhook(ctx, tenantID, id, status, page, limit)
}

func (s *WebhookServiceImpl) SendTest(ctx context.Context, tenantID, id primitive.ObjectID) (DeliveryResult, error) {
	return s.Engine.SendTest(ctx, tenantID, id)
}

// apply copies input onto webhook, encrypting new secrets
func (s *WebhookServiceImpl) apply(webhook *Webhook, input WebhookInput) error {
	webhook.Name = input.Name
	webhook.URL = input.URL
	webhook.Type = input.Type
	webhook.CustomHeaders = input.CustomHeaders
	if input.IsEnabled != nil {
		webhook.IsEnabled = *input.IsEnabled
	}
	if input.TriggerOnSuccess != nil {
		webhook.TriggerOnSuccess = *input.TriggerOnSuccess
	}
	if input.TriggerOnError != nil {
		webhook.TriggerOnError = *input.TriggerOnError
	}
	if input.RetryEnabled != nil {
		webhook.RetryEnabled = *input.RetryEnabled
	}
	if input.MaxRetries != nil {
		webhook.MaxRetries = *input.MaxRetries
	}
	if input.RetryDelayMs != nil {
		webhook.RetryDelayMs = *input.RetryDelayMs
	}
	if input.TimeoutMs != nil {
		webhook.TimeoutMs = *input.TimeoutMs
	}

	if input.AuthType != "" {
		webhook.AuthType = input.AuthType
	}
	switch {
	case webhook.AuthType == AuthNone:
		webhook.AuthValue = ""
	case input.AuthValue != "":
		enc, err := s.Codec.Encrypt(input.AuthValue)
		if err != nil {
			return fmt.Errorf("failed to encrypt auth value: %w", err)
		}
		webhook.AuthValue = enc
	}

	if input.SigningSecret != "" {
		enc, err := s.Codec.Encrypt(input.SigningSecret)
		if err != nil {
			return fmt.Errorf("failed to encrypt signing secret: %w", err)
		}
		webhook.SigningSecret = enc
	}
	return nil
}
