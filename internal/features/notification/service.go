package notification

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// AdminSink records operator alerts. Create never fails the caller.
type AdminSink interface {
	Create(ctx context.Context, n AdminNotification)
}

type NotificationService interface {
	AdminSink
	List(ctx context.Context, unreadOnly bool, page, limit int64) ([]AdminNotification, int64, error)
	MarkAsRead(ctx context.Context, id primitive.ObjectID) error
	UnreadCount(ctx context.Context) (int64, error)
}

type NotificationServiceImpl struct {
	repo   NotificationRepository
	logger *zap.Logger
}

func NewNotificationService(repo NotificationRepository, logger *zap.Logger) NotificationService {
	return &NotificationServiceImpl{
		repo:   repo,
		logger: logger,
	}
}

func (s *NotificationServiceImpl) Create(ctx context.Context, n AdminNotification) {
	if err := s.repo.Create(ctx, &n); err != nil {
		s.logger.Error("Failed to create admin notification",
			zap.String("type", n.Type),
			zap.String("title", n.Title),
			zap.Error(err))
	}
}

func (s *NotificationServiceImpl) List(ctx context.Context, unreadOnly bool, page, limit int64) ([]AdminNotification, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.repo.List(ctx, unreadOnly, page, limit)
}

func (s *NotificationServiceImpl) MarkAsRead(ctx context.Context, id primitive.ObjectID) error {
	return s.repo.MarkAsRead(ctx, id)
}

func (s *NotificationServiceImpl) UnreadCount(ctx context.Context) (int64, error) {
	return s.repo.UnreadCount(ctx)
}
