package emails

import (
	"context"
	"errors"
	"net/smtp"

	"go-catalog-sync/internal/config"

	"go.uber.org/zap"
)

var (
	ErrNotConfigured     = errors.New("smtp is not configured")
	ErrRecipientRequired = errors.New("recipient required")
)

// Service sends through SMTP and keeps an audit row per message
type Service struct {
	repo     EmailRepository
	smtp     SMTPConfig
	sendMail sendMailFunc
	logger   *zap.Logger
}

func NewService(repo EmailRepository, cfg *config.Config, logger *zap.Logger) *Service {
	return &Service{
		repo: repo,
		smtp: SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		},
		sendMail: smtp.SendMail,
		logger:   logger,
	}
}

func (s *Service) Send(ctx context.Context, to, subject, html string) error {
	if to == "" {
		return ErrRecipientRequired
	}
	if s.smtp.Host == "" || s.smtp.Port == 0 {
		return ErrNotConfigured
	}

	email := &Email{
		From:     s.smtp.From,
		To:       []string{to},
		Subject:  subject,
		HtmlBody: html,
		Status:   EmailQueued,
	}
	if err := s.repo.Create(ctx, email); err != nil {
		s.logger.Warn("Failed to record outbound email", zap.Error(err))
	}

	if err := sendSMTP(s.sendMail, s.smtp, email); err != nil {
		_ = s.repo.UpdateStatus(ctx, email.ID, EmailFailed, err.Error())
		return err
	}

	_ = s.repo.UpdateStatus(ctx, email.ID, EmailSent, "")
	return nil
}
