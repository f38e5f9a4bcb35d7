package notification

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go-catalog-sync/internal/common/models"
	"go-catalog-sync/internal/config"
	emails "go-catalog-sync/internal/email"
	"go-catalog-sync/internal/features/schedule"
	"go-catalog-sync/internal/metrics"

	"go.uber.org/zap"
)

// ErrNotification marks a failed outcome email; it never affects the run
var ErrNotification = errors.New("notification delivery failed")

type emailData struct {
	StoreName    string
	Status       string
	ItemsTotal   int
	ItemsSynced  int
	ItemsFailed  int
	Duration     string
	ErrorLog     string
	FinishedAt   string
	DashboardURL string
}

// Dispatcher emails the schedule's recipient about a finished run
type Dispatcher struct {
	sender       emails.Sender
	dashboardURL string
	logger       *zap.Logger
}

func NewDispatcher(sender emails.Sender, cfg *config.Config, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		sender:       sender,
		dashboardURL: strings.TrimRight(cfg.DashboardURL, "/"),
		logger:       logger,
	}
}

// ShouldNotify applies the schedule's notify flags to a run status
func ShouldNotify(s *schedule.SyncSchedule, status models.SyncStatus) bool {
	if s == nil || s.NotifyEmail == "" {
		return false
	}
	if status == models.SyncStatusSuccess {
		return s.NotifyOnSuccess
	}
	return status.IsFailure() && s.NotifyOnError
}

// Notify returns nil when nothing had to be sent. Failures are logged before returning.
func (d *Dispatcher) Notify(ctx context.Context, s *schedule.SyncSchedule, outcome models.SyncOutcome) error {
	if !ShouldNotify(s, outcome.Status) {
		return nil
	}

	subject, html, err := d.render(outcome)
	if err != nil {
		d.logger.Error("Failed to render sync notification",
			zap.String("tenant_id", outcome.TenantID.Hex()),
			zap.Error(err))
		metrics.NotificationsSent.WithLabelValues("error").Inc()
		return fmt.Errorf("%w: %v", ErrNotification, err)
	}

	if err := d.sender.Send(ctx, s.NotifyEmail, subject, html); err != nil {
		d.logger.Warn("Failed to send sync notification",
			zap.String("tenant_id", outcome.TenantID.Hex()),
			zap.String("to", s.NotifyEmail),
			zap.Error(err))
		metrics.NotificationsSent.WithLabelValues("error").Inc()
		return fmt.Errorf("%w: %v", ErrNotification, err)
	}

	metrics.NotificationsSent.WithLabelValues("sent").Inc()
	return nil
}

func (d *Dispatcher) render(outcome models.SyncOutcome) (string, string, error) {
	storeName := outcome.StoreName
	if storeName == "" {
		storeName = "your store"
	}

	data := emailData{
		StoreName:   storeName,
		Status:      string(outcome.Status),
		ItemsTotal:  outcome.ItemsTotal,
		ItemsSynced: outcome.ItemsSynced,
		ItemsFailed: outcome.ItemsFailed,
		Duration:    outcome.Duration.Round(time.Millisecond).String(),
		ErrorLog:    outcome.ErrorLog,
		FinishedAt:  outcome.FinishedAt.UTC().Format(time.RFC1123),
	}
	if d.dashboardURL != "" {
		data.DashboardURL = d.dashboardURL + "/sync/logs"
	}

	tmpl := successTemplate
	subject := fmt.Sprintf("Catalog sync completed: %s", storeName)
	if outcome.Status != models.SyncStatusSuccess {
		tmpl = failureTemplate
		subject = fmt.Sprintf("Catalog sync %s: %s", strings.ToLower(string(outcome.Status)), storeName)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", "", err
	}
	return subject, buf.String(), nil
}
