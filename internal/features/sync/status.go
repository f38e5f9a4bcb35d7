package sync

import (
	"errors"
	"fmt"
	"strings"

	"go-catalog-sync/internal/common/models"
)

var (
	ErrCredential     = errors.New("tenant credentials unavailable")
	ErrSourceFetch    = errors.New("source fetch failed")
	ErrReconciliation = errors.New("product reconciliation failed")
	ErrStorage        = errors.New("storage unavailable")
)

// maxLoggedItemErrors bounds error_log growth on large catalogs
const maxLoggedItemErrors = 50

// ClassifyStatus derives the run status from its counters.
// A fatal error fails the run regardless of counts.
func ClassifyStatus(total, synced, failed int, fatal bool) models.SyncStatus {
	switch {
	case fatal:
		return models.SyncStatusFailed
	case total > 0 && failed == total:
		return models.SyncStatusFailed
	case failed > 0:
		return models.SyncStatusPartial
	default:
		return models.SyncStatusSuccess
	}
}

// itemError is one product that failed to reconcile
type itemError struct {
	externalID string
	err        error
}

func (e itemError) Error() string {
	return fmt.Sprintf("%s: %v", e.externalID, e.err)
}

func (e itemError) Unwrap() error {
	return ErrReconciliation
}

func joinItemErrors(errs []itemError) string {
	if len(errs) == 0 {
		return ""
	}
	lines := make([]string, 0, min(len(errs), maxLoggedItemErrors)+1)
	for i, e := range errs {
		if i == maxLoggedItemErrors {
			lines = append(lines, fmt.Sprintf("... and %d more", len(errs)-maxLoggedItemErrors))
			break
		}
		lines = append(lines, e.Error())
	}
	return strings.Join(lines, "\n")
}

func appendErrorLog(log, line string) string {
	if log == "" {
		return line
	}
	return log + "\n" + line
}
