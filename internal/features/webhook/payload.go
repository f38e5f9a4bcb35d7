package webhook

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go-catalog-sync/internal/common/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	slackColorSuccess   = "#2eb67d"
	slackColorFailure   = "#e01e5a"
	discordColorSuccess = 0x2ECC71
	discordColorFailure = 0xE74C3C
	footerText          = "Catalog Sync"
)

// Event is the provider-neutral body sent to CUSTOM webhooks
type Event struct {
	Event       models.WebhookEvent `json:"event"`
	TenantID    string              `json:"tenant_id"`
	StoreName   string              `json:"store_name,omitempty"`
	SyncType    models.SyncType     `json:"sync_type,omitempty"`
	Status      models.SyncStatus   `json:"status"`
	ItemsTotal  int                 `json:"items_total"`
	ItemsSynced int                 `json:"items_synced"`
	ItemsFailed int                 `json:"items_failed"`
	DurationMs  int64               `json:"duration_ms"`
	Error       string              `json:"error,omitempty"`
	Timestamp   time.Time           `json:"timestamp"`
	Test        bool                `json:"test,omitempty"`
}

// NewEvent converts a run outcome; error text is only carried for failures
func NewEvent(outcome models.SyncOutcome) Event {
	ev := Event{
		Event:       outcome.Event(),
		TenantID:    outcome.TenantID.Hex(),
		StoreName:   outcome.StoreName,
		SyncType:    outcome.SyncType,
		Status:      outcome.Status,
		ItemsTotal:  outcome.ItemsTotal,
		ItemsSynced: outcome.ItemsSynced,
		ItemsFailed: outcome.ItemsFailed,
		DurationMs:  outcome.Duration.Milliseconds(),
		Timestamp:   outcome.FinishedAt.UTC(),
	}
	if outcome.Status != models.SyncStatusSuccess {
		ev.Error = outcome.ErrorLog
	}
	return ev
}

// NewTestEvent is the synthetic success event used by the test endpoint
func NewTestEvent(tenantID primitive.ObjectID, now time.Time) Event {
	return Event{
		Event:     models.EventSyncSuccess,
		TenantID:  tenantID.Hex(),
		SyncType:  models.SyncTypeManual,
		Status:    models.SyncStatusSuccess,
		Timestamp: now.UTC(),
		Test:      true,
	}
}

func (e Event) failed() bool {
	return e.Event == models.EventSyncError
}

func (e Event) title() string {
	store := e.StoreName
	if store == "" {
		store = e.TenantID
	}
	prefix := ""
	if e.Test {
		prefix = "[Test] "
	}
	switch {
	case !e.failed():
		return fmt.Sprintf("%sCatalog sync completed for %s", prefix, store)
	case e.Status == models.SyncStatusPartial:
		return fmt.Sprintf("%sCatalog sync partially failed for %s", prefix, store)
	default:
		return fmt.Sprintf("%sCatalog sync failed for %s", prefix, store)
	}
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Fields []slackField `json:"fields"`
	Footer string       `json:"footer"`
	Ts     int64        `json:"ts"`
}

type slackMessage struct {
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments"`
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordFooter struct {
	Text string `json:"text"`
}

type discordEmbed struct {
	Title     string         `json:"title"`
	Color     int            `json:"color"`
	Fields    []discordField `json:"fields"`
	Footer    discordFooter  `json:"footer"`
	Timestamp string         `json:"timestamp"`
}

type discordMessage struct {
	Embeds []discordEmbed `json:"embeds"`
}

// BuildPayload shapes the event for the webhook's provider
func BuildPayload(t WebhookType, e Event) ([]byte, error) {
	switch t {
	case TypeSlack:
		return json.Marshal(slackPayload(e))
	case TypeDiscord:
		return json.Marshal(discordPayload(e))
	case TypeCustom:
		return json.Marshal(e)
	default:
		return nil, fmt.Errorf("unsupported webhook type %q", t)
	}
}

type summaryField struct {
	name  string
	value string
}

func summary(e Event) []summaryField {
	fields := []summaryField{
		{"Status", string(e.Status)},
		{"Products", strconv.Itoa(e.ItemsTotal)},
		{"Synced", strconv.Itoa(e.ItemsSynced)},
		{"Failed", strconv.Itoa(e.ItemsFailed)},
		{"Duration", (time.Duration(e.DurationMs) * time.Millisecond).String()},
	}
	if e.failed() && e.Error != "" {
		fields = append(fields, summaryField{"Error", truncate(e.Error, 1000)})
	}
	return fields
}

func slackPayload(e Event) slackMessage {
	color := slackColorSuccess
	if e.failed() {
		color = slackColorFailure
	}

	var fields []slackField
	for _, f := range summary(e) {
		fields = append(fields, slackField{Title: f.name, Value: f.value, Short: f.name != "Error"})
	}

	title := e.title()
	return slackMessage{
		Text: title,
		Attachments: []slackAttachment{{
			Color:  color,
			Title:  title,
			Fields: fields,
			Footer: footerText,
			Ts:     e.Timestamp.Unix(),
		}},
	}
}

func discordPayload(e Event) discordMessage {
	color := discordColorSuccess
	if e.failed() {
		color = discordColorFailure
	}

	var fields []discordField
	for _, f := range summary(e) {
		fields = append(fields, discordField{Name: f.name, Value: f.value, Inline: f.name != "Error"})
	}

	return discordMessage{
		Embeds: []discordEmbed{{
			Title:     e.title(),
			Color:     color,
			Fields:    fields,
			Footer:    discordFooter{Text: footerText},
			Timestamp: e.Timestamp.Format(time.RFC3339),
		}},
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
