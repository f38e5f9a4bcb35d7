package logger

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap/zapcore"
)

// LogEntry holds the data passed from Zap to our worker
type LogEntry struct {
	Level    zapcore.Level
	Message  string
	TenantID string
	Caller   string // Function name
	Fields   map[string]interface{}
	Time     time.Time
}

// LogRecord is the persisted shape in the logs collection
type LogRecord struct {
	Level     string                 `bson:"level"`
	LevelID   int                    `bson:"level_id"`
	Message   string                 `bson:"message"`
	TenantID  string                 `bson:"tenant_id,omitempty"`
	Caller    string                 `bson:"caller,omitempty"`
	Fields    map[string]interface{} `bson:"fields,omitempty"`
	AppID     string                 `bson:"app_id"`
	CreatedAt time.Time              `bson:"created_at"`
}

// DBLogWriter handles the async writing
type DBLogWriter struct {
	collection *mongo.Collection
	logChan    chan LogEntry
	appID      string
	minLevel   zapcore.Level

	closeOnce sync.Once
	done      chan struct{}
}

// NewDBLogWriter initializes the worker
func NewDBLogWriter(collection *mongo.Collection, appID string, minLevel zapcore.Level) *DBLogWriter {
	writer := &DBLogWriter{
		collection: collection,
		logChan:    make(chan LogEntry, 1000), // Buffer 1000 logs
		appID:      appID,
		minLevel:   minLevel,
		done:       make(chan struct{}),
	}

	// Start the background worker immediately
	go writer.processLogs()

	return writer
}

// AddLog is called by our Zap core
func (w *DBLogWriter) AddLog(entry LogEntry) {
	select {
	case w.logChan <- entry:
	default:
		// Channel full: drop log to prevent blocking the caller
		fmt.Fprintln(os.Stderr, "DB Log Channel Full! Dropping log:", entry.Message)
	}
}

// Close drains pending entries and stops the worker
func (w *DBLogWriter) Close() {
	w.closeOnce.Do(func() {
		close(w.logChan)
		<-w.done
	})
}

func (w *DBLogWriter) processLogs() {
	defer close(w.done)

	for entry := range w.logChan {
		record := LogRecord{
			Level:     entry.Level.String(),
			LevelID:   mapLevelToInt(entry.Level),
			Message:   entry.Message,
			TenantID:  entry.TenantID,
			Caller:    entry.Caller,
			Fields:    entry.Fields,
			AppID:     w.appID,
			CreatedAt: entry.Time.UTC(),
		}

		// Insert errors are ignored to keep the app running
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_, _ = w.collection.InsertOne(ctx, record)
		cancel()
	}
}

func mapLevelToInt(l zapcore.Level) int {
	switch l {
	case zapcore.DebugLevel:
		return 10
	case zapcore.InfoLevel:
		return 20
	case zapcore.WarnLevel:
		return 30
	case zapcore.ErrorLevel:
		return 40
	case zapcore.FatalLevel:
		return 50
	default:
		return 20
	}
}
