package logger

import (
	"context"

	"go-catalog-sync/internal/config"
	"go-catalog-sync/internal/database" // Import to get DB connection

	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const logsCollection = "logs"

// NewLogger requires the Database to pass to the DB Writer
func NewLogger(lc fx.Lifecycle, cfg *config.Config, db *database.MongodbDB) (*zap.Logger, error) {

	// 1. Setup Base Config (Console/JSON)
	var zapConfig zap.Config
	if cfg.IsProduction() {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}

	// Important: Enable Caller to get Function Name
	zapConfig.EncoderConfig.FunctionKey = "func"

	// Build the base logger
	baseLogger, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}

	// 2. Create our Async DB Writer, only Info and above are persisted
	dbWriter := NewDBLogWriter(db.DB.Collection(logsCollection), cfg.AppId, zapcore.InfoLevel)

	// 3. Wrap the Core
	// We replace the logger's core with our "Tee" core (sends to both console and DB)
	finalCore := NewDBCore(baseLogger.Core(), dbWriter)

	// 4. Return new Logger with AddCaller enabled
	log := zap.New(finalCore, zap.AddCaller())

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			_ = log.Sync()
			dbWriter.Close()
			return nil
		},
	})

	return log, nil
}
