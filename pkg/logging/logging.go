// Package logging builds the service logger: zap underneath, adapted to the
// ectologger interface the rest of the codebase consumes.
package logging

import (
	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New constructs the process-wide logger. Pretty logs use zap's development
// encoder for local readability; production logs are JSON. Unparseable levels
// fall back to info.
func New(pretty bool, level string) ectologger.Logger {
	zapLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		zapLevel = zapcore.InfoLevel
	}

	var cfg zap.Config
	if pretty {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	zapLogger, err := cfg.Build()
	if err != nil {
		zapLogger = zap.NewNop()
	}

	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}
