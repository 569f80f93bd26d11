package logger

import (
    "go.uber.org/zap"
    "go.uber.org/zap/zapcore"
)

// New creates a structured production logger tagged with the service
// name.  The level string accepts debug/info/warn/error; anything else
// falls back to info.
func New(serviceName, logLevel string) *zap.Logger {
    config := zap.NewProductionConfig()

    level := zapcore.InfoLevel
    switch logLevel {
    case "debug":
        level = zapcore.DebugLevel
    case "warn":
        level = zapcore.WarnLevel
    case "error":
        level = zapcore.ErrorLevel
    }
    config.Level = zap.NewAtomicLevelAt(level)

    config.EncoderConfig.TimeKey = "timestamp"
    config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
    config.InitialFields = map[string]interface{}{
        "service": serviceName,
    }

    log, err := config.Build(zap.AddStacktrace(zapcore.ErrorLevel))
    if err != nil {
        panic(err)
    }
    return log
}
