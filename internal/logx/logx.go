package logx

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New bikin production logger; service name di-attach ke semua entry.
func New(service string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	lg, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return lg.With(zap.String("service", service)), nil
}
