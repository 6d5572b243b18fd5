package telemetry

import (
	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// BridgeLogger returns a logger that writes to base and also exports every
// entry at or above level through the provider's OTLP log pipeline.
// base is returned unchanged when log export is off.
func BridgeLogger(base *zap.Logger, p *Provider, level zapcore.Level) *zap.Logger {
	lp := p.LoggerProvider()
	if base == nil || lp == nil {
		return base
	}

	core := otelzap.NewCore(p.config.ServiceName, otelzap.WithLoggerProvider(lp))
	filtered := &levelFilterCore{Core: core, minLevel: level}

	return base.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, filtered)
	}))
}

// levelFilterCore drops entries below minLevel.
type levelFilterCore struct {
	zapcore.Core
	minLevel zapcore.Level
}

func (c *levelFilterCore) Enabled(lvl zapcore.Level) bool {
	return lvl >= c.minLevel && c.Core.Enabled(lvl)
}

func (c *levelFilterCore) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(entry.Level) {
		return ce
	}
	return c.Core.Check(entry, ce)
}

func (c *levelFilterCore) With(fields []zapcore.Field) zapcore.Core {
	return &levelFilterCore{Core: c.Core.With(fields), minLevel: c.minLevel}
}
