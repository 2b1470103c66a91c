package observability

import (
	"go.uber.org/zap"
)

// Emitter is the fire-and-forget telemetry sink consumed by the run
// controller and handlers. Emission never blocks and never returns an
// error; a telemetry failure must not be able to affect run state.
type Emitter struct {
	logger  *zap.Logger
	metrics *Metrics
}

// NewEmitter creates an Emitter writing structured events through the given
// logger and counting them in the given metrics. Either may be nil; a nil
// logger makes the emitter a no-op for log output.
func NewEmitter(logger *zap.Logger, metrics *Metrics) *Emitter {
	return &Emitter{logger: logger, metrics: metrics}
}

// EmitEvent records a named event with arbitrary key-value fields.
func (e *Emitter) EmitEvent(name string, fields map[string]any) {
	defer func() { _ = recover() }()

	if e.metrics != nil {
		e.metrics.RecordTelemetryEvent(name)
	}
	if e.logger == nil {
		return
	}
	e.logger.Info(name, zapFields(fields)...)
}

// EmitError records a named error event. The error may be nil.
func (e *Emitter) EmitError(name string, err error, fields map[string]any) {
	defer func() { _ = recover() }()

	if e.metrics != nil {
		e.metrics.RecordTelemetryEvent(name)
	}
	if e.logger == nil {
		return
	}
	zf := zapFields(fields)
	if err != nil {
		zf = append(zf, zap.Error(err))
	}
	e.logger.Warn(name, zf...)
}

func zapFields(fields map[string]any) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	zf := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		zf = append(zf, zap.Any(k, v))
	}
	return zf
}
