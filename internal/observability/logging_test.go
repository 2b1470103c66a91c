package observability

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/korubo/kybdash/internal/config"
	"github.com/korubo/kybdash/model"
)

func TestNewLogger_levels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		if _, err := NewLogger(config.ObservabilityConfig{LogLevel: level}); err != nil {
			t.Errorf("NewLogger(%q) error = %v", level, err)
		}
	}
}

func TestNewLogger_invalid_level_falls_back(t *testing.T) {
	logger, err := NewLogger(config.ObservabilityConfig{LogLevel: "bogus"})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	if !logger.Core().Enabled(zap.InfoLevel) {
		t.Error("fallback level should enable info")
	}
}

func TestLoggerFrom_fallback(t *testing.T) {
	fallback := zap.NewNop()
	if got := LoggerFrom(context.Background(), fallback); got != fallback {
		t.Error("LoggerFrom with empty context should return fallback")
	}

	stored := zap.NewNop()
	ctx := WithLogger(context.Background(), stored)
	if got := LoggerFrom(ctx, fallback); got != stored {
		t.Error("LoggerFrom should return stored logger")
	}
}

func TestRequestLogger_without_request_context(t *testing.T) {
	fallback := zap.NewNop()
	if got := RequestLogger(context.Background(), fallback); got != fallback {
		t.Error("RequestLogger without RequestContext should return fallback unchanged")
	}
}

func TestRequestLogger_with_request_context(t *testing.T) {
	ctx := model.WithRequestContext(context.Background(), &model.RequestContext{
		SubjectID:     "analyst-1",
		CorrelationID: "corr-1",
		TraceID:       "t1",
	})
	// Enrichment should not panic and should return a usable logger.
	RequestLogger(ctx, zap.NewNop()).Info("ok")
}
