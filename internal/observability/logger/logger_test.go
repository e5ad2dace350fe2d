package logger

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/roomwatt/internal/observability/context"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func TestWithContextAddsCorrelationFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	ctx := obscontext.WithRequestID(context.Background(), "req-9")
	ctx = obscontext.WithActor(ctx, "owner", "1")
	WithContext(ctx, base).Info("hello")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["request_id"] != "req-9" {
		t.Fatalf("expected request_id req-9, got %v", fields["request_id"])
	}
	if fields["actor_role"] != "owner" || fields["actor_id"] != "1" {
		t.Fatalf("unexpected actor fields %v/%v", fields["actor_role"], fields["actor_id"])
	}
}

func TestGinMiddlewarePropagatesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware(MiddlewareConfig{}))

	var seen string
	r.GET("/ping", func(c *gin.Context) {
		seen = obscontext.RequestIDFromContext(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-Id", "abc")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if seen != "abc" {
		t.Fatalf("expected request id abc in context, got %q", seen)
	}
	if rec.Header().Get("X-Request-Id") != "abc" {
		t.Fatalf("expected request id echoed in response header")
	}
}

func TestGinMiddlewareGeneratesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware(MiddlewareConfig{}))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected generated request id")
	}
}

func TestGormLoggerSkipsRecordNotFound(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewGormLogger(zap.New(core), GormLoggerConfig{
		Level:                gormlogger.Warn,
		IgnoreRecordNotFound: true,
	})

	sql := func() (string, int64) { return "SELECT * FROM rooms WHERE id = ?", 0 }
	l.Trace(context.Background(), time.Now(), sql, gormlogger.ErrRecordNotFound)
	if logs.Len() != 0 {
		t.Fatalf("expected record not found to be ignored, got %d entries", logs.Len())
	}

	l.Trace(context.Background(), time.Now(), sql, errors.New("boom"))
	if logs.Len() != 1 {
		t.Fatalf("expected error to be logged, got %d entries", logs.Len())
	}
	entry := logs.All()[0]
	if entry.Message != "gorm.query" || entry.ContextMap()["operation"] != "SELECT" {
		t.Fatalf("unexpected entry %s %v", entry.Message, entry.ContextMap())
	}
}
