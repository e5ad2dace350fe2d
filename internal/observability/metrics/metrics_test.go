package metrics

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("role", "device"),
		attribute.String("room_id", "456"),
		attribute.String("outcome", "created"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	if attrs[0].Key != "role" && attrs[1].Key != "role" {
		t.Fatalf("expected role to be retained")
	}
	if attrs[0].Key != "outcome" && attrs[1].Key != "outcome" {
		t.Fatalf("expected outcome to be retained")
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordReadingIngested(context.Background(), "device")
	m.RecordInvoiceTransition(context.Background(), "PENDING", "PAID")
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{ServiceName: "roomwatt"}, noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}
	m.RecordInvoicesGenerated(context.Background(), "created", 3)
	m.RecordRateLimitDenied(context.Background(), "/api/readings", "rate_limited")
}
