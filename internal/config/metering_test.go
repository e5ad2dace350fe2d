package config

import (
	"testing"
	"time"
)

func TestStaticMeteringConfigDefaults(t *testing.T) {
	holder, err := NewStaticMeteringConfigHolder(MeteringConfig{SamplingInterval: 10 * time.Second})
	if err != nil {
		t.Fatalf("new holder: %v", err)
	}

	cfg := holder.Get()
	if cfg.SamplingInterval != 10*time.Second {
		t.Fatalf("expected sampling interval 10s, got %s", cfg.SamplingInterval)
	}
	if cfg.Timezone != DefaultTimezone {
		t.Fatalf("expected default timezone, got %q", cfg.Timezone)
	}
	if cfg.Location() != time.UTC {
		t.Fatalf("expected UTC location")
	}
	if cfg.InvoiceNumberTemplate != DefaultInvoiceNumberTemplate {
		t.Fatalf("expected default template, got %q", cfg.InvoiceNumberTemplate)
	}
}

func TestStaticMeteringConfigRejectsInvalidValues(t *testing.T) {
	if _, err := NewStaticMeteringConfigHolder(MeteringConfig{}); err == nil {
		t.Fatalf("expected error for zero sampling interval")
	}
	if _, err := NewStaticMeteringConfigHolder(MeteringConfig{SamplingInterval: time.Second, Timezone: "Mars/Olympus"}); err == nil {
		t.Fatalf("expected error for unknown timezone")
	}
}

func TestNilHolderFallsBackToDefaults(t *testing.T) {
	var holder *MeteringConfigHolder
	if got := holder.Get().SamplingInterval; got != DefaultSamplingInterval {
		t.Fatalf("expected default sampling interval, got %s", got)
	}
}

func TestParseList(t *testing.T) {
	got := parseList(" generate_invoices, ,other ")
	if len(got) != 2 || got[0] != "generate_invoices" || got[1] != "other" {
		t.Fatalf("unexpected list %v", got)
	}
}
