package legacy

import (
	"context"
	"testing"

	"github.com/linkaid/platform/internal/adapters/insurer"
)

func TestDefaultLegacyConfig(t *testing.T) {
	cfg := DefaultLegacyConfig()

	if cfg.Port != 1433 {
		t.Errorf("expected SQL Server default port, got %d", cfg.Port)
	}
	if cfg.PolicyTable != "dbo.Policies" {
		t.Errorf("unexpected policy table %s", cfg.PolicyTable)
	}
	if cfg.DecisionTable != "dbo.ClaimDecisions" {
		t.Errorf("unexpected decision table %s", cfg.DecisionTable)
	}
	if cfg.EventBufferSize == 0 {
		t.Error("event buffer size must have a default")
	}
}

func TestAdapterNotConnected(t *testing.T) {
	adapter, err := New(DefaultLegacyConfig(), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx := context.Background()

	if adapter.IsConnected() {
		t.Error("fresh adapter must not report connected")
	}
	if _, err := adapter.FetchPolicy(ctx, "RS-001"); err == nil {
		t.Error("FetchPolicy should fail when not connected")
	}
	if err := adapter.Health(ctx); err == nil {
		t.Error("Health should fail when not running")
	}
	if err := adapter.SubscribeDecisions(ctx, func(insurer.DecisionEvent) {}); err == nil {
		t.Error("SubscribeDecisions should fail when not connected")
	}
	if err := adapter.Stop(ctx); err != nil {
		t.Errorf("stopping a stopped adapter should be a no-op, got %v", err)
	}
}

func TestSourceMetadata(t *testing.T) {
	cfg := DefaultLegacyConfig()
	cfg.CarrierName = "Dunav Osiguranje"

	adapter, _ := New(cfg, nil)

	if adapter.SourceSystem() != "legacy-backoffice" {
		t.Errorf("unexpected source system %s", adapter.SourceSystem())
	}
	if adapter.SourceCarrier() != "Dunav Osiguranje" {
		t.Errorf("unexpected carrier %s", adapter.SourceCarrier())
	}
}
