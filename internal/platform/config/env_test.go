package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.TickInterval != 100*time.Millisecond {
		t.Errorf("expected 100ms tick, got %v", cfg.TickInterval)
	}
	if cfg.SessionDuration != 2*time.Minute {
		t.Errorf("expected 2m session, got %v", cfg.SessionDuration)
	}
	if cfg.RestartDelay != 10*time.Second {
		t.Errorf("expected 10s restart delay, got %v", cfg.RestartDelay)
	}
	if cfg.SabotagePeriod != 30*time.Second || cfg.SabotageDuration != 5*time.Second {
		t.Errorf("unexpected sabotage timing %v/%v", cfg.SabotagePeriod, cfg.SabotageDuration)
	}
	if cfg.ImposterChance != 0.2 {
		t.Errorf("expected imposter chance 0.2, got %v", cfg.ImposterChance)
	}
	if cfg.EliminationMode {
		t.Error("elimination mode should default to off")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("COINRUSH_ELIMINATION_MODE", "true")
	t.Setenv("COINRUSH_SESSION_DURATION", "90s")
	t.Setenv("COINRUSH_ADDR", ":9999")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.EliminationMode {
		t.Error("expected elimination mode on")
	}
	if cfg.SessionDuration != 90*time.Second {
		t.Errorf("expected 90s, got %v", cfg.SessionDuration)
	}
	if cfg.Addr != ":9999" {
		t.Errorf("expected :9999, got %q", cfg.Addr)
	}
}

func TestParseEnvError(t *testing.T) {
	t.Setenv("COINRUSH_TICK_INTERVAL", "not-a-duration")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestValidateRejectsSabotageLongerThanPeriod(t *testing.T) {
	t.Setenv("COINRUSH_SABOTAGE_DURATION", "45s")

	_, err := Load()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "sabotage duration") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejectsImposterChanceOutOfRange(t *testing.T) {
	t.Setenv("COINRUSH_IMPOSTER_CHANCE", "1.5")

	if _, err := Load(); err == nil {
		t.Fatal("expected validation error")
	}
}
