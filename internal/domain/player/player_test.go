package player

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestNewPlayerDefaults(t *testing.T) {
	p := New("0xabc", "assets/nfts/7.png", RoleCrewmate)

	if p.X != 400 || p.Y != 300 {
		t.Errorf("expected spawn at (400,300), got (%v,%v)", p.X, p.Y)
	}
	if p.Score != 0 {
		t.Errorf("expected score 0, got %d", p.Score)
	}
	if p.Energy != 100 {
		t.Errorf("expected energy 100, got %v", p.Energy)
	}
	if p.BaseSpeed != 5 {
		t.Errorf("expected base speed 5, got %v", p.BaseSpeed)
	}
	if !p.Alive || p.TasksCompleted != 0 {
		t.Errorf("expected alive with no tasks, got alive=%v tasks=%d", p.Alive, p.TasksCompleted)
	}
	if !p.IsCrewmate() {
		t.Error("expected crewmate role")
	}
}

func TestAddEnergyClampsBothWays(t *testing.T) {
	p := New("0xabc", "s", RoleNone)

	p.AddEnergy(50)
	if p.Energy != MaxEnergy {
		t.Errorf("expected energy capped at %v, got %v", MaxEnergy, p.Energy)
	}

	p.AddEnergy(-250)
	if p.Energy != MinEnergy {
		t.Errorf("expected energy floored at %v, got %v", MinEnergy, p.Energy)
	}
}

func TestPlayerJSONOmitsRoleWhenUnset(t *testing.T) {
	b, err := json.Marshal(New("0xabc", "s", RoleNone))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(b)
	if strings.Contains(s, `"role"`) {
		t.Errorf("role should be omitted outside elimination mode: %s", s)
	}
	for _, field := range []string{`"walletAddress":"0xabc"`, `"baseSpeed":5`, `"alive":true`} {
		if !strings.Contains(s, field) {
			t.Errorf("expected %s in %s", field, s)
		}
	}
}
