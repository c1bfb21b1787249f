package agent

import (
	"testing"

	"system-mqtt/internal/homeassistant"
)

func TestRegisterKeepsOrder(t *testing.T) {
	r := NewRegistry()
	r.Register(homeassistant.Entity{ID: "cpu_usage"})
	r.Register(homeassistant.Entity{ID: "memory_usage"})
	r.Register(homeassistant.Entity{ID: "swap_usage"})

	got := r.Entities()
	want := []string{"cpu_usage", "memory_usage", "swap_usage"}
	if len(got) != len(want) {
		t.Fatalf("expected %d entities, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("expected entity %d to be %s, got %s", i, id, got[i].ID)
		}
	}
}

func TestRegisterDuplicateKeepsPosition(t *testing.T) {
	r := NewRegistry()
	r.Register(homeassistant.Entity{ID: "cpu_usage", Icon: "mdi:gauge"})
	r.Register(homeassistant.Entity{ID: "memory_usage"})
	r.Register(homeassistant.Entity{ID: "cpu_usage", Icon: "mdi:chip"})

	got := r.Entities()
	if len(got) != 2 {
		t.Fatalf("expected 2 entities, got %d", len(got))
	}
	if got[0].ID != "cpu_usage" || got[1].ID != "memory_usage" {
		t.Fatalf("expected cpu_usage to keep first position, got %s, %s", got[0].ID, got[1].ID)
	}
	if got[0].Icon != "mdi:chip" {
		t.Fatalf("expected re-registration to replace content, got icon %s", got[0].Icon)
	}
}

func TestAnnouncedLifecycle(t *testing.T) {
	r := NewRegistry()
	r.Register(homeassistant.Entity{ID: "cpu_usage"})
	r.Register(homeassistant.Entity{ID: "memory_usage"})

	if r.Announced("cpu_usage") {
		t.Fatal("expected fresh registry to have nothing announced")
	}
	if got := r.Pending(); got != 2 {
		t.Fatalf("expected 2 pending entities, got %d", got)
	}

	r.MarkAnnounced("cpu_usage")
	if !r.Announced("cpu_usage") {
		t.Fatal("expected cpu_usage to be announced after marking")
	}
	if got := r.Pending(); got != 1 {
		t.Fatalf("expected 1 pending entity, got %d", got)
	}

	r.ResetAnnounced()
	if r.Announced("cpu_usage") {
		t.Fatal("expected reset to forget announcements")
	}
	if got := r.Pending(); got != 2 {
		t.Fatalf("expected reset to leave 2 pending entities, got %d", got)
	}
}
