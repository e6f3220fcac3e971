package tui

import (
	"testing"
	"time"

	"github.com/muurk/upnpctl/internal/protocol"
)

func testRegistry(clock *time.Time) *Registry {
	r := NewRegistry()
	r.now = func() time.Time { return *clock }
	return r
}

func announcement(usn, location string, maxAge string) protocol.Announcement {
	return protocol.Announcement{
		USN:          usn,
		Location:     location,
		ST:           "upnp:rootdevice",
		CacheControl: maxAge,
	}
}

func TestRegistry_Observe(t *testing.T) {
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r := testRegistry(&clock)

	if !r.Observe(announcement("uuid:a::upnp:rootdevice", "http://10.0.0.1/d.xml", "max-age=60"), "search") {
		t.Error("first Observe() = false, want true")
	}
	if r.Observe(announcement("uuid:a::upnp:rootdevice", "http://10.0.0.1/d.xml", "max-age=60"), "notify") {
		t.Error("repeat Observe() = true, want false")
	}
	// no USN falls back to location
	if !r.Observe(announcement("", "http://10.0.0.2/d.xml", ""), "search") {
		t.Error("Observe() without USN = false, want true")
	}
	// neither USN nor location is ignored
	if r.Observe(protocol.Announcement{}, "search") {
		t.Error("Observe() of empty announcement = true, want false")
	}
	if r.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", r.Len())
	}

	e, ok := r.Get("uuid:a::upnp:rootdevice")
	if !ok {
		t.Fatal("Get() missing entry")
	}
	if e.Source != "notify" {
		t.Errorf("Source = %q, want notify", e.Source)
	}
	if want := clock.Add(60 * time.Second); !e.Expires.Equal(want) {
		t.Errorf("Expires = %v, want %v", e.Expires, want)
	}
}

func TestRegistry_LocationChangeDropsDescription(t *testing.T) {
	clock := time.Now()
	r := testRegistry(&clock)
	r.Observe(announcement("uuid:a", "http://10.0.0.1/d.xml", ""), "search")
	r.SetDescription("uuid:a", protocol.DeviceDescription{FriendlyName: "Router"})

	r.Observe(announcement("uuid:a", "http://10.0.0.1/d.xml", ""), "notify")
	if e, _ := r.Get("uuid:a"); e.Description == nil {
		t.Error("description dropped for unchanged location")
	}

	r.Observe(announcement("uuid:a", "http://10.0.0.9/d.xml", ""), "notify")
	if e, _ := r.Get("uuid:a"); e.Description != nil {
		t.Error("description kept after location change")
	}
}

func TestRegistry_Apply(t *testing.T) {
	clock := time.Now()
	r := testRegistry(&clock)
	dev := announcement("uuid:a", "http://10.0.0.1/d.xml", "max-age=1800")

	tests := []struct {
		name       string
		event      protocol.PresenceEvent
		wantKey    string
		wantStatus Status
	}{
		{"alive", protocol.PresenceEvent{Kind: protocol.PresenceAlive, Device: dev}, "uuid:a", StatusAlive},
		{"update", protocol.PresenceEvent{Kind: protocol.PresenceUpdate, Device: dev}, "uuid:a", StatusUpdated},
		{"byebye", protocol.PresenceEvent{Kind: protocol.PresenceByeBye, USN: "uuid:a", NT: "upnp:rootdevice"}, "uuid:a", StatusGone},
		{"alive again", protocol.PresenceEvent{Kind: protocol.PresenceAlive, Device: dev}, "uuid:a", StatusAlive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Apply(tt.event); got != tt.wantKey {
				t.Fatalf("Apply() = %q, want %q", got, tt.wantKey)
			}
			e, _ := r.Get(tt.wantKey)
			if e.Status != tt.wantStatus {
				t.Errorf("Status = %v, want %v", e.Status, tt.wantStatus)
			}
		})
	}

	if got := r.Apply(protocol.PresenceEvent{Kind: protocol.PresenceByeBye, USN: "uuid:unknown"}); got != "" {
		t.Errorf("Apply(byebye unknown) = %q, want empty", got)
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func TestRegistry_Prune(t *testing.T) {
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r := testRegistry(&clock)

	r.Observe(announcement("uuid:short", "http://10.0.0.1/d.xml", "max-age=10"), "search")
	r.Observe(announcement("uuid:forever", "http://10.0.0.2/d.xml", ""), "search")
	r.Observe(announcement("uuid:leaving", "http://10.0.0.3/d.xml", "max-age=1800"), "search")
	r.Apply(protocol.PresenceEvent{Kind: protocol.PresenceByeBye, USN: "uuid:leaving"})

	clock = clock.Add(5 * time.Second)
	if removed := r.Prune(); len(removed) != 0 {
		t.Errorf("Prune() at 5s = %v, want none", removed)
	}

	clock = clock.Add(goneLinger)
	removed := r.Prune()
	if len(removed) != 2 || removed[0] != "uuid:leaving" || removed[1] != "uuid:short" {
		t.Errorf("Prune() = %v, want [uuid:leaving uuid:short]", removed)
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func TestRegistry_EntriesAndCounts(t *testing.T) {
	clock := time.Now()
	r := testRegistry(&clock)
	r.Observe(announcement("uuid:b", "http://10.0.0.2/d.xml", ""), "search")
	r.Observe(announcement("uuid:a", "http://10.0.0.1/d.xml", ""), "search")
	r.SetDescription("uuid:b", protocol.DeviceDescription{FriendlyName: "Attic NAS"})
	r.Apply(protocol.PresenceEvent{Kind: protocol.PresenceByeBye, USN: "uuid:a"})

	entries := r.Entries()
	if len(entries) != 2 {
		t.Fatalf("Entries() len = %d, want 2", len(entries))
	}
	if entries[0].Name() != "Attic NAS" || entries[1].Name() != "uuid:a" {
		t.Errorf("order = %q, %q", entries[0].Name(), entries[1].Name())
	}

	present, gone := r.Counts()
	if present != 1 || gone != 1 {
		t.Errorf("Counts() = %d, %d, want 1, 1", present, gone)
	}

	r.Clear()
	if r.Len() != 0 {
		t.Errorf("Len() after Clear = %d", r.Len())
	}
}
