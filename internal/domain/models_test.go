package domain

import (
	"testing"
	"time"
)

func TestSyncState_Constants(t *testing.T) {
	tests := []struct {
		name     string
		state    SyncState
		expected string
	}{
		{"idle", SyncStateIdle, "idle"},
		{"running", SyncStateRunning, "running"},
		{"error", SyncStateError, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if string(tt.state) != tt.expected {
				t.Errorf("SyncState %s = %q, want %q", tt.name, tt.state, tt.expected)
			}
			if !tt.state.Valid() {
				t.Errorf("SyncState %s should be valid", tt.name)
			}
		})
	}

	if SyncState("paused").Valid() {
		t.Error("unknown state should not be valid")
	}
}

func TestCollectionItem_Normalize(t *testing.T) {
	item := &CollectionItem{
		Artist:    "  Miles Davis ",
		Title:     "Kind Of Blue\n",
		Format:    " Vinyl, LP ",
		Notes:     " first press ",
		Condition: " Near Mint (NM or M-) ",
	}
	item.Normalize()

	if item.Artist != "Miles Davis" {
		t.Errorf("Artist = %q", item.Artist)
	}
	if item.Title != "Kind Of Blue" {
		t.Errorf("Title = %q", item.Title)
	}
	if item.Format != "Vinyl, LP" {
		t.Errorf("Format = %q", item.Format)
	}
	if item.Notes != "first press" {
		t.Errorf("Notes = %q", item.Notes)
	}
	if item.Condition != "Near Mint (NM or M-)" {
		t.Errorf("Condition = %q", item.Condition)
	}
}

func TestHandshakeTicket_Expired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ticket := HandshakeTicket{Token: "t", Secret: "s", ExpiresAt: now.Add(15 * time.Minute)}

	if ticket.Expired(now) {
		t.Error("fresh ticket should not be expired")
	}
	if !ticket.Expired(now.Add(15 * time.Minute)) {
		t.Error("ticket should be expired at its deadline")
	}
}

func TestStringSlice_ValueScan(t *testing.T) {
	var empty StringSlice
	v, err := empty.Value()
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}
	if v != "[]" {
		t.Errorf("empty slice Value = %v, want []", v)
	}

	var s StringSlice
	if err := s.Scan(`["Jazz","Blues"]`); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(s) != 2 || s[0] != "Jazz" || s[1] != "Blues" {
		t.Errorf("Scan result = %v", s)
	}

	if err := s.Scan(nil); err != nil || s != nil {
		t.Errorf("Scan(nil) = %v, %v", s, err)
	}

	if err := s.Scan(42); err == nil {
		t.Error("expected error scanning an int")
	}
}
