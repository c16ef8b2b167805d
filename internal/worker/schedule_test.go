package worker

import (
	"testing"
	"time"
)

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("failed to load location: %v", err)
	}
	parsed, err := time.ParseInLocation("2006-01-02 15:04", value, loc)
	if err != nil {
		t.Fatalf("failed to parse time: %v", err)
	}
	return parsed
}

func TestNextPostSlotSameDay(t *testing.T) {
	now := mustTime(t, "2026-03-02 09:30")
	slot, at := nextPostSlot("America/New_York", "08:00,13:00,20:00", now)

	if slot != "13:00" {
		t.Errorf("expected 13:00, got %s", slot)
	}
	if at.Day() != 2 || at.Hour() != 13 {
		t.Errorf("unexpected slot time: %v", at)
	}
}

func TestNextPostSlotRollsToTomorrow(t *testing.T) {
	now := mustTime(t, "2026-03-02 21:00")
	slot, at := nextPostSlot("America/New_York", "08:00,13:00,20:00", now)

	if slot != "08:00" {
		t.Errorf("expected 08:00, got %s", slot)
	}
	if at.Day() != 3 || at.Hour() != 8 {
		t.Errorf("expected tomorrow 08:00, got %v", at)
	}
}

func TestNextPostSlotPicksEarliestUpcoming(t *testing.T) {
	now := mustTime(t, "2026-03-02 07:00")
	slot, _ := nextPostSlot("America/New_York", "20:00,08:00,13:00", now)

	if slot != "08:00" {
		t.Errorf("expected earliest upcoming 08:00, got %s", slot)
	}
}

func TestNextPostSlotBadWindowsFallBack(t *testing.T) {
	now := mustTime(t, "2026-03-02 07:00")
	slot, _ := nextPostSlot("America/New_York", "not-a-window, 99:99", now)

	if slot != "08:00" {
		t.Errorf("expected default 08:00 window, got %s", slot)
	}
}

func TestParseWindows(t *testing.T) {
	got := parseWindows(" 08:00, 13:00 ,20:30,bad,25:00")
	want := []window{{8, 0}, {13, 0}, {20, 30}}
	if len(got) != len(want) {
		t.Fatalf("expected %d windows, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("window %d = %v, want %v", i, got[i], want[i])
		}
	}
}
