package availability

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestParseSlot(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"09:30", 570, false},
		{"23:30", 1410, false},
		{"24:00", 0, true},
		{"9:00", 0, true},
		{"09:15", 0, true},
		{"0930", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseSlot(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseSlot(%q): expected error", tt.in)
				continue
			}
			if !errors.Is(err, ErrFormat) {
				t.Errorf("ParseSlot(%q): expected ErrFormat, got %v", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseSlot(%q): unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseSlot(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestFormatSlot_WrapsMidnight(t *testing.T) {
	if got := FormatSlot(24 * 60); got != "00:00" {
		t.Errorf("expected 00:00, got %s", got)
	}
	if got := FormatSlot(-30); got != "23:30" {
		t.Errorf("expected 23:30, got %s", got)
	}
}

func TestOccupiedSlots(t *testing.T) {
	start := time.Date(2030, 1, 7, 9, 0, 0, 0, time.UTC)

	got, err := OccupiedSlots(start, 60)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"09:00", "09:30"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestOccupiedSlots_UsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	start := time.Date(2030, 1, 7, 11, 0, 0, 0, loc)

	got, err := OccupiedSlots(start, 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[0] != "09:00" {
		t.Errorf("expected UTC label 09:00, got %s", got[0])
	}
}

func TestOccupiedSlots_CardinalityMatchesDuration(t *testing.T) {
	start := time.Date(2030, 1, 7, 8, 0, 0, 0, time.UTC)
	for d := SlotMinutes; d <= MaxDurationMinutes; d += SlotMinutes {
		slots, err := OccupiedSlots(start, d)
		if err != nil {
			t.Fatalf("duration %d: unexpected error: %v", d, err)
		}
		if len(slots) != d/SlotMinutes {
			t.Errorf("duration %d: expected %d slots, got %d", d, d/SlotMinutes, len(slots))
		}
	}
}

func TestOccupiedSlots_InvalidDuration(t *testing.T) {
	start := time.Date(2030, 1, 7, 9, 0, 0, 0, time.UTC)
	for _, d := range []int{0, -30, 45, 31} {
		if _, err := OccupiedSlots(start, d); !errors.Is(err, ErrDuration) {
			t.Errorf("duration %d: expected ErrDuration, got %v", d, err)
		}
	}
}

func TestExpandRange(t *testing.T) {
	got, err := ExpandRange("09:00", "11:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"09:00", "09:30", "10:00", "10:30"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestExpandRange_EndOfDay(t *testing.T) {
	got, err := ExpandRange("23:00", "24:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"23:00", "23:30"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestExpandRange_Empty(t *testing.T) {
	got, err := ExpandRange("10:00", "10:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty range, got %v", got)
	}
}

func TestExpandRange_Errors(t *testing.T) {
	if _, err := ExpandRange("10:15", "11:00"); !errors.Is(err, ErrFormat) {
		t.Errorf("expected ErrFormat for bad start, got %v", err)
	}
	if _, err := ExpandRange("10:00", "xx"); !errors.Is(err, ErrFormat) {
		t.Errorf("expected ErrFormat for bad end, got %v", err)
	}
	if _, err := ExpandRange("11:00", "10:00"); err == nil {
		t.Error("expected error for reversed range")
	}
}

// A full-day booking spanning an expanded range occupies exactly that range.
func TestExpandRange_OccupiedSlotsRoundTrip(t *testing.T) {
	ranges := [][2]string{
		{"09:00", "11:00"},
		{"00:00", "04:30"},
		{"13:30", "14:00"},
		{"19:00", "23:30"},
	}
	day := time.Date(2030, 1, 7, 0, 0, 0, 0, time.UTC)

	for _, r := range ranges {
		want, err := ExpandRange(r[0], r[1])
		if err != nil {
			t.Fatalf("%v: unexpected error: %v", r, err)
		}
		from, _ := ParseSlot(r[0])
		start := day.Add(time.Duration(from) * time.Minute)

		got, err := OccupiedSlots(start, len(want)*SlotMinutes)
		if err != nil {
			t.Fatalf("%v: unexpected error: %v", r, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("%v: round trip mismatch: expected %v, got %v", r, want, got)
		}
	}
}

func TestIsAligned(t *testing.T) {
	base := time.Date(2030, 1, 7, 9, 0, 0, 0, time.UTC)
	if !IsAligned(base) {
		t.Error("expected 09:00 to be aligned")
	}
	if !IsAligned(base.Add(30 * time.Minute)) {
		t.Error("expected 09:30 to be aligned")
	}
	if IsAligned(base.Add(15 * time.Minute)) {
		t.Error("expected 09:15 not to be aligned")
	}
	if IsAligned(base.Add(time.Second)) {
		t.Error("expected 09:00:01 not to be aligned")
	}
}

func TestSlotSet_Intersects(t *testing.T) {
	set := NewSlotSet("09:00", "09:30")
	if slot, ok := set.Intersects([]string{"10:00", "09:30"}); !ok || slot != "09:30" {
		t.Errorf("expected shared slot 09:30, got %q %v", slot, ok)
	}
	if _, ok := set.Intersects([]string{"10:00", "10:30"}); ok {
		t.Error("expected no intersection")
	}
}
