// Package availability holds the slot arithmetic and the weekly availability
// template used to decide whether a doctor can be booked at a given time.
//
// All wall-clock values are UTC. A slot is a 30 minute unit labelled by its
// start time of day in "HH:MM" form.
package availability

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

const (
	// SlotMinutes is the length of a single bookable unit.
	SlotMinutes = 30
	// MaxDurationMinutes is the longest appointment that can be booked.
	MaxDurationMinutes = 270

	minutesPerDay = 24 * 60
)

var (
	// ErrFormat is matched by every *FormatError.
	ErrFormat = errors.New("malformed slot")
	// ErrDuration is returned when a duration is not a positive multiple of SlotMinutes.
	ErrDuration = errors.New("duration must be a positive multiple of 30 minutes")
)

var slotPattern = regexp.MustCompile(`^([01]\d|2[0-3]):(00|30)$`)

// FormatError reports a time-of-day string that is not a valid slot label.
type FormatError struct {
	Value string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid slot %q: expected HH:MM aligned to :00 or :30", e.Value)
}

func (e *FormatError) Is(target error) bool {
	return target == ErrFormat
}

// ParseSlot converts a slot label into minutes after midnight.
func ParseSlot(s string) (int, error) {
	m := slotPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, &FormatError{Value: s}
	}
	h, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	return h*60 + mm, nil
}

// FormatSlot renders minutes after midnight as a slot label. Values outside a
// single day wrap around midnight.
func FormatSlot(minutes int) string {
	minutes = ((minutes % minutesPerDay) + minutesPerDay) % minutesPerDay
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// SlotOf returns the label of the slot an instant falls on, read in UTC.
func SlotOf(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// IsAligned reports whether t starts exactly on a slot boundary.
func IsAligned(t time.Time) bool {
	t = t.UTC()
	return (t.Minute() == 0 || t.Minute() == 30) && t.Second() == 0 && t.Nanosecond() == 0
}

// OccupiedSlots partitions [start, start+duration) into consecutive slots
// labelled by their UTC start time. The result has duration/30 entries.
func OccupiedSlots(start time.Time, durationMinutes int) ([]string, error) {
	if durationMinutes <= 0 || durationMinutes%SlotMinutes != 0 {
		return nil, ErrDuration
	}
	n := durationMinutes / SlotMinutes
	slots := make([]string, 0, n)
	cur := start.UTC()
	for i := 0; i < n; i++ {
		slots = append(slots, SlotOf(cur))
		cur = cur.Add(SlotMinutes * time.Minute)
	}
	return slots, nil
}

// ExpandRange lists every slot from `from` up to but not including `to`.
// "24:00" is accepted as `to` to mean the end of the day.
func ExpandRange(from, to string) ([]string, error) {
	start, err := ParseSlot(from)
	if err != nil {
		return nil, err
	}
	end := minutesPerDay
	if to != "24:00" {
		if end, err = ParseSlot(to); err != nil {
			return nil, err
		}
	}
	if end < start {
		return nil, fmt.Errorf("range end %s is before start %s", to, from)
	}

	slots := make([]string, 0, (end-start)/SlotMinutes)
	for m := start; m < end; m += SlotMinutes {
		slots = append(slots, FormatSlot(m))
	}
	return slots, nil
}

// SlotSet is an unordered collection of slot labels.
type SlotSet map[string]struct{}

// NewSlotSet builds a set from labels.
func NewSlotSet(slots ...string) SlotSet {
	s := make(SlotSet, len(slots))
	for _, slot := range slots {
		s[slot] = struct{}{}
	}
	return s
}

func (s SlotSet) Contains(slot string) bool {
	_, ok := s[slot]
	return ok
}

// Intersects reports whether any of the given labels is in the set, and
// returns the first shared one.
func (s SlotSet) Intersects(slots []string) (string, bool) {
	for _, slot := range slots {
		if s.Contains(slot) {
			return slot, true
		}
	}
	return "", false
}
