package availability

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrInvalidTemplate is matched by every *ValidationError.
var ErrInvalidTemplate = errors.New("invalid availability")

// Weekdays lists the keys a Template may use, Monday first.
var Weekdays = []string{
	"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday",
}

// ValidationError describes why a template was rejected.
type ValidationError struct {
	Day    string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Day == "" {
		return "availability: " + e.Reason
	}
	return fmt.Sprintf("availability %s: %s", e.Day, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidTemplate
}

// Template maps a weekday name to the sorted slot labels a doctor can be
// booked on that day.
type Template map[string][]string

// Day returns the template key for the UTC weekday of t.
func Day(t time.Time) string {
	return t.UTC().Weekday().String()
}

func isWeekday(day string) bool {
	for _, d := range Weekdays {
		if d == day {
			return true
		}
	}
	return false
}

// IsBookable reports whether slot is listed for day.
func (t Template) IsBookable(day, slot string) bool {
	for _, s := range t[day] {
		if s == slot {
			return true
		}
	}
	return false
}

// CoversAll reports whether every requested slot is listed for day. The
// first missing slot is returned when it is not.
func (t Template) CoversAll(day string, slots []string) (string, bool) {
	listed := NewSlotSet(t[day]...)
	for _, s := range slots {
		if !listed.Contains(s) {
			return s, false
		}
	}
	return "", true
}

// Validate rejects unknown weekdays, labels that are not half-hour aligned
// and a template with no bookable slot at all.
func (t Template) Validate() error {
	total := 0
	for day, slots := range t {
		if !isWeekday(day) {
			return &ValidationError{Day: day, Reason: "unknown weekday, expected one of " + strings.Join(Weekdays, ", ")}
		}
		for _, s := range slots {
			if _, err := ParseSlot(s); err != nil {
				return &ValidationError{Day: day, Reason: err.Error()}
			}
		}
		total += len(slots)
	}
	if total == 0 {
		return &ValidationError{Reason: "at least one day must have bookable slots"}
	}
	return nil
}

// Normalize returns a copy with every day sorted and free of duplicates.
// Labels are compared as strings, which orders "HH:MM" chronologically.
func (t Template) Normalize() Template {
	out := make(Template, len(t))
	for day, slots := range t {
		set := NewSlotSet(slots...)
		list := make([]string, 0, len(set))
		for s := range set {
			list = append(list, s)
		}
		sort.Strings(list)
		out[day] = list
	}
	return out
}

// Clone returns a deep copy.
func (t Template) Clone() Template {
	if t == nil {
		return nil
	}
	out := make(Template, len(t))
	for day, slots := range t {
		out[day] = append([]string(nil), slots...)
	}
	return out
}
