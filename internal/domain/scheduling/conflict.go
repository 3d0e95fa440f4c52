package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/booking/internal/domain/availability"
)

// ValidateCandidate rejects a start time or duration that could never be
// booked: a zero or past start, a start off the half-hour grid, or a
// duration that is not 30 to 270 minutes in 30 minute steps.
func ValidateCandidate(start time.Time, durationMinutes int, now time.Time) error {
	if start.IsZero() {
		return validationf("start date is required")
	}
	if !availability.IsAligned(start) {
		return validationf("start date %s must fall on a :00 or :30 boundary", start.UTC().Format(time.RFC3339))
	}
	if start.Before(now) {
		return validationf("start date %s is in the past", start.UTC().Format(time.RFC3339))
	}
	if durationMinutes < availability.SlotMinutes || durationMinutes > availability.MaxDurationMinutes ||
		durationMinutes%availability.SlotMinutes != 0 {
		return validationf("duration %d must be a multiple of %d between %d and %d minutes",
			durationMinutes, availability.SlotMinutes, availability.SlotMinutes, availability.MaxDurationMinutes)
	}
	return nil
}

// ConflictChecker decides whether a doctor can take an appointment at a
// given time. Weekdays and day boundaries are taken in UTC.
type ConflictChecker struct {
	appointments AppointmentRepository
	now          func() time.Time
}

func NewConflictChecker(appointments AppointmentRepository, now func() time.Time) *ConflictChecker {
	if now == nil {
		now = time.Now
	}
	return &ConflictChecker{appointments: appointments, now: now}
}

// CheckAvailability returns nil when [start, start+duration) ends by the next
// UTC midnight, lies inside the doctor's template and shares no slot with
// another active appointment that starts on the same UTC day. excludeID skips the appointment being edited.
//
// Called inside a transaction that holds the doctor's row lock, the answer
// stays valid until commit.
func (c *ConflictChecker) CheckAvailability(ctx context.Context, doctor *Doctor, start time.Time, durationMinutes int, excludeID uuid.UUID) error {
	if err := ValidateCandidate(start, durationMinutes, c.now()); err != nil {
		return err
	}
	start = start.UTC()

	wanted, err := availability.OccupiedSlots(start, durationMinutes)
	if err != nil {
		return validationf("%v", err)
	}

	// Slots are matched against the start day's template, so the whole
	// appointment has to end by the following UTC midnight.
	dayStart := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)
	if end := start.Add(time.Duration(durationMinutes) * time.Minute); end.After(dayEnd) {
		return fmt.Errorf("%w: appointment ending %s runs past midnight UTC", ErrDoctorUnavailable, end.Format(time.RFC3339))
	}

	day := availability.Day(start)
	if missing, ok := doctor.Availability.CoversAll(day, wanted); !ok {
		return fmt.Errorf("%w: %s %s is outside the doctor's availability", ErrDoctorUnavailable, day, missing)
	}

	existing, err := c.appointments.ListActiveByDoctorBetween(ctx, doctor.ID, dayStart, dayEnd, excludeID)
	if err != nil {
		return classify(err)
	}

	booked := availability.NewSlotSet(wanted...)
	for _, a := range existing {
		taken, err := a.Slots()
		if err != nil {
			return fmt.Errorf("%w: appointment %s has duration %d", ErrInfrastructure, a.ID, a.DurationMinutes)
		}
		if shared, hit := booked.Intersects(taken); hit {
			return fmt.Errorf("%w: slot %s on %s is already booked", ErrDoctorUnavailable, shared, dayStart.Format("2006-01-02"))
		}
	}
	return nil
}

// CoveredBy reports the first active appointment whose slots the template
// does not cover, or nil when all are covered.
func CoveredBy(tpl availability.Template, appts []*Appointment) (*Appointment, string) {
	for _, a := range appts {
		slots, err := a.Slots()
		if err != nil {
			continue
		}
		if missing, ok := tpl.CoversAll(availability.Day(a.StartDate), slots); !ok {
			return a, missing
		}
	}
	return nil, ""
}
