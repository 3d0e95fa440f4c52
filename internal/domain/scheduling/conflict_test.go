package scheduling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/booking/internal/domain/availability"
)

var (
	testNow    = time.Date(2030, 1, 1, 8, 0, 0, 0, time.UTC)
	monday     = time.Date(2030, 1, 7, 0, 0, 0, 0, time.UTC)
	mondayNine = monday.Add(9 * time.Hour)
)

func at(hour, minute int) time.Time {
	return monday.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func mondayMorning() availability.Template {
	return availability.Template{"Monday": {"09:00", "09:30", "10:00", "10:30"}}
}

func newCheckerFixture(t *testing.T) (*ConflictChecker, *memStore, *Doctor) {
	t.Helper()
	m := newMemStore()
	d := &Doctor{ID: uuid.New(), Name: "Dr Grey", Availability: mondayMorning()}
	m.doctors[d.ID] = *cloneDoctor(*d)
	return NewConflictChecker(memAppointments{m}, func() time.Time { return testNow }), m, d
}

func seedAppt(m *memStore, doctorID uuid.UUID, start time.Time, minutes int, status Status) Appointment {
	a := Appointment{
		ID:              uuid.New(),
		DoctorID:        doctorID,
		PatientID:       uuid.New(),
		StartDate:       start,
		DurationMinutes: minutes,
		Status:          status,
	}
	m.appts[a.ID] = a
	return a
}

func TestValidateCandidate(t *testing.T) {
	tests := []struct {
		name     string
		start    time.Time
		duration int
		wantErr  bool
	}{
		{"aligned half hour", mondayNine, 30, false},
		{"longest", mondayNine, 270, false},
		{"zero start", time.Time{}, 30, true},
		{"off grid", at(9, 15), 30, true},
		{"seconds", mondayNine.Add(time.Second), 30, true},
		{"past", testNow.Add(-time.Hour), 30, true},
		{"zero duration", mondayNine, 0, true},
		{"not a multiple", mondayNine, 45, true},
		{"too long", mondayNine, 300, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCandidate(tt.start, tt.duration, testNow)
			if tt.wantErr && !errors.Is(err, ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestCheckAvailability_InsideTemplate(t *testing.T) {
	c, _, d := newCheckerFixture(t)
	if err := c.CheckAvailability(context.Background(), d, mondayNine, 60, uuid.Nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.CheckAvailability(context.Background(), d, mondayNine, 120, uuid.Nil); err != nil {
		t.Fatalf("whole window should be bookable: %v", err)
	}
}

func TestCheckAvailability_RunsPastTemplate(t *testing.T) {
	c, _, d := newCheckerFixture(t)
	err := c.CheckAvailability(context.Background(), d, at(10, 30), 60, uuid.Nil)
	if !errors.Is(err, ErrDoctorUnavailable) {
		t.Errorf("expected ErrDoctorUnavailable, got %v", err)
	}
}

func TestCheckAvailability_CrossesMidnight(t *testing.T) {
	c, m, d := newCheckerFixture(t)
	d.Availability = availability.Template{
		"Monday":  {"00:00", "23:30"},
		"Tuesday": {"00:00"},
	}
	lateMonday := at(23, 30)

	err := c.CheckAvailability(context.Background(), d, lateMonday, 60, uuid.Nil)
	if !errors.Is(err, ErrDoctorUnavailable) {
		t.Fatalf("expected booking past midnight to be refused, got %v", err)
	}

	// Ending exactly at midnight stays on Monday.
	if err := c.CheckAvailability(context.Background(), d, lateMonday, 30, uuid.Nil); err != nil {
		t.Errorf("booking ending at midnight: %v", err)
	}

	seedAppt(m, d.ID, lateMonday, 30, StatusApproved)
	if err := c.CheckAvailability(context.Background(), d, monday.AddDate(0, 0, 1), 30, uuid.Nil); err != nil {
		t.Errorf("Tuesday 00:00 should be free: %v", err)
	}
}

func TestCheckAvailability_OtherWeekday(t *testing.T) {
	c, _, d := newCheckerFixture(t)
	err := c.CheckAvailability(context.Background(), d, mondayNine.AddDate(0, 0, 1), 30, uuid.Nil)
	if !errors.Is(err, ErrDoctorUnavailable) {
		t.Errorf("expected ErrDoctorUnavailable on Tuesday, got %v", err)
	}
}

func TestCheckAvailability_UsesUTCWeekday(t *testing.T) {
	c, _, d := newCheckerFixture(t)
	// 11:00 in UTC+2 is 09:00 UTC on the same Monday.
	start := time.Date(2030, 1, 7, 11, 0, 0, 0, time.FixedZone("EET", 2*60*60))
	if err := c.CheckAvailability(context.Background(), d, start, 30, uuid.Nil); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCheckAvailability_Overlap(t *testing.T) {
	c, m, d := newCheckerFixture(t)
	seedAppt(m, d.ID, mondayNine, 60, StatusApproved)

	err := c.CheckAvailability(context.Background(), d, at(9, 30), 30, uuid.Nil)
	if !errors.Is(err, ErrDoctorUnavailable) {
		t.Errorf("expected overlap to be refused, got %v", err)
	}
	if err := c.CheckAvailability(context.Background(), d, at(10, 0), 30, uuid.Nil); err != nil {
		t.Errorf("adjacent slot should be free: %v", err)
	}
}

func TestCheckAvailability_RescheduledStillBlocks(t *testing.T) {
	c, m, d := newCheckerFixture(t)
	seedAppt(m, d.ID, mondayNine, 30, StatusRescheduled)

	err := c.CheckAvailability(context.Background(), d, mondayNine, 30, uuid.Nil)
	if !errors.Is(err, ErrDoctorUnavailable) {
		t.Errorf("expected ErrDoctorUnavailable, got %v", err)
	}
}

func TestCheckAvailability_InactiveIgnored(t *testing.T) {
	c, m, d := newCheckerFixture(t)
	seedAppt(m, d.ID, mondayNine, 60, StatusCancelled)
	seedAppt(m, d.ID, at(10, 0), 60, StatusFinished)

	if err := c.CheckAvailability(context.Background(), d, mondayNine, 120, uuid.Nil); err != nil {
		t.Errorf("cancelled and finished appointments should not block: %v", err)
	}
}

func TestCheckAvailability_ExcludesSelf(t *testing.T) {
	c, m, d := newCheckerFixture(t)
	a := seedAppt(m, d.ID, mondayNine, 60, StatusApproved)

	if err := c.CheckAvailability(context.Background(), d, at(9, 30), 60, a.ID); err != nil {
		t.Errorf("moving an appointment over its own slots should pass: %v", err)
	}
}

func TestCheckAvailability_OtherDoctorIgnored(t *testing.T) {
	c, m, d := newCheckerFixture(t)
	seedAppt(m, uuid.New(), mondayNine, 60, StatusApproved)

	if err := c.CheckAvailability(context.Background(), d, mondayNine, 60, uuid.Nil); err != nil {
		t.Errorf("another doctor's appointment should not block: %v", err)
	}
}

func TestCheckAvailability_InvalidCandidate(t *testing.T) {
	c, _, d := newCheckerFixture(t)
	err := c.CheckAvailability(context.Background(), d, mondayNine, 300, uuid.Nil)
	if !errors.Is(err, ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestCheckAvailability_StoreFailure(t *testing.T) {
	c, m, d := newCheckerFixture(t)
	m.fail = errors.New("connection reset")

	err := c.CheckAvailability(context.Background(), d, mondayNine, 30, uuid.Nil)
	if !errors.Is(err, ErrInfrastructure) {
		t.Errorf("expected infrastructure error, got %v", err)
	}
}

func TestCoveredBy(t *testing.T) {
	appts := []*Appointment{
		{ID: uuid.New(), StartDate: mondayNine, DurationMinutes: 60, Status: StatusApproved},
	}

	if a, _ := CoveredBy(mondayMorning(), appts); a != nil {
		t.Errorf("expected full coverage, got %s", a.ID)
	}

	shrunk := availability.Template{"Monday": {"09:00"}}
	a, missing := CoveredBy(shrunk, appts)
	if a == nil || a.ID != appts[0].ID {
		t.Fatal("expected the appointment to be reported")
	}
	if missing != "09:30" {
		t.Errorf("missing = %q, want 09:30", missing)
	}
}
