package scheduling

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinic/booking/internal/domain/availability"
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusApproved    Status = "approved"
	StatusRescheduled Status = "rescheduled"
	StatusCancelled   Status = "cancelled"
	StatusFinished    Status = "finished"
)

// Active reports whether the appointment still holds its slots.
func (s Status) Active() bool {
	return s == StatusApproved || s == StatusRescheduled
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusFinished
}

func (s Status) Valid() bool {
	switch s {
	case StatusApproved, StatusRescheduled, StatusCancelled, StatusFinished:
		return true
	}
	return false
}

// Role identifies who is acting on an appointment.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleSystem  Role = "system"
)

// Actor is the authenticated caller of a service operation.
type Actor struct {
	Role      Role
	ProfileID uuid.UUID
}

// Location is a geocoded point.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Specialty struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Cause is a condition a doctor treats. It belongs to one specialty.
type Cause struct {
	ID          uuid.UUID `json:"id"`
	SpecialtyID uuid.UUID `json:"specialty_id"`
	Name        string    `json:"name"`
	CreatedAt   time.Time `json:"created_at"`
}

type Doctor struct {
	ID             uuid.UUID             `json:"id"`
	Name           string                `json:"name"`
	Image          string                `json:"image"`
	Address        string                `json:"address"`
	Location       Location              `json:"location"`
	SpecialtyID    uuid.UUID             `json:"specialty_id"`
	CauseIDs       []uuid.UUID           `json:"causes"`
	Availability   availability.Template `json:"availability"`
	AppointmentIDs []uuid.UUID           `json:"appointments,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

// TreatsCause reports whether id is in the doctor's cause set.
func (d *Doctor) TreatsCause(id uuid.UUID) bool {
	for _, c := range d.CauseIDs {
		if c == id {
			return true
		}
	}
	return false
}

type Patient struct {
	ID             uuid.UUID   `json:"id"`
	Name           string      `json:"name"`
	Age            int         `json:"age"`
	AppointmentIDs []uuid.UUID `json:"appointments,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// Appointment is the source of truth for an appointment's time and status.
// CauseID is nil only when the cause was removed from the taxonomy after the
// appointment ended.
type Appointment struct {
	ID              uuid.UUID  `json:"id"`
	DoctorID        uuid.UUID  `json:"doctor_id"`
	PatientID       uuid.UUID  `json:"patient_id"`
	CauseID         *uuid.UUID `json:"cause_id,omitempty"`
	StartDate       time.Time  `json:"start_date"`
	DurationMinutes int        `json:"duration"`
	Status          Status     `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// End returns the instant the appointment's last slot ends.
func (a *Appointment) End() time.Time {
	return a.StartDate.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

// Slots returns the slot labels the appointment occupies.
func (a *Appointment) Slots() ([]string, error) {
	return availability.OccupiedSlots(a.StartDate, a.DurationMinutes)
}

// Interval is a busy period shown to patients picking a time.
type Interval struct {
	Start           time.Time `json:"start_date"`
	DurationMinutes int       `json:"duration"`
}

// DoctorBooking is what a patient sees when booking with a doctor.
type DoctorBooking struct {
	Doctor    *Doctor    `json:"doctor"`
	Specialty *Specialty `json:"specialty"`
	Causes    []*Cause   `json:"causes"`
	Busy      []Interval `json:"busy"`
}

// AppointmentEdit is an appointment together with the doctor's other busy
// intervals, used when a patient changes the time.
type AppointmentEdit struct {
	Appointment *Appointment `json:"appointment"`
	Doctor      *Doctor      `json:"doctor"`
	Busy        []Interval   `json:"busy"`
}

// DoctorProfile holds a doctor's new profile values. Nil fields are left
// unchanged.
type DoctorProfile struct {
	Name         *string
	Image        *string
	Address      *string
	SpecialtyID  *uuid.UUID
	CauseIDs     []uuid.UUID
	Availability availability.Template
}

// NewDoctor holds the values a doctor signs up with.
type NewDoctor struct {
	Name         string
	Image        string
	Address      string
	SpecialtyID  uuid.UUID
	CauseIDs     []uuid.UUID
	Availability availability.Template
}

// BookingRequest is the input to create or edit an appointment.
type BookingRequest struct {
	DoctorID        uuid.UUID
	PatientID       uuid.UUID
	CauseID         uuid.UUID
	StartDate       time.Time
	DurationMinutes int
}
