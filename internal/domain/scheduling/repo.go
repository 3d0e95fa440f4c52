package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repositories return ErrNotFound for missing rows and ErrDuplicate for
// unique violations. Any other error is treated as an infrastructure
// failure.

type DoctorRepository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	// GetForUpdate loads the doctor and locks the row until the surrounding
	// transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Doctor, error)
	Update(ctx context.Context, d *Doctor) error
	List(ctx context.Context, specialtyID, causeID *uuid.UUID, limit, offset int) ([]*Doctor, int, error)
}

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
}

type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	Delete(ctx context.Context, id uuid.UUID) error
	// ListActiveByDoctorBetween returns approved and rescheduled appointments
	// starting in [from, to). excludeID may be uuid.Nil.
	ListActiveByDoctorBetween(ctx context.Context, doctorID uuid.UUID, from, to time.Time, excludeID uuid.UUID) ([]*Appointment, error)
	// ListActiveByDoctorFrom returns active appointments starting at or after from.
	ListActiveByDoctorFrom(ctx context.Context, doctorID uuid.UUID, from time.Time) ([]*Appointment, error)
	CountNonCancelledWithCauses(ctx context.Context, doctorID uuid.UUID, causeIDs []uuid.UUID) (int, error)
	CountByDoctor(ctx context.Context, doctorID uuid.UUID) (int, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
	// IDsByDoctor and IDsByPatient return every appointment id of any status,
	// oldest start first.
	IDsByDoctor(ctx context.Context, doctorID uuid.UUID) ([]uuid.UUID, error)
	IDsByPatient(ctx context.Context, patientID uuid.UUID) ([]uuid.UUID, error)
	// FinishElapsed marks every active appointment that ended before now as
	// finished and returns how many changed.
	FinishElapsed(ctx context.Context, now time.Time) (int64, error)
}

type SpecialtyRepository interface {
	Create(ctx context.Context, s *Specialty) error
	GetByID(ctx context.Context, id uuid.UUID) (*Specialty, error)
	List(ctx context.Context) ([]*Specialty, error)
	// DeleteUnreferenced removes specialties no doctor uses.
	DeleteUnreferenced(ctx context.Context) (int64, error)
}

type CauseRepository interface {
	Create(ctx context.Context, c *Cause) error
	GetMany(ctx context.Context, ids []uuid.UUID) ([]*Cause, error)
	ListBySpecialty(ctx context.Context, specialtyID uuid.UUID) ([]*Cause, error)
	// DeleteUnreferenced removes causes no doctor treats.
	DeleteUnreferenced(ctx context.Context) (int64, error)
}

// TxRunner runs fn atomically. Repositories called with the ctx passed to
// fn take part in the same transaction.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Repositories groups the stores the service needs.
type Repositories struct {
	Doctors      DoctorRepository
	Patients     PatientRepository
	Appointments AppointmentRepository
	Specialties  SpecialtyRepository
	Causes       CauseRepository
}
