package identity

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinic/booking/internal/domain/availability"
)

// MinPasswordLength is the shortest password accepted at signup.
const MinPasswordLength = 8

// User is a login account. It points at exactly one doctor or patient
// profile.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	ProfileID    uuid.UUID `json:"profile_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session is returned by signup and login.
type Session struct {
	UserID    uuid.UUID `json:"userId"`
	Role      string    `json:"role"`
	ProfileID uuid.UUID `json:"profileId"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type PatientSignup struct {
	Credentials
	Name string `json:"name"`
	Age  int    `json:"age"`
}

type DoctorSignup struct {
	Credentials
	Name         string                `json:"name"`
	Image        string                `json:"image"`
	Address      string                `json:"address"`
	SpecialtyID  uuid.UUID             `json:"specialty_id"`
	CauseIDs     []uuid.UUID           `json:"causes"`
	Availability availability.Template `json:"availability"`
}
