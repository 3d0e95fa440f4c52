package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/booking/internal/domain/scheduling"
	"github.com/clinic/booking/internal/platform/auth"
	"github.com/clinic/booking/internal/platform/sweeper"
)

// JobTokens is the sweeper job that forgets revocations of expired tokens.
const JobTokens = "tokens"

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = fmt.Errorf("%w: email already registered", scheduling.ErrConflict)
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Profiles creates the doctor or patient record behind a new account.
// *scheduling.Service satisfies it.
type Profiles interface {
	CreatePatient(ctx context.Context, name string, age int) (*scheduling.Patient, error)
	CreateDoctor(ctx context.Context, nd scheduling.NewDoctor) (*scheduling.Doctor, error)
}

type Service struct {
	tx       scheduling.TxRunner
	users    UserRepository
	profiles Profiles
	tokens   *auth.TokenIssuer
	revoked  *auth.RevocationList
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(tx scheduling.TxRunner, users UserRepository, profiles Profiles, tokens *auth.TokenIssuer, revoked *auth.RevocationList, logger zerolog.Logger) *Service {
	if revoked == nil {
		revoked = auth.NewRevocationList()
	}
	return &Service{
		tx:       tx,
		users:    users,
		profiles: profiles,
		tokens:   tokens,
		revoked:  revoked,
		logger:   logger.With().Str("component", "identity").Logger(),
		now:      time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// checkCredentials validates signup credentials and returns the normalized
// email with the password hash.
func checkCredentials(c Credentials) (string, string, error) {
	email := normalizeEmail(c.Email)
	if !emailPattern.MatchString(email) {
		return "", "", fmt.Errorf("%w: email is not valid", scheduling.ErrValidation)
	}
	if len(c.Password) < MinPasswordLength {
		return "", "", fmt.Errorf("%w: password must be at least %d characters", scheduling.ErrValidation, MinPasswordLength)
	}
	hash, err := auth.HashPassword(c.Password)
	if err != nil {
		return "", "", fmt.Errorf("%w: hash password: %w", scheduling.ErrInfrastructure, err)
	}
	return email, hash, nil
}

// register stores the account for a profile created by createProfile, all in
// one transaction, and returns a session for it.
func (s *Service) register(ctx context.Context, email, hash, role string, createProfile func(ctx context.Context) (uuid.UUID, error)) (*Session, error) {
	u := &User{Email: email, PasswordHash: hash, Role: role}
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		profileID, err := createProfile(ctx)
		if err != nil {
			return err
		}
		u.ProfileID = profileID
		return s.users.Create(ctx, u)
	})
	if err != nil {
		return nil, classify(err)
	}

	s.logger.Info().Str("user_id", u.ID.String()).Str("role", role).Msg("account created")
	return s.session(u)
}

func (s *Service) SignupPatient(ctx context.Context, in PatientSignup) (*Session, error) {
	email, hash, err := checkCredentials(in.Credentials)
	if err != nil {
		return nil, err
	}
	return s.register(ctx, email, hash, auth.RolePatient, func(ctx context.Context) (uuid.UUID, error) {
		p, err := s.profiles.CreatePatient(ctx, in.Name, in.Age)
		if err != nil {
			return uuid.Nil, err
		}
		return p.ID, nil
	})
}

func (s *Service) SignupDoctor(ctx context.Context, in DoctorSignup) (*Session, error) {
	email, hash, err := checkCredentials(in.Credentials)
	if err != nil {
		return nil, err
	}
	return s.register(ctx, email, hash, auth.RoleDoctor, func(ctx context.Context) (uuid.UUID, error) {
		d, err := s.profiles.CreateDoctor(ctx, scheduling.NewDoctor{
			Name:         in.Name,
			Image:        in.Image,
			Address:      in.Address,
			SpecialtyID:  in.SpecialtyID,
			CauseIDs:     in.CauseIDs,
			Availability: in.Availability,
		})
		if err != nil {
			return uuid.Nil, err
		}
		return d.ID, nil
	})
}

// Login checks the password and returns a fresh session. Unknown emails and
// wrong passwords give the same error.
func (s *Service) Login(ctx context.Context, in Credentials) (*Session, error) {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(in.Email))
	if errors.Is(err, scheduling.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, classify(err)
	}
	if !auth.CheckPassword(u.PasswordHash, in.Password) {
		s.logger.Debug().Str("user_id", u.ID.String()).Msg("login rejected")
		return nil, ErrInvalidCredentials
	}
	return s.session(u)
}

// Logout revokes the token the caller authenticated with.
func (s *Service) Logout(_ context.Context, token auth.TokenInfo) {
	s.revoked.Revoke(token.ID, token.ExpiresAt)
}

// RevocationJob prunes revocations of tokens that have expired anyway.
func (s *Service) RevocationJob(every time.Duration) sweeper.Job {
	return sweeper.Job{
		Name:     JobTokens,
		Interval: every,
		Run: func(context.Context) error {
			if n := s.revoked.Prune(s.now()); n > 0 {
				s.logger.Debug().Int("count", n).Msg("expired revocations pruned")
			}
			return nil
		},
	}
}

func (s *Service) session(u *User) (*Session, error) {
	token, exp, err := s.tokens.Issue(auth.Identity{UserID: u.ID, Role: u.Role, ProfileID: u.ProfileID})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", scheduling.ErrInfrastructure, err)
	}
	return &Session{UserID: u.ID, Role: u.Role, ProfileID: u.ProfileID, Token: token, ExpiresAt: exp}, nil
}

func classify(err error) error {
	for _, kind := range []error{
		scheduling.ErrValidation, scheduling.ErrConflict, scheduling.ErrForbidden,
		scheduling.ErrNotFound, scheduling.ErrInfrastructure,
	} {
		if errors.Is(err, kind) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", scheduling.ErrInfrastructure, err)
}
