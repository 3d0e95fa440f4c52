package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/booking/internal/domain/availability"
	"github.com/clinic/booking/internal/platform/geo"
	"github.com/clinic/booking/internal/platform/websocket"
)

var lettersAndSpaces = regexp.MustCompile(`^[A-Za-z][A-Za-z\s]*$`)

const (
	MinPatientAge = 18
	MaxPatientAge = 130
)

type Service struct {
	tx           TxRunner
	doctors      DoctorRepository
	patients     PatientRepository
	appointments AppointmentRepository
	specialties  SpecialtyRepository
	causes       CauseRepository

	checker *ConflictChecker
	geo     geo.Provider
	events  websocket.EventPublisher
	logger  zerolog.Logger
	now     func() time.Time
}

func NewService(tx TxRunner, repos Repositories, logger zerolog.Logger) *Service {
	s := &Service{
		tx:           tx,
		doctors:      repos.Doctors,
		patients:     repos.Patients,
		appointments: repos.Appointments,
		specialties:  repos.Specialties,
		causes:       repos.Causes,
		logger:       logger.With().Str("component", "scheduling").Logger(),
		now:          time.Now,
	}
	s.checker = NewConflictChecker(repos.Appointments, func() time.Time { return s.now() })
	return s
}

// WithGeocoder sets the provider used to locate doctor addresses. Without
// one, locations are left as they are.
func (s *Service) WithGeocoder(p geo.Provider) *Service {
	s.geo = p
	return s
}

// WithPublisher sets where committed appointment changes are announced.
func (s *Service) WithPublisher(p websocket.EventPublisher) *Service {
	s.events = p
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return classify(s.tx.WithinTx(ctx, fn))
}

func (s *Service) publish(ctx context.Context, kind string, a *Appointment) {
	if s.events == nil {
		return
	}
	data, err := json.Marshal(a)
	if err != nil {
		s.logger.Error().Err(err).Str("appointment_id", a.ID.String()).Msg("marshal appointment event")
		return
	}
	for _, topic := range []string{
		websocket.Topic(string(RoleDoctor), a.DoctorID),
		websocket.Topic(string(RolePatient), a.PatientID),
	} {
		ev := websocket.Event{
			Type:          kind,
			Topic:         topic,
			AppointmentID: a.ID.String(),
			Status:        string(a.Status),
			Timestamp:     s.now().UTC(),
			Data:          data,
		}
		if err := s.events.Publish(ctx, ev); err != nil {
			s.logger.Warn().Err(err).Str("topic", topic).Msg("publish appointment event")
		}
	}
}

func ownsAppointment(actor Actor, a *Appointment) bool {
	switch actor.Role {
	case RolePatient:
		return actor.ProfileID == a.PatientID
	case RoleDoctor:
		return actor.ProfileID == a.DoctorID
	}
	return false
}

// checkCause requires the cause to be one the doctor treats and to belong
// to the doctor's specialty.
func (s *Service) checkCause(ctx context.Context, doctor *Doctor, causeID uuid.UUID) error {
	if causeID == uuid.Nil {
		return validationf("cause is required")
	}
	if !doctor.TreatsCause(causeID) {
		return fmt.Errorf("%w: %s", ErrCauseMismatch, causeID)
	}
	found, err := s.causes.GetMany(ctx, []uuid.UUID{causeID})
	if err != nil {
		return err
	}
	if len(found) == 0 {
		return notFound("cause")
	}
	if found[0].SpecialtyID != doctor.SpecialtyID {
		return fmt.Errorf("%w: cause %s is not part of the doctor's specialty", ErrCauseMismatch, causeID)
	}
	return nil
}

// -- Appointments --

// CreateAppointment books an appointment for the acting patient. The
// doctor's row stays locked from the availability check until commit, so
// two overlapping bookings cannot both succeed.
func (s *Service) CreateAppointment(ctx context.Context, actor Actor, req BookingRequest) (*Appointment, error) {
	if actor.Role != RolePatient || actor.ProfileID != req.PatientID {
		return nil, forbidden("appointments can only be booked by the patient they are for")
	}
	if err := ValidateCandidate(req.StartDate, req.DurationMinutes, s.now()); err != nil {
		return nil, err
	}

	var created *Appointment
	err := s.inTx(ctx, func(ctx context.Context) error {
		if _, err := s.patients.GetByID(ctx, req.PatientID); err != nil {
			return err
		}
		doctor, err := s.doctors.GetForUpdate(ctx, req.DoctorID)
		if err != nil {
			return err
		}
		if err := s.checkCause(ctx, doctor, req.CauseID); err != nil {
			return err
		}
		if err := s.checker.CheckAvailability(ctx, doctor, req.StartDate, req.DurationMinutes, uuid.Nil); err != nil {
			return err
		}

		causeID := req.CauseID
		a := &Appointment{
			DoctorID:        doctor.ID,
			PatientID:       req.PatientID,
			CauseID:         &causeID,
			StartDate:       req.StartDate.UTC(),
			DurationMinutes: req.DurationMinutes,
			Status:          StatusApproved,
		}
		if err := s.appointments.Create(ctx, a); err != nil {
			return err
		}
		created = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("appointment_id", created.ID.String()).
		Str("doctor_id", created.DoctorID.String()).
		Time("start", created.StartDate).
		Int("duration", created.DurationMinutes).
		Msg("appointment created")
	s.publish(ctx, websocket.EventAppointmentCreated, created)
	return created, nil
}

// UpdateAppointment lets the owning patient move an approved appointment or
// change its cause. The status is unchanged.
func (s *Service) UpdateAppointment(ctx context.Context, actor Actor, id uuid.UUID, req BookingRequest) (*Appointment, error) {
	if err := ValidateCandidate(req.StartDate, req.DurationMinutes, s.now()); err != nil {
		return nil, err
	}

	var updated *Appointment
	err := s.inTx(ctx, func(ctx context.Context) error {
		a, err := s.appointments.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if actor.Role != RolePatient || actor.ProfileID != a.PatientID {
			return forbidden("only the patient who booked the appointment can edit it")
		}
		next, err := Apply(a.Status, ActionEdit, actor.Role)
		if err != nil {
			return err
		}

		doctor, err := s.doctors.GetForUpdate(ctx, a.DoctorID)
		if err != nil {
			return err
		}
		if err := s.checkCause(ctx, doctor, req.CauseID); err != nil {
			return err
		}
		if err := s.checker.CheckAvailability(ctx, doctor, req.StartDate, req.DurationMinutes, a.ID); err != nil {
			return err
		}

		causeID := req.CauseID
		a.CauseID = &causeID
		a.StartDate = req.StartDate.UTC()
		a.DurationMinutes = req.DurationMinutes
		a.Status = next
		if err := s.appointments.Update(ctx, a); err != nil {
			return err
		}
		updated = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, websocket.EventAppointmentUpdated, updated)
	return updated, nil
}

// RescheduleAppointment lets the owning doctor move an approved
// appointment. The patient then has to accept it again.
func (s *Service) RescheduleAppointment(ctx context.Context, actor Actor, id uuid.UUID, start time.Time, durationMinutes int) (*Appointment, error) {
	if err := ValidateCandidate(start, durationMinutes, s.now()); err != nil {
		return nil, err
	}

	var updated *Appointment
	err := s.inTx(ctx, func(ctx context.Context) error {
		a, err := s.appointments.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if actor.Role != RoleDoctor || actor.ProfileID != a.DoctorID {
			return forbidden("only the appointment's doctor can reschedule it")
		}
		next, err := Apply(a.Status, ActionReschedule, actor.Role)
		if err != nil {
			return err
		}

		doctor, err := s.doctors.GetForUpdate(ctx, a.DoctorID)
		if err != nil {
			return err
		}
		if err := s.checker.CheckAvailability(ctx, doctor, start, durationMinutes, a.ID); err != nil {
			return err
		}

		a.StartDate = start.UTC()
		a.DurationMinutes = durationMinutes
		a.Status = next
		if err := s.appointments.Update(ctx, a); err != nil {
			return err
		}
		updated = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, websocket.EventAppointmentRescheduled, updated)
	return updated, nil
}

// UpdateStatus approves or cancels an appointment on behalf of its doctor or
// patient.
func (s *Service) UpdateStatus(ctx context.Context, actor Actor, id uuid.UUID, target Status) (*Appointment, error) {
	action, err := ActionForTarget(target)
	if err != nil {
		return nil, err
	}

	var updated *Appointment
	err = s.inTx(ctx, func(ctx context.Context) error {
		a, err := s.appointments.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !ownsAppointment(actor, a) {
			return forbidden("not a participant of this appointment")
		}
		next, err := Apply(a.Status, action, actor.Role)
		if err != nil {
			return err
		}
		a.Status = next
		if err := s.appointments.Update(ctx, a); err != nil {
			return err
		}
		updated = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, websocket.EventAppointmentStatus, updated)
	return updated, nil
}

// DeleteAppointment removes an appointment outright. Either participant may
// do it.
func (s *Service) DeleteAppointment(ctx context.Context, actor Actor, id uuid.UUID) error {
	var deleted *Appointment
	err := s.inTx(ctx, func(ctx context.Context) error {
		a, err := s.appointments.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !ownsAppointment(actor, a) {
			return forbidden("not a participant of this appointment")
		}
		if err := s.appointments.Delete(ctx, id); err != nil {
			return err
		}
		deleted = a
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info().Str("appointment_id", id.String()).Str("by", string(actor.Role)).Msg("appointment deleted")
	s.publish(ctx, websocket.EventAppointmentDeleted, deleted)
	return nil
}

// GetAppointmentForEdit returns an appointment with its doctor and the
// doctor's other busy intervals. Only the participants may see it.
func (s *Service) GetAppointmentForEdit(ctx context.Context, actor Actor, id uuid.UUID) (*AppointmentEdit, error) {
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, classify(err)
	}
	if !ownsAppointment(actor, a) {
		return nil, forbidden("not a participant of this appointment")
	}
	doctor, err := s.doctors.GetByID(ctx, a.DoctorID)
	if err != nil {
		return nil, classify(err)
	}
	busy, err := s.busyIntervals(ctx, doctor.ID, a.ID)
	if err != nil {
		return nil, err
	}
	return &AppointmentEdit{Appointment: a, Doctor: doctor, Busy: busy}, nil
}

func (s *Service) busyIntervals(ctx context.Context, doctorID, excludeID uuid.UUID) ([]Interval, error) {
	appts, err := s.appointments.ListActiveByDoctorFrom(ctx, doctorID, s.now().UTC().Truncate(24*time.Hour))
	if err != nil {
		return nil, classify(err)
	}
	busy := make([]Interval, 0, len(appts))
	for _, a := range appts {
		if a.ID == excludeID {
			continue
		}
		busy = append(busy, Interval{Start: a.StartDate, DurationMinutes: a.DurationMinutes})
	}
	return busy, nil
}

func (s *Service) ListPatientAppointments(ctx context.Context, actor Actor, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	if actor.Role != RolePatient || actor.ProfileID != patientID {
		return nil, 0, forbidden("patients can only list their own appointments")
	}
	items, total, err := s.appointments.ListByPatient(ctx, patientID, limit, offset)
	return items, total, classify(err)
}

func (s *Service) ListDoctorAppointments(ctx context.Context, actor Actor, doctorID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	if actor.Role != RoleDoctor || actor.ProfileID != doctorID {
		return nil, 0, forbidden("doctors can only list their own appointments")
	}
	items, total, err := s.appointments.ListByDoctor(ctx, doctorID, limit, offset)
	return items, total, classify(err)
}

// -- Doctor profile validation --

// ValidateDoctorAvailabilityChange rejects tpl if an active appointment
// starting now or later would no longer be covered by it.
func (s *Service) ValidateDoctorAvailabilityChange(ctx context.Context, doctorID uuid.UUID, tpl availability.Template) error {
	if err := tpl.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	appts, err := s.appointments.ListActiveByDoctorFrom(ctx, doctorID, s.now())
	if err != nil {
		return classify(err)
	}
	if a, missing := CoveredBy(tpl, appts); a != nil {
		return fmt.Errorf("%w: appointment on %s needs %s %s",
			ErrAvailabilityInUse, a.StartDate.Format(time.RFC3339), availability.Day(a.StartDate), missing)
	}
	return nil
}

// ValidateCauseRemoval rejects dropping causes that any non-cancelled
// appointment of the doctor uses, past ones included.
func (s *Service) ValidateCauseRemoval(ctx context.Context, doctorID uuid.UUID, removed []uuid.UUID) error {
	if len(removed) == 0 {
		return nil
	}
	n, err := s.appointments.CountNonCancelledWithCauses(ctx, doctorID, removed)
	if err != nil {
		return classify(err)
	}
	if n > 0 {
		return fmt.Errorf("%w: %d appointment(s) use a removed cause", ErrCauseInUse, n)
	}
	return nil
}

func (s *Service) locate(ctx context.Context, address string) (*Location, error) {
	if s.geo == nil {
		return nil, nil
	}
	c, err := s.geo.Geocode(ctx, address)
	if errors.Is(err, geo.ErrAddressNotFound) {
		return nil, validationf("address %q could not be located", address)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInfrastructure, err)
	}
	return &Location{Lat: c.Lat, Lng: c.Lng}, nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// resolveCauses loads ids and requires every one to exist and belong to
// specialtyID.
func (s *Service) resolveCauses(ctx context.Context, specialtyID uuid.UUID, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return validationf("at least one cause is required")
	}
	found, err := s.causes.GetMany(ctx, ids)
	if err != nil {
		return err
	}
	if len(found) != len(ids) {
		return notFound("cause")
	}
	for _, c := range found {
		if c.SpecialtyID != specialtyID {
			return fmt.Errorf("%w: cause %s belongs to another specialty", ErrCauseMismatch, c.Name)
		}
	}
	return nil
}

// -- Doctors --

func (s *Service) CreateDoctor(ctx context.Context, nd NewDoctor) (*Doctor, error) {
	nd.Name = strings.TrimSpace(nd.Name)
	nd.Address = strings.TrimSpace(nd.Address)
	if nd.Name == "" {
		return nil, validationf("name is required")
	}
	if nd.Address == "" {
		return nil, validationf("address is required")
	}
	if err := nd.Availability.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	loc, err := s.locate(ctx, nd.Address)
	if err != nil {
		return nil, err
	}

	d := &Doctor{
		Name:         nd.Name,
		Image:        nd.Image,
		Address:      nd.Address,
		SpecialtyID:  nd.SpecialtyID,
		CauseIDs:     dedupe(nd.CauseIDs),
		Availability: nd.Availability.Normalize(),
	}
	if loc != nil {
		d.Location = *loc
	}

	err = s.inTx(ctx, func(ctx context.Context) error {
		if _, err := s.specialties.GetByID(ctx, d.SpecialtyID); err != nil {
			return err
		}
		if err := s.resolveCauses(ctx, d.SpecialtyID, d.CauseIDs); err != nil {
			return err
		}
		return s.doctors.Create(ctx, d)
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// GetDoctor returns the doctor's own profile.
func (s *Service) GetDoctor(ctx context.Context, actor Actor, id uuid.UUID) (*Doctor, error) {
	if actor.Role != RoleDoctor || actor.ProfileID != id {
		return nil, forbidden("doctors can only view their own profile")
	}
	d, err := s.doctors.GetByID(ctx, id)
	if err != nil {
		return nil, classify(err)
	}
	if d.AppointmentIDs, err = s.appointments.IDsByDoctor(ctx, id); err != nil {
		return nil, classify(err)
	}
	return d, nil
}

// GetDoctorForBooking returns what a patient needs to pick a time.
func (s *Service) GetDoctorForBooking(ctx context.Context, id uuid.UUID) (*DoctorBooking, error) {
	d, err := s.doctors.GetByID(ctx, id)
	if err != nil {
		return nil, classify(err)
	}
	spec, err := s.specialties.GetByID(ctx, d.SpecialtyID)
	if err != nil {
		return nil, classify(err)
	}
	causes, err := s.causes.GetMany(ctx, d.CauseIDs)
	if err != nil {
		return nil, classify(err)
	}
	busy, err := s.busyIntervals(ctx, d.ID, uuid.Nil)
	if err != nil {
		return nil, err
	}
	return &DoctorBooking{Doctor: d, Specialty: spec, Causes: causes, Busy: busy}, nil
}

// ListDoctors filters doctors by specialty and cause. Either filter may be
// nil.
func (s *Service) ListDoctors(ctx context.Context, specialtyID, causeID *uuid.UUID, limit, offset int) ([]*Doctor, int, error) {
	items, total, err := s.doctors.List(ctx, specialtyID, causeID, limit, offset)
	return items, total, classify(err)
}

// UpdateDoctorProfile applies p to the acting doctor's profile. The
// specialty can only change while the doctor has no appointments; causes
// used by non-cancelled appointments cannot be dropped; the new availability
// must still cover every upcoming active appointment. Either everything is
// written or nothing is.
func (s *Service) UpdateDoctorProfile(ctx context.Context, actor Actor, id uuid.UUID, p DoctorProfile) (*Doctor, error) {
	if actor.Role != RoleDoctor || actor.ProfileID != id {
		return nil, forbidden("doctors can only edit their own profile")
	}
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return nil, validationf("name cannot be empty")
	}
	if p.Address != nil && strings.TrimSpace(*p.Address) == "" {
		return nil, validationf("address cannot be empty")
	}
	if p.CauseIDs != nil && len(p.CauseIDs) == 0 {
		return nil, validationf("at least one cause is required")
	}
	if p.Availability != nil {
		if err := p.Availability.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrValidation, err)
		}
	}

	current, err := s.doctors.GetByID(ctx, id)
	if err != nil {
		return nil, classify(err)
	}

	var loc *Location
	if p.Address != nil && strings.TrimSpace(*p.Address) != current.Address {
		if loc, err = s.locate(ctx, strings.TrimSpace(*p.Address)); err != nil {
			return nil, err
		}
	}

	var updated *Doctor
	err = s.inTx(ctx, func(ctx context.Context) error {
		d, err := s.doctors.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		specialtyChanged := p.SpecialtyID != nil && *p.SpecialtyID != d.SpecialtyID
		if specialtyChanged {
			n, err := s.appointments.CountByDoctor(ctx, id)
			if err != nil {
				return err
			}
			if n > 0 {
				return ErrSpecialtyLocked
			}
			if _, err := s.specialties.GetByID(ctx, *p.SpecialtyID); err != nil {
				return err
			}
			d.SpecialtyID = *p.SpecialtyID
		}

		switch {
		case p.CauseIDs != nil:
			next := dedupe(p.CauseIDs)
			if err := s.resolveCauses(ctx, d.SpecialtyID, next); err != nil {
				return err
			}
			if err := s.ValidateCauseRemoval(ctx, id, removedIDs(d.CauseIDs, next)); err != nil {
				return err
			}
			d.CauseIDs = next
		case specialtyChanged:
			return validationf("causes must be given when the specialty changes")
		}

		if p.Availability != nil {
			tpl := p.Availability.Normalize()
			if err := s.ValidateDoctorAvailabilityChange(ctx, id, tpl); err != nil {
				return err
			}
			d.Availability = tpl
		}

		if p.Name != nil {
			d.Name = strings.TrimSpace(*p.Name)
		}
		if p.Image != nil {
			d.Image = *p.Image
		}
		if p.Address != nil {
			d.Address = strings.TrimSpace(*p.Address)
			if loc != nil {
				d.Location = *loc
			}
		}

		if err := s.doctors.Update(ctx, d); err != nil {
			return err
		}
		updated = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("doctor_id", id.String()).Msg("doctor profile updated")
	return updated, nil
}

func removedIDs(before, after []uuid.UUID) []uuid.UUID {
	keep := make(map[uuid.UUID]struct{}, len(after))
	for _, id := range after {
		keep[id] = struct{}{}
	}
	var removed []uuid.UUID
	for _, id := range before {
		if _, ok := keep[id]; !ok {
			removed = append(removed, id)
		}
	}
	return removed
}

// -- Patients --

func validatePatient(name string, age int) error {
	if !lettersAndSpaces.MatchString(name) {
		return validationf("name must contain only letters and spaces")
	}
	if age < MinPatientAge || age > MaxPatientAge {
		return validationf("age must be between %d and %d", MinPatientAge, MaxPatientAge)
	}
	return nil
}

func (s *Service) CreatePatient(ctx context.Context, name string, age int) (*Patient, error) {
	name = strings.TrimSpace(name)
	if err := validatePatient(name, age); err != nil {
		return nil, err
	}
	p := &Patient{Name: name, Age: age}
	if err := s.patients.Create(ctx, p); err != nil {
		return nil, classify(err)
	}
	return p, nil
}

func (s *Service) GetPatient(ctx context.Context, actor Actor, id uuid.UUID) (*Patient, error) {
	if actor.Role != RolePatient || actor.ProfileID != id {
		return nil, forbidden("patients can only view their own profile")
	}
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, classify(err)
	}
	if p.AppointmentIDs, err = s.appointments.IDsByPatient(ctx, id); err != nil {
		return nil, classify(err)
	}
	return p, nil
}

func (s *Service) UpdatePatient(ctx context.Context, actor Actor, id uuid.UUID, name string, age int) (*Patient, error) {
	if actor.Role != RolePatient || actor.ProfileID != id {
		return nil, forbidden("patients can only edit their own profile")
	}
	name = strings.TrimSpace(name)
	if err := validatePatient(name, age); err != nil {
		return nil, err
	}
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, classify(err)
	}
	p.Name, p.Age = name, age
	if err := s.patients.Update(ctx, p); err != nil {
		return nil, classify(err)
	}
	return p, nil
}

// -- Taxonomy --

func (s *Service) ListSpecialties(ctx context.Context) ([]*Specialty, error) {
	items, err := s.specialties.List(ctx)
	return items, classify(err)
}

func (s *Service) CreateSpecialty(ctx context.Context, name string) (*Specialty, error) {
	name = strings.TrimSpace(name)
	if !lettersAndSpaces.MatchString(name) {
		return nil, validationf("specialty name must contain only letters and spaces")
	}
	sp := &Specialty{Name: name}
	if err := s.specialties.Create(ctx, sp); err != nil {
		return nil, classify(err)
	}
	return sp, nil
}

func (s *Service) ListCauses(ctx context.Context, specialtyID uuid.UUID) ([]*Cause, error) {
	items, err := s.causes.ListBySpecialty(ctx, specialtyID)
	if err != nil {
		return nil, classify(err)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, nil
}

func (s *Service) CreateCause(ctx context.Context, specialtyID uuid.UUID, name string) (*Cause, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationf("cause name is required")
	}
	c := &Cause{SpecialtyID: specialtyID, Name: name}
	err := s.inTx(ctx, func(ctx context.Context) error {
		if _, err := s.specialties.GetByID(ctx, specialtyID); err != nil {
			return err
		}
		return s.causes.Create(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}
