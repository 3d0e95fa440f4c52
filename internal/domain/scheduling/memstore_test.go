package scheduling

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memStore is an in-memory implementation of every repository plus
// TxRunner. Transactions are serialized on a single mutex and roll back by
// restoring a snapshot, which is enough to model the row lock the Postgres
// repositories take on the doctor.

type txKey struct{}

type memStore struct {
	mu          sync.Mutex
	doctors     map[uuid.UUID]Doctor
	patients    map[uuid.UUID]Patient
	appts       map[uuid.UUID]Appointment
	specialties map[uuid.UUID]Specialty
	causes      map[uuid.UUID]Cause

	// fail, when set, is returned by every repository call.
	fail error
}

type memSnapshot struct {
	doctors     map[uuid.UUID]Doctor
	patients    map[uuid.UUID]Patient
	appts       map[uuid.UUID]Appointment
	specialties map[uuid.UUID]Specialty
	causes      map[uuid.UUID]Cause
}

func newMemStore() *memStore {
	return &memStore{
		doctors:     make(map[uuid.UUID]Doctor),
		patients:    make(map[uuid.UUID]Patient),
		appts:       make(map[uuid.UUID]Appointment),
		specialties: make(map[uuid.UUID]Specialty),
		causes:      make(map[uuid.UUID]Cause),
	}
}

func (m *memStore) repos() Repositories {
	return Repositories{
		Doctors:      memDoctors{m},
		Patients:     memPatients{m},
		Appointments: memAppointments{m},
		Specialties:  memSpecialties{m},
		Causes:       memCauses{m},
	}
}

func copyMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func (m *memStore) snapshot() memSnapshot {
	return memSnapshot{
		doctors:     copyMap(m.doctors),
		patients:    copyMap(m.patients),
		appts:       copyMap(m.appts),
		specialties: copyMap(m.specialties),
		causes:      copyMap(m.causes),
	}
}

func (m *memStore) restore(s memSnapshot) {
	m.doctors, m.patients, m.appts = s.doctors, s.patients, s.appts
	m.specialties, m.causes = s.specialties, s.causes
}

func (m *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

// do runs fn under the store lock unless ctx already holds it.
func (m *memStore) do(ctx context.Context, fn func() error) error {
	if ctx.Value(txKey{}) == nil {
		m.mu.Lock()
		defer m.mu.Unlock()
	}
	if m.fail != nil {
		return m.fail
	}
	return fn()
}

// Stored values are replaced, never mutated, so callers get their own copy.
func cloneDoctor(d Doctor) *Doctor {
	d.CauseIDs = append([]uuid.UUID(nil), d.CauseIDs...)
	d.Availability = d.Availability.Clone()
	return &d
}

func cloneAppt(a Appointment) *Appointment {
	if a.CauseID != nil {
		id := *a.CauseID
		a.CauseID = &id
	}
	return &a
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if limit <= 0 || end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

// -- Doctors --

type memDoctors struct{ m *memStore }

func (r memDoctors) Create(ctx context.Context, d *Doctor) error {
	return r.m.do(ctx, func() error {
		if d.ID == uuid.Nil {
			d.ID = uuid.New()
		}
		now := time.Now().UTC()
		d.CreatedAt, d.UpdatedAt = now, now
		r.m.doctors[d.ID] = *cloneDoctor(*d)
		return nil
	})
}

func (r memDoctors) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	var out *Doctor
	err := r.m.do(ctx, func() error {
		d, ok := r.m.doctors[id]
		if !ok {
			return notFound("doctor")
		}
		out = cloneDoctor(d)
		return nil
	})
	return out, err
}

func (r memDoctors) GetForUpdate(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return r.GetByID(ctx, id)
}

func (r memDoctors) Update(ctx context.Context, d *Doctor) error {
	return r.m.do(ctx, func() error {
		if _, ok := r.m.doctors[d.ID]; !ok {
			return notFound("doctor")
		}
		d.UpdatedAt = time.Now().UTC()
		r.m.doctors[d.ID] = *cloneDoctor(*d)
		return nil
	})
}

func (r memDoctors) List(ctx context.Context, specialtyID, causeID *uuid.UUID, limit, offset int) ([]*Doctor, int, error) {
	var all []*Doctor
	err := r.m.do(ctx, func() error {
		for _, d := range r.m.doctors {
			if specialtyID != nil && d.SpecialtyID != *specialtyID {
				continue
			}
			if causeID != nil && !d.TreatsCause(*causeID) {
				continue
			}
			all = append(all, cloneDoctor(d))
		}
		return nil
	})
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return page(all, limit, offset), len(all), err
}

// -- Patients --

type memPatients struct{ m *memStore }

func (r memPatients) Create(ctx context.Context, p *Patient) error {
	return r.m.do(ctx, func() error {
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		now := time.Now().UTC()
		p.CreatedAt, p.UpdatedAt = now, now
		r.m.patients[p.ID] = *p
		return nil
	})
}

func (r memPatients) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	var out *Patient
	err := r.m.do(ctx, func() error {
		p, ok := r.m.patients[id]
		if !ok {
			return notFound("patient")
		}
		out = &p
		return nil
	})
	return out, err
}

func (r memPatients) Update(ctx context.Context, p *Patient) error {
	return r.m.do(ctx, func() error {
		if _, ok := r.m.patients[p.ID]; !ok {
			return notFound("patient")
		}
		p.UpdatedAt = time.Now().UTC()
		r.m.patients[p.ID] = *p
		return nil
	})
}

// -- Appointments --

type memAppointments struct{ m *memStore }

func (r memAppointments) Create(ctx context.Context, a *Appointment) error {
	return r.m.do(ctx, func() error {
		if a.ID == uuid.Nil {
			a.ID = uuid.New()
		}
		now := time.Now().UTC()
		a.CreatedAt, a.UpdatedAt = now, now
		r.m.appts[a.ID] = *cloneAppt(*a)
		return nil
	})
}

func (r memAppointments) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	var out *Appointment
	err := r.m.do(ctx, func() error {
		a, ok := r.m.appts[id]
		if !ok {
			return notFound("appointment")
		}
		out = cloneAppt(a)
		return nil
	})
	return out, err
}

func (r memAppointments) GetForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return r.GetByID(ctx, id)
}

func (r memAppointments) Update(ctx context.Context, a *Appointment) error {
	return r.m.do(ctx, func() error {
		if _, ok := r.m.appts[a.ID]; !ok {
			return notFound("appointment")
		}
		a.UpdatedAt = time.Now().UTC()
		r.m.appts[a.ID] = *cloneAppt(*a)
		return nil
	})
}

func (r memAppointments) Delete(ctx context.Context, id uuid.UUID) error {
	return r.m.do(ctx, func() error {
		if _, ok := r.m.appts[id]; !ok {
			return notFound("appointment")
		}
		delete(r.m.appts, id)
		return nil
	})
}

func (r memAppointments) filter(ctx context.Context, keep func(Appointment) bool) ([]*Appointment, error) {
	var out []*Appointment
	err := r.m.do(ctx, func() error {
		for _, a := range r.m.appts {
			if keep(a) {
				out = append(out, cloneAppt(a))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, err
}

func (r memAppointments) ListActiveByDoctorBetween(ctx context.Context, doctorID uuid.UUID, from, to time.Time, excludeID uuid.UUID) ([]*Appointment, error) {
	return r.filter(ctx, func(a Appointment) bool {
		return a.DoctorID == doctorID && a.Status.Active() && a.ID != excludeID &&
			!a.StartDate.Before(from) && a.StartDate.Before(to)
	})
}

func (r memAppointments) ListActiveByDoctorFrom(ctx context.Context, doctorID uuid.UUID, from time.Time) ([]*Appointment, error) {
	return r.filter(ctx, func(a Appointment) bool {
		return a.DoctorID == doctorID && a.Status.Active() && !a.StartDate.Before(from)
	})
}

func (r memAppointments) CountNonCancelledWithCauses(ctx context.Context, doctorID uuid.UUID, causeIDs []uuid.UUID) (int, error) {
	want := make(map[uuid.UUID]struct{}, len(causeIDs))
	for _, id := range causeIDs {
		want[id] = struct{}{}
	}
	items, err := r.filter(ctx, func(a Appointment) bool {
		if a.DoctorID != doctorID || a.Status == StatusCancelled || a.CauseID == nil {
			return false
		}
		_, ok := want[*a.CauseID]
		return ok
	})
	return len(items), err
}

func (r memAppointments) CountByDoctor(ctx context.Context, doctorID uuid.UUID) (int, error) {
	items, err := r.filter(ctx, func(a Appointment) bool { return a.DoctorID == doctorID })
	return len(items), err
}

func (r memAppointments) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	items, err := r.filter(ctx, func(a Appointment) bool { return a.DoctorID == doctorID })
	return page(items, limit, offset), len(items), err
}

func (r memAppointments) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	items, err := r.filter(ctx, func(a Appointment) bool { return a.PatientID == patientID })
	return page(items, limit, offset), len(items), err
}

func (r memAppointments) ids(ctx context.Context, keep func(Appointment) bool) ([]uuid.UUID, error) {
	items, err := r.filter(ctx, keep)
	out := make([]uuid.UUID, 0, len(items))
	for _, a := range items {
		out = append(out, a.ID)
	}
	return out, err
}

func (r memAppointments) IDsByDoctor(ctx context.Context, doctorID uuid.UUID) ([]uuid.UUID, error) {
	return r.ids(ctx, func(a Appointment) bool { return a.DoctorID == doctorID })
}

func (r memAppointments) IDsByPatient(ctx context.Context, patientID uuid.UUID) ([]uuid.UUID, error) {
	return r.ids(ctx, func(a Appointment) bool { return a.PatientID == patientID })
}

func (r memAppointments) FinishElapsed(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	err := r.m.do(ctx, func() error {
		for id, a := range r.m.appts {
			if a.Status.Active() && a.End().Before(now) {
				a.Status = StatusFinished
				a.UpdatedAt = time.Now().UTC()
				r.m.appts[id] = a
				n++
			}
		}
		return nil
	})
	return n, err
}

// -- Specialties --

type memSpecialties struct{ m *memStore }

func (r memSpecialties) Create(ctx context.Context, s *Specialty) error {
	return r.m.do(ctx, func() error {
		for _, existing := range r.m.specialties {
			if strings.EqualFold(existing.Name, s.Name) {
				return fmt.Errorf("%w: specialty %s", ErrDuplicate, s.Name)
			}
		}
		if s.ID == uuid.Nil {
			s.ID = uuid.New()
		}
		s.CreatedAt = time.Now().UTC()
		r.m.specialties[s.ID] = *s
		return nil
	})
}

func (r memSpecialties) GetByID(ctx context.Context, id uuid.UUID) (*Specialty, error) {
	var out *Specialty
	err := r.m.do(ctx, func() error {
		s, ok := r.m.specialties[id]
		if !ok {
			return notFound("specialty")
		}
		out = &s
		return nil
	})
	return out, err
}

func (r memSpecialties) List(ctx context.Context) ([]*Specialty, error) {
	var out []*Specialty
	err := r.m.do(ctx, func() error {
		for _, s := range r.m.specialties {
			s := s
			out = append(out, &s)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, err
}

func (r memSpecialties) DeleteUnreferenced(ctx context.Context) (int64, error) {
	var n int64
	err := r.m.do(ctx, func() error {
		used := make(map[uuid.UUID]bool)
		for _, d := range r.m.doctors {
			used[d.SpecialtyID] = true
		}
		for id := range r.m.specialties {
			if used[id] {
				continue
			}
			delete(r.m.specialties, id)
			for cid, c := range r.m.causes {
				if c.SpecialtyID == id {
					r.m.deleteCauseLocked(cid)
				}
			}
			n++
		}
		return nil
	})
	return n, err
}

// -- Causes --

type memCauses struct{ m *memStore }

func (r memCauses) Create(ctx context.Context, c *Cause) error {
	return r.m.do(ctx, func() error {
		if _, ok := r.m.specialties[c.SpecialtyID]; !ok {
			return validationf("specialty %s does not exist", c.SpecialtyID)
		}
		for _, existing := range r.m.causes {
			if existing.SpecialtyID == c.SpecialtyID && existing.Name == c.Name {
				return fmt.Errorf("%w: cause %s", ErrDuplicate, c.Name)
			}
		}
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		c.CreatedAt = time.Now().UTC()
		r.m.causes[c.ID] = *c
		return nil
	})
}

func (r memCauses) GetMany(ctx context.Context, ids []uuid.UUID) ([]*Cause, error) {
	var out []*Cause
	err := r.m.do(ctx, func() error {
		for _, id := range ids {
			if c, ok := r.m.causes[id]; ok {
				out = append(out, &c)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, err
}

func (r memCauses) ListBySpecialty(ctx context.Context, specialtyID uuid.UUID) ([]*Cause, error) {
	var out []*Cause
	err := r.m.do(ctx, func() error {
		for _, c := range r.m.causes {
			if c.SpecialtyID == specialtyID {
				c := c
				out = append(out, &c)
			}
		}
		return nil
	})
	return out, err
}

func (r memCauses) DeleteUnreferenced(ctx context.Context) (int64, error) {
	var n int64
	err := r.m.do(ctx, func() error {
		used := make(map[uuid.UUID]bool)
		for _, d := range r.m.doctors {
			for _, id := range d.CauseIDs {
				used[id] = true
			}
		}
		for id := range r.m.causes {
			if !used[id] {
				r.m.deleteCauseLocked(id)
				n++
			}
		}
		return nil
	})
	return n, err
}

// deleteCauseLocked removes a cause and clears it from appointments that
// referenced it.
func (m *memStore) deleteCauseLocked(id uuid.UUID) {
	delete(m.causes, id)
	for aid, a := range m.appts {
		if a.CauseID != nil && *a.CauseID == id {
			a.CauseID = nil
			m.appts[aid] = a
		}
	}
}
