package scheduling

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinic/booking/internal/platform/auth"
)

func newTestServer(f *fixture) *echo.Echo {
	e := echo.New()
	e.Use(auth.DevAuthMiddleware(auth.JWTConfig{
		Verifier: auth.NewTokenIssuer([]byte("handler-test"), time.Hour, "clinic-test"),
	}))
	NewHandler(f.svc, zerolog.Nop()).RegisterRoutes(e.Group("/api/v1"))
	return e
}

type caller struct {
	role    Role
	profile uuid.UUID
}

func (f *fixture) asPatient(p Patient) caller {
	return caller{RolePatient, p.ID}
}

func (f *fixture) asDoctor() caller {
	return caller{RoleDoctor, f.doctor.ID}
}

func call(e *echo.Echo, who *caller, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if who != nil {
		req.Header.Set("X-Dev-Role", string(who.role))
		req.Header.Set("X-Dev-Profile", who.profile.String())
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) bookingBody(start time.Time, minutes int) string {
	return fmt.Sprintf(`{"doctor_id":%q,"cause_id":%q,"start_date":%q,"duration":%d}`,
		f.doctor.ID, f.chestPain.ID, start.Format(time.RFC3339), minutes)
}

func TestHandler_CreateAppointment(t *testing.T) {
	f := newFixture(t)
	e := newTestServer(f)
	who := f.asPatient(f.patient)

	rec := call(e, &who, http.MethodPost, "/api/v1/appointments", f.bookingBody(mondayNine, 30))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var a Appointment
	if err := json.Unmarshal(rec.Body.Bytes(), &a); err != nil {
		t.Fatal(err)
	}
	if a.PatientID != f.patient.ID {
		t.Errorf("patient defaulted to %s, want caller %s", a.PatientID, f.patient.ID)
	}
	if a.Status != StatusApproved {
		t.Errorf("status = %s", a.Status)
	}
}

func TestHandler_CreateAppointment_Errors(t *testing.T) {
	f := newFixture(t)
	e := newTestServer(f)
	who := f.asPatient(f.patient)
	f.mustBook(t, f.patient, mondayNine, 60)

	tests := []struct {
		name string
		who  *caller
		body string
		want int
	}{
		{"overlap", &who, f.bookingBody(at(9, 30), 30), http.StatusConflict},
		{"outside availability", &who, f.bookingBody(at(14, 0), 30), http.StatusConflict},
		{"bad duration", &who, f.bookingBody(at(10, 0), 45), http.StatusUnprocessableEntity},
		{"malformed body", &who, `{"doctor_id":`, http.StatusBadRequest},
		{"bad date format", &who, fmt.Sprintf(`{"doctor_id":%q,"cause_id":%q,"start_date":"07/01/2030 10:00","duration":30}`,
			f.doctor.ID, f.chestPain.ID), http.StatusUnprocessableEntity},
		{"missing date", &who, fmt.Sprintf(`{"doctor_id":%q,"cause_id":%q,"duration":30}`,
			f.doctor.ID, f.chestPain.ID), http.StatusUnprocessableEntity},
		{"for someone else", &who, fmt.Sprintf(`{"doctor_id":%q,"patient_id":%q,"cause_id":%q,"start_date":%q,"duration":30}`,
			f.doctor.ID, f.other.ID, f.chestPain.ID, at(10, 0).Format(time.RFC3339)), http.StatusForbidden},
		{"unknown doctor", &who, fmt.Sprintf(`{"doctor_id":%q,"cause_id":%q,"start_date":%q,"duration":30}`,
			uuid.New(), f.chestPain.ID, at(10, 0).Format(time.RFC3339)), http.StatusNotFound},
		{"doctor cannot book", &caller{RoleDoctor, f.doctor.ID}, f.bookingBody(at(10, 0), 30), http.StatusForbidden},
		{"anonymous", nil, f.bookingBody(at(10, 0), 30), http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := call(e, tt.who, http.MethodPost, "/api/v1/appointments", tt.body)
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestHandler_StoreFailureIs503(t *testing.T) {
	f := newFixture(t)
	e := newTestServer(f)
	who := f.asPatient(f.patient)
	f.store.fail = errors.New("pq: connection refused")

	rec := call(e, &who, http.MethodPost, "/api/v1/appointments", f.bookingBody(mondayNine, 30))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "connection refused") {
		t.Error("infrastructure detail leaked to client")
	}
}

func TestHandler_BadID(t *testing.T) {
	f := newFixture(t)
	e := newTestServer(f)
	who := f.asPatient(f.patient)

	rec := call(e, &who, http.MethodGet, "/api/v1/appointments/not-a-uuid", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	rec = call(e, &who, http.MethodGet, "/api/v1/appointments/"+uuid.NewString(), "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestHandler_UpdateStatus(t *testing.T) {
	f := newFixture(t)
	e := newTestServer(f)
	a := f.mustBook(t, f.patient, mondayNine, 30)
	path := "/api/v1/appointments/" + a.ID.String()

	doc := f.asDoctor()
	rec := call(e, &doc, http.MethodPatch, path+"/reschedule", `{"start_date":"tomorrow","duration":30}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("reschedule with bad date: expected 422, got %d", rec.Code)
	}

	rec = call(e, &doc, http.MethodPatch, path+"/reschedule",
		fmt.Sprintf(`{"start_date":%q,"duration":30}`, at(10, 0).Format(time.RFC3339)))
	if rec.Code != http.StatusOK {
		t.Fatalf("reschedule: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = call(e, &doc, http.MethodPatch, path+"/status", `{"status":"approved"}`)
	if rec.Code != http.StatusForbidden {
		t.Errorf("doctor approving own reschedule: expected 403, got %d", rec.Code)
	}

	pat := f.asPatient(f.patient)
	rec = call(e, &pat, http.MethodPatch, path+"/status", `{"status":"approved"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("accept: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := f.stored(t, a.ID).Status; got != StatusApproved {
		t.Errorf("status = %s, want approved", got)
	}

	rec = call(e, &pat, http.MethodPatch, path+"/status", `{"status":"finished"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("finish via API: expected 422, got %d", rec.Code)
	}

	stranger := f.asPatient(f.other)
	rec = call(e, &stranger, http.MethodPatch, path+"/status", `{"status":"cancelled"}`)
	if rec.Code != http.StatusForbidden {
		t.Errorf("stranger: expected 403, got %d", rec.Code)
	}
}

func TestHandler_DeleteAppointment(t *testing.T) {
	f := newFixture(t)
	e := newTestServer(f)
	a := f.mustBook(t, f.patient, mondayNine, 30)
	who := f.asPatient(f.patient)

	rec := call(e, &who, http.MethodDelete, "/api/v1/appointments/"+a.ID.String(), "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if _, ok := f.store.appts[a.ID]; ok {
		t.Error("appointment still stored")
	}
}

func TestHandler_ListPatientAppointments(t *testing.T) {
	f := newFixture(t)
	e := newTestServer(f)
	f.mustBook(t, f.patient, mondayNine, 30)
	f.mustBook(t, f.patient, at(10, 0), 30)
	who := f.asPatient(f.patient)

	rec := call(e, &who, http.MethodGet, "/api/v1/patients/"+f.patient.ID.String()+"/appointments?limit=1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var page struct {
		Data    []Appointment `json:"data"`
		Total   int           `json:"total"`
		HasMore bool          `json:"has_more"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatal(err)
	}
	if len(page.Data) != 1 || page.Total != 2 || !page.HasMore {
		t.Errorf("unexpected page: len=%d total=%d more=%v", len(page.Data), page.Total, page.HasMore)
	}

	other := f.asPatient(f.other)
	rec = call(e, &other, http.MethodGet, "/api/v1/patients/"+f.patient.ID.String()+"/appointments", "")
	if rec.Code != http.StatusForbidden {
		t.Errorf("other patient: expected 403, got %d", rec.Code)
	}
}

func TestHandler_Taxonomy(t *testing.T) {
	f := newFixture(t)
	e := newTestServer(f)

	rec := call(e, nil, http.MethodGet, "/api/v1/specialties", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("public list: expected 200, got %d", rec.Code)
	}
	var specialties []Specialty
	if err := json.Unmarshal(rec.Body.Bytes(), &specialties); err != nil {
		t.Fatal(err)
	}
	if len(specialties) != 2 {
		t.Errorf("got %d specialties, want 2", len(specialties))
	}

	rec = call(e, nil, http.MethodPost, "/api/v1/specialties", `{"name":"Neurology"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous create: expected 401, got %d", rec.Code)
	}

	doc := f.asDoctor()
	rec = call(e, &doc, http.MethodPost, "/api/v1/specialties", `{"name":"cardiology"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate specialty: expected 409, got %d", rec.Code)
	}

	rec = call(e, &doc, http.MethodPost, "/api/v1/specialties/"+f.specialty.ID.String()+"/causes", `{"name":"Fainting"}`)
	if rec.Code != http.StatusCreated {
		t.Errorf("create cause: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = call(e, nil, http.MethodGet, "/api/v1/specialties/"+f.specialty.ID.String()+"/causes", "")
	var causes []Cause
	if err := json.Unmarshal(rec.Body.Bytes(), &causes); err != nil {
		t.Fatal(err)
	}
	if len(causes) != 3 {
		t.Errorf("got %d causes, want 3", len(causes))
	}
}

func TestHandler_UpdateDoctor(t *testing.T) {
	f := newFixture(t)
	e := newTestServer(f)
	f.mustBook(t, f.patient, mondayNine, 30)
	doc := f.asDoctor()
	path := "/api/v1/doctors/" + f.doctor.ID.String()

	rec := call(e, &doc, http.MethodPut, path, `{"availability":{"Tuesday":["09:00"]}}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("dropping a booked slot: expected 409, got %d", rec.Code)
	}

	rec = call(e, &doc, http.MethodPut, path, `{"name":"Dr Meredith Grey"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("rename: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := f.store.doctors[f.doctor.ID].Name; got != "Dr Meredith Grey" {
		t.Errorf("name = %q", got)
	}

	pat := f.asPatient(f.patient)
	rec = call(e, &pat, http.MethodPut, path, `{"name":"x"}`)
	if rec.Code != http.StatusForbidden {
		t.Errorf("patient editing doctor: expected 403, got %d", rec.Code)
	}
}

func TestHandler_ListDoctors(t *testing.T) {
	f := newFixture(t)
	e := newTestServer(f)
	pat := f.asPatient(f.patient)

	rec := call(e, &pat, http.MethodGet, "/api/v1/doctors?cause_id="+f.rash.ID.String(), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"total":0`) {
		t.Errorf("rash filter should match nobody: %s", rec.Body.String())
	}

	rec = call(e, &pat, http.MethodGet, "/api/v1/doctors?specialty_id=bogus", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad filter: expected 400, got %d", rec.Code)
	}
}
