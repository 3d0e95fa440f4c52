package scheduling

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinic/booking/internal/domain/availability"
	"github.com/clinic/booking/internal/platform/auth"
	"github.com/clinic/booking/pkg/pagination"
)

type Handler struct {
	svc    *Service
	logger zerolog.Logger
}

func NewHandler(svc *Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Public taxonomy reads
	api.GET("/specialties", h.ListSpecialties)
	api.GET("/specialties/:id/causes", h.ListCauses)

	anyRole := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RolePatient))
	anyRole.POST("/specialties", h.CreateSpecialty)
	anyRole.POST("/specialties/:id/causes", h.CreateCause)
	anyRole.GET("/doctors", h.ListDoctors)
	anyRole.GET("/doctors/:id/booking", h.GetDoctorForBooking)
	anyRole.GET("/appointments/:id", h.GetAppointment)
	anyRole.PATCH("/appointments/:id/status", h.UpdateStatus)
	anyRole.DELETE("/appointments/:id", h.DeleteAppointment)

	patients := api.Group("", auth.RequireRole(auth.RolePatient))
	patients.POST("/appointments", h.CreateAppointment)
	patients.PUT("/appointments/:id", h.UpdateAppointment)
	patients.GET("/patients/:id", h.GetPatient, auth.RequireSelf("id"))
	patients.PUT("/patients/:id", h.UpdatePatient, auth.RequireSelf("id"))
	patients.GET("/patients/:id/appointments", h.ListPatientAppointments, auth.RequireSelf("id"))

	doctors := api.Group("", auth.RequireRole(auth.RoleDoctor))
	doctors.PATCH("/appointments/:id/reschedule", h.RescheduleAppointment)
	doctors.GET("/doctors/:id", h.GetDoctor, auth.RequireSelf("id"))
	doctors.PUT("/doctors/:id", h.UpdateDoctor, auth.RequireSelf("id"))
	doctors.GET("/doctors/:id/appointments", h.ListDoctorAppointments, auth.RequireSelf("id"))
}

// httpError maps service errors to HTTP responses. Infrastructure failures
// are logged and reported without detail.
func (h *Handler) httpError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	rid, _ := c.Get("request_id").(string)
	h.logger.Error().Err(err).Str("request_id", rid).Str("path", c.Path()).Msg("scheduling request failed")
	return echo.NewHTTPError(http.StatusServiceUnavailable, "service temporarily unavailable, please retry")
}

func actorFrom(c echo.Context) (Actor, error) {
	id, ok := auth.IdentityFromContext(c.Request().Context())
	if !ok {
		return Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return Actor{Role: Role(id.Role), ProfileID: id.ProfileID}, nil
}

func uuidParam(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

func optionalUUID(c echo.Context, name string) (*uuid.UUID, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return &id, nil
}

// -- Appointments --

type appointmentRequest struct {
	DoctorID  uuid.UUID `json:"doctor_id"`
	PatientID uuid.UUID `json:"patient_id"`
	CauseID   uuid.UUID `json:"cause_id"`
	StartDate string    `json:"start_date"`
	Duration  int       `json:"duration"`
}

// startDate parses start_date as RFC 3339. An empty value yields the zero
// time, which the service reports as missing.
func (r *appointmentRequest) startDate() (time.Time, error) {
	if r.StartDate == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, r.StartDate)
	if err != nil {
		return time.Time{}, validationf("start date %q is not an RFC 3339 timestamp", r.StartDate)
	}
	return t, nil
}

type statusRequest struct {
	Status Status `json:"status"`
}

func (h *Handler) CreateAppointment(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req appointmentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	start, err := req.startDate()
	if err != nil {
		return h.httpError(c, err)
	}
	if req.PatientID == uuid.Nil {
		req.PatientID = actor.ProfileID
	}
	a, err := h.svc.CreateAppointment(c.Request().Context(), actor, BookingRequest{
		DoctorID:        req.DoctorID,
		PatientID:       req.PatientID,
		CauseID:         req.CauseID,
		StartDate:       start,
		DurationMinutes: req.Duration,
	})
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	edit, err := h.svc.GetAppointmentForEdit(c.Request().Context(), actor, id)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, edit)
}

func (h *Handler) UpdateAppointment(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	var req appointmentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	start, err := req.startDate()
	if err != nil {
		return h.httpError(c, err)
	}
	a, err := h.svc.UpdateAppointment(c.Request().Context(), actor, id, BookingRequest{
		CauseID:         req.CauseID,
		StartDate:       start,
		DurationMinutes: req.Duration,
	})
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) RescheduleAppointment(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	var req appointmentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	start, err := req.startDate()
	if err != nil {
		return h.httpError(c, err)
	}
	a, err := h.svc.RescheduleAppointment(c.Request().Context(), actor, id, start, req.Duration)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	a, err := h.svc.UpdateStatus(c.Request().Context(), actor, id, req.Status)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) DeleteAppointment(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteAppointment(c.Request().Context(), actor, id); err != nil {
		return h.httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListPatientAppointments(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListPatientAppointments(c.Request().Context(), actor, id, pg.Limit, pg.Offset)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListDoctorAppointments(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListDoctorAppointments(c.Request().Context(), actor, id, pg.Limit, pg.Offset)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

// -- Doctors --

type doctorUpdateRequest struct {
	Name         *string               `json:"name"`
	Image        *string               `json:"image"`
	Address      *string               `json:"address"`
	SpecialtyID  *uuid.UUID            `json:"specialty_id"`
	CauseIDs     []uuid.UUID           `json:"causes"`
	Availability availability.Template `json:"availability"`
}

func (h *Handler) ListDoctors(c echo.Context) error {
	specialtyID, err := optionalUUID(c, "specialty_id")
	if err != nil {
		return err
	}
	causeID, err := optionalUUID(c, "cause_id")
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListDoctors(c.Request().Context(), specialtyID, causeID, pg.Limit, pg.Offset)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetDoctor(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	d, err := h.svc.GetDoctor(c.Request().Context(), actor, id)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) GetDoctorForBooking(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	b, err := h.svc.GetDoctorForBooking(c.Request().Context(), id)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) UpdateDoctor(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	var req doctorUpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	d, err := h.svc.UpdateDoctorProfile(c.Request().Context(), actor, id, DoctorProfile{
		Name:         req.Name,
		Image:        req.Image,
		Address:      req.Address,
		SpecialtyID:  req.SpecialtyID,
		CauseIDs:     req.CauseIDs,
		Availability: req.Availability,
	})
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

// -- Patients --

type patientRequest struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
}

func (h *Handler) GetPatient(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	p, err := h.svc.GetPatient(c.Request().Context(), actor, id)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	var req patientRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p, err := h.svc.UpdatePatient(c.Request().Context(), actor, id, req.Name, req.Age)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// -- Taxonomy --

type nameRequest struct {
	Name string `json:"name"`
}

func (h *Handler) ListSpecialties(c echo.Context) error {
	items, err := h.svc.ListSpecialties(c.Request().Context())
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) CreateSpecialty(c echo.Context) error {
	var req nameRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	sp, err := h.svc.CreateSpecialty(c.Request().Context(), req.Name)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusCreated, sp)
}

func (h *Handler) ListCauses(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	items, err := h.svc.ListCauses(c.Request().Context(), id)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) CreateCause(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	var req nameRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	cause, err := h.svc.CreateCause(c.Request().Context(), id, req.Name)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusCreated, cause)
}
