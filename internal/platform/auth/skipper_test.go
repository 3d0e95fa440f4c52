package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestIsPublicRoute(t *testing.T) {
	tests := []struct {
		method string
		route  string
		want   bool
	}{
		{http.MethodGet, "/health", true},
		{http.MethodGet, "/health/db", true},
		{http.MethodPost, "/api/v1/auth/login", true},
		{http.MethodPost, "/api/v1/auth/signup/doctor", true},
		{http.MethodGet, "/api/v1/specialties", true},
		{http.MethodPost, "/api/v1/specialties", false},
		{http.MethodGet, "/api/v1/auth/login", false},
		{http.MethodPost, "/api/v1/auth/logout", false},
		{http.MethodGet, "/api/v1/appointments/:id", false},
	}

	for _, tt := range tests {
		if got := IsPublicRoute(tt.method, tt.route); got != tt.want {
			t.Errorf("IsPublicRoute(%s %s) = %v, want %v", tt.method, tt.route, got, tt.want)
		}
	}
}

func TestAuthSkipper_UsesRouteTemplate(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/specialties/3f1c/causes", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/api/v1/specialties/:id/causes")

	if !AuthSkipper(c) {
		t.Error("expected causes listing to be public")
	}
}
