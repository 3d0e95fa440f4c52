package auth

import (
	"github.com/labstack/echo/v4"
)

// publicRoutes lists "METHOD route" pairs reachable without a bearer token.
// Taxonomy reads are public so the signup form can be filled in.
var publicRoutes = map[string]bool{
	"GET /health":                        true,
	"GET /health/db":                     true,
	"POST /api/v1/auth/login":            true,
	"POST /api/v1/auth/signup/patient":   true,
	"POST /api/v1/auth/signup/doctor":    true,
	"GET /api/v1/specialties":            true,
	"GET /api/v1/specialties/:id/causes": true,
}

// AuthSkipper returns true for requests whose route should skip authentication.
func AuthSkipper(c echo.Context) bool {
	return IsPublicRoute(c.Request().Method, c.Path())
}

// IsPublicRoute reports whether method and route template are public.
func IsPublicRoute(method, route string) bool {
	return publicRoutes[method+" "+route]
}
