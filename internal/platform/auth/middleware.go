package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	identityKey contextKey = "identity"
	tokenKey    contextKey = "token"
)

// Roles a caller can hold.
const (
	RoleDoctor  = "doctor"
	RolePatient = "patient"
)

// Identity is the authenticated caller behind a request.
type Identity struct {
	UserID    uuid.UUID `json:"userId"`
	Role      string    `json:"role"`
	ProfileID uuid.UUID `json:"profileId"`
}

// WithIdentity stores id on ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the caller stored by the auth middleware.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// TokenFromContext returns the access token the request was authenticated
// with.
func TokenFromContext(ctx context.Context) (TokenInfo, bool) {
	t, ok := ctx.Value(tokenKey).(TokenInfo)
	return t, ok
}

// JWTConfig configures JWTMiddleware.
type JWTConfig struct {
	Verifier *TokenIssuer
	// Revoked, when set, rejects tokens that were logged out.
	Revoked *RevocationList
	// Skipper bypasses authentication for public endpoints.
	Skipper func(c echo.Context) bool
}

// JWTMiddleware resolves the bearer token into an Identity. Websocket
// upgrades may pass the token as the access_token query parameter because
// browsers cannot set headers on them.
func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper != nil && cfg.Skipper(c) {
				return next(c)
			}

			tokenStr, err := bearerToken(c)
			if err != nil {
				return err
			}

			id, info, err := cfg.Verifier.ParseToken(tokenStr)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			if cfg.Revoked != nil && cfg.Revoked.IsRevoked(info.ID) {
				return echo.NewHTTPError(http.StatusUnauthorized, "token has been revoked")
			}

			ctx := WithIdentity(c.Request().Context(), *id)
			ctx = context.WithValue(ctx, tokenKey, info)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func bearerToken(c echo.Context) (string, error) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		if t := c.QueryParam("access_token"); t != "" && isWebsocketUpgrade(c.Request()) {
			return t, nil
		}
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
	}
	return strings.TrimSpace(parts[1]), nil
}

func isWebsocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

// DevAuthMiddleware trusts X-Dev-Role and X-Dev-Profile headers when no
// bearer token is sent. Only for ENV=development.
func DevAuthMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	if cfg.Skipper == nil {
		cfg.Skipper = AuthSkipper
	}
	jwtMW := JWTMiddleware(cfg)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		withJWT := jwtMW(next)
		return func(c echo.Context) error {
			if c.Request().Header.Get("Authorization") != "" || cfg.Skipper(c) {
				return withJWT(c)
			}
			role := c.Request().Header.Get("X-Dev-Role")
			profileID, err := uuid.Parse(c.Request().Header.Get("X-Dev-Profile"))
			if (role != RoleDoctor && role != RolePatient) || err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}
			id := Identity{UserID: profileID, Role: role, ProfileID: profileID}
			c.SetRequest(c.Request().WithContext(WithIdentity(c.Request().Context(), id)))
			return next(c)
		}
	}
}
