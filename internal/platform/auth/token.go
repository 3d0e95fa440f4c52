package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrBadToken is returned for tokens that fail verification.
var ErrBadToken = errors.New("invalid token")

// Claims is the payload of access tokens.
type Claims struct {
	jwt.RegisteredClaims
	Role      string `json:"role"`
	ProfileID string `json:"profile_id"`
}

// TokenIssuer signs and verifies HS256 access tokens.
type TokenIssuer struct {
	key    []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

func NewTokenIssuer(secret []byte, ttl time.Duration, issuer string) *TokenIssuer {
	return &TokenIssuer{key: secret, ttl: ttl, issuer: issuer, now: time.Now}
}

// Issue signs a token for id and returns it with its expiry.
func (t *TokenIssuer) Issue(id Identity) (string, time.Time, error) {
	now := t.now()
	exp := now.Add(t.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   id.UserID.String(),
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Role:      id.Role,
		ProfileID: id.ProfileID.String(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// TokenInfo identifies a verified access token so it can be revoked.
type TokenInfo struct {
	ID        string
	ExpiresAt time.Time
}

// Parse verifies raw and returns the identity it carries.
func (t *TokenIssuer) Parse(raw string) (*Identity, error) {
	id, _, err := t.ParseToken(raw)
	return id, err
}

// ParseToken is Parse that also returns the token's ID and expiry.
func (t *TokenIssuer) ParseToken(raw string) (*Identity, TokenInfo, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
	}
	if t.issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.issuer))
	}

	tok, err := jwt.ParseWithClaims(raw, claims, func(tok *jwt.Token) (interface{}, error) {
		// block alg confusion
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrBadToken
		}
		return t.key, nil
	}, opts...)
	if err != nil || !tok.Valid {
		return nil, TokenInfo{}, ErrBadToken
	}

	if claims.Role != RoleDoctor && claims.Role != RolePatient {
		return nil, TokenInfo{}, ErrBadToken
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, TokenInfo{}, ErrBadToken
	}
	profileID, err := uuid.Parse(claims.ProfileID)
	if err != nil {
		return nil, TokenInfo{}, ErrBadToken
	}
	info := TokenInfo{ID: claims.ID, ExpiresAt: claims.ExpiresAt.Time}
	return &Identity{UserID: userID, Role: claims.Role, ProfileID: profileID}, info, nil
}
