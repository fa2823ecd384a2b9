// Package auth signs and verifies delegation tokens: the production carrier
// for the caller-supplied actor context. A token names the principal, the
// owner it acts for, an optional tenant, and the delegation scopes the
// principal holds.
package auth

import (
	"fmt"
	"time"

	"github.com/glazeworks/actiongate/models"
	"github.com/golang-jwt/jwt/v5"
)

// Claims are the delegation token claims.
type Claims struct {
	ActorType string   `json:"actor_type"`
	OwnerUID  string   `json:"owner_uid"`
	TenantID  string   `json:"tenant_id,omitempty"`
	Scopes    []string `json:"scopes"`
	jwt.RegisteredClaims
}

// TokenVerifier parses and validates delegation tokens.
type TokenVerifier struct {
	secret []byte
	issuer string
}

// NewTokenVerifier creates a new TokenVerifier
func NewTokenVerifier(secret, issuer string) *TokenVerifier {
	return &TokenVerifier{
		secret: []byte(secret),
		issuer: issuer,
	}
}

// Verify parses a delegation token and returns the actor context it carries.
func (v *TokenVerifier) Verify(tokenString string) (*models.ActorContext, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithIssuer(v.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("failed to parse delegation token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("delegation token is not valid")
	}

	actorType := models.ActorType(claims.ActorType)
	switch actorType {
	case models.ActorTypeAgent, models.ActorTypeStaff, models.ActorTypeClient:
	default:
		return nil, fmt.Errorf("unknown actor type in delegation token: %q", claims.ActorType)
	}

	return &models.ActorContext{
		ActorType:       actorType,
		ActorID:         claims.Subject,
		OwnerUID:        claims.OwnerUID,
		TenantID:        claims.TenantID,
		EffectiveScopes: claims.Scopes,
	}, nil
}

// TokenSigner mints delegation tokens. Used by the delegation issuance
// tooling and by tests.
type TokenSigner struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewTokenSigner creates a new TokenSigner
func NewTokenSigner(secret, issuer string, ttl time.Duration) *TokenSigner {
	return &TokenSigner{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
	}
}

// Sign mints a delegation token for the given actor context.
func (s *TokenSigner) Sign(actor models.ActorContext, now time.Time) (string, error) {
	claims := Claims{
		ActorType: string(actor.ActorType),
		OwnerUID:  actor.OwnerUID,
		TenantID:  actor.TenantID,
		Scopes:    actor.EffectiveScopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ActorID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign delegation token: %w", err)
	}
	return signed, nil
}
