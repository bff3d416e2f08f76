// Session authentication: an optional bearer token on the `open`
// handshake (§4.9 expansion), distinct from the convergence-layer
// transport-security non-goal. Gated by the `require_auth` param.
/*
 * Copyright (c) 2018-2026, NVIDIA CORPORATION. All rights reserved.
 */
package apisrv

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// sessionClaims is the token payload minted for a session on open.
type sessionClaims struct {
	jwt.RegisteredClaims
}

// Authenticator issues and verifies local-API session tokens.
type Authenticator struct {
	RequireAuth bool
	secret      []byte
}

func NewAuthenticator(secret []byte, requireAuth bool) *Authenticator {
	return &Authenticator{RequireAuth: requireAuth, secret: secret}
}

func (a *Authenticator) Issue(sessionID string, ttl time.Duration) (string, error) {
	claims := sessionClaims{jwt.RegisteredClaims{
		Subject:   sessionID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(a.secret)
}

// Verify checks the handshake's bearer token. A daemon started without
// -require_auth accepts an empty token; one started with it rejects any
// `open` handshake lacking a valid, unexpired token (§4.9 expansion).
func (a *Authenticator) Verify(token string) error {
	if token == "" {
		if a.RequireAuth {
			return fmt.Errorf("apisrv: auth required, no token presented")
		}
		return nil
	}
	parsed, err := jwt.ParseWithClaims(token, &sessionClaims{}, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil {
		return fmt.Errorf("apisrv: invalid token: %w", err)
	}
	if !parsed.Valid {
		return fmt.Errorf("apisrv: invalid token claims")
	}
	return nil
}
