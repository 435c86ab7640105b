package models

import "github.com/golang-jwt/jwt/v5"

// AdminClaims is the JWT payload for an admin session. The system has a
// single shared admin credential; the session ID exists so individual
// sessions show up distinctly in logs.
type AdminClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// LoginRequest carries the shared admin password.
type LoginRequest struct {
	Password string `json:"password" validate:"required"`
}

// LoginResponse returns the issued session token.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}
