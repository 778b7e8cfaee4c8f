package auth

import "errors"

// Authentication errors.
var (
	// ErrMissingToken indicates no bearer token was supplied.
	ErrMissingToken = errors.New("missing bearer token")

	// ErrInvalidToken indicates the token failed validation.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired indicates the token is past its expiry.
	ErrTokenExpired = errors.New("token expired")

	// ErrWrongTokenType indicates a refresh token was used where an
	// access token is required, or vice versa.
	ErrWrongTokenType = errors.New("wrong token type")

	// ErrRefreshTokenNotFound indicates the refresh token is unknown or revoked.
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
)
