package auth

import "errors"

var (
	ErrUnauthorized = errors.New("auth: unauthorized")
	ErrForbidden    = errors.New("auth: forbidden")
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrInvalidPhone indicates a phone number with no digits.
	ErrInvalidPhone = errors.New("auth: invalid phone number")
	// ErrInvalidPIN indicates a PIN that is not 4 to 6 digits.
	ErrInvalidPIN = errors.New("auth: PIN must be between 4 and 6 digits")
	// ErrNameRequired indicates a sign-up without a display name.
	ErrNameRequired = errors.New("auth: name required")
	// ErrLoginFailed is returned for any failed sign-in.
	ErrLoginFailed = errors.New("auth: login failed")
	// ErrSignUpFailed is returned for any failed sign-up.
	ErrSignUpFailed = errors.New("auth: sign up failed")
)
