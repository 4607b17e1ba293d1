package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies domain errors so the HTTP boundary can translate them
// with a single function.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindAuth
	KindForbidden
	KindNotFound
	KindConflict
	KindUpstream
	KindUnavailable
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUpstream:
		return "upstream"
	case KindUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) ErrorKind {
	var k interface{ Kind() ErrorKind }
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindInternal
}

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *ErrNotFound) Kind() ErrorKind { return KindNotFound }

// ErrExternalService indicates a failure in an external service call.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

func (e *ErrExternalService) Kind() ErrorKind { return KindUpstream }

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

func (e *ErrCircuitOpen) Kind() ErrorKind { return KindUnavailable }

// ErrUnavailable indicates a feature that is switched off by configuration,
// e.g. billing in disabled mode or numbering without a provider URL.
type ErrUnavailable struct {
	Feature string
}

func (e *ErrUnavailable) Error() string {
	return fmt.Sprintf("%s indisponível", e.Feature)
}

func (e *ErrUnavailable) Kind() ErrorKind { return KindUnavailable }

// ErrValidation indicates a validation error (bad input). Errors carries one
// message per violated rule when more than one rule applies.
type ErrValidation struct {
	Field   string
	Message string
	Errors  []string
}

func (e *ErrValidation) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

func (e *ErrValidation) Kind() ErrorKind { return KindValidation }

// AuthFailure is the reason an authentication attempt was rejected.
type AuthFailure string

const (
	AuthMissingToken     AuthFailure = "missing_token"
	AuthMalformedHeader  AuthFailure = "malformed_header"
	AuthTokenExpired     AuthFailure = "token_expired"
	AuthTokenInvalid     AuthFailure = "token_invalid"
	AuthBadCredentials   AuthFailure = "invalid_credentials"
	AuthPrincipalMissing AuthFailure = "principal_missing"
)

// ErrUnauthorized indicates invalid credentials or token.
type ErrUnauthorized struct {
	Reason  AuthFailure
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

func (e *ErrUnauthorized) Kind() ErrorKind { return KindAuth }

// ErrForbidden indicates the user lacks permission for the operation.
type ErrForbidden struct {
	Action string
}

func (e *ErrForbidden) Error() string {
	return fmt.Sprintf("forbidden: %s", e.Action)
}

func (e *ErrForbidden) Kind() ErrorKind { return KindForbidden }

// ErrConflict indicates a resource already exists or a prerequisite is unmet.
type ErrConflict struct {
	Message string
	Missing []string
}

func (e *ErrConflict) Error() string {
	return e.Message
}

func (e *ErrConflict) Kind() ErrorKind { return KindConflict }

// ErrInvalidCode indicates an invalid or expired verification code.
type ErrInvalidCode struct{}

func (e *ErrInvalidCode) Error() string {
	return "Código inválido ou expirado"
}

func (e *ErrInvalidCode) Kind() ErrorKind { return KindValidation }
