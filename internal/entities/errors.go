package entities

import (
	"errors"
	"fmt"
)

var (
	ErrConfigurationMissing   = errors.New("configuration missing")
	ErrPersistenceUnavailable = errors.New("persistence unavailable")
	ErrCredentialNotFound     = errors.New("credential not found")
	ErrValidationFailed       = errors.New("validation failed")
	ErrUnknownPersona         = errors.New("unknown persona")
	ErrProviderFailure        = errors.New("provider failure")
	ErrMalformedEvent         = errors.New("malformed event")
	ErrRateLimited            = errors.New("rate limited")
)

type ProviderFailureKind int

const (
	ProviderOpaque ProviderFailureKind = iota
	ProviderInvalidCredential
	ProviderQuotaExceeded
	ProviderUnavailable
)

func (k ProviderFailureKind) String() string {
	switch k {
	case ProviderInvalidCredential:
		return "invalid_credential"
	case ProviderQuotaExceeded:
		return "quota_exceeded"
	case ProviderUnavailable:
		return "unavailable"
	default:
		return "provider_error"
	}
}

// ProviderError is returned by the provider gateway. Message never contains the credential.
type ProviderError struct {
	Kind    ProviderFailureKind
	Message string
}

func NewProviderError(kind ProviderFailureKind, message string) *ProviderError {
	return &ProviderError{Kind: kind, Message: message}
}

func (e *ProviderError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("provider failure: %s", e.Kind)
	}
	return fmt.Sprintf("provider failure: %s: %s", e.Kind, e.Message)
}

func (e *ProviderError) Is(target error) bool {
	return target == ErrProviderFailure
}

// ProviderKind reports the failure kind of err, or false if err is not a provider error.
func ProviderKind(err error) (ProviderFailureKind, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return ProviderOpaque, false
}

// ReasonLabel is a low-cardinality label for an outcome reason, used in metrics and logs.
func ReasonLabel(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCredentialNotFound):
		return "credential_not_found"
	case errors.Is(err, ErrPersistenceUnavailable):
		return "persistence_unavailable"
	case errors.Is(err, ErrValidationFailed):
		return "validation_failed"
	case errors.Is(err, ErrUnknownPersona):
		return "unknown_persona"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrMalformedEvent):
		return "malformed_event"
	case errors.Is(err, ErrProviderFailure):
		kind, _ := ProviderKind(err)
		return kind.String()
	default:
		return "internal"
	}
}
