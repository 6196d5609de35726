package fetcher

import (
	"errors"
	"fmt"
)

// Kind classifies a fetch failure for the enrichment loop.
type Kind int

const (
	// KindGeneric is an unclassified failure (network error, unexpected
	// status, malformed provider response).
	KindGeneric Kind = iota
	// KindFatal is a provider-wide failure; the bulk job must abort and
	// the provider goes into cooldown.
	KindFatal
	// KindRetryable is a transient failure worth a bounded retry.
	KindRetryable
	// KindSkip is terminal for the current item only.
	KindSkip
)

// Error is a classified fetch failure. Callers switch on Kind; the HTTP
// status and provider tag are carried for logging and stop reasons.
type Error struct {
	Kind       Kind
	StatusCode int
	Provider   Provider
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s provider: %s (status %d)", e.Provider, e.Message, e.StatusCode)
}

// Fatal reports whether the error should abort the whole bulk job.
func (e *Error) Fatal() bool { return e.Kind == KindFatal }

// Retryable reports whether the caller should retry after a delay.
func (e *Error) Retryable() bool { return e.Kind == KindRetryable }

// classifyPrimaryStatus maps a primary-provider HTTP status to a
// classified error, or nil for statuses with no special handling.
func classifyPrimaryStatus(status int) *Error {
	switch status {
	case 403:
		return &Error{Kind: KindFatal, StatusCode: 403, Provider: ProviderPrimary,
			Message: "access denied, provider disabled until end of day"}
	case 429:
		return &Error{Kind: KindRetryable, StatusCode: 429, Provider: ProviderPrimary,
			Message: "rate limited"}
	case 500:
		return &Error{Kind: KindSkip, StatusCode: 500, Provider: ProviderPrimary,
			Message: "upstream retries exhausted"}
	case 400:
		return &Error{Kind: KindSkip, StatusCode: 400, Provider: ProviderPrimary,
			Message: "malformed request"}
	}
	return nil
}

// AsError unwraps err into a classified *Error if it is one.
func AsError(err error) (*Error, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
