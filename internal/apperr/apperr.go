// Package apperr defines the error taxonomy shared by the gateway client,
// the services and the HTTP layer. Handlers branch on these with errors.As
// to decide what to retry and what to surface.
package apperr

import "fmt"

// ValidationError: bad caller input. Never retried.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string { return e.Field + ": " + e.Msg }

// AuthError: credential or token failure against an upstream API.
// Retried at most once after a token refresh, then surfaced.
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string { return "auth " + e.Op + ": " + e.Err.Error() }
func (e *AuthError) Unwrap() error { return e.Err }

// GatewayError: the payment gateway answered with a non-2xx status or an
// error envelope. Desc carries the gateway's own description for display.
type GatewayError struct {
	Op     string
	Code   string
	Desc   string
	Status int
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s: code=%s status=%d %s", e.Op, e.Code, e.Status, e.Desc)
}

// TransientNetworkError: transport-level failure. Retried only within the
// bounded poll/sweep cadence.
type TransientNetworkError struct {
	Op  string
	Err error
}

func (e *TransientNetworkError) Error() string { return "network " + e.Op + ": " + e.Err.Error() }
func (e *TransientNetworkError) Unwrap() error { return e.Err }

// DispatchError: reward disbursement failure. Logged and audited, never
// propagated to the payment-confirmation path.
type DispatchError struct {
	Recipient string
	Err       error
}

func (e *DispatchError) Error() string { return "dispatch to " + e.Recipient + ": " + e.Err.Error() }
func (e *DispatchError) Unwrap() error { return e.Err }

// StorageError: ledger or snapshot store failure. Always surfaced; a
// swallowed storage error risks a duplicate reward on the next observation.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return "storage " + e.Op + ": " + e.Err.Error() }
func (e *StorageError) Unwrap() error { return e.Err }
