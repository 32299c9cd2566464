// Package errs provides types and support related to web v1 functionality.
package errs

import (
	"errors"
	"net/http"

	"github.com/ledgerlab/blockchain/foundation/blockchain/database"
	"github.com/ledgerlab/blockchain/foundation/blockchain/mempool"
	"github.com/ledgerlab/blockchain/foundation/blockchain/state"
)

// Response is the form used for API responses from failures in the API.
type Response struct {
	Error  string            `json:"error"`
	Index  *uint64           `json:"index,omitempty"`
	Rule   string            `json:"rule,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Trusted is used to pass an error during the request through the
// application with web specific context.
type Trusted struct {
	Err    error
	Status int
}

// NewTrusted wraps a provided error with an HTTP status code. This
// function should be used when handlers encounter expected errors.
func NewTrusted(err error, status int) error {
	return &Trusted{err, status}
}

// Error implements the error interface. It uses the default message of the
// wrapped error. This is what will be shown in the services' logs.
func (re *Trusted) Error() string {
	return re.Err.Error()
}

// Unwrap provides access to the wrapped error.
func (re *Trusted) Unwrap() error {
	return re.Err
}

// IsTrusted checks if an error of type Trusted exists.
func IsTrusted(err error) bool {
	var re *Trusted
	return errors.As(err, &re)
}

// GetTrusted returns a copy of the Trusted pointer.
func GetTrusted(err error) *Trusted {
	var re *Trusted
	if !errors.As(err, &re) {
		return nil
	}
	return re
}

// FromLedger maps the errors returned by the ledger api to the status that
// best describes them. Unknown errors are returned untouched.
func FromLedger(err error) error {
	switch {
	case err == nil:
		return nil

	case errors.Is(err, mempool.ErrDuplicate),
		errors.Is(err, state.ErrAlreadyConfirmed),
		errors.Is(err, state.ErrBlockKnown),
		errors.Is(err, database.ErrStaleTip),
		errors.Is(err, state.ErrReconciling):
		return NewTrusted(err, http.StatusConflict)

	case errors.Is(err, state.ErrNoTransactions):
		return NewTrusted(err, http.StatusUnprocessableEntity)

	case errors.Is(err, state.ErrPeerAhead),
		database.IsValidationError(err):
		return NewTrusted(err, http.StatusNotAcceptable)

	case errors.Is(err, database.ErrInvalidAmount),
		errors.Is(err, database.ErrInvalidAccount),
		errors.Is(err, database.ErrInvalidReward),
		errors.Is(err, database.ErrInvalidSignature):
		return NewTrusted(err, http.StatusBadRequest)

	case errors.Is(err, database.ErrNotFound):
		return NewTrusted(err, http.StatusNotFound)
	}

	return err
}
