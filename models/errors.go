package models

import (
	"errors"
	"net/http"

	"gorm.io/gorm"
)

// Error kinds surfaced to callers. Wrap them with fmt.Errorf("%w ...") to add detail;
// match them with errors.Is.
var (
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrBatchNotFound          = errors.New("batch not found")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrPermissionDenied       = errors.New("permission denied")
	ErrNotFound               = errors.New("record not found")

	ErrInvalidInput           = errors.New("invalid input")
	ErrUnknownTransactionType = errors.New("unknown ledger transaction type")
	ErrBatchInUse             = errors.New("batch is referenced by a production event")
	ErrLedgerDrift            = errors.New("inventory aggregate does not match active batches")
)

// IsRetriable reports whether the caller may retry the whole operation.
// The ledger itself never retries.
func IsRetriable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// HTTPStatus maps an error kind to the status code the HTTP layer should answer with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrConcurrentModification):
		return http.StatusConflict
	case errors.Is(err, ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrBatchNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInsufficientStock), errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrBatchInUse):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrUnknownTransactionType):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// notFound converts gorm's not-found into the given kind and passes other errors through.
func notFound(err error, kind error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return kind
	}
	return err
}
