package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Skotchmaster/storefront/services/checkout/internal/repo"
)

var (
	ErrValidation    = errors.New("validation")     // 422
	ErrNotFound      = errors.New("not found")      // 404
	ErrPaymentFailed = errors.New("payment failed") // 402
	ErrConflict      = errors.New("conflict")       // 409
)

// ValidationError carries every rule a request broke.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "validation: " + strings.Join(e.Violations, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(violations ...string) error {
	return &ValidationError{Violations: violations}
}

func mapStoreErr(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repo.ErrNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, repo.ErrConflict):
		return fmt.Errorf("%s: %w", op, ErrConflict)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
