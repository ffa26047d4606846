package store

import (
	"errors"
	"fmt"

	"github.com/Toasterson/akh-medu-sub004/internal/domain"
)

var (
	// ErrNotFound is returned by point lookups against an absent identifier.
	ErrNotFound = errors.New("not found")

	// ErrBadEncoding is returned when a stored value cannot be decoded.
	// It signals corruption or a version skew between writer and reader.
	ErrBadEncoding = errors.New("bad record encoding")
)

// NotFoundError carries the identifier a lookup missed. It matches
// ErrNotFound under errors.Is.
type NotFoundError struct {
	ID domain.EntityID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("record %d: not found", e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }
