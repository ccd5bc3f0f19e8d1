package repository

import (
	"errors"

	"github.com/lib/pq"
)

// ErrDuplicateSlot is returned when an active opening already occupies the class slot.
var ErrDuplicateSlot = errors.New("active opening exists for class slot")

const (
	pqUniqueViolation = "23505"
	activeSlotIndex   = "coverage_openings_active_slot_idx"
)

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == pqUniqueViolation && (constraint == "" || pqErr.Constraint == constraint)
}
