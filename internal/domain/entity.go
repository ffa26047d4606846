package domain

import (
	"fmt"
	"strconv"
)

// EntityID identifies any addressable thing participating in provenance
// tracking: a fact, a symbol, or a ledger record. IDs are strictly positive;
// the zero value means "unassigned", so an optional EntityID costs no more
// than a mandatory one when packed into large tables.
type EntityID uint64

// NoEntity is the unassigned sentinel.
const NoEntity EntityID = 0

// Valid reports whether the identifier has been assigned.
func (e EntityID) Valid() bool {
	return e != NoEntity
}

func (e EntityID) String() string {
	return strconv.FormatUint(uint64(e), 10)
}

// ParseEntityID parses a decimal entity identifier. The zero value is
// rejected because it is the unassigned sentinel.
func ParseEntityID(s string) (EntityID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return NoEntity, fmt.Errorf("invalid entity id %q: %w", s, err)
	}
	if v == 0 {
		return NoEntity, fmt.Errorf("entity id must be positive")
	}
	return EntityID(v), nil
}
