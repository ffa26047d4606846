package domain

import (
	"fmt"
	"time"
)

// ProvenanceRecord is the durable record of one derivation event: what was
// derived, from which premises, how, and with what confidence.
//
// ID is NoEntity until the record is persisted; the ledger assigns it
// exclusively and never reuses an identifier, even across retraction.
type ProvenanceRecord struct {
	ID         EntityID       `json:"id,omitempty"`
	DerivedID  EntityID       `json:"derived_id"`
	Sources    []EntityID     `json:"sources,omitempty"`
	Kind       DerivationKind `json:"kind"`
	Confidence float64        `json:"confidence"`
	Depth      uint32         `json:"depth"`
	Timestamp  int64          `json:"timestamp"`
}

// NewProvenanceRecord builds an unpersisted record stamped with the current
// time. Sources may be empty (seeds have no premises).
func NewProvenanceRecord(derived EntityID, sources []EntityID, kind DerivationKind, confidence float64) *ProvenanceRecord {
	return &ProvenanceRecord{
		DerivedID:  derived,
		Sources:    sources,
		Kind:       kind,
		Confidence: confidence,
		Timestamp:  time.Now().Unix(),
	}
}

// Validate checks the invariants a record must satisfy before persistence.
func (r *ProvenanceRecord) Validate() error {
	if !r.DerivedID.Valid() {
		return fmt.Errorf("derived_id is required")
	}
	if r.Kind.Tag == 0 {
		return fmt.Errorf("derivation kind is required")
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("confidence %f out of range [0,1]", r.Confidence)
	}
	for _, s := range r.Sources {
		if !s.Valid() {
			return fmt.Errorf("source ids must be positive")
		}
	}
	return nil
}
