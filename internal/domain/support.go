package domain

// SupportSet is one alternative justification for a derived entity: the
// entity is justified by this set iff every premise is still present.
// Multiple support sets on one entity are OR-combined.
type SupportSet struct {
	Premises   []EntityID     `json:"premises"`
	Kind       DerivationKind `json:"kind"`
	Confidence float64        `json:"confidence"`
}

// Cites reports whether the set lists the given entity as a premise.
func (s SupportSet) Cites(id EntityID) bool {
	for _, p := range s.Premises {
		if p == id {
			return true
		}
	}
	return false
}

// ConfidenceUpdate reports the new effective confidence of an entity that
// lost a support set but kept at least one.
type ConfidenceUpdate struct {
	ID         EntityID `json:"id"`
	Confidence float64  `json:"confidence"`
}

// RetractionResult is the outcome of a retraction cascade. Retracted always
// starts with the entity the cascade was invoked on. CascadeDepth counts the
// breadth-first waves the cascade processed, so a retraction with no
// downstream effects reports 1.
type RetractionResult struct {
	Retracted    []EntityID         `json:"retracted"`
	ReEvaluated  []ConfidenceUpdate `json:"re_evaluated,omitempty"`
	CascadeDepth int                `json:"cascade_depth"`
}
