package domain

import "context"

// Ledger persists provenance records and serves the secondary-index queries.
// All mutations are atomic across the primary table and every index.
type Ledger interface {
	Store(ctx context.Context, r *ProvenanceRecord) (EntityID, error)
	StoreBatch(ctx context.Context, records []*ProvenanceRecord) ([]EntityID, error)
	Get(ctx context.Context, id EntityID) (*ProvenanceRecord, error)
	ByDerived(ctx context.Context, derived EntityID) ([]ProvenanceRecord, error)
	BySource(ctx context.Context, source EntityID) ([]ProvenanceRecord, error)
	ByKind(ctx context.Context, tag KindTag) ([]ProvenanceRecord, error)
}

// Resolver maps human-readable labels to entity identifiers and back.
type Resolver interface {
	// Resolve returns the id for a label, allocating one if the label is new.
	Resolve(ctx context.Context, label string) (EntityID, error)
	// Lookup returns the id for a label without allocating.
	Lookup(ctx context.Context, label string) (EntityID, error)
	NameOf(ctx context.Context, id EntityID) (string, error)
}

// KnowledgeStore applies the consequences of a retraction to the underlying
// fact store. It is a collaborator; this subsystem only tells it what to do.
type KnowledgeStore interface {
	RemoveFact(ctx context.Context, id EntityID) error
	ReweightFact(ctx context.Context, id EntityID, confidence float64) error
}
