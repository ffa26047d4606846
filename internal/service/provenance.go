package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Toasterson/akh-medu-sub004/internal/domain"
	"github.com/Toasterson/akh-medu-sub004/internal/store"
)

const DefaultExplainMaxDepth = 16

// ProvenanceService records derivation events in the ledger and renders
// justification trees for anything the engine believes.
type ProvenanceService struct {
	ledger   domain.Ledger
	resolver domain.Resolver
	logger   *zap.Logger

	// ExplainMaxDepth bounds how far Explain recurses into premises.
	ExplainMaxDepth int
}

func NewProvenanceService(ledger domain.Ledger, resolver domain.Resolver, logger *zap.Logger) *ProvenanceService {
	return &ProvenanceService{
		ledger:          ledger,
		resolver:        resolver,
		logger:          logger,
		ExplainMaxDepth: DefaultExplainMaxDepth,
	}
}

// Record validates and persists one derivation event, returning the
// ledger-assigned identifier.
func (s *ProvenanceService) Record(ctx context.Context, rec *domain.ProvenanceRecord) (domain.EntityID, error) {
	if rec.Timestamp == 0 {
		rec.Timestamp = time.Now().Unix()
	}
	id, err := s.ledger.Store(ctx, rec)
	if err != nil {
		return domain.NoEntity, err
	}

	s.logger.Debug("recorded derivation",
		zap.Uint64("record_id", uint64(id)),
		zap.Uint64("derived_id", uint64(rec.DerivedID)),
		zap.String("kind", rec.Kind.Name()),
		zap.Float64("confidence", rec.Confidence))
	return id, nil
}

// RecordBatch persists a batch of derivation events all-or-nothing.
func (s *ProvenanceService) RecordBatch(ctx context.Context, recs []*domain.ProvenanceRecord) ([]domain.EntityID, error) {
	now := time.Now().Unix()
	for _, r := range recs {
		if r.Timestamp == 0 {
			r.Timestamp = now
		}
	}
	return s.ledger.StoreBatch(ctx, recs)
}

// Get returns one record by its ledger identifier.
func (s *ProvenanceService) Get(ctx context.Context, id domain.EntityID) (*domain.ProvenanceRecord, error) {
	return s.ledger.Get(ctx, id)
}

// History returns every derivation event that produced the given entity.
func (s *ProvenanceService) History(ctx context.Context, derived domain.EntityID) ([]domain.ProvenanceRecord, error) {
	return s.ledger.ByDerived(ctx, derived)
}

// Uses returns every derivation event that consumed the given entity as a
// premise.
func (s *ProvenanceService) Uses(ctx context.Context, source domain.EntityID) ([]domain.ProvenanceRecord, error) {
	return s.ledger.BySource(ctx, source)
}

// OfKind returns every derivation event stored under a kind tag.
func (s *ProvenanceService) OfKind(ctx context.Context, tag domain.KindTag) ([]domain.ProvenanceRecord, error) {
	return s.ledger.ByKind(ctx, tag)
}

// Explanation is one node of a justification tree: the entity, the
// derivation that best justifies it, and the premises that derivation
// depended on, recursively.
type Explanation struct {
	Entity     domain.EntityID `json:"entity"`
	Label      string          `json:"label,omitempty"`
	Kind       string          `json:"kind,omitempty"`
	Confidence float64         `json:"confidence"`
	Premises   []*Explanation  `json:"premises,omitempty"`
	// Truncated marks nodes cut off by the depth bound or by a dependency
	// cycle; their premises are not expanded.
	Truncated bool `json:"truncated,omitempty"`
}

// Explain renders the justification tree for an entity. At each node the
// newest non-tombstone record is taken as the current justification;
// premises recurse until a seed, the depth bound, or a cycle.
func (s *ProvenanceService) Explain(ctx context.Context, entity domain.EntityID) (*Explanation, error) {
	visited := make(map[domain.EntityID]struct{})
	return s.explain(ctx, entity, s.ExplainMaxDepth, visited)
}

func (s *ProvenanceService) explain(ctx context.Context, entity domain.EntityID, depth int, visited map[domain.EntityID]struct{}) (*Explanation, error) {
	node := &Explanation{Entity: entity}
	if s.resolver != nil {
		if label, err := s.resolver.NameOf(ctx, entity); err == nil {
			node.Label = label
		}
	}

	rec, err := s.currentJustification(ctx, entity)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Nothing known about this entity; render it as a bare leaf.
			return node, nil
		}
		return nil, err
	}
	if rec == nil {
		return node, nil
	}

	node.Kind = rec.Kind.Name()
	node.Confidence = rec.Confidence

	if depth <= 0 {
		node.Truncated = len(rec.Sources) > 0
		return node, nil
	}
	if _, seen := visited[entity]; seen {
		node.Truncated = true
		return node, nil
	}
	visited[entity] = struct{}{}

	for _, src := range rec.Sources {
		child, err := s.explain(ctx, src, depth-1, visited)
		if err != nil {
			return nil, fmt.Errorf("explain premise %d of %d: %w", src, entity, err)
		}
		node.Premises = append(node.Premises, child)
	}
	return node, nil
}

// currentJustification picks the newest non-tombstone record for an entity,
// or nil if the entity's newest state is a retraction tombstone.
func (s *ProvenanceService) currentJustification(ctx context.Context, entity domain.EntityID) (*domain.ProvenanceRecord, error) {
	records, err := s.ledger.ByDerived(ctx, entity)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	var best *domain.ProvenanceRecord
	var tombstone domain.EntityID
	for i := range records {
		r := &records[i]
		switch r.Kind.Tag {
		case domain.KindRetracted:
			if r.ID > tombstone {
				tombstone = r.ID
			}
		case domain.KindReweighted:
			// confidence adjustments ride on the underlying justification
		default:
			if best == nil || r.ID > best.ID {
				best = r
			}
		}
	}
	if best == nil || tombstone > best.ID {
		return nil, nil
	}

	// Apply the newest reweight, if any landed after the justification.
	var reweight *domain.ProvenanceRecord
	for i := range records {
		r := &records[i]
		if r.Kind.Tag == domain.KindReweighted && r.ID > best.ID {
			if reweight == nil || r.ID > reweight.ID {
				reweight = r
			}
		}
	}
	if reweight != nil {
		adjusted := *best
		adjusted.Confidence = reweight.Confidence
		best = &adjusted
	}
	return best, nil
}
