package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Toasterson/akh-medu-sub004/internal/domain"
	"github.com/Toasterson/akh-medu-sub004/internal/tms"
)

// RetractionService owns the truth maintenance graph and makes retractions
// durable: it runs the cascade, writes tombstone and reweight records into
// the ledger, and tells the knowledge store to delete or down-weight the
// underlying facts.
//
// The graph itself is single-writer; every graph access goes through the
// service's mutex.
type RetractionService struct {
	mu        sync.Mutex
	graph     *tms.Graph
	ledger    domain.Ledger
	knowledge domain.KnowledgeStore
	logger    *zap.Logger
}

func NewRetractionService(graph *tms.Graph, ledger domain.Ledger, logger *zap.Logger) *RetractionService {
	return &RetractionService{
		graph:  graph,
		ledger: ledger,
		logger: logger,
	}
}

// SetKnowledgeStore wires the collaborator that applies retraction
// consequences to the underlying facts. Optional; without it, consequences
// live only in the ledger and the graph.
func (s *RetractionService) SetKnowledgeStore(ks domain.KnowledgeStore) {
	s.knowledge = ks
}

// AddSupport registers one alternative justification for derived in the
// graph and records the derivation event in the ledger.
func (s *RetractionService) AddSupport(ctx context.Context, derived domain.EntityID, set domain.SupportSet) (domain.EntityID, error) {
	if !derived.Valid() {
		return domain.NoEntity, fmt.Errorf("derived entity id is required")
	}

	rec := domain.NewProvenanceRecord(derived, set.Premises, set.Kind, set.Confidence)
	id, err := s.ledger.Store(ctx, rec)
	if err != nil {
		return domain.NoEntity, err
	}

	s.mu.Lock()
	s.graph.AddSupport(derived, set)
	s.mu.Unlock()

	return id, nil
}

// EffectiveConfidence reports how sure the engine currently is of an entity.
func (s *RetractionService) EffectiveConfidence(entity domain.EntityID) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.EffectiveConfidence(entity)
}

// IsSupported reports whether the entity still has a surviving proof.
func (s *RetractionService) IsSupported(entity domain.EntityID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.IsSupported(entity)
}

// Status is a point-in-time introspection snapshot of one entity.
type Status struct {
	Entity      domain.EntityID   `json:"entity"`
	Supported   bool              `json:"supported"`
	Confidence  float64           `json:"confidence"`
	SupportSets int               `json:"support_sets"`
	Dependents  []domain.EntityID `json:"dependents,omitempty"`
}

func (s *RetractionService) StatusOf(entity domain.EntityID) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Entity:      entity,
		Supported:   s.graph.IsSupported(entity),
		Confidence:  s.graph.EffectiveConfidence(entity),
		SupportSets: s.graph.SupportSetCount(entity),
		Dependents:  s.graph.DirectDependents(entity),
	}
}

// Retract declares the entity false, cascades through everything that
// depended on it, and persists the consequences: a tombstone record per
// retracted entity, a reweight record per survivor, and matching calls into
// the knowledge store. The cascade's root is stamped as the single source on
// every consequence record, so the ledger can answer "what did retracting X
// destroy" through BySource.
func (s *RetractionService) Retract(ctx context.Context, entity domain.EntityID) (domain.RetractionResult, error) {
	if !entity.Valid() {
		return domain.RetractionResult{}, fmt.Errorf("entity id is required")
	}

	s.mu.Lock()
	result := s.graph.Retract(entity)
	s.mu.Unlock()

	s.logger.Info("retraction cascade",
		zap.Uint64("entity", uint64(entity)),
		zap.Int("retracted", len(result.Retracted)),
		zap.Int("re_evaluated", len(result.ReEvaluated)),
		zap.Int("cascade_depth", result.CascadeDepth))

	now := time.Now().Unix()
	records := make([]*domain.ProvenanceRecord, 0, len(result.Retracted)+len(result.ReEvaluated))
	for _, id := range result.Retracted {
		records = append(records, &domain.ProvenanceRecord{
			DerivedID: id,
			Sources:   []domain.EntityID{entity},
			Kind:      domain.NewRetracted(),
			Timestamp: now,
		})
	}
	for _, upd := range result.ReEvaluated {
		records = append(records, &domain.ProvenanceRecord{
			DerivedID:  upd.ID,
			Sources:    []domain.EntityID{entity},
			Kind:       domain.NewReweighted(),
			Confidence: upd.Confidence,
			Timestamp:  now,
		})
	}
	if _, err := s.ledger.StoreBatch(ctx, records); err != nil {
		return result, fmt.Errorf("persist retraction of %d: %w", entity, err)
	}

	if s.knowledge != nil {
		var errs []error
		for _, id := range result.Retracted {
			if err := s.knowledge.RemoveFact(ctx, id); err != nil {
				errs = append(errs, fmt.Errorf("remove fact %d: %w", id, err))
			}
		}
		for _, upd := range result.ReEvaluated {
			if err := s.knowledge.ReweightFact(ctx, upd.ID, upd.Confidence); err != nil {
				errs = append(errs, fmt.Errorf("reweight fact %d: %w", upd.ID, err))
			}
		}
		if len(errs) > 0 {
			return result, fmt.Errorf("apply retraction consequences: %w", errors.Join(errs...))
		}
	}

	return result, nil
}

// Rebuild rehydrates the graph from durable state: every support-bearing
// record becomes a support set again, unless its derived entity or one of
// its premises was tombstoned after the record was written. Used after a restart, when the in-memory graph is empty.
func (s *RetractionService) Rebuild(ctx context.Context, tags []domain.KindTag) (int, error) {
	tombstones := make(map[domain.EntityID]domain.EntityID)
	dead, err := s.ledger.ByKind(ctx, domain.KindRetracted)
	if err != nil {
		return 0, fmt.Errorf("rebuild: load tombstones: %w", err)
	}
	for _, r := range dead {
		if r.ID > tombstones[r.DerivedID] {
			tombstones[r.DerivedID] = r.ID
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.graph.Clear()

	restored := 0
	for _, tag := range tags {
		if tag == domain.KindRetracted || tag == domain.KindReweighted {
			continue
		}
		records, err := s.ledger.ByKind(ctx, tag)
		if err != nil {
			return restored, fmt.Errorf("rebuild: load kind %s: %w", domain.KindName(tag), err)
		}
		for _, r := range records {
			if len(r.Sources) == 0 {
				continue
			}
			if tomb, ok := tombstones[r.DerivedID]; ok && tomb > r.ID {
				continue
			}
			if citesTombstoned(&r, tombstones) {
				continue
			}
			s.graph.AddSupport(r.DerivedID, domain.SupportSet{
				Premises:   r.Sources,
				Kind:       r.Kind,
				Confidence: r.Confidence,
			})
			restored++
		}
	}

	s.logger.Info("graph rebuilt from ledger", zap.Int("support_sets", restored))
	return restored, nil
}

// citesTombstoned reports whether any premise of the record was retracted
// after the record was written. Such a set did not survive the cascade, so
// restoring it would resurrect confidence the retraction removed.
func citesTombstoned(r *domain.ProvenanceRecord, tombstones map[domain.EntityID]domain.EntityID) bool {
	for _, src := range r.Sources {
		if tomb, ok := tombstones[src]; ok && tomb > r.ID {
			return true
		}
	}
	return false
}
