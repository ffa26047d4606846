// Package tms implements the in-memory truth maintenance graph: support
// sets per derived entity (alternative justifications, OR-combined) and a
// reverse index from premise to dependents, with cascading retraction.
//
// The two maps are a forward/reverse index pair over a flat identifier
// space. Only the composite operations touch both, which is what keeps them
// from drifting: after any operation, dependents is exactly the reverse
// closure of supports.
//
// The graph does no locking of its own. A caller sharing it across
// goroutines must serialize AddSupport and Retract behind one exclusive
// lock, because the cascade reads and mutates both maps as one logical
// operation.
package tms

import (
	"github.com/Toasterson/akh-medu-sub004/internal/domain"
)

type Graph struct {
	supports   map[domain.EntityID][]domain.SupportSet
	dependents map[domain.EntityID]map[domain.EntityID]struct{}
}

func New() *Graph {
	return &Graph{
		supports:   make(map[domain.EntityID][]domain.SupportSet),
		dependents: make(map[domain.EntityID]map[domain.EntityID]struct{}),
	}
}

// AddSupport appends one alternative justification for derived and indexes
// derived under every premise. Duplicate support sets are not deduplicated;
// callers that care about exact counts must avoid redundant registration.
func (g *Graph) AddSupport(derived domain.EntityID, set domain.SupportSet) {
	g.supports[derived] = append(g.supports[derived], set)
	for _, premise := range set.Premises {
		deps, ok := g.dependents[premise]
		if !ok {
			deps = make(map[domain.EntityID]struct{})
			g.dependents[premise] = deps
		}
		deps[derived] = struct{}{}
	}
}

// EffectiveConfidence is the maximum confidence across the entity's
// surviving support sets, or 0 if none remain.
func (g *Graph) EffectiveConfidence(id domain.EntityID) float64 {
	return maxConfidence(g.supports[id])
}

func maxConfidence(sets []domain.SupportSet) float64 {
	best := 0.0
	for _, s := range sets {
		if s.Confidence > best {
			best = s.Confidence
		}
	}
	return best
}

// IsSupported reports whether the entity still has at least one support set.
func (g *Graph) IsSupported(id domain.EntityID) bool {
	return len(g.supports[id]) > 0
}

// TrackedCount is the number of entities with at least one support set.
func (g *Graph) TrackedCount() int {
	return len(g.supports)
}

// SupportSetCount is the number of alternative justifications the entity
// currently holds.
func (g *Graph) SupportSetCount(id domain.EntityID) int {
	return len(g.supports[id])
}

// DirectDependents lists the entities that cite id as a premise in any
// support set.
func (g *Graph) DirectDependents(id domain.EntityID) []domain.EntityID {
	deps := g.dependents[id]
	if len(deps) == 0 {
		return nil
	}
	out := make([]domain.EntityID, 0, len(deps))
	for d := range deps {
		out = append(out, d)
	}
	return out
}

// Clear drops all tracked state.
func (g *Graph) Clear() {
	g.supports = make(map[domain.EntityID][]domain.SupportSet)
	g.dependents = make(map[domain.EntityID]map[domain.EntityID]struct{})
}

// Retract force-removes the entity's own justifications regardless of
// whether they were still valid, then cascades breadth-first: every
// dependent loses the support sets that cited a retracted premise, is
// itself retracted once its last set is gone, and is otherwise re-scored to
// the maximum confidence of its surviving sets.
//
// A dependent with alternative justifications on disjoint premises survives
// the loss of one whole subtree; a dependent whose only set needs several
// retracted premises goes exactly once, when the set empties. The visited
// set keeps cyclic dependency chains from requeuing forever.
func (g *Graph) Retract(entity domain.EntityID) domain.RetractionResult {
	type item struct {
		id    domain.EntityID
		depth int
	}

	queue := []item{{entity, 0}}
	visited := map[domain.EntityID]struct{}{entity: {}}
	maxDepth := 0

	var retracted []domain.EntityID
	var reEvaluated []domain.ConfidenceUpdate

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth > maxDepth {
			maxDepth = cur.depth
		}

		// Drop the current entity's own support sets and its reverse-index
		// entry, capturing everyone who cited it as a premise.
		own := g.supports[cur.id]
		delete(g.supports, cur.id)
		deps := g.dependents[cur.id]
		delete(g.dependents, cur.id)
		g.pruneCitations(cur.id, own)

		for dep := range deps {
			sets := g.supports[dep]
			kept := sets[:0]
			var removed []domain.SupportSet
			for _, s := range sets {
				if s.Cites(cur.id) {
					removed = append(removed, s)
				} else {
					kept = append(kept, s)
				}
			}

			if len(kept) == 0 {
				delete(g.supports, dep)
				g.pruneCitations(dep, removed)
				retracted = append(retracted, dep)
				if _, seen := visited[dep]; !seen {
					visited[dep] = struct{}{}
					queue = append(queue, item{dep, cur.depth + 1})
				}
				continue
			}

			g.supports[dep] = kept
			g.pruneCitations(dep, removed)
			reEvaluated = append(reEvaluated, domain.ConfidenceUpdate{
				ID:         dep,
				Confidence: maxConfidence(kept),
			})
		}
	}

	return domain.RetractionResult{
		Retracted:    append([]domain.EntityID{entity}, retracted...),
		ReEvaluated:  reEvaluated,
		CascadeDepth: maxDepth + 1,
	}
}

// pruneCitations removes owner from the dependents entry of every premise
// referenced by the removed sets but by none of owner's surviving sets.
// This is what holds the reverse index exactly equal to the reverse closure
// of supports through a cascade.
func (g *Graph) pruneCitations(owner domain.EntityID, removed []domain.SupportSet) {
	if len(removed) == 0 {
		return
	}

	var still map[domain.EntityID]struct{}
	if surviving := g.supports[owner]; len(surviving) > 0 {
		still = make(map[domain.EntityID]struct{})
		for _, s := range surviving {
			for _, p := range s.Premises {
				still[p] = struct{}{}
			}
		}
	}

	for _, s := range removed {
		for _, p := range s.Premises {
			if _, cited := still[p]; cited {
				continue
			}
			deps, ok := g.dependents[p]
			if !ok {
				continue
			}
			delete(deps, owner)
			if len(deps) == 0 {
				delete(g.dependents, p)
			}
		}
	}
}
