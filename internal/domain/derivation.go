package domain

import (
	"fmt"
	"sync"
)

// KindTag is the small integer tag a derivation kind is indexed under.
// Tags are a byte-wide registry rather than a closed enum: new reasoning
// strategies register new tags without a storage-format break, because the
// record codec carries kind payloads generically.
type KindTag uint8

const (
	KindExtracted KindTag = iota + 1
	KindSeed
	KindGraphEdge
	KindVsaRecovery
	KindAnalogy
	KindFillerRecovery
	KindReasoned
	KindAggregated

	// Tombstone kinds written by the retraction path.
	KindRetracted
	KindReweighted
)

var (
	kindMu    sync.RWMutex
	kindNames = map[KindTag]string{
		KindExtracted:      "extracted",
		KindSeed:           "seed",
		KindGraphEdge:      "graph_edge",
		KindVsaRecovery:    "vsa_recovery",
		KindAnalogy:        "analogy",
		KindFillerRecovery: "filler_recovery",
		KindReasoned:       "reasoned",
		KindAggregated:     "aggregated",
		KindRetracted:      "retracted",
		KindReweighted:     "reweighted",
	}
	kindTags = func() map[string]KindTag {
		m := make(map[string]KindTag, len(kindNames))
		for tag, name := range kindNames {
			m[name] = tag
		}
		return m
	}()
)

// RegisterKind adds a derivation kind to the registry. It fails if the tag
// or the name is already taken by a different kind.
func RegisterKind(tag KindTag, name string) error {
	if tag == 0 {
		return fmt.Errorf("kind tag must be positive")
	}
	kindMu.Lock()
	defer kindMu.Unlock()
	if existing, ok := kindNames[tag]; ok && existing != name {
		return fmt.Errorf("kind tag %d already registered as %q", tag, existing)
	}
	if existing, ok := kindTags[name]; ok && existing != tag {
		return fmt.Errorf("kind name %q already registered as tag %d", name, existing)
	}
	kindNames[tag] = name
	kindTags[name] = tag
	return nil
}

// KindName returns the registered name for a tag, or "kind_<n>" if unknown.
func KindName(tag KindTag) string {
	kindMu.RLock()
	defer kindMu.RUnlock()
	if name, ok := kindNames[tag]; ok {
		return name
	}
	return fmt.Sprintf("kind_%d", tag)
}

// KindByName resolves a registered kind name to its tag.
func KindByName(name string) (KindTag, bool) {
	kindMu.RLock()
	defer kindMu.RUnlock()
	tag, ok := kindTags[name]
	return tag, ok
}

// DerivationKind describes how a piece of knowledge came to exist. The tag
// selects the variant; the remaining fields are that variant's payload and
// are zero when unused.
type DerivationKind struct {
	Tag        KindTag  `json:"tag"`
	From       EntityID `json:"from,omitempty"`
	Predicate  EntityID `json:"predicate,omitempty"`
	Subject    EntityID `json:"subject,omitempty"`
	A          EntityID `json:"a,omitempty"`
	B          EntityID `json:"b,omitempty"`
	C          EntityID `json:"c,omitempty"`
	Similarity float64  `json:"similarity,omitempty"`
}

func (k DerivationKind) Name() string { return KindName(k.Tag) }

func NewExtracted() DerivationKind { return DerivationKind{Tag: KindExtracted} }

// NewSeed marks a user-asserted fact that was not derived from anything.
func NewSeed() DerivationKind { return DerivationKind{Tag: KindSeed} }

func NewGraphEdge(from, predicate EntityID) DerivationKind {
	return DerivationKind{Tag: KindGraphEdge, From: from, Predicate: predicate}
}

func NewVsaRecovery(from, predicate EntityID, similarity float64) DerivationKind {
	return DerivationKind{Tag: KindVsaRecovery, From: from, Predicate: predicate, Similarity: similarity}
}

func NewAnalogy(a, b, c EntityID) DerivationKind {
	return DerivationKind{Tag: KindAnalogy, A: a, B: b, C: c}
}

func NewFillerRecovery(subject, predicate EntityID) DerivationKind {
	return DerivationKind{Tag: KindFillerRecovery, Subject: subject, Predicate: predicate}
}

func NewReasoned() DerivationKind   { return DerivationKind{Tag: KindReasoned} }
func NewAggregated() DerivationKind { return DerivationKind{Tag: KindAggregated} }

// NewRetracted is the tombstone written when an entity is removed by a
// retraction cascade.
func NewRetracted() DerivationKind { return DerivationKind{Tag: KindRetracted} }

// NewReweighted records a confidence re-evaluation caused by a retraction
// that the entity survived.
func NewReweighted() DerivationKind { return DerivationKind{Tag: KindReweighted} }
