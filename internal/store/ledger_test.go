package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/Toasterson/akh-medu-sub004/internal/domain"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	db, err := OpenInMemory()
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ledger, err := NewLedger(db, zap.NewNop())
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	return ledger
}

func seedRecord(derived domain.EntityID, sources ...domain.EntityID) *domain.ProvenanceRecord {
	kind := domain.NewSeed()
	if len(sources) > 0 {
		kind = domain.NewReasoned()
	}
	rec := domain.NewProvenanceRecord(derived, sources, kind, 0.8)
	rec.Timestamp = 1700000000
	return rec
}

func TestLedger_StoreAssignsIncreasingIDs(t *testing.T) {
	ledger := openTestLedger(t)
	ctx := context.Background()

	var prev domain.EntityID
	for i := 0; i < 10; i++ {
		id, err := ledger.Store(ctx, seedRecord(domain.EntityID(100+i)))
		if err != nil {
			t.Fatalf("store: %v", err)
		}
		if id <= prev {
			t.Fatalf("id %d not strictly greater than previous %d", id, prev)
		}
		prev = id
	}
}

func TestLedger_StoreStampsRecordID(t *testing.T) {
	ledger := openTestLedger(t)

	rec := seedRecord(5)
	id, err := ledger.Store(context.Background(), rec)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if rec.ID != id {
		t.Errorf("record id = %d, want %d", rec.ID, id)
	}
}

func TestLedger_StoreRejectsInvalidRecords(t *testing.T) {
	ledger := openTestLedger(t)
	ctx := context.Background()

	cases := []*domain.ProvenanceRecord{
		{Kind: domain.NewSeed(), Confidence: 0.5},                 // no derived id
		{DerivedID: 1, Confidence: 0.5},                           // no kind
		{DerivedID: 1, Kind: domain.NewSeed(), Confidence: 1.5},   // confidence out of range
		{DerivedID: 1, Kind: domain.NewSeed(), Confidence: -0.1},  // confidence out of range
		{DerivedID: 1, Kind: domain.NewSeed(), Sources: []domain.EntityID{0}}, // zero source
	}
	for i, rec := range cases {
		if _, err := ledger.Store(ctx, rec); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}

func TestLedger_GetRoundTrip(t *testing.T) {
	ledger := openTestLedger(t)
	ctx := context.Background()

	rec := domain.NewProvenanceRecord(20, []domain.EntityID{7, 8}, domain.NewGraphEdge(7, 3), 0.9)
	rec.Depth = 4
	id, err := ledger.Store(ctx, rec)
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	got, err := ledger.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.DerivedID != 20 || got.Depth != 4 || got.Kind.Tag != domain.KindGraphEdge {
		t.Errorf("got %+v, want stored record back", got)
	}
}

func TestLedger_GetMissingIsNotFound(t *testing.T) {
	ledger := openTestLedger(t)

	_, err := ledger.Get(context.Background(), 9999)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.ID != 9999 {
		t.Errorf("error %v does not carry the missing id", err)
	}
}

func TestLedger_IndexCompleteness(t *testing.T) {
	ledger := openTestLedger(t)
	ctx := context.Background()

	rec := domain.NewProvenanceRecord(50, []domain.EntityID{60, 61}, domain.NewReasoned(), 0.7)
	id, err := ledger.Store(ctx, rec)
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	byDerived, err := ledger.ByDerived(ctx, 50)
	if err != nil {
		t.Fatalf("by derived: %v", err)
	}
	if len(byDerived) != 1 || byDerived[0].ID != id {
		t.Errorf("by_derived(50) = %+v, want the stored record", byDerived)
	}

	for _, src := range []domain.EntityID{60, 61} {
		bySource, err := ledger.BySource(ctx, src)
		if err != nil {
			t.Fatalf("by source %d: %v", src, err)
		}
		if len(bySource) != 1 || bySource[0].ID != id {
			t.Errorf("by_source(%d) = %+v, want the stored record", src, bySource)
		}
	}

	byKind, err := ledger.ByKind(ctx, domain.KindReasoned)
	if err != nil {
		t.Fatalf("by kind: %v", err)
	}
	if len(byKind) != 1 || byKind[0].ID != id {
		t.Errorf("by_kind(reasoned) = %+v, want the stored record", byKind)
	}
}

func TestLedger_QueriesReturnEmptyForUnknownKeys(t *testing.T) {
	ledger := openTestLedger(t)
	ctx := context.Background()

	if recs, err := ledger.ByDerived(ctx, 12345); err != nil || len(recs) != 0 {
		t.Errorf("by_derived on empty ledger = %v, %v", recs, err)
	}
	if recs, err := ledger.BySource(ctx, 12345); err != nil || len(recs) != 0 {
		t.Errorf("by_source on empty ledger = %v, %v", recs, err)
	}
	if recs, err := ledger.ByKind(ctx, domain.KindAnalogy); err != nil || len(recs) != 0 {
		t.Errorf("by_kind on empty ledger = %v, %v", recs, err)
	}
}

func TestLedger_StoreBatch(t *testing.T) {
	ledger := openTestLedger(t)
	ctx := context.Background()

	recs := []*domain.ProvenanceRecord{
		seedRecord(1),
		seedRecord(2, 1),
		seedRecord(3, 1, 2),
	}
	ids, err := ledger.StoreBatch(ctx, recs)
	if err != nil {
		t.Fatalf("store batch: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("ids = %v, want 3", ids)
	}
	for i := 1; i < len(ids); i++ {
		if ids[i] <= ids[i-1] {
			t.Errorf("batch ids %v not strictly increasing", ids)
		}
	}

	// Every batch member must be visible through every index.
	uses, err := ledger.BySource(ctx, 1)
	if err != nil {
		t.Fatalf("by source: %v", err)
	}
	if len(uses) != 2 {
		t.Errorf("by_source(1) = %d records, want 2", len(uses))
	}
}

func TestLedger_StoreBatchRejectsWholeBatchOnInvalidRecord(t *testing.T) {
	ledger := openTestLedger(t)
	ctx := context.Background()

	recs := []*domain.ProvenanceRecord{
		seedRecord(1),
		{DerivedID: 0, Kind: domain.NewSeed()}, // invalid
	}
	if _, err := ledger.StoreBatch(ctx, recs); err == nil {
		t.Fatal("expected validation error")
	}

	// Nothing from the failed batch may be visible.
	if recs, err := ledger.ByDerived(ctx, 1); err != nil || len(recs) != 0 {
		t.Errorf("by_derived(1) after failed batch = %v, %v, want empty", recs, err)
	}
}

func TestLedger_RecoveryResumesAboveMaxID(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{Path: dir}
	ctx := context.Background()

	db, err := Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	ledger, err := NewLedger(db, zap.NewNop())
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}

	var lastID domain.EntityID
	for i := 0; i < 5; i++ {
		if lastID, err = ledger.Store(ctx, seedRecord(domain.EntityID(10+i))); err != nil {
			t.Fatalf("store: %v", err)
		}
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db, err = Open(cfg)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	reopened, err := NewLedger(db, zap.NewNop())
	if err != nil {
		t.Fatalf("reattach ledger: %v", err)
	}

	// Old records survive.
	if _, err := reopened.Get(ctx, lastID); err != nil {
		t.Fatalf("get after reopen: %v", err)
	}

	// New identifiers continue strictly above the recovered maximum.
	id, err := reopened.Store(ctx, seedRecord(99))
	if err != nil {
		t.Fatalf("store after reopen: %v", err)
	}
	if id <= lastID {
		t.Errorf("id after reopen = %d, want > %d", id, lastID)
	}
}

func TestLedger_ConcurrentStoresGetDistinctIDs(t *testing.T) {
	ledger := openTestLedger(t)
	ctx := context.Background()

	const workers = 8
	const perWorker = 25

	var mu sync.Mutex
	seen := make(map[domain.EntityID]struct{})
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				id, err := ledger.Store(ctx, seedRecord(domain.EntityID(1000+w)))
				if err != nil {
					t.Errorf("store: %v", err)
					return
				}
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()

	if len(seen) != workers*perWorker {
		t.Errorf("distinct ids = %d, want %d", len(seen), workers*perWorker)
	}
}
