package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"github.com/Toasterson/akh-medu-sub004/internal/domain"
)

func openTestResolver(t *testing.T) *Resolver {
	t.Helper()
	db, err := OpenInMemory()
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	resolver, err := NewResolver(db, zap.NewNop())
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	return resolver
}

func TestResolver_ResolveIsStable(t *testing.T) {
	resolver := openTestResolver(t)
	ctx := context.Background()

	first, err := resolver.Resolve(ctx, "socrates")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !first.Valid() {
		t.Fatalf("allocated id %d is not valid", first)
	}

	again, err := resolver.Resolve(ctx, "socrates")
	if err != nil {
		t.Fatalf("resolve again: %v", err)
	}
	if again != first {
		t.Errorf("second resolve = %d, want %d", again, first)
	}

	other, err := resolver.Resolve(ctx, "plato")
	if err != nil {
		t.Fatalf("resolve other: %v", err)
	}
	if other == first {
		t.Errorf("distinct labels share id %d", first)
	}
}

func TestResolver_RejectsEmptyLabel(t *testing.T) {
	resolver := openTestResolver(t)

	if _, err := resolver.Resolve(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty label")
	}
}

func TestResolver_LookupDoesNotAllocate(t *testing.T) {
	resolver := openTestResolver(t)
	ctx := context.Background()

	if _, err := resolver.Lookup(ctx, "unseen"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("lookup error = %v, want ErrNotFound", err)
	}

	id, err := resolver.Resolve(ctx, "seen")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	got, err := resolver.Lookup(ctx, "seen")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got != id {
		t.Errorf("lookup = %d, want %d", got, id)
	}
}

func TestResolver_NameOfRoundTrip(t *testing.T) {
	resolver := openTestResolver(t)
	ctx := context.Background()

	id, err := resolver.Resolve(ctx, "aristotle")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	name, err := resolver.NameOf(ctx, id)
	if err != nil {
		t.Fatalf("name of: %v", err)
	}
	if name != "aristotle" {
		t.Errorf("name = %q, want %q", name, "aristotle")
	}

	if _, err := resolver.NameOf(ctx, domain.EntityID(99999)); !errors.Is(err, ErrNotFound) {
		t.Errorf("name of unknown id: error = %v, want ErrNotFound", err)
	}
}

func TestResolver_CounterRecoveryOnReopen(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{Path: dir}
	ctx := context.Background()

	db, err := Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	resolver, err := NewResolver(db, zap.NewNop())
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}

	var maxID domain.EntityID
	for i := 0; i < 4; i++ {
		id, err := resolver.Resolve(ctx, fmt.Sprintf("entity-%d", i))
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if id > maxID {
			maxID = id
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

	reopened, err := NewResolver(db, zap.NewNop())
	if err != nil {
		t.Fatalf("reattach resolver: %v", err)
	}

	// Existing labels keep their identifiers.
	id, err := reopened.Resolve(ctx, "entity-0")
	if err != nil {
		t.Fatalf("resolve after reopen: %v", err)
	}
	if id == domain.NoEntity || id > maxID {
		t.Errorf("entity-0 resolved to %d after reopen, want a previously allocated id", id)
	}

	// Fresh labels allocate strictly above the recovered maximum.
	fresh, err := reopened.Resolve(ctx, "entity-new")
	if err != nil {
		t.Fatalf("resolve fresh: %v", err)
	}
	if fresh <= maxID {
		t.Errorf("fresh id %d not above recovered maximum %d", fresh, maxID)
	}
}
