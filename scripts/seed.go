// Seed script for populating a demo knowledge base.
// Run with: go run ./scripts
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Toasterson/akh-medu-sub004/internal/domain"
	"github.com/Toasterson/akh-medu-sub004/internal/service"
	"github.com/Toasterson/akh-medu-sub004/internal/store"
	"github.com/Toasterson/akh-medu-sub004/internal/tms"
)

func main() {
	envFile := os.Getenv("MEDU_ENV")
	if envFile == "" {
		envFile = ".env"
	}
	_ = godotenv.Load(envFile)
	_ = godotenv.Load(envFile + ".secret")

	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		dataDir = "data"
	}

	ctx := context.Background()
	logger := zap.NewNop()

	db, err := store.Open(store.DefaultConfig(dataDir))
	if err != nil {
		log.Fatalf("Failed to open store at %s: %v", dataDir, err)
	}
	defer db.Close()

	resolver, err := store.NewResolver(db, logger)
	if err != nil {
		log.Fatalf("Failed to attach resolver: %v", err)
	}
	ledger, err := store.NewLedger(db, logger)
	if err != nil {
		log.Fatalf("Failed to attach ledger: %v", err)
	}
	truth := service.NewRetractionService(tms.New(), ledger, logger)
	provenance := service.NewProvenanceService(ledger, resolver, logger)

	fmt.Printf("Opened store at %s\n", dataDir)

	// Axioms are seeded as bare assertions; everything else carries a
	// support set naming its premises.
	axioms := []string{
		"socrates-is-a-man",
		"all-men-are-mortal",
		"plato-is-a-man",
	}
	ids := make(map[string]domain.EntityID)
	for _, label := range axioms {
		id, err := resolver.Resolve(ctx, label)
		if err != nil {
			log.Fatalf("Failed to resolve %q: %v", label, err)
		}
		ids[label] = id
		if _, err := provenance.Record(ctx, domain.NewProvenanceRecord(id, nil, domain.NewSeed(), 1.0)); err != nil {
			log.Fatalf("Failed to record seed %q: %v", label, err)
		}
		fmt.Printf("Seeded axiom %q as entity %d\n", label, id)
	}

	derivations := []struct {
		label      string
		premises   []string
		confidence float64
	}{
		{"socrates-is-mortal", []string{"socrates-is-a-man", "all-men-are-mortal"}, 0.95},
		{"plato-is-mortal", []string{"plato-is-a-man", "all-men-are-mortal"}, 0.95},
	}
	for _, d := range derivations {
		id, err := resolver.Resolve(ctx, d.label)
		if err != nil {
			log.Fatalf("Failed to resolve %q: %v", d.label, err)
		}
		ids[d.label] = id

		premises := make([]domain.EntityID, len(d.premises))
		for i, p := range d.premises {
			premises[i] = ids[p]
		}
		recID, err := truth.AddSupport(ctx, id, domain.SupportSet{
			Premises:   premises,
			Kind:       domain.NewReasoned(),
			Confidence: d.confidence,
		})
		if err != nil {
			log.Fatalf("Failed to add support for %q: %v", d.label, err)
		}
		fmt.Printf("Derived %q as entity %d (record %d)\n", d.label, id, recID)
	}

	fmt.Println()
	fmt.Println("Seed complete!")
	fmt.Printf("Entities: %d, next record id: %d\n", len(ids), ledger.NextID())
}
