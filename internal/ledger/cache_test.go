package ledger

import (
	"context"
	"testing"
)

func TestConnectionCache_SamePairSharesHandle(t *testing.T) {
	cache := NewConnectionCache("http://localhost:8801")
	ctx := context.Background()

	first, err := cache.ResolveContract(ctx, "Regulator2", "vaccine")
	if err != nil {
		t.Fatalf("ResolveContract() error = %v", err)
	}
	second, err := cache.ResolveContract(ctx, "Regulator2", "vaccine")
	if err != nil {
		t.Fatalf("ResolveContract() error = %v", err)
	}

	if first != second {
		t.Error("the same (identity, contract) pair should share one handle")
	}
}

func TestConnectionCache_DistinctPairs(t *testing.T) {
	cache := NewConnectionCache("http://localhost:8801")
	ctx := context.Background()

	base, err := cache.ResolveContract(ctx, "Regulator2", "vaccine")
	if err != nil {
		t.Fatalf("ResolveContract() error = %v", err)
	}

	otherContract, err := cache.ResolveContract(ctx, "Regulator2", "shipment")
	if err != nil {
		t.Fatalf("ResolveContract() error = %v", err)
	}
	if base == otherContract {
		t.Error("different contract names must not share a handle")
	}

	otherIdentity, err := cache.ResolveContract(ctx, "Manufacturer1", "vaccine")
	if err != nil {
		t.Fatalf("ResolveContract() error = %v", err)
	}
	if base == otherIdentity {
		t.Error("different identities must not share a handle")
	}
}

func TestConnectionCache_Validation(t *testing.T) {
	cache := NewConnectionCache("http://localhost:8801")
	ctx := context.Background()

	if _, err := cache.ResolveContract(ctx, "", "vaccine"); err == nil {
		t.Error("ResolveContract() should reject an empty identity")
	}
	if _, err := cache.ResolveContract(ctx, "Regulator2", ""); err == nil {
		t.Error("ResolveContract() should reject an empty contract name")
	}
}
