package testsupport

import (
	"context"
	"testing"

	"loomline/internal/config"
	"loomline/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// SeedUser creates a user for tests.
func SeedUser(t testing.TB, st *store.Store, username, fullName, role string) *store.User {
	t.Helper()

	user, err := st.CreateUser(context.Background(), username, fullName, role)
	if err != nil {
		t.Fatalf("store.CreateUser: %v", err)
	}
	return user
}

// SeedProduct creates a product for tests.
func SeedProduct(t testing.TB, st *store.Store, code, name string) *store.Product {
	t.Helper()

	product, err := st.CreateProduct(context.Background(), code, name)
	if err != nil {
		t.Fatalf("store.CreateProduct: %v", err)
	}
	return product
}

// SeedStage resolves a seeded stage by sequence position.
func SeedStage(t testing.TB, st *store.Store, sequence int64) *store.Stage {
	t.Helper()

	stage, err := st.GetStageBySequence(context.Background(), sequence)
	if err != nil {
		t.Fatalf("store.GetStageBySequence(%d): %v", sequence, err)
	}
	return stage
}

// ActivatePair opens a (product, stage) pair for tests.
func ActivatePair(t testing.TB, st *store.Store, productID, stageID int64) *store.ActiveStage {
	t.Helper()

	active, err := st.ActivateStage(context.Background(), productID, stageID, store.ActivateOptions{})
	if err != nil {
		t.Fatalf("store.ActivateStage: %v", err)
	}
	return active
}

// AssignWorker attaches a worker to a pair for tests.
func AssignWorker(t testing.TB, st *store.Store, productID, stageID, userID int64) *store.WorkerAssignment {
	t.Helper()

	assignment, err := st.AssignWorker(context.Background(), productID, stageID, userID)
	if err != nil {
		t.Fatalf("store.AssignWorker: %v", err)
	}
	return assignment
}
