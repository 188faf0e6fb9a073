package graph

import (
	"path/filepath"
	"sync"
	"testing"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInitAndLoadState(t *testing.T) {
	s := tempStore(t)

	_, ok, err := s.LoadState("default")
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if ok {
		t.Fatal("expected no state before init")
	}

	st, err := s.InitState("default", "run-1", NodeContextIngested)
	if err != nil {
		t.Fatalf("InitState: %v", err)
	}
	if st.Epoch != 0 {
		t.Fatalf("expected epoch 0, got %d", st.Epoch)
	}

	loaded, ok, err := s.LoadState("default")
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if !ok {
		t.Fatal("expected state after init")
	}
	if loaded.LastNode != NodeContextIngested || loaded.RunID != "run-1" {
		t.Fatalf("unexpected state: %+v", loaded)
	}
}

func TestInitStateRejectsDuplicateScope(t *testing.T) {
	s := tempStore(t)
	if _, err := s.InitState("default", "run-1", NodeContextIngested); err != nil {
		t.Fatalf("InitState: %v", err)
	}
	if _, err := s.InitState("default", "run-2", NodeContextIngested); err == nil {
		t.Fatal("expected duplicate init to fail")
	}
}

func TestApplyTransitionIncrementsEpoch(t *testing.T) {
	s := tempStore(t)
	if _, err := s.InitState("default", "run-1", NodeContextIngested); err != nil {
		t.Fatalf("InitState: %v", err)
	}

	res, err := s.ApplyTransition("default", 0, NodeFactsExtracted)
	if err != nil {
		t.Fatalf("ApplyTransition: %v", err)
	}
	if !res.Applied || res.Conflict {
		t.Fatalf("expected applied, got %+v", res)
	}
	if res.State.Epoch != 1 {
		t.Fatalf("expected epoch 1, got %d", res.State.Epoch)
	}

	loaded, _, err := s.LoadState("default")
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if loaded.Epoch != 1 || loaded.LastNode != NodeFactsExtracted {
		t.Fatalf("unexpected state after apply: %+v", loaded)
	}
}

func TestApplyTransitionCarriesRunID(t *testing.T) {
	s := tempStore(t)
	if _, err := s.InitState("default", "run-1", NodeContextIngested); err != nil {
		t.Fatalf("InitState: %v", err)
	}

	res, err := s.ApplyTransition("default", 0, NodeFactsExtracted)
	if err != nil {
		t.Fatalf("ApplyTransition: %v", err)
	}
	if !res.Applied {
		t.Fatalf("expected applied, got %+v", res)
	}
	if res.State.RunID != "run-1" {
		t.Fatalf("applied state lost run id: %+v", res.State)
	}
}

func TestApplyTransitionStaleEpochConflicts(t *testing.T) {
	s := tempStore(t)
	if _, err := s.InitState("default", "run-1", NodeContextIngested); err != nil {
		t.Fatalf("InitState: %v", err)
	}
	if _, err := s.ApplyTransition("default", 0, NodeFactsExtracted); err != nil {
		t.Fatalf("first apply: %v", err)
	}

	res, err := s.ApplyTransition("default", 0, NodeDriftChecked)
	if err != nil {
		t.Fatalf("stale apply returned error: %v", err)
	}
	if res.Applied || !res.Conflict {
		t.Fatalf("expected conflict, got %+v", res)
	}
	if res.State.Epoch != 1 || res.State.LastNode != NodeFactsExtracted {
		t.Fatalf("conflict did not carry fresh state: %+v", res.State)
	}
}

func TestApplyTransitionUnknownScope(t *testing.T) {
	s := tempStore(t)
	if _, err := s.ApplyTransition("ghost", 0, NodeFactsExtracted); err == nil {
		t.Fatal("expected error for uninitialized scope")
	}
}

func TestApplyTransitionUnknownNode(t *testing.T) {
	s := tempStore(t)
	if _, err := s.InitState("default", "run-1", NodeContextIngested); err != nil {
		t.Fatalf("InitState: %v", err)
	}
	if _, err := s.ApplyTransition("default", 0, Node("Bogus")); err == nil {
		t.Fatal("expected error for unknown node")
	}
}

func TestConcurrentApplySameEpochExactlyOneWins(t *testing.T) {
	s := tempStore(t)
	if _, err := s.InitState("default", "run-1", NodeContextIngested); err != nil {
		t.Fatalf("InitState: %v", err)
	}

	const writers = 8
	var wg sync.WaitGroup
	results := make([]TransitionResult, writers)
	errs := make([]error, writers)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = s.ApplyTransition("default", 0, NodeFactsExtracted)
		}(i)
	}
	wg.Wait()

	applied := 0
	conflicts := 0
	for i := 0; i < writers; i++ {
		if errs[i] != nil {
			t.Fatalf("writer %d error: %v", i, errs[i])
		}
		if results[i].Applied {
			applied++
		}
		if results[i].Conflict {
			conflicts++
		}
	}
	if applied != 1 {
		t.Fatalf("expected exactly 1 applied, got %d", applied)
	}
	if conflicts != writers-1 {
		t.Fatalf("expected %d conflicts, got %d", writers-1, conflicts)
	}

	loaded, _, err := s.LoadState("default")
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if loaded.Epoch != 1 {
		t.Fatalf("expected epoch 1 after race, got %d", loaded.Epoch)
	}
}
