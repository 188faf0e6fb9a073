package drift

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func tempSource(t *testing.T) *SQLSource {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	s, err := NewSQLSource(db)
	if err != nil {
		t.Fatalf("NewSQLSource: %v", err)
	}
	return s
}

func TestCurrentDefaultsToNone(t *testing.T) {
	s := tempSource(t)
	st, err := s.Current(context.Background(), "default")
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if st.Level != "none" || len(st.Types) != 0 {
		t.Fatalf("expected none drift, got %+v", st)
	}
}

func TestRecordAndCurrentLatestWins(t *testing.T) {
	s := tempSource(t)

	if err := s.Record("default", State{Level: "low", Types: []string{"fact_drift"}}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := s.Record("default", State{Level: "high", Types: []string{"goal_drift", "fact_drift"}}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	st, err := s.Current(context.Background(), "default")
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if st.Level != "high" {
		t.Fatalf("expected latest report, got %+v", st)
	}
	if len(st.Types) != 2 || st.Types[0] != "goal_drift" {
		t.Fatalf("types not preserved: %+v", st.Types)
	}
}

func TestCurrentScopesIsolated(t *testing.T) {
	s := tempSource(t)
	if err := s.Record("other", State{Level: "high"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	st, err := s.Current(context.Background(), "default")
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if st.Level != "none" {
		t.Fatalf("drift leaked across scopes: %+v", st)
	}
}
