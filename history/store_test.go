package history

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInsertAndList(t *testing.T) {
	s := openTestStore(t)

	id, err := s.Insert(Entry{
		RoleName:     "Tiz",
		SourceArea:   "Luxendarc",
		SourceServer: "Yulyana",
		TargetArea:   "Eternia",
		TargetServer: "Braev",
		Succeeded:    true,
		OrderID:      "GM123",
		Attempts:     3,
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if id == "" {
		t.Fatal("Insert returned empty id")
	}

	entries, err := s.List(10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.ID != id {
		t.Errorf("id = %q, want %q", e.ID, id)
	}
	if e.RoleName != "Tiz" || e.TargetServer != "Braev" || !e.Succeeded {
		t.Errorf("entry = %+v", e)
	}
	if e.OrderID != "GM123" || e.Attempts != 3 {
		t.Errorf("order id/attempts = %q/%d, want GM123/3", e.OrderID, e.Attempts)
	}
	if e.CreatedAt == "" {
		t.Error("created_at not populated")
	}
}

func TestListLimit(t *testing.T) {
	s := openTestStore(t)
	for i := 0; i < 5; i++ {
		if _, err := s.Insert(Entry{RoleName: "Tiz"}); err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
	}

	entries, err := s.List(3)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("got %d entries, want 3", len(entries))
	}
}

func TestListEmpty(t *testing.T) {
	s := openTestStore(t)
	entries, err := s.List(0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("got %d entries, want 0", len(entries))
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s1, err := Open(path)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	if _, err := s1.Insert(Entry{RoleName: "Tiz"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	defer s2.Close()

	entries, err := s2.List(10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("got %d entries after reopen, want 1", len(entries))
	}
}
