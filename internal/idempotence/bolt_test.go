package idempotence

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "idempotence.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMarkDone(t *testing.T) {
	s := openTestStore(t)

	ok, err := s.MarkDone("u1:2025-03:pdf")
	if err != nil || !ok {
		t.Fatalf("expected first mark to succeed, got ok=%v err=%v", ok, err)
	}

	ok, err = s.MarkDone("u1:2025-03:pdf")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected second mark of the same id to report false")
	}

	ok, _ = s.MarkDone("u1:2025-04:pdf")
	if !ok {
		t.Error("expected a different id to be accepted")
	}
}

func TestSeenAndForget(t *testing.T) {
	s := openTestStore(t)

	seen, err := s.Seen("m1")
	if err != nil || seen {
		t.Fatalf("expected unseen id, got seen=%v err=%v", seen, err)
	}

	if _, err := s.MarkDone("m1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen, _ := s.Seen("m1"); !seen {
		t.Error("expected id to be seen after MarkDone")
	}

	if err := s.Forget("m1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen, _ := s.Seen("m1"); seen {
		t.Error("expected id to be forgotten")
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idempotence.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	if _, err := s.MarkDone("m1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer s.Close()

	if seen, _ := s.Seen("m1"); !seen {
		t.Error("expected id to survive reopen")
	}
}
