package store

import (
	"context"
	"testing"
	"time"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:", 10*time.Millisecond)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	id, err := s.Create(ctx, testCollection, map[string]any{
		"title":     "Hello",
		"content":   "World",
		"timestamp": int64(1234),
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	docs, err := s.queryDocuments(testCollection)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("Expected 1 doc, got %d", len(docs))
	}
	if docs[0].ID != id {
		t.Errorf("Expected id %q, got %q", id, docs[0].ID)
	}
	if docs[0].Fields["title"] != "Hello" {
		t.Errorf("Expected title Hello, got %v", docs[0].Fields["title"])
	}
	// JSON numbers decode as float64
	if docs[0].Fields["timestamp"] != float64(1234) {
		t.Errorf("Expected timestamp 1234, got %v", docs[0].Fields["timestamp"])
	}
}

func TestSQLiteStoreArrivalOrder(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	var ids []string
	for _, title := range []string{"a", "b", "c"} {
		id, err := s.Create(ctx, testCollection, map[string]any{"title": title})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}

	docs, err := s.queryDocuments(testCollection)
	if err != nil {
		t.Fatal(err)
	}
	for i, doc := range docs {
		if doc.ID != ids[i] {
			t.Errorf("Doc %d: expected id %q, got %q", i, ids[i], doc.ID)
		}
	}
}

func TestSQLiteStoreUpdateMergesFields(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	id, _ := s.Create(ctx, testCollection, map[string]any{
		"title":     "old",
		"content":   "body",
		"timestamp": int64(42),
	})

	if err := s.Update(ctx, testCollection+"/"+id, map[string]any{"title": "new"}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	docs, _ := s.queryDocuments(testCollection)
	if docs[0].Fields["title"] != "new" {
		t.Errorf("Expected updated title, got %v", docs[0].Fields["title"])
	}
	if docs[0].Fields["content"] != "body" {
		t.Errorf("Expected content untouched, got %v", docs[0].Fields["content"])
	}
	if docs[0].Fields["timestamp"] != float64(42) {
		t.Errorf("Expected timestamp untouched, got %v", docs[0].Fields["timestamp"])
	}
}

func TestSQLiteStoreUpdateMissingIsNoOp(t *testing.T) {
	s := newTestSQLiteStore(t)

	err := s.Update(context.Background(), testCollection+"/nope", map[string]any{"title": "x"})
	if err != nil {
		t.Fatalf("Expected silent no-op, got %v", err)
	}
}

func TestSQLiteStoreDelete(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	id, _ := s.Create(ctx, testCollection, map[string]any{"title": "a"})

	if err := s.Delete(ctx, testCollection+"/"+id); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	docs, _ := s.queryDocuments(testCollection)
	if len(docs) != 0 {
		t.Errorf("Expected no docs after delete, got %d", len(docs))
	}

	// Deleting again is not an error
	if err := s.Delete(ctx, testCollection+"/"+id); err != nil {
		t.Errorf("Expected repeat delete to be silent, got %v", err)
	}
}

func TestSQLiteStoreSubscribePicksUpChanges(t *testing.T) {
	s := newTestSQLiteStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := s.Subscribe(ctx, testCollection)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	ev := recvEvent(t, ch)
	if len(ev.Docs) != 0 {
		t.Fatalf("Expected empty initial snapshot, got %d docs", len(ev.Docs))
	}

	id, err := s.Create(ctx, testCollection, map[string]any{"title": "live"})
	if err != nil {
		t.Fatal(err)
	}

	ev = recvEvent(t, ch)
	if ev.Err != nil {
		t.Fatalf("Unexpected error event: %v", ev.Err)
	}
	if len(ev.Docs) != 1 || ev.Docs[0].ID != id {
		t.Fatalf("Expected the created doc, got %+v", ev.Docs)
	}
}

func TestSQLiteStoreSubscribeClosesOnCancel(t *testing.T) {
	s := newTestSQLiteStore(t)

	ctx, cancel := context.WithCancel(context.Background())

	ch, err := s.Subscribe(ctx, testCollection)
	if err != nil {
		t.Fatal(err)
	}
	recvEvent(t, ch)

	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("Expected no further events after cancel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for channel close")
	}
}
