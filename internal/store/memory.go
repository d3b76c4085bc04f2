package store

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store used by tests and the dev backend. With
// autoEmit enabled every mutation pushes a fresh snapshot to the collection's
// subscribers; with it disabled emissions happen only through Emit, which
// lets tests drive the feed deterministically.
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string][]Document
	subs        map[string][]*memorySub
	autoEmit    bool
}

type memorySub struct {
	ch     chan Event
	closed bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string][]Document),
		subs:        make(map[string][]*memorySub),
		autoEmit:    true,
	}
}

// NewManualMemoryStore returns a store that never emits on its own.
func NewManualMemoryStore() *MemoryStore {
	s := NewMemoryStore()
	s.autoEmit = false
	return s
}

func (s *MemoryStore) Subscribe(ctx context.Context, collection string) (<-chan Event, error) {
	sub := &memorySub{ch: make(chan Event, 16)}

	s.mu.Lock()
	s.subs[collection] = append(s.subs[collection], sub)
	sub.ch <- Event{Docs: s.snapshotLocked(collection)}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.remove(collection, sub)
	}()

	return sub.ch, nil
}

func (s *MemoryStore) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	id := uuid.New().String()

	s.mu.Lock()
	s.collections[collection] = append(s.collections[collection], Document{
		ID:     id,
		Fields: copyFields(fields),
	})
	s.mu.Unlock()

	if s.autoEmit {
		s.Emit(collection)
	}
	return id, nil
}

func (s *MemoryStore) Update(ctx context.Context, doc string, fields map[string]any) error {
	collection, id, err := SplitDoc(doc)
	if err != nil {
		return err
	}

	s.mu.Lock()
	docs := s.collections[collection]
	for i := range docs {
		if docs[i].ID == id {
			for k, v := range fields {
				docs[i].Fields[k] = v
			}
			break
		}
	}
	s.mu.Unlock()

	if s.autoEmit {
		s.Emit(collection)
	}
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, doc string) error {
	collection, id, err := SplitDoc(doc)
	if err != nil {
		return err
	}

	s.mu.Lock()
	docs := s.collections[collection]
	for i := range docs {
		if docs[i].ID == id {
			s.collections[collection] = append(docs[:i:i], docs[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	if s.autoEmit {
		s.Emit(collection)
	}
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for collection, subs := range s.subs {
		for _, sub := range subs {
			if !sub.closed {
				sub.closed = true
				close(sub.ch)
			}
		}
		delete(s.subs, collection)
	}
	return nil
}

// Emit pushes the current document set of a collection to its subscribers.
func (s *MemoryStore) Emit(collection string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev := Event{Docs: s.snapshotLocked(collection)}
	for _, sub := range s.subs[collection] {
		sub.send(ev)
	}
}

// Fail delivers a terminal error to every subscriber of a collection and
// closes their channels.
func (s *MemoryStore) Fail(collection string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs[collection] {
		sub.send(Event{Err: err})
		if !sub.closed {
			sub.closed = true
			close(sub.ch)
		}
	}
	s.subs[collection] = nil
}

func (s *MemoryStore) remove(collection string, target *memorySub) {
	s.mu.Lock()
	defer s.mu.Unlock()
	subs := s.subs[collection]
	for i, sub := range subs {
		if sub == target {
			s.subs[collection] = append(subs[:i:i], subs[i+1:]...)
			if !sub.closed {
				sub.closed = true
				close(sub.ch)
			}
			return
		}
	}
}

func (s *MemoryStore) snapshotLocked(collection string) []Document {
	docs := s.collections[collection]
	out := make([]Document, len(docs))
	for i, d := range docs {
		out[i] = Document{ID: d.ID, Fields: copyFields(d.Fields)}
	}
	return out
}

func (sub *memorySub) send(ev Event) {
	if sub.closed {
		return
	}
	select {
	case sub.ch <- ev:
	default:
		// Slow subscriber: drop the oldest pending event to make room.
		select {
		case <-sub.ch:
		default:
		}
		select {
		case sub.ch <- ev:
		default:
		}
	}
}

func copyFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
