// Package feed keeps a local, ordered snapshot of the post collection in
// lockstep with the document store's live subscription. Each store emission
// replaces the snapshot wholesale; nothing here diffs or patches.
package feed

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dmelim/folio/internal/config"
	"github.com/dmelim/folio/internal/model"
	"github.com/dmelim/folio/internal/store"
)

var feedLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	feedLogger = l
}

type State int

const (
	Closed State = iota
	Subscribing
	Live
)

func (s State) String() string {
	switch s {
	case Subscribing:
		return "subscribing"
	case Live:
		return "live"
	default:
		return "closed"
	}
}

// Snapshot is the complete ordered post set as of one feed emission, most
// recent first.
type Snapshot struct {
	Posts []model.Post
}

// Synchronizer owns the single live subscription. At most one is open at a
// time; Subscribe closes the previous one before opening the next, so a
// stale subscription can never feed the snapshot.
type Synchronizer struct {
	store store.Store
	appID string

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}
	posts  []model.Post
	err    error
}

func New(st store.Store, appID string) *Synchronizer {
	return &Synchronizer{
		store: st,
		appID: appID,
	}
}

// Subscribe opens the live feed for an identity. The returned channel emits
// one Snapshot per store emission, in emission order, and closes on
// cancellation or on a store error. After an error the last good snapshot
// stays available through Snapshot() and the error through Err().
func (s *Synchronizer) Subscribe(ctx context.Context, id model.Identity) (<-chan Snapshot, error) {
	s.Close()

	collection := config.PostsCollection(s.appID, string(id))

	subCtx, cancel := context.WithCancel(ctx)
	events, err := s.store.Subscribe(subCtx, collection)
	if err != nil {
		cancel()
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		return nil, err
	}

	done := make(chan struct{})
	out := make(chan Snapshot, 16)

	s.mu.Lock()
	s.state = Subscribing
	s.cancel = cancel
	s.done = done
	// The previous identity's posts must never show under the new one.
	s.posts = nil
	s.err = nil
	s.mu.Unlock()

	feedLogger.Info().Str("collection", collection).Msg("Subscription opened")

	go s.run(events, out, done)

	return out, nil
}

func (s *Synchronizer) run(events <-chan store.Event, out chan Snapshot, done chan struct{}) {
	defer func() {
		s.mu.Lock()
		s.state = Closed
		s.mu.Unlock()
		close(out)
		close(done)
	}()

	for ev := range events {
		if ev.Err != nil {
			// Keep the last good snapshot on display, surface the error.
			s.mu.Lock()
			s.err = ev.Err
			s.mu.Unlock()
			feedLogger.Warn().Err(ev.Err).Msg("Subscription error, keeping stale snapshot")
			return
		}

		posts := decodePosts(ev.Docs)

		s.mu.Lock()
		s.posts = posts
		s.state = Live
		s.mu.Unlock()

		push(out, Snapshot{Posts: posts})
	}
}

// push delivers the latest snapshot, dropping the oldest queued one if the
// consumer lags. Newer snapshots always supersede older ones.
func push(out chan Snapshot, snap Snapshot) {
	select {
	case out <- snap:
	default:
		select {
		case <-out:
		default:
		}
		select {
		case out <- snap:
		default:
		}
	}
}

// Snapshot returns the last good post set. It stays valid after a
// subscription error (stale but available).
func (s *Synchronizer) Snapshot() []model.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Post, len(s.posts))
	copy(out, s.posts)
	return out
}

// Err returns the subscription error, if any.
func (s *Synchronizer) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Close cancels the live subscription and waits for it to drain.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}
