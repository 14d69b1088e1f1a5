package board

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/clinic-status-board/internal/clinic"
	"github.com/hackgods/clinic-status-board/internal/docstore"
)

var ErrReplicationUnavailable = errors.New("replication unavailable")

const (
	writeTimeout = 5 * time.Second
	// pushWait bounds how long a commit waits to see its own write pushed back.
	pushWait = 2 * time.Second
)

// pushWaiter is released by the first pushed document that matches.
type pushWaiter struct {
	match func(clinic.Snapshot) bool
	done  chan struct{}
}

// Store holds the local read-state of the board. It is fed by pushes from the backing
// document and by local tick recomputation; commits go out to the backing document and
// come back through the push like everyone else's.
type Store struct {
	docs    docstore.DocumentStore
	path    string
	log     *zap.Logger
	metrics *Metrics

	// notifyMu orders state changes with their listener callbacks.
	notifyMu sync.Mutex

	mu        sync.RWMutex
	snap      clinic.Snapshot
	loaded    bool
	degraded  bool
	listeners map[int]func(clinic.Snapshot)
	nextID    int

	waiters map[*pushWaiter]struct{}

	ready     chan struct{}
	readyOnce sync.Once
	// ctx is the Start context; a resubscription after memory-only mode lives as long as it.
	ctx    context.Context
	cancel func()
}

func NewStore(docs docstore.DocumentStore, path string, log *zap.Logger, metrics *Metrics) *Store {
	return &Store{
		docs:      docs,
		path:      path,
		log:       log.With(zap.String("document", path)),
		metrics:   metrics,
		snap:      clinic.Snapshot{},
		listeners: make(map[int]func(clinic.Snapshot)),
		waiters:   make(map[*pushWaiter]struct{}),
		ready:     make(chan struct{}),
		ctx:       context.Background(),
	}
}

// Start subscribes to the backing document. If that fails the store leaves its loading
// phase anyway and runs memory-only on a default board.
func (s *Store) Start(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	cancel, err := s.docs.Subscribe(ctx, s.path, s.onDocument)
	if err != nil {
		s.log.Error("document subscription failed, running memory-only", zap.Error(err))
		s.degrade(clinic.DefaultSnapshot())
		return fmt.Errorf("%w: %v", ErrReplicationUnavailable, err)
	}

	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	return nil
}

// Stop ends the subscription.
func (s *Store) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *Store) onDocument(doc docstore.Document, found bool) {
	if !found {
		s.seed()
		return
	}

	snap, err := decodeSnapshot(doc)
	if err != nil {
		s.log.Warn("ignoring undecodable document", zap.Error(err))
		return
	}
	s.metrics.RemoteUpdates.Inc()
	s.replace(func(clinic.Snapshot) (clinic.Snapshot, bool) {
		return snap, true
	})
	s.markReady()
	s.release(snap)
}

// release wakes commits waiting for a push that carries their write.
func (s *Store) release(pushed clinic.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for w := range s.waiters {
		if w.match(pushed) {
			close(w.done)
			delete(s.waiters, w)
		}
	}
}

func (s *Store) addWaiter(match func(clinic.Snapshot) bool) *pushWaiter {
	w := &pushWaiter{match: match, done: make(chan struct{})}
	s.mu.Lock()
	s.waiters[w] = struct{}{}
	s.mu.Unlock()
	return w
}

func (s *Store) dropWaiter(w *pushWaiter) {
	s.mu.Lock()
	delete(s.waiters, w)
	s.mu.Unlock()
}

// seed writes the default board when no record exists. The write comes back as a push.
func (s *Store) seed() {
	initial := clinic.DefaultSnapshot()
	doc, err := encodeFields(initial, allFields...)
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err = s.docs.WriteInitial(ctx, s.path, doc)
		cancel()
	}
	if err != nil {
		s.log.Error("seeding board document failed, running memory-only", zap.Error(err))
		s.degrade(initial)
		return
	}
	s.log.Info("seeded empty board document")

	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if !loaded {
		s.replace(func(clinic.Snapshot) (clinic.Snapshot, bool) { return initial, true })
	}
	s.markReady()
}

func (s *Store) degrade(initial clinic.Snapshot) {
	s.mu.Lock()
	s.degraded = true
	s.mu.Unlock()
	s.metrics.Degraded.Set(1)
	s.replace(func(cur clinic.Snapshot) (clinic.Snapshot, bool) {
		if len(cur.Beds) > 0 {
			return cur, false
		}
		return initial, true
	})
	s.markReady()
}

func (s *Store) markReady() {
	s.readyOnce.Do(func() { close(s.ready) })
}

// Ready is closed once the store has left its loading phase.
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

func (s *Store) Loading() bool {
	select {
	case <-s.ready:
		return false
	default:
		return true
	}
}

func (s *Store) Degraded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.degraded
}

// Snapshot returns a copy of the current read-state.
func (s *Store) Snapshot() clinic.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Clone()
}

// Subscribe registers fn for every snapshot change, pushed or local. If the store has
// already loaded, fn is called right away with the current snapshot.
func (s *Store) Subscribe(fn func(clinic.Snapshot)) func() {
	s.notifyMu.Lock()
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	cur, loaded := s.snap.Clone(), s.loaded
	s.mu.Unlock()
	if loaded {
		fn(cur)
	}
	s.notifyMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// replace swaps the read-state through fn and notifies listeners when fn reports a change.
func (s *Store) replace(fn func(clinic.Snapshot) (clinic.Snapshot, bool)) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	next, changed := fn(s.snap)
	if !changed {
		s.mu.Unlock()
		return
	}
	s.snap = next
	s.loaded = true
	listeners := make([]func(clinic.Snapshot), 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(next.Clone())
	}
}

// Commit pushes the named groups of next to the backing document and waits, up to
// pushWait, for the push that carries them back: the local read-state only changes through
// that push, and the next mutation must read it. A failed write is logged and dropped; the
// next successful commit carries the full groups again.
//
// In memory-only mode the groups are applied locally and the whole board is offered to the
// backing document. If it takes the write, the subscription is reopened and replication
// resumes.
func (s *Store) Commit(ctx context.Context, next clinic.Snapshot, fields ...clinic.Field) error {
	if len(fields) == 0 {
		return nil
	}

	if s.Degraded() {
		s.replace(func(cur clinic.Snapshot) (clinic.Snapshot, bool) {
			return mergeFields(cur, next, fields...), true
		})
		s.metrics.Commits.WithLabelValues("local").Inc()
		if err := s.resync(ctx); err != nil {
			s.log.Warn("backing document still unreachable, staying memory-only", zap.Error(err))
			return fmt.Errorf("%w: %v", ErrReplicationUnavailable, err)
		}
		return nil
	}

	doc, err := encodeFields(next, fields...)
	if err != nil {
		return err
	}
	want, err := canonicalFields(doc, fields)
	if err != nil {
		return err
	}
	waiter := s.addWaiter(func(pushed clinic.Snapshot) bool {
		got, err := encodeFields(pushed, fields...)
		return err == nil && sameFields(got, want)
	})

	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := s.docs.MergeUpdate(writeCtx, s.path, doc); err != nil {
		s.dropWaiter(waiter)
		s.metrics.Commits.WithLabelValues("error").Inc()
		s.log.Warn("commit failed, dropping", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrReplicationUnavailable, err)
	}
	s.metrics.Commits.WithLabelValues("ok").Inc()

	timer := time.NewTimer(pushWait)
	defer timer.Stop()
	select {
	case <-waiter.done:
	case <-timer.C:
		// another device wrote over us, or the push is slow; either way move on
		s.dropWaiter(waiter)
		s.log.Debug("commit not seen in a push yet", zap.Duration("waited", pushWait))
	case <-ctx.Done():
		s.dropWaiter(waiter)
	}
	return nil
}

// resync offers the local board to the backing document after a memory-only commit. The
// record is created if it never got seeded. On success the subscription is reopened when it
// is missing and the store leaves memory-only mode.
func (s *Store) resync(ctx context.Context) error {
	doc, err := encodeFields(s.Snapshot(), allFields...)
	if err != nil {
		return err
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	err = s.docs.MergeUpdate(writeCtx, s.path, doc)
	if errors.Is(err, docstore.ErrDocumentNotFound) {
		err = s.docs.WriteInitial(writeCtx, s.path, doc)
	}
	if err != nil {
		return err
	}

	s.mu.RLock()
	subscribed, subCtx := s.cancel != nil, s.ctx
	s.mu.RUnlock()
	if !subscribed {
		stop, err := s.docs.Subscribe(subCtx, s.path, s.onDocument)
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.cancel = stop
		s.mu.Unlock()
	}

	s.mu.Lock()
	s.degraded = false
	s.mu.Unlock()
	s.metrics.Degraded.Set(0)
	s.metrics.Commits.WithLabelValues("ok").Inc()
	s.log.Info("backing document reachable again, replication resumed")
	return nil
}
