package board

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-status-board/internal/clinic"
	"github.com/hackgods/clinic-status-board/internal/docstore"
)

const testPath = "clinic/current_status"

var (
	t0         = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	errOffline = errors.New("backing store offline")
)

// unreachableStore fails every call, like a backing store that cannot be reached.
type unreachableStore struct{}

func (unreachableStore) Subscribe(context.Context, string, docstore.Listener) (func(), error) {
	return nil, errOffline
}

func (unreachableStore) WriteInitial(context.Context, string, docstore.Document) error {
	return errOffline
}

func (unreachableStore) MergeUpdate(context.Context, string, docstore.Document) error {
	return errOffline
}

// flakyStore wraps a memory store and can be told to reject merge writes or subscriptions.
type flakyStore struct {
	*docstore.MemoryStore
	mu            sync.Mutex
	failMerge     bool
	failSubscribe bool
	merges        int
}

func (f *flakyStore) setFailing(v bool) {
	f.mu.Lock()
	f.failMerge = v
	f.mu.Unlock()
}

func (f *flakyStore) setSubscribeFailing(v bool) {
	f.mu.Lock()
	f.failSubscribe = v
	f.mu.Unlock()
}

func (f *flakyStore) mergeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.merges
}

func (f *flakyStore) Subscribe(ctx context.Context, path string, fn docstore.Listener) (func(), error) {
	f.mu.Lock()
	fail := f.failSubscribe
	f.mu.Unlock()
	if fail {
		return nil, errOffline
	}
	return f.MemoryStore.Subscribe(ctx, path, fn)
}

func (f *flakyStore) MergeUpdate(ctx context.Context, path string, partial docstore.Document) error {
	f.mu.Lock()
	fail := f.failMerge
	f.merges++
	f.mu.Unlock()
	if fail {
		return errOffline
	}
	return f.MemoryStore.MergeUpdate(ctx, path, partial)
}

// laggyStore wraps a memory store and delivers pushes in order on a separate goroutine after
// a delay, like a networked backend.
type laggyStore struct {
	*docstore.MemoryStore
	lag time.Duration
}

func (l *laggyStore) Subscribe(ctx context.Context, path string, fn docstore.Listener) (func(), error) {
	queue := make(chan func(), 256)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case deliver := <-queue:
				time.Sleep(l.lag)
				deliver()
			case <-done:
				return
			}
		}
	}()

	cancel, err := l.MemoryStore.Subscribe(ctx, path, func(doc docstore.Document, found bool) {
		select {
		case queue <- func() { fn(doc, found) }:
		case <-done:
		}
	})
	if err != nil {
		close(done)
		return nil, err
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			close(done)
		})
	}, nil
}

type device struct {
	metrics *Metrics
	store   *Store
	service *Service
	ticker  *Ticker
	rings   []clinic.Completion
}

// newDevice starts one viewing device against docs with clocks pinned to *now.
func newDevice(t *testing.T, docs docstore.DocumentStore, now *time.Time) *device {
	t.Helper()
	log := zap.NewNop()
	metrics := NewMetrics(nil)

	d := &device{metrics: metrics}
	d.store = NewStore(docs, testPath, log, metrics)
	d.service = NewService(d.store, log)
	d.service.now = func() time.Time { return *now }
	d.ticker = NewTicker(d.store, AlarmFunc(func(c clinic.Completion) {
		d.rings = append(d.rings, c)
	}), time.Second, log, metrics)
	d.ticker.now = func() time.Time { return *now }

	_ = d.store.Start(context.Background())
	t.Cleanup(d.store.Stop)

	select {
	case <-d.store.Ready():
	case <-time.After(time.Second):
		t.Fatal("store never left loading")
	}
	return d
}

func (d *device) bed(t *testing.T, id int) clinic.Bed {
	t.Helper()
	b, ok := d.store.Snapshot().Bed(id)
	require.True(t, ok, "bed %d missing", id)
	return b
}

func (d *device) treatment(t *testing.T, bedID int, kind clinic.TreatmentKind) clinic.Treatment {
	t.Helper()
	for _, tr := range d.bed(t, bedID).Treatments {
		if tr.Name == kind {
			return tr
		}
	}
	t.Fatalf("bed %d has no %s", bedID, kind)
	return clinic.Treatment{}
}
