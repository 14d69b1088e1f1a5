package docstore

import (
	"context"
	"sync"
)

// MemoryStore keeps documents in process and pushes changes synchronously to subscribers
// on the writer's goroutine.
type MemoryStore struct {
	mu     sync.Mutex
	docs   map[string]Document
	subs   map[string]map[int]Listener
	nextID int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string]Document),
		subs: make(map[string]map[int]Listener),
	}
}

func (m *MemoryStore) Subscribe(ctx context.Context, path string, fn Listener) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	id := m.nextID
	m.nextID++
	if m.subs[path] == nil {
		m.subs[path] = make(map[int]Listener)
	}
	m.subs[path][id] = fn
	doc, found := m.docs[path]
	if found {
		doc = doc.clone()
	}
	m.mu.Unlock()

	fn(doc, found)

	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs[path], id)
			m.mu.Unlock()
			close(done)
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()
	return cancel, nil
}

func (m *MemoryStore) WriteInitial(ctx context.Context, path string, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	if _, exists := m.docs[path]; exists {
		m.mu.Unlock()
		return nil
	}
	m.docs[path] = doc.clone()
	m.mu.Unlock()

	m.publish(path)
	return nil
}

func (m *MemoryStore) MergeUpdate(ctx context.Context, path string, partial Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	cur, exists := m.docs[path]
	if !exists {
		m.mu.Unlock()
		return ErrDocumentNotFound
	}
	for k, v := range partial.clone() {
		cur[k] = v
	}
	m.mu.Unlock()

	m.publish(path)
	return nil
}

func (m *MemoryStore) publish(path string) {
	m.mu.Lock()
	doc := m.docs[path].clone()
	listeners := make([]Listener, 0, len(m.subs[path]))
	for _, fn := range m.subs[path] {
		listeners = append(listeners, fn)
	}
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(doc.clone(), true)
	}
}
