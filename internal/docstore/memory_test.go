package docstore

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

type recorder struct {
	docs  []Document
	found []bool
}

func (r *recorder) listen(doc Document, found bool) {
	r.docs = append(r.docs, doc)
	r.found = append(r.found, found)
}

func TestMemoryStore_SubscribeSeesMissingThenWrites(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	rec := &recorder{}

	cancel, err := m.Subscribe(ctx, "clinic/status", rec.listen)
	require.NoError(t, err)
	defer cancel()

	require.Equal(t, []bool{false}, rec.found)

	err = m.MergeUpdate(ctx, "clinic/status", Document{"beds": json.RawMessage(`[]`)})
	require.ErrorIs(t, err, ErrDocumentNotFound)

	require.NoError(t, m.WriteInitial(ctx, "clinic/status", Document{
		"beds":        json.RawMessage(`[1]`),
		"waitingList": json.RawMessage(`[]`),
	}))
	require.NoError(t, m.MergeUpdate(ctx, "clinic/status", Document{"beds": json.RawMessage(`[2]`)}))

	require.Equal(t, []bool{false, true, true}, rec.found)
	last := rec.docs[2]
	require.JSONEq(t, `[2]`, string(last["beds"]))
	require.JSONEq(t, `[]`, string(last["waitingList"]))
}

func TestMemoryStore_WriteInitialKeepsExisting(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	require.NoError(t, m.WriteInitial(ctx, "p", Document{"beds": json.RawMessage(`[1]`)}))
	require.NoError(t, m.WriteInitial(ctx, "p", Document{"beds": json.RawMessage(`[9]`)}))

	rec := &recorder{}
	cancel, err := m.Subscribe(ctx, "p", rec.listen)
	require.NoError(t, err)
	defer cancel()
	require.JSONEq(t, `[1]`, string(rec.docs[0]["beds"]))
}

func TestMemoryStore_CancelStopsDelivery(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	require.NoError(t, m.WriteInitial(ctx, "p", Document{"beds": json.RawMessage(`[]`)}))

	rec := &recorder{}
	cancel, err := m.Subscribe(ctx, "p", rec.listen)
	require.NoError(t, err)
	cancel()
	cancel()

	require.NoError(t, m.MergeUpdate(ctx, "p", Document{"beds": json.RawMessage(`[3]`)}))
	require.Len(t, rec.docs, 1)
}

func TestMemoryStore_SubscribersDoNotShareDocuments(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	require.NoError(t, m.WriteInitial(ctx, "p", Document{"beds": json.RawMessage(`[1]`)}))

	a, b := &recorder{}, &recorder{}
	ca, err := m.Subscribe(ctx, "p", a.listen)
	require.NoError(t, err)
	defer ca()
	cb, err := m.Subscribe(ctx, "p", b.listen)
	require.NoError(t, err)
	defer cb()

	require.NoError(t, m.MergeUpdate(ctx, "p", Document{"beds": json.RawMessage(`[5]`)}))
	a.docs[1]["beds"] = json.RawMessage(`"mutated"`)
	require.JSONEq(t, `[5]`, string(b.docs[1]["beds"]))
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := NewMemoryStore()
	_, err := m.Subscribe(ctx, "p", func(Document, bool) {})
	require.ErrorIs(t, err, context.Canceled)
	require.ErrorIs(t, m.WriteInitial(ctx, "p", Document{}), context.Canceled)
}
