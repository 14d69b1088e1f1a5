package board

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-status-board/internal/clinic"
	"github.com/hackgods/clinic-status-board/internal/docstore"
)

func startICT(t *testing.T, d *device, bedID int) string {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, d.service.AssignPatient(ctx, bedID, "Kim"))
	ict := d.treatment(t, bedID, clinic.KindICT)
	status := clinic.StatusInProgress
	require.NoError(t, d.service.UpdateTreatment(ctx, bedID, ict.ID, clinic.TreatmentUpdate{Status: &status}))
	return ict.ID
}

func TestTicker_CountdownCompletesOnce(t *testing.T) {
	now := t0
	docs := docstore.NewMemoryStore()
	d := newDevice(t, docs, &now)
	id := startICT(t, d, 3)

	ict := d.treatment(t, 3, clinic.KindICT)
	require.Equal(t, t0.UnixMilli()+600_000, ict.TargetEndTime)
	require.Equal(t, 600, ict.TimeLeft)

	var total []clinic.Completion
	for i := 1; i <= 601; i++ {
		total = append(total, d.ticker.TickOnce(t0.Add(time.Duration(i)*time.Second))...)
	}

	require.Len(t, total, 1)
	require.Equal(t, id, total[0].TreatmentID)
	require.Equal(t, "Kim", total[0].PatientName)
	require.Len(t, d.rings, 1)

	bed := d.bed(t, 3)
	require.True(t, bed.IsAlarming)
	require.Equal(t, clinic.StatusDone, bed.Treatments[len(bed.Treatments)-1].Status)
	ict = d.treatment(t, 3, clinic.KindICT)
	require.Zero(t, ict.TimeLeft)
	require.Equal(t, clinic.StatusDone, ict.Status)
}

func TestTicker_NeverCommits(t *testing.T) {
	now := t0
	docs := &flakyStore{MemoryStore: docstore.NewMemoryStore()}
	d := newDevice(t, docs, &now)
	startICT(t, d, 1)
	merges := docs.merges

	for i := 1; i <= 30; i++ {
		d.ticker.TickOnce(t0.Add(time.Duration(i) * time.Second))
	}
	require.Equal(t, merges, docs.merges)

	// other viewers still see the committed countdown state
	other := newDevice(t, docs.MemoryStore, &now)
	require.Equal(t, 600, other.treatment(t, 1, clinic.KindICT).TimeLeft)
	require.Equal(t, 570, d.treatment(t, 1, clinic.KindICT).TimeLeft)
}

func TestTicker_StalePushDoesNotRingTwice(t *testing.T) {
	now := t0
	docs := docstore.NewMemoryStore()
	a := newDevice(t, docs, &now)
	b := newDevice(t, docs, &now)
	startICT(t, a, 5)

	done := t0.Add(600 * time.Second)
	require.Len(t, a.ticker.TickOnce(done), 1)

	// b rewrites the beds group while the backing record still says in progress
	require.NoError(t, b.service.UpdateMemo(context.Background(), 6, "window seat"))
	require.Equal(t, clinic.StatusInProgress, a.treatment(t, 5, clinic.KindICT).Status)

	require.Empty(t, a.ticker.TickOnce(done.Add(time.Second)))
	require.Len(t, a.rings, 1)
	require.Equal(t, clinic.StatusDone, a.treatment(t, 5, clinic.KindICT).Status)

	// b finishes the same countdown on its own and rings on its own device
	require.Len(t, b.ticker.TickOnce(done.Add(time.Second)), 1)
}

func TestTicker_RestartRingsAgain(t *testing.T) {
	now := t0
	d := newDevice(t, docstore.NewMemoryStore(), &now)
	id := startICT(t, d, 2)
	require.Len(t, d.ticker.TickOnce(t0.Add(600*time.Second)), 1)

	now = t0.Add(20 * time.Minute)
	status := clinic.StatusInProgress
	require.NoError(t, d.service.UpdateTreatment(context.Background(), 2, id, clinic.TreatmentUpdate{Status: &status}))
	require.Len(t, d.ticker.TickOnce(now.Add(600*time.Second)), 1)
	require.Len(t, d.rings, 2)
}

func TestTicker_CountUpTreatment(t *testing.T) {
	now := t0
	d := newDevice(t, docstore.NewMemoryStore(), &now)
	ctx := context.Background()
	require.NoError(t, d.service.AssignPatient(ctx, 4, "Choi"))
	require.NoError(t, d.service.AddExtraTreatment(ctx, 4, clinic.KindManual))

	manual := d.treatment(t, 4, clinic.KindManual)
	status := clinic.StatusInProgress
	require.NoError(t, d.service.UpdateTreatment(ctx, 4, manual.ID, clinic.TreatmentUpdate{Status: &status}))

	for i := 1; i <= 90; i++ {
		require.Empty(t, d.ticker.TickOnce(t0.Add(time.Duration(i)*time.Second)))
	}
	require.Equal(t, 90, d.treatment(t, 4, clinic.KindManual).ElapsedTime)
	require.Empty(t, d.rings)
}

func TestTicker_IdleBoardSkipsRecompute(t *testing.T) {
	now := t0
	d := newDevice(t, docstore.NewMemoryStore(), &now)

	calls := 0
	cancel := d.store.Subscribe(func(clinic.Snapshot) { calls++ })
	defer cancel()
	calls = 0

	d.ticker.TickOnce(t0.Add(time.Second))
	require.Zero(t, calls)
}

func TestTicker_RunStopsWithContext(t *testing.T) {
	now := t0
	d := newDevice(t, docstore.NewMemoryStore(), &now)
	d.ticker.interval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		d.ticker.Run(ctx)
		close(stopped)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("ticker did not stop")
	}
}
