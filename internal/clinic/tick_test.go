package clinic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func occupiedSnapshot(t *testing.T, bedID int, name string) Snapshot {
	t.Helper()
	s, err := AssignPatient(DefaultSnapshot(), bedID, name)
	require.NoError(t, err)
	return s
}

func findKind(t *testing.T, s Snapshot, bedID int, kind TreatmentKind) Treatment {
	t.Helper()
	bed, ok := s.Bed(bedID)
	require.True(t, ok)
	for _, tr := range bed.Treatments {
		if tr.Name == kind {
			return tr
		}
	}
	t.Fatalf("bed %d has no %s treatment", bedID, kind)
	return Treatment{}
}

func TestTick_ICTRunsDownAndCompletesOnce(t *testing.T) {
	s := occupiedSnapshot(t, 3, "Kim")
	bed, _ := s.Bed(3)
	require.Len(t, bed.Treatments, 4)

	want := map[TreatmentKind]int{KindICT: 600, KindCupping: 180, KindAcupuncture: 600, KindHotPack: 600}
	for _, tr := range bed.Treatments {
		require.Equal(t, StatusWaiting, tr.Status)
		require.True(t, tr.IsDefault)
		require.Equal(t, want[tr.Name], tr.Duration)
	}

	ict := findKind(t, s, 3, KindICT)
	s, err := StartTreatment(s, 3, ict.ID, t0)
	require.NoError(t, err)

	ict = findKind(t, s, 3, KindICT)
	require.Equal(t, StatusInProgress, ict.Status)
	require.Equal(t, t0.UnixMilli()+600000, ict.TargetEndTime)
	require.Equal(t, 600, ict.TimeLeft)

	var all []Completion
	for i := 1; i <= 601; i++ {
		var events []Completion
		s, events = Tick(s, t0.Add(time.Duration(i)*time.Second))
		all = append(all, events...)

		cur := findKind(t, s, 3, KindICT)
		require.GreaterOrEqual(t, cur.TimeLeft, 0)
	}

	ict = findKind(t, s, 3, KindICT)
	require.Equal(t, 0, ict.TimeLeft)
	require.Equal(t, StatusDone, ict.Status)

	bed, _ = s.Bed(3)
	require.True(t, bed.IsAlarming)
	require.Len(t, all, 1)
	require.Equal(t, 3, all[0].BedID)
	require.Equal(t, ict.ID, all[0].TreatmentID)
}

func TestTick_TimeLeftMatchesTargetEnd(t *testing.T) {
	s := occupiedSnapshot(t, 1, "Park")
	cupping := findKind(t, s, 1, KindCupping)
	s, err := StartTreatment(s, 1, cupping.ID, t0)
	require.NoError(t, err)

	for _, offset := range []time.Duration{1500 * time.Millisecond, 59 * time.Second, 179*time.Second + 999*time.Millisecond} {
		now := t0.Add(offset)
		next, _ := Tick(s, now)
		cur := findKind(t, next, 1, KindCupping)
		want := int((cupping.Duration*1000 - int(offset.Milliseconds())) / 1000)
		require.Equal(t, want, cur.TimeLeft, "offset %s", offset)
		require.Equal(t, RemainingSeconds(cur.TargetEndTime, now), cur.TimeLeft)
	}
}

func TestTick_LateTickJumpsStraightToDone(t *testing.T) {
	s := occupiedSnapshot(t, 2, "Choi")
	ict := findKind(t, s, 2, KindICT)
	s, err := StartTreatment(s, 2, ict.ID, t0)
	require.NoError(t, err)

	next, events := Tick(s, t0.Add(2*time.Hour))
	require.Len(t, events, 1)
	cur := findKind(t, next, 2, KindICT)
	require.Equal(t, 0, cur.TimeLeft)
	require.Equal(t, StatusDone, cur.Status)

	bed, _ := next.Bed(2)
	require.Equal(t, StatusDone, bed.Treatments[len(bed.Treatments)-1].Status)
}

func TestTick_ManualTherapyCountsUp(t *testing.T) {
	s := occupiedSnapshot(t, 4, "Jung")
	s, err := AddExtraTreatment(s, 4, KindManual)
	require.NoError(t, err)
	manual := findKind(t, s, 4, KindManual)
	s, err = StartTreatment(s, 4, manual.ID, t0)
	require.NoError(t, err)

	var events []Completion
	for i := 1; i <= 5; i++ {
		var ev []Completion
		s, ev = Tick(s, t0.Add(time.Duration(i)*time.Hour))
		events = append(events, ev...)
	}

	manual = findKind(t, s, 4, KindManual)
	require.Equal(t, 5, manual.ElapsedTime)
	require.Equal(t, StatusInProgress, manual.Status)
	require.Empty(t, events)
}

func TestTick_DoesNotMutateInput(t *testing.T) {
	s := occupiedSnapshot(t, 5, "Han")
	ict := findKind(t, s, 5, KindICT)
	s, err := StartTreatment(s, 5, ict.ID, t0)
	require.NoError(t, err)

	_, _ = Tick(s, t0.Add(10*time.Second))
	require.Equal(t, 600, findKind(t, s, 5, KindICT).TimeLeft)
}

func TestTick_RestartAfterDoneReArms(t *testing.T) {
	s := occupiedSnapshot(t, 6, "Yoon")
	ice, err := AddExtraTreatment(s, 6, KindIce)
	require.NoError(t, err)
	s = ice
	tr := findKind(t, s, 6, KindIce)

	s, err = StartTreatment(s, 6, tr.ID, t0)
	require.NoError(t, err)
	s, events := Tick(s, t0.Add(301*time.Second))
	require.Len(t, events, 1)

	restart := t0.Add(time.Hour)
	s, err = StartTreatment(s, 6, tr.ID, restart)
	require.NoError(t, err)
	tr = findKind(t, s, 6, KindIce)
	require.Equal(t, StatusInProgress, tr.Status)
	require.Equal(t, 300, tr.TimeLeft)
	require.Equal(t, restart.UnixMilli()+300000, tr.TargetEndTime)
}

func TestRemainingSeconds(t *testing.T) {
	target := t0.Add(10 * time.Second).UnixMilli()
	require.Equal(t, 10, RemainingSeconds(target, t0))
	require.Equal(t, 9, RemainingSeconds(target, t0.Add(1)))
	require.Equal(t, 0, RemainingSeconds(target, t0.Add(10*time.Second)))
	require.Equal(t, 0, RemainingSeconds(target, t0.Add(time.Minute)))
}
