package board

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-status-board/internal/clinic"
	"github.com/hackgods/clinic-status-board/internal/docstore"
)

func TestService_WaitingListAddRemove(t *testing.T) {
	now := t0
	d := newDevice(t, docstore.NewMemoryStore(), &now)
	ctx := context.Background()

	require.NoError(t, d.service.AddWaitingPatient(ctx, "Lee", clinic.CategoryRevisit))
	list := d.store.Snapshot().WaitingList
	require.Len(t, list, 1)
	require.Equal(t, "Lee", list[0].Name)
	require.Equal(t, clinic.CategoryRevisit, list[0].Category)
	require.Equal(t, t0.UnixMilli(), list[0].WaitingSince)

	require.NoError(t, d.service.RemoveWaitingPatient(ctx, list[0].ID))
	require.Empty(t, d.store.Snapshot().WaitingList)

	require.ErrorIs(t, d.service.AddWaitingPatient(ctx, "Lee", "x-ray"), clinic.ErrInvalidCategory)
	require.ErrorIs(t, d.service.RemoveWaitingPatient(ctx, "missing"), clinic.ErrWaitingNotFound)
}

func TestService_DirectorTaskRoundTrip(t *testing.T) {
	now := t0
	d := newDevice(t, docstore.NewMemoryStore(), &now)
	ctx := context.Background()

	require.NoError(t, d.service.AssignPatient(ctx, 2, "Park"))
	acu := d.treatment(t, 2, clinic.KindAcupuncture)
	require.NoError(t, d.service.QueueDirectorTask(ctx, 2, acu.ID))

	tasks := d.store.Snapshot().DirectorTasks
	require.Len(t, tasks, 1)
	require.Equal(t, acu.ID, tasks[0].TreatmentID)
	require.Equal(t, "Park", tasks[0].PatientName)
	require.Equal(t, "B2", tasks[0].BedName)

	require.ErrorIs(t, d.service.QueueDirectorTask(ctx, 2, acu.ID), clinic.ErrDuplicateTask)

	now = t0.Add(90 * time.Second)
	require.NoError(t, d.service.CompleteDirectorTask(ctx, tasks[0].ID))
	require.Empty(t, d.store.Snapshot().DirectorTasks)
	acu = d.treatment(t, 2, clinic.KindAcupuncture)
	require.Equal(t, clinic.StatusInProgress, acu.Status)
	require.Equal(t, now.UnixMilli()+600_000, acu.TargetEndTime)
}

func TestService_UltrasoundDropJoinsWaitingList(t *testing.T) {
	now := t0
	d := newDevice(t, docstore.NewMemoryStore(), &now)
	ctx := context.Background()

	require.NoError(t, d.service.AssignPatient(ctx, 0, "Jung"))
	require.ErrorIs(t, d.service.AddExtraTreatment(ctx, 0, clinic.KindUltrasound), clinic.ErrDuplicateTreatment)
	sono := d.treatment(t, 0, clinic.KindUltrasound)

	require.NoError(t, d.service.QueueDirectorTask(ctx, 0, sono.ID))
	snap := d.store.Snapshot()
	require.Empty(t, snap.DirectorTasks)
	require.Len(t, snap.WaitingList, 1)
	require.Equal(t, clinic.CategoryUltrasound, snap.WaitingList[0].Category)
	require.Equal(t, "Jung", snap.WaitingList[0].Name)
}

func TestService_DischargeDropsTasksAndAlarm(t *testing.T) {
	now := t0
	d := newDevice(t, docstore.NewMemoryStore(), &now)
	ctx := context.Background()

	startICT(t, d, 3)
	cupping := d.treatment(t, 3, clinic.KindCupping)
	require.NoError(t, d.service.QueueDirectorTask(ctx, 3, cupping.ID))
	d.ticker.TickOnce(t0.Add(600 * time.Second))
	require.True(t, d.bed(t, 3).IsAlarming)

	require.NoError(t, d.service.Discharge(ctx, 3))
	bed := d.bed(t, 3)
	require.False(t, bed.Occupied())
	require.False(t, bed.IsAlarming)
	require.Empty(t, bed.Treatments)
	require.Empty(t, d.store.Snapshot().DirectorTasks)
}

func TestService_TransferPayloads(t *testing.T) {
	now := t0
	d := newDevice(t, docstore.NewMemoryStore(), &now)
	ctx := context.Background()

	require.NoError(t, d.service.AssignPatient(ctx, 1, "Kim"))
	require.NoError(t, d.service.AssignPatient(ctx, 2, "Lee"))
	before := d.store.Snapshot()

	// ordinary to ordinary is refused
	err := d.service.Transfer(ctx, []byte(`{"type":"patient_transfer","fromBedId":1,"toBedId":2}`))
	require.ErrorIs(t, err, clinic.ErrTransferNotAllowed)
	require.Equal(t, before, d.store.Snapshot())

	for _, payload := range []string{
		`not json`,
		`{"type":"teleport","fromBedId":1,"toBedId":0}`,
		`{"type":"patient_transfer","fromBedId":1}`,
		`{"type":"treatment_transfer","fromBedId":1,"toBedId":0}`,
	} {
		err := d.service.Transfer(ctx, []byte(payload))
		require.ErrorIs(t, err, clinic.ErrMalformedTransfer, payload)
	}
	require.Equal(t, before, d.store.Snapshot())

	require.NoError(t, d.service.Transfer(ctx, []byte(`{"type":"patient_transfer","fromBedId":1,"toBedId":0}`)))
	require.Equal(t, "Kim", d.bed(t, 0).PatientName)
	require.False(t, d.bed(t, 1).Occupied())

	ict := d.treatment(t, 2, clinic.KindICT)
	payload := fmt.Sprintf(`{"type":"treatment_transfer","fromBedId":2,"toBedId":0,"treatmentId":%q}`, ict.ID)
	require.NoError(t, d.service.Transfer(ctx, []byte(payload)))
	for _, tr := range d.bed(t, 2).Treatments {
		require.NotEqual(t, clinic.KindICT, tr.Name)
	}
}

func TestService_AdmitFromWaitingList(t *testing.T) {
	now := t0
	d := newDevice(t, docstore.NewMemoryStore(), &now)
	ctx := context.Background()

	require.NoError(t, d.service.AddWaitingPatient(ctx, "Han", clinic.CategoryConsult))
	id := d.store.Snapshot().WaitingList[0].ID

	require.NoError(t, d.service.ApplyIntent(ctx, clinic.WaitingIntake{WaitingID: id, ToBedID: 7}))
	snap := d.store.Snapshot()
	require.Empty(t, snap.WaitingList)
	bed, _ := snap.Bed(7)
	require.Equal(t, "Han", bed.PatientName)
	require.Len(t, bed.Treatments, 4)
}

func TestService_RejectionsLeaveBoardAlone(t *testing.T) {
	now := t0
	docs := &flakyStore{MemoryStore: docstore.NewMemoryStore()}
	d := newDevice(t, docs, &now)
	ctx := context.Background()

	require.ErrorIs(t, d.service.AssignPatient(ctx, 42, "Kim"), clinic.ErrBedNotFound)
	require.ErrorIs(t, d.service.AddExtraTreatment(ctx, 5, clinic.KindIce), clinic.ErrBedUnoccupied)
	require.ErrorIs(t, d.service.AddExtraTreatment(ctx, 5, "laser"), clinic.ErrUnknownKind)
	require.ErrorIs(t, d.service.DismissDirectorTask(ctx, "nope"), clinic.ErrTaskNotFound)
	require.Zero(t, docs.merges)
}
