package board

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/clinic-status-board/internal/clinic"
)

// Service exposes the board mutations. Each one runs a pure transition over the current
// read-state and commits the groups it rewrote. Mutations are serialized, and a commit holds
// the next one back until its write has come back as a push, so back to back calls build on
// each other. Writes from other devices can still land in between and win.
type Service struct {
	store *Store
	log   *zap.Logger
	now   func() time.Time

	// one mutation at a time: read, transition, commit
	mu sync.Mutex
}

func NewService(store *Store, log *zap.Logger) *Service {
	return &Service{
		store: store,
		log:   log,
		now:   time.Now,
	}
}

type transition func(s clinic.Snapshot, now time.Time) (clinic.Snapshot, error)

func (s *Service) apply(ctx context.Context, op string, fields []clinic.Field, fn transition) error {
	return s.applyFields(ctx, op, func(cur clinic.Snapshot, now time.Time) (clinic.Snapshot, []clinic.Field, error) {
		next, err := fn(cur, now)
		return next, fields, err
	})
}

func (s *Service) applyFields(ctx context.Context, op string, fn func(clinic.Snapshot, time.Time) (clinic.Snapshot, []clinic.Field, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, fields, err := fn(s.store.Snapshot(), s.now())
	if err != nil {
		s.log.Debug("mutation rejected", zap.String("op", op), zap.Error(err))
		return err
	}

	// A failed commit has been logged by the store and is dropped on purpose.
	if err := s.store.Commit(ctx, next, fields...); err != nil && !errors.Is(err, ErrReplicationUnavailable) {
		return err
	}
	return nil
}

var (
	bedsAndTasks = []clinic.Field{clinic.FieldBeds, clinic.FieldDirectorTasks}
	bedsOnly     = []clinic.Field{clinic.FieldBeds}
)

// AssignPatient sets or replaces the patient on a bed; an empty name discharges it.
func (s *Service) AssignPatient(ctx context.Context, bedID int, name string) error {
	return s.apply(ctx, "assign_patient", bedsAndTasks, func(cur clinic.Snapshot, _ time.Time) (clinic.Snapshot, error) {
		return clinic.AssignPatient(cur, bedID, name)
	})
}

func (s *Service) Discharge(ctx context.Context, bedID int) error {
	return s.apply(ctx, "discharge", bedsAndTasks, func(cur clinic.Snapshot, _ time.Time) (clinic.Snapshot, error) {
		return clinic.Discharge(cur, bedID)
	})
}

func (s *Service) UpdateMemo(ctx context.Context, bedID int, memo string) error {
	return s.apply(ctx, "update_memo", bedsOnly, func(cur clinic.Snapshot, _ time.Time) (clinic.Snapshot, error) {
		return clinic.UpdateMemo(cur, bedID, memo)
	})
}

func (s *Service) UpdateArea(ctx context.Context, bedID int, area string) error {
	return s.apply(ctx, "update_area", bedsOnly, func(cur clinic.Snapshot, _ time.Time) (clinic.Snapshot, error) {
		return clinic.UpdateArea(cur, bedID, area)
	})
}

func (s *Service) UpdateTreatment(ctx context.Context, bedID int, treatmentID string, u clinic.TreatmentUpdate) error {
	return s.apply(ctx, "update_treatment", bedsOnly, func(cur clinic.Snapshot, now time.Time) (clinic.Snapshot, error) {
		return clinic.UpdateTreatment(cur, bedID, treatmentID, u, now)
	})
}

func (s *Service) AddExtraTreatment(ctx context.Context, bedID int, kind clinic.TreatmentKind) error {
	return s.apply(ctx, "add_extra_treatment", bedsOnly, func(cur clinic.Snapshot, _ time.Time) (clinic.Snapshot, error) {
		return clinic.AddExtraTreatment(cur, bedID, kind)
	})
}

// Transfer applies a raw drag-and-drop payload. Payloads that do not parse as a known
// intent change nothing.
func (s *Service) Transfer(ctx context.Context, payload []byte) error {
	intent, err := clinic.ParseIntent(payload)
	if err != nil {
		s.log.Debug("ignoring transfer payload", zap.Error(err))
		return err
	}
	return s.ApplyIntent(ctx, intent)
}

func (s *Service) ApplyIntent(ctx context.Context, intent clinic.Intent) error {
	return s.apply(ctx, "transfer", intent.Touches(), intent.Apply)
}

func (s *Service) AddWaitingPatient(ctx context.Context, name string, category clinic.WaitingCategory) error {
	return s.apply(ctx, "add_waiting", []clinic.Field{clinic.FieldWaitingList}, func(cur clinic.Snapshot, now time.Time) (clinic.Snapshot, error) {
		return clinic.AddWaitingPatient(cur, name, category, now)
	})
}

func (s *Service) RemoveWaitingPatient(ctx context.Context, id string) error {
	return s.apply(ctx, "remove_waiting", []clinic.Field{clinic.FieldWaitingList}, func(cur clinic.Snapshot, _ time.Time) (clinic.Snapshot, error) {
		return clinic.RemoveWaitingPatient(cur, id)
	})
}

// QueueDirectorTask handles a treatment dropped on the director queue.
func (s *Service) QueueDirectorTask(ctx context.Context, bedID int, treatmentID string) error {
	return s.applyFields(ctx, "queue_director_task", func(cur clinic.Snapshot, now time.Time) (clinic.Snapshot, []clinic.Field, error) {
		return clinic.QueueDirectorTask(cur, bedID, treatmentID, now)
	})
}

// CompleteDirectorTask resumes the task's treatment and removes the task.
func (s *Service) CompleteDirectorTask(ctx context.Context, taskID string) error {
	return s.apply(ctx, "complete_director_task", bedsAndTasks, func(cur clinic.Snapshot, now time.Time) (clinic.Snapshot, error) {
		return clinic.CompleteDirectorTask(cur, taskID, now)
	})
}

func (s *Service) DismissDirectorTask(ctx context.Context, taskID string) error {
	return s.apply(ctx, "dismiss_director_task", []clinic.Field{clinic.FieldDirectorTasks}, func(cur clinic.Snapshot, _ time.Time) (clinic.Snapshot, error) {
		return clinic.DismissDirectorTask(cur, taskID)
	})
}
