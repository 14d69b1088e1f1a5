package board

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/clinic-status-board/internal/clinic"
)

const maxRemembered = 512

// Ticker recomputes countdowns from local memory on a fixed interval. It never commits:
// write volume to the backing document stays bounded by user actions.
type Ticker struct {
	store    *Store
	alarm    Alarm
	interval time.Duration
	now      func() time.Time
	log      *zap.Logger
	metrics  *Metrics

	// rung maps treatment id to the targetEndTime already alarmed, so a stale document
	// pushed after completion does not ring twice.
	rung map[string]int64
}

func NewTicker(store *Store, alarm Alarm, interval time.Duration, log *zap.Logger, metrics *Metrics) *Ticker {
	return &Ticker{
		store:    store,
		alarm:    alarm,
		interval: interval,
		now:      time.Now,
		log:      log,
		metrics:  metrics,
		rung:     make(map[string]int64),
	}
}

// Run ticks until ctx is done. Each Run owns its own time.Ticker, torn down on return.
func (t *Ticker) Run(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-t.store.Ready():
	}

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.log.Info("tick engine started", zap.Duration("interval", t.interval))
	for {
		select {
		case <-ctx.Done():
			t.log.Info("tick engine stopped")
			return
		case <-ticker.C:
			t.TickOnce(t.now())
		}
	}
}

// TickOnce runs one recomputation pass at now and rings the alarm for new completions.
func (t *Ticker) TickOnce(now time.Time) []clinic.Completion {
	var completions []clinic.Completion
	t.store.replace(func(cur clinic.Snapshot) (clinic.Snapshot, bool) {
		if cur.InProgress() == 0 {
			return cur, false
		}
		var next clinic.Snapshot
		next, completions = clinic.Tick(cur, now)
		return next, true
	})
	t.metrics.Ticks.Inc()

	fresh := completions[:0]
	for _, c := range completions {
		if end, ok := t.rung[c.TreatmentID]; ok && end == c.TargetEndTime {
			continue
		}
		t.rung[c.TreatmentID] = c.TargetEndTime
		fresh = append(fresh, c)
	}
	for _, c := range fresh {
		t.metrics.Completions.Inc()
		t.alarm.Ring(c)
	}
	if len(t.rung) > maxRemembered {
		t.forget()
	}
	return fresh
}

// forget drops remembered alarms for treatments no longer on the board.
func (t *Ticker) forget() {
	live := make(map[string]struct{})
	for _, b := range t.store.Snapshot().Beds {
		for _, tr := range b.Treatments {
			live[tr.ID] = struct{}{}
		}
	}
	for id := range t.rung {
		if _, ok := live[id]; !ok {
			delete(t.rung, id)
		}
	}
}
