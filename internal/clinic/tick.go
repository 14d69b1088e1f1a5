package clinic

import (
	"sort"
	"time"
)

var statusPriority = map[TreatmentStatus]int{
	StatusInProgress: 0,
	StatusWaiting:    1,
	StatusDone:       2,
	StatusSkipped:    3,
}

func sortTreatments(ts []Treatment) {
	sort.SliceStable(ts, func(i, j int) bool {
		return statusPriority[ts[i].Status] < statusPriority[ts[j].Status]
	})
}

// RemainingSeconds is max(0, floor((targetEnd - now) / 1s)) with targetEnd in unix millis.
func RemainingSeconds(targetEnd int64, now time.Time) int {
	diff := targetEnd - millis(now)
	if diff <= 0 {
		return 0
	}
	return int(diff / 1000)
}

// Tick recomputes every in-progress treatment against now. Count-up treatments gain one
// second of elapsed time per call; countdown treatments derive timeLeft from their
// targetEndTime and flip to done the first time it reaches zero. Beds with a fresh
// completion start alarming. The input snapshot is not modified.
func Tick(s Snapshot, now time.Time) (Snapshot, []Completion) {
	next := s.Clone()
	var completions []Completion

	for bi := range next.Beds {
		bed := &next.Beds[bi]
		finished := false

		for ti := range bed.Treatments {
			t := &bed.Treatments[ti]
			if t.Status != StatusInProgress {
				continue
			}
			if CountsUp(t.Name) {
				t.ElapsedTime++
				continue
			}
			if t.TargetEndTime == 0 {
				continue
			}

			remaining := RemainingSeconds(t.TargetEndTime, now)
			if remaining == t.TimeLeft {
				continue
			}
			t.TimeLeft = remaining
			if remaining > 0 {
				continue
			}

			completions = append(completions, Completion{
				BedID:         bed.ID,
				BedName:       bed.Name,
				PatientName:   bed.PatientName,
				TreatmentID:   t.ID,
				TreatmentName: t.Name,
				TargetEndTime: t.TargetEndTime,
			})
			t.Status = StatusDone
			t.TargetEndTime = 0
			finished = true
		}

		if finished {
			bed.IsAlarming = true
			sortTreatments(bed.Treatments)
		}
	}

	return next, completions
}
