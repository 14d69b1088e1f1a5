package clinic

import (
	"fmt"

	"github.com/google/uuid"
)

// Durations in seconds. Manual therapy counts up, so it has no configured total.
var durations = map[TreatmentKind]int{
	KindICT:         600,
	KindCupping:     180,
	KindAcupuncture: 600,
	KindHotPack:     600,
	KindIce:         300,
	KindManual:      0,
	KindUltrasound:  330,
	KindShockwave:   330,
}

var (
	defaultKinds = []TreatmentKind{KindICT, KindCupping, KindAcupuncture, KindHotPack}
	specialKinds = []TreatmentKind{KindUltrasound, KindShockwave}
)

var (
	AcupunctureTypes = []string{"통증", "태반", "봉침", "스티커침", "천추"}
	HotPackTypes     = []string{"자리로", "자기장", "두타베드"}
)

const (
	SpecialBedName = "특수 물리치료실"
	ordinaryBeds   = 9
)

var newID = uuid.NewString

func Duration(kind TreatmentKind) (int, bool) {
	d, ok := durations[kind]
	return d, ok
}

func ValidKind(kind TreatmentKind) bool {
	_, ok := durations[kind]
	return ok
}

// CountsUp reports whether the kind accumulates elapsed time instead of counting down.
func CountsUp(kind TreatmentKind) bool {
	return kind == KindManual
}

var Categories = []WaitingCategory{CategoryConsult, CategoryRevisit, CategoryUltrasound, CategoryShockwave}

func ValidCategory(c WaitingCategory) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Durations returns a copy of the configured duration per kind, in seconds.
func Durations() map[TreatmentKind]int {
	out := make(map[TreatmentKind]int, len(durations))
	for k, d := range durations {
		out[k] = d
	}
	return out
}

// DirectorKind reports whether a dropped treatment of this kind becomes a director task.
func DirectorKind(kind TreatmentKind) bool {
	switch kind {
	case KindAcupuncture, KindManual, KindCupping:
		return true
	}
	return false
}

func newTreatment(kind TreatmentKind, isDefault bool) Treatment {
	d := durations[kind]
	return Treatment{
		ID:        newID(),
		Name:      kind,
		Status:    StatusWaiting,
		TimeLeft:  d,
		Duration:  d,
		IsDefault: isDefault,
	}
}

// DefaultTreatments builds the treatments a bed receives on patient assignment.
func DefaultTreatments(bedID int) []Treatment {
	kinds := defaultKinds
	if bedID == SpecialBedID {
		kinds = specialKinds
	}
	out := make([]Treatment, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, newTreatment(k, true))
	}
	return out
}

// DefaultSnapshot is written when no backing record exists yet.
func DefaultSnapshot() Snapshot {
	beds := make([]Bed, 0, ordinaryBeds+1)
	beds = append(beds, Bed{ID: SpecialBedID, Name: SpecialBedName, Treatments: []Treatment{}})
	for i := 1; i <= ordinaryBeds; i++ {
		beds = append(beds, Bed{ID: i, Name: fmt.Sprintf("B%d", i), Treatments: []Treatment{}})
	}
	return Snapshot{
		Beds:          beds,
		WaitingList:   []WaitingPatient{},
		DirectorTasks: []DirectorTask{},
	}
}
