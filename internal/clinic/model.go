package clinic

import (
	"time"
)

type TreatmentStatus string

const (
	StatusWaiting    TreatmentStatus = "대기"
	StatusInProgress TreatmentStatus = "진행중"
	StatusDone       TreatmentStatus = "완료"
	StatusSkipped    TreatmentStatus = "안함"
)

type TreatmentKind string

const (
	KindICT         TreatmentKind = "ICT"
	KindCupping     TreatmentKind = "부항"
	KindAcupuncture TreatmentKind = "침"
	KindHotPack     TreatmentKind = "핫팩"
	KindIce         TreatmentKind = "Ice"
	KindManual      TreatmentKind = "추나"
	KindUltrasound  TreatmentKind = "소노"
	KindShockwave   TreatmentKind = "충격파"
)

type WaitingCategory string

const (
	CategoryConsult    WaitingCategory = "상담"
	CategoryRevisit    WaitingCategory = "재진"
	CategoryUltrasound WaitingCategory = "소노"
	CategoryShockwave  WaitingCategory = "충격파"
)

// SpecialBedID is the special treatment room. Cross-bed transfers must touch it.
const SpecialBedID = 0

type Treatment struct {
	ID              string          `json:"id"`
	Name            TreatmentKind   `json:"name"`
	Status          TreatmentStatus `json:"status"`
	TimeLeft        int             `json:"timeLeft"`
	TargetEndTime   int64           `json:"targetEndTime,omitempty"` // unix millis, only while in progress
	ElapsedTime     int             `json:"elapsedTime"`
	Duration        int             `json:"duration"`
	IsDefault       bool            `json:"isDefault"`
	Area            string          `json:"area,omitempty"`
	IsWet           bool            `json:"isWet,omitempty"`
	AcupunctureType string          `json:"acupunctureType,omitempty"`
	HotPackType     string          `json:"hotPackType,omitempty"`
	HotPackMemo     string          `json:"hotPackMemo,omitempty"`
}

type Bed struct {
	ID          int         `json:"id"`
	Name        string      `json:"name"`
	PatientName string      `json:"patientName"`
	Area        string      `json:"area"`
	Memo        string      `json:"memo"`
	Treatments  []Treatment `json:"treatments"`
	IsAlarming  bool        `json:"isAlarming,omitempty"`
}

func (b Bed) Occupied() bool {
	return b.PatientName != ""
}

type WaitingPatient struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Category     WaitingCategory `json:"category"`
	WaitingSince int64           `json:"waitingSince"`
}

type DirectorTask struct {
	ID            string        `json:"id"`
	BedID         int           `json:"bedId"`
	BedName       string        `json:"bedName"`
	PatientName   string        `json:"patientName"`
	TreatmentName TreatmentKind `json:"treatmentName"`
	Details       string        `json:"details,omitempty"`
	WaitingSince  int64         `json:"waitingSince"`
	TreatmentID   string        `json:"treatmentId"`
}

// Snapshot is the whole replicated board: the unit of replication and of writes.
type Snapshot struct {
	Beds          []Bed            `json:"beds"`
	WaitingList   []WaitingPatient `json:"waitingList"`
	DirectorTasks []DirectorTask   `json:"directorTasks"`
}

// Clone deep-copies the snapshot so transitions never alias the caller's slices.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Beds:          make([]Bed, len(s.Beds)),
		WaitingList:   append([]WaitingPatient{}, s.WaitingList...),
		DirectorTasks: append([]DirectorTask{}, s.DirectorTasks...),
	}
	for i, b := range s.Beds {
		b.Treatments = append([]Treatment{}, b.Treatments...)
		out.Beds[i] = b
	}
	return out
}

func (s Snapshot) Bed(id int) (Bed, bool) {
	for _, b := range s.Beds {
		if b.ID == id {
			return b, true
		}
	}
	return Bed{}, false
}

func (s Snapshot) bedIndex(id int) int {
	for i, b := range s.Beds {
		if b.ID == id {
			return i
		}
	}
	return -1
}

// Completion is raised once when a countdown treatment reaches zero.
type Completion struct {
	BedID         int           `json:"bedId"`
	BedName       string        `json:"bedName"`
	PatientName   string        `json:"patientName"`
	TreatmentID   string        `json:"treatmentId"`
	TreatmentName TreatmentKind `json:"treatmentName"`
	TargetEndTime int64         `json:"targetEndTime"`
}

func millis(t time.Time) int64 {
	return t.UnixMilli()
}

// InProgress counts treatments the tick engine has to look at.
func (s Snapshot) InProgress() int {
	n := 0
	for _, b := range s.Beds {
		for _, t := range b.Treatments {
			if t.Status == StatusInProgress {
				n++
			}
		}
	}
	return n
}
