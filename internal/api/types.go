package api

import (
	"github.com/hackgods/clinic-status-board/internal/clinic"
)

type AssignPatientRequest struct {
	Name string `json:"name"`
}

type MemoRequest struct {
	Memo string `json:"memo"`
}

type AreaRequest struct {
	Area string `json:"area"`
}

type AddTreatmentRequest struct {
	Kind clinic.TreatmentKind `json:"kind"`
}

type AddWaitingRequest struct {
	Name     string                 `json:"name"`
	Category clinic.WaitingCategory `json:"category"`
}

type QueueDirectorTaskRequest struct {
	BedID       *int   `json:"bedId"`
	TreatmentID string `json:"treatmentId"`
}

type BoardResponse struct {
	Loading  bool `json:"loading"`
	Degraded bool `json:"degraded"`
	clinic.Snapshot
}

type CatalogResponse struct {
	Durations        map[clinic.TreatmentKind]int `json:"durations"`
	AcupunctureTypes []string                     `json:"acupunctureTypes"`
	HotPackTypes     []string                     `json:"hotPackTypes"`
	Categories       []clinic.WaitingCategory     `json:"categories"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
