package clinic

import (
	"encoding/json"
	"fmt"
	"time"
)

// Intent is a parsed drag-and-drop payload.
type Intent interface {
	Apply(s Snapshot, now time.Time) (Snapshot, error)
	// Touches lists the snapshot groups the intent rewrites.
	Touches() []Field
}

const (
	IntentPatientTransfer   = "patient_transfer"
	IntentTreatmentTransfer = "treatment_transfer"
	IntentWaitingIntake     = "waiting_intake"
)

type PatientTransfer struct {
	FromBedID int
	ToBedID   int
}

func (p PatientTransfer) Apply(s Snapshot, _ time.Time) (Snapshot, error) {
	return TransferPatient(s, p.FromBedID, p.ToBedID)
}

func (PatientTransfer) Touches() []Field {
	return []Field{FieldBeds, FieldDirectorTasks}
}

type TreatmentTransfer struct {
	FromBedID   int
	ToBedID     int
	TreatmentID string
}

func (t TreatmentTransfer) Apply(s Snapshot, _ time.Time) (Snapshot, error) {
	return TransferTreatment(s, t.FromBedID, t.ToBedID, t.TreatmentID)
}

func (TreatmentTransfer) Touches() []Field {
	return []Field{FieldBeds, FieldDirectorTasks}
}

type WaitingIntake struct {
	WaitingID string
	ToBedID   int
}

func (w WaitingIntake) Apply(s Snapshot, _ time.Time) (Snapshot, error) {
	return AdmitWaitingPatient(s, w.WaitingID, w.ToBedID)
}

func (WaitingIntake) Touches() []Field {
	return []Field{FieldBeds, FieldWaitingList, FieldDirectorTasks}
}

type intentEnvelope struct {
	Type        string  `json:"type"`
	FromBedID   *int    `json:"fromBedId"`
	ToBedID     *int    `json:"toBedId"`
	TreatmentID *string `json:"treatmentId"`
	WaitingID   *string `json:"waitingId"`
}

// ParseIntent decodes a transfer payload. Anything that is not exactly one of the known
// variants with its required ids yields ErrMalformedTransfer.
func ParseIntent(data []byte) (Intent, error) {
	var env intentEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTransfer, err)
	}

	switch env.Type {
	case IntentPatientTransfer:
		if env.FromBedID == nil || env.ToBedID == nil {
			return nil, fmt.Errorf("%w: patient transfer needs fromBedId and toBedId", ErrMalformedTransfer)
		}
		return PatientTransfer{FromBedID: *env.FromBedID, ToBedID: *env.ToBedID}, nil
	case IntentTreatmentTransfer:
		if env.FromBedID == nil || env.ToBedID == nil || env.TreatmentID == nil || *env.TreatmentID == "" {
			return nil, fmt.Errorf("%w: treatment transfer needs fromBedId, toBedId and treatmentId", ErrMalformedTransfer)
		}
		return TreatmentTransfer{FromBedID: *env.FromBedID, ToBedID: *env.ToBedID, TreatmentID: *env.TreatmentID}, nil
	case IntentWaitingIntake:
		if env.WaitingID == nil || *env.WaitingID == "" || env.ToBedID == nil {
			return nil, fmt.Errorf("%w: waiting intake needs waitingId and toBedId", ErrMalformedTransfer)
		}
		return WaitingIntake{WaitingID: *env.WaitingID, ToBedID: *env.ToBedID}, nil
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformedTransfer, env.Type)
	}
}
