package clinic

import (
	"strings"
	"time"
)

// Field names the top-level groups of a snapshot. Commits send whole groups.
type Field string

const (
	FieldBeds          Field = "beds"
	FieldWaitingList   Field = "waitingList"
	FieldDirectorTasks Field = "directorTasks"
)

// TreatmentUpdate is a partial update; nil fields are left untouched.
type TreatmentUpdate struct {
	Status          *TreatmentStatus `json:"status,omitempty"`
	Duration        *int             `json:"duration,omitempty"`
	ElapsedTime     *int             `json:"elapsedTime,omitempty"`
	Area            *string          `json:"area,omitempty"`
	IsWet           *bool            `json:"isWet,omitempty"`
	AcupunctureType *string          `json:"acupunctureType,omitempty"`
	HotPackType     *string          `json:"hotPackType,omitempty"`
	HotPackMemo     *string          `json:"hotPackMemo,omitempty"`
}

func validStatus(st TreatmentStatus) bool {
	_, ok := statusPriority[st]
	return ok
}

func clearBed(b *Bed) {
	b.PatientName = ""
	b.Area = ""
	b.Memo = ""
	b.Treatments = []Treatment{}
	b.IsAlarming = false
}

func removeTasks(tasks []DirectorTask, drop func(DirectorTask) bool) []DirectorTask {
	out := make([]DirectorTask, 0, len(tasks))
	for _, t := range tasks {
		if !drop(t) {
			out = append(out, t)
		}
	}
	return out
}

// dropOrphanTasks removes tasks for bed whose treatment is no longer on it.
func dropOrphanTasks(tasks []DirectorTask, bed Bed) []DirectorTask {
	return removeTasks(tasks, func(t DirectorTask) bool {
		if t.BedID != bed.ID {
			return false
		}
		for _, tr := range bed.Treatments {
			if tr.ID == t.TreatmentID {
				return false
			}
		}
		return true
	})
}

// AssignPatient puts a patient on a bed and regenerates its default treatments.
// An empty name discharges the bed. Director tasks for the replaced treatments are dropped.
func AssignPatient(s Snapshot, bedID int, name string) (Snapshot, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Discharge(s, bedID)
	}
	next := s.Clone()
	i := next.bedIndex(bedID)
	if i < 0 {
		return s, ErrBedNotFound
	}
	next.Beds[i].PatientName = name
	next.Beds[i].Treatments = DefaultTreatments(bedID)
	next.DirectorTasks = dropOrphanTasks(next.DirectorTasks, next.Beds[i])
	return next, nil
}

// Discharge empties a bed and drops director tasks that point at it.
func Discharge(s Snapshot, bedID int) (Snapshot, error) {
	next := s.Clone()
	i := next.bedIndex(bedID)
	if i < 0 {
		return s, ErrBedNotFound
	}
	clearBed(&next.Beds[i])
	next.DirectorTasks = removeTasks(next.DirectorTasks, func(t DirectorTask) bool {
		return t.BedID == bedID
	})
	return next, nil
}

func UpdateMemo(s Snapshot, bedID int, memo string) (Snapshot, error) {
	next := s.Clone()
	i := next.bedIndex(bedID)
	if i < 0 {
		return s, ErrBedNotFound
	}
	next.Beds[i].Memo = memo
	return next, nil
}

func UpdateArea(s Snapshot, bedID int, area string) (Snapshot, error) {
	next := s.Clone()
	i := next.bedIndex(bedID)
	if i < 0 {
		return s, ErrBedNotFound
	}
	next.Beds[i].Area = area
	return next, nil
}

// UpdateTreatment applies u to one treatment. Entering in-progress re-arms the timer from
// now. Afterwards skipped ad-hoc treatments are dropped and the list is re-sorted.
func UpdateTreatment(s Snapshot, bedID int, treatmentID string, u TreatmentUpdate, now time.Time) (Snapshot, error) {
	if u.Status != nil && !validStatus(*u.Status) {
		return s, ErrInvalidStatus
	}
	next := s.Clone()
	bi := next.bedIndex(bedID)
	if bi < 0 {
		return s, ErrBedNotFound
	}
	bed := &next.Beds[bi]

	found := false
	for ti := range bed.Treatments {
		t := &bed.Treatments[ti]
		if t.ID != treatmentID {
			continue
		}
		found = true
		applyUpdate(t, u, now)
		break
	}
	if !found {
		return s, ErrTreatmentNotFound
	}

	kept := bed.Treatments[:0]
	for _, t := range bed.Treatments {
		if t.Status == StatusSkipped && !t.IsDefault {
			continue
		}
		kept = append(kept, t)
	}
	bed.Treatments = kept
	sortTreatments(bed.Treatments)
	return next, nil
}

func applyUpdate(t *Treatment, u TreatmentUpdate, now time.Time) {
	if u.Duration != nil && *u.Duration >= 0 {
		t.Duration = *u.Duration
	}
	if u.ElapsedTime != nil && *u.ElapsedTime >= 0 {
		t.ElapsedTime = *u.ElapsedTime
	}
	if u.Area != nil {
		t.Area = *u.Area
	}
	if u.IsWet != nil {
		t.IsWet = *u.IsWet
	}
	if u.AcupunctureType != nil {
		t.AcupunctureType = *u.AcupunctureType
	}
	if u.HotPackType != nil {
		t.HotPackType = *u.HotPackType
	}
	if u.HotPackMemo != nil {
		t.HotPackMemo = *u.HotPackMemo
	}
	if u.Status == nil {
		return
	}
	t.Status = *u.Status
	if t.Status == StatusInProgress {
		t.TargetEndTime = millis(now) + int64(t.Duration)*1000
		t.TimeLeft = t.Duration
		return
	}
	t.TargetEndTime = 0
}

// StartTreatment is UpdateTreatment with status in-progress.
func StartTreatment(s Snapshot, bedID int, treatmentID string, now time.Time) (Snapshot, error) {
	st := StatusInProgress
	return UpdateTreatment(s, bedID, treatmentID, TreatmentUpdate{Status: &st}, now)
}

// AddExtraTreatment appends an ad-hoc treatment unless the bed already has that kind.
func AddExtraTreatment(s Snapshot, bedID int, kind TreatmentKind) (Snapshot, error) {
	if !ValidKind(kind) {
		return s, ErrUnknownKind
	}
	next := s.Clone()
	i := next.bedIndex(bedID)
	if i < 0 {
		return s, ErrBedNotFound
	}
	bed := &next.Beds[i]
	if !bed.Occupied() {
		return s, ErrBedUnoccupied
	}
	if hasKind(bed.Treatments, kind) {
		return s, ErrDuplicateTreatment
	}
	bed.Treatments = append(bed.Treatments, newTreatment(kind, false))
	sortTreatments(bed.Treatments)
	return next, nil
}

func hasKind(ts []Treatment, kind TreatmentKind) bool {
	for _, t := range ts {
		if t.Name == kind {
			return true
		}
	}
	return false
}

// TransferAllowed holds the clinic policy: one side of every move is the special bed.
func TransferAllowed(fromBedID, toBedID int) bool {
	if fromBedID == toBedID {
		return false
	}
	return fromBedID == SpecialBedID || toBedID == SpecialBedID
}

func transferBeds(s Snapshot, fromBedID, toBedID int) (Snapshot, int, int, error) {
	if fromBedID == toBedID {
		return s, -1, -1, ErrMalformedTransfer
	}
	if !TransferAllowed(fromBedID, toBedID) {
		return s, -1, -1, ErrTransferNotAllowed
	}
	next := s.Clone()
	fi, ti := next.bedIndex(fromBedID), next.bedIndex(toBedID)
	if fi < 0 || ti < 0 || !next.Beds[fi].Occupied() {
		return s, -1, -1, ErrMalformedTransfer
	}
	return next, fi, ti, nil
}

func inheritNotes(dst *Bed, src Bed) {
	if dst.Memo == "" {
		dst.Memo = src.Memo
	}
	if dst.Area == "" {
		dst.Area = src.Area
	}
}

// TransferPatient moves a patient with all current treatments to another bed and empties
// the source. Onto an occupied bed only kinds the destination lacks are carried over.
// Director tasks follow the patient, except those whose treatment was not carried over.
func TransferPatient(s Snapshot, fromBedID, toBedID int) (Snapshot, error) {
	next, fi, ti, err := transferBeds(s, fromBedID, toBedID)
	if err != nil {
		return s, err
	}
	src, dst := next.Beds[fi], &next.Beds[ti]

	if dst.Occupied() {
		for _, t := range src.Treatments {
			if !hasKind(dst.Treatments, t.Name) {
				dst.Treatments = append(dst.Treatments, t)
			}
		}
	} else {
		dst.PatientName = src.PatientName
		dst.Treatments = append([]Treatment{}, src.Treatments...)
	}
	sortTreatments(dst.Treatments)
	inheritNotes(dst, src)
	clearBed(&next.Beds[fi])

	for i := range next.DirectorTasks {
		if next.DirectorTasks[i].BedID == fromBedID {
			next.DirectorTasks[i].BedID = dst.ID
			next.DirectorTasks[i].BedName = dst.Name
		}
	}
	next.DirectorTasks = dropOrphanTasks(next.DirectorTasks, *dst)
	return next, nil
}

// TransferTreatment moves one treatment to another bed as a fresh waiting item. An empty
// destination is first assigned the patient with its own default set. A source left without
// treatments is discharged.
func TransferTreatment(s Snapshot, fromBedID, toBedID int, treatmentID string) (Snapshot, error) {
	next, fi, ti, err := transferBeds(s, fromBedID, toBedID)
	if err != nil {
		return s, err
	}
	src, dst := &next.Beds[fi], &next.Beds[ti]

	var moving *Treatment
	remaining := make([]Treatment, 0, len(src.Treatments))
	for i := range src.Treatments {
		if src.Treatments[i].ID == treatmentID {
			t := src.Treatments[i]
			moving = &t
			continue
		}
		remaining = append(remaining, src.Treatments[i])
	}
	if moving == nil {
		return s, ErrMalformedTransfer
	}

	if !dst.Occupied() {
		dst.PatientName = src.PatientName
		dst.Treatments = DefaultTreatments(dst.ID)
	}
	if !hasKind(dst.Treatments, moving.Name) {
		moved := *moving
		moved.ID = newID()
		moved.Status = StatusWaiting
		moved.TargetEndTime = 0
		moved.TimeLeft = moved.Duration
		dst.Treatments = append(dst.Treatments, moved)
	}
	sortTreatments(dst.Treatments)
	inheritNotes(dst, *src)

	next.DirectorTasks = removeTasks(next.DirectorTasks, func(t DirectorTask) bool {
		return t.TreatmentID == treatmentID
	})

	if len(remaining) == 0 {
		return Discharge(next, fromBedID)
	}
	src.Treatments = remaining
	return next, nil
}

// AddWaitingPatient appends an intake entry to the waiting list.
func AddWaitingPatient(s Snapshot, name string, category WaitingCategory, now time.Time) (Snapshot, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return s, ErrInvalidName
	}
	if !ValidCategory(category) {
		return s, ErrInvalidCategory
	}
	next := s.Clone()
	next.WaitingList = append(next.WaitingList, WaitingPatient{
		ID:           newID(),
		Name:         name,
		Category:     category,
		WaitingSince: millis(now),
	})
	return next, nil
}

func RemoveWaitingPatient(s Snapshot, id string) (Snapshot, error) {
	next := s.Clone()
	for i, p := range next.WaitingList {
		if p.ID == id {
			next.WaitingList = append(next.WaitingList[:i], next.WaitingList[i+1:]...)
			return next, nil
		}
	}
	return s, ErrWaitingNotFound
}

// AdmitWaitingPatient assigns a waiting patient to a bed and takes them off the list.
func AdmitWaitingPatient(s Snapshot, waitingID string, bedID int) (Snapshot, error) {
	var patient *WaitingPatient
	for i := range s.WaitingList {
		if s.WaitingList[i].ID == waitingID {
			patient = &s.WaitingList[i]
			break
		}
	}
	if patient == nil {
		return s, ErrMalformedTransfer
	}
	if _, ok := s.Bed(bedID); !ok {
		return s, ErrMalformedTransfer
	}
	next, err := AssignPatient(s, bedID, patient.Name)
	if err != nil {
		return s, err
	}
	return RemoveWaitingPatient(next, waitingID)
}

// QueueDirectorTask handles a treatment dropped on the director queue. Acupuncture, manual
// therapy and cupping become director tasks; ultrasound and shockwave become waiting-list
// intakes under their own category.
func QueueDirectorTask(s Snapshot, bedID int, treatmentID string, now time.Time) (Snapshot, []Field, error) {
	bed, ok := s.Bed(bedID)
	if !ok || !bed.Occupied() {
		return s, nil, ErrMalformedTransfer
	}
	var t *Treatment
	for i := range bed.Treatments {
		if bed.Treatments[i].ID == treatmentID {
			t = &bed.Treatments[i]
			break
		}
	}
	if t == nil {
		return s, nil, ErrMalformedTransfer
	}

	switch {
	case DirectorKind(t.Name):
		for _, task := range s.DirectorTasks {
			if task.TreatmentID == treatmentID {
				return s, nil, ErrDuplicateTask
			}
		}
		next := s.Clone()
		next.DirectorTasks = append(next.DirectorTasks, DirectorTask{
			ID:            newID(),
			BedID:         bed.ID,
			BedName:       bed.Name,
			PatientName:   bed.PatientName,
			TreatmentName: t.Name,
			Details:       taskDetails(*t),
			WaitingSince:  millis(now),
			TreatmentID:   t.ID,
		})
		return next, []Field{FieldDirectorTasks}, nil
	case t.Name == KindUltrasound || t.Name == KindShockwave:
		next, err := AddWaitingPatient(s, bed.PatientName, WaitingCategory(t.Name), now)
		if err != nil {
			return s, nil, err
		}
		return next, []Field{FieldWaitingList}, nil
	default:
		return s, nil, ErrNotDirectorKind
	}
}

func taskDetails(t Treatment) string {
	if t.AcupunctureType != "" {
		return t.AcupunctureType
	}
	return t.Area
}

// CompleteDirectorTask resumes the originating treatment and removes the task. A task whose
// treatment no longer exists is simply removed.
func CompleteDirectorTask(s Snapshot, taskID string, now time.Time) (Snapshot, error) {
	var task *DirectorTask
	for i := range s.DirectorTasks {
		if s.DirectorTasks[i].ID == taskID {
			task = &s.DirectorTasks[i]
			break
		}
	}
	if task == nil {
		return s, ErrTaskNotFound
	}

	next, err := StartTreatment(s, task.BedID, task.TreatmentID, now)
	if err != nil {
		next = s
	}
	return DismissDirectorTask(next, taskID)
}

func DismissDirectorTask(s Snapshot, taskID string) (Snapshot, error) {
	next := s.Clone()
	for i, t := range next.DirectorTasks {
		if t.ID == taskID {
			next.DirectorTasks = append(next.DirectorTasks[:i], next.DirectorTasks[i+1:]...)
			return next, nil
		}
	}
	return s, ErrTaskNotFound
}
