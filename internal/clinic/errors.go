package clinic

import "errors"

var (
	ErrBedNotFound        = errors.New("bed not found")
	ErrTreatmentNotFound  = errors.New("treatment not found")
	ErrWaitingNotFound    = errors.New("waiting patient not found")
	ErrTaskNotFound       = errors.New("director task not found")
	ErrBedUnoccupied      = errors.New("bed has no patient")
	ErrDuplicateTreatment = errors.New("bed already has a treatment of this kind")
	ErrDuplicateTask      = errors.New("treatment is already queued for the director")
	ErrUnknownKind        = errors.New("unknown treatment kind")
	ErrInvalidStatus      = errors.New("invalid treatment status")
	ErrInvalidCategory    = errors.New("invalid waiting category")
	ErrInvalidName        = errors.New("patient name is required")
	ErrNotDirectorKind    = errors.New("treatment kind cannot be queued for the director")

	// ErrTransferNotAllowed rejects transfers that do not involve the special bed.
	ErrTransferNotAllowed = errors.New("transfer allowed only to or from the special bed")
	// ErrMalformedTransfer marks a transfer payload with inconsistent or missing ids.
	ErrMalformedTransfer = errors.New("malformed transfer payload")
)
