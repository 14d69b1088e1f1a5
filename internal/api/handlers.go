package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/clinic-status-board/internal/board"
	"github.com/hackgods/clinic-status-board/internal/clinic"
)

const maxBodyBytes = 64 << 10

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	return true
}

func bedIDParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "bedID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_bed_id", "bed id must be an integer")
		return 0, false
	}
	return id, true
}

// accepted answers a mutation. The new board arrives over the websocket once the backing
// document pushes it back.
func accepted(w http.ResponseWriter, err error) {
	if err != nil {
		handleMutationError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func handleMutationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, clinic.ErrBedNotFound):
		writeError(w, http.StatusNotFound, "bed_not_found", err.Error())
	case errors.Is(err, clinic.ErrTreatmentNotFound):
		writeError(w, http.StatusNotFound, "treatment_not_found", err.Error())
	case errors.Is(err, clinic.ErrWaitingNotFound):
		writeError(w, http.StatusNotFound, "waiting_patient_not_found", err.Error())
	case errors.Is(err, clinic.ErrTaskNotFound):
		writeError(w, http.StatusNotFound, "director_task_not_found", err.Error())
	case errors.Is(err, clinic.ErrBedUnoccupied):
		writeError(w, http.StatusConflict, "bed_unoccupied", err.Error())
	case errors.Is(err, clinic.ErrDuplicateTreatment):
		writeError(w, http.StatusConflict, "duplicate_treatment", err.Error())
	case errors.Is(err, clinic.ErrDuplicateTask):
		writeError(w, http.StatusConflict, "duplicate_director_task", err.Error())
	case errors.Is(err, clinic.ErrTransferNotAllowed):
		writeError(w, http.StatusConflict, "transfer_not_allowed", err.Error())
	case errors.Is(err, clinic.ErrUnknownKind),
		errors.Is(err, clinic.ErrInvalidStatus),
		errors.Is(err, clinic.ErrInvalidCategory),
		errors.Is(err, clinic.ErrInvalidName),
		errors.Is(err, clinic.ErrNotDirectorKind),
		errors.Is(err, clinic.ErrMalformedTransfer):
		writeError(w, http.StatusUnprocessableEntity, "invalid_mutation", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func getBoardHandler(store *board.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, BoardResponse{
			Loading:  store.Loading(),
			Degraded: store.Degraded(),
			Snapshot: store.Snapshot(),
		})
	}
}

func catalogHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, CatalogResponse{
		Durations:        clinic.Durations(),
		AcupunctureTypes: clinic.AcupunctureTypes,
		HotPackTypes:     clinic.HotPackTypes,
		Categories:       clinic.Categories,
	})
}

func assignPatientHandler(svc *board.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bedID, ok := bedIDParam(w, r)
		if !ok {
			return
		}
		var req AssignPatientRequest
		if !decodeBody(w, r, &req) {
			return
		}
		accepted(w, svc.AssignPatient(r.Context(), bedID, req.Name))
	}
}

func dischargeHandler(svc *board.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bedID, ok := bedIDParam(w, r)
		if !ok {
			return
		}
		accepted(w, svc.Discharge(r.Context(), bedID))
	}
}

func updateMemoHandler(svc *board.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bedID, ok := bedIDParam(w, r)
		if !ok {
			return
		}
		var req MemoRequest
		if !decodeBody(w, r, &req) {
			return
		}
		accepted(w, svc.UpdateMemo(r.Context(), bedID, req.Memo))
	}
}

func updateAreaHandler(svc *board.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bedID, ok := bedIDParam(w, r)
		if !ok {
			return
		}
		var req AreaRequest
		if !decodeBody(w, r, &req) {
			return
		}
		accepted(w, svc.UpdateArea(r.Context(), bedID, req.Area))
	}
}

func addTreatmentHandler(svc *board.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bedID, ok := bedIDParam(w, r)
		if !ok {
			return
		}
		var req AddTreatmentRequest
		if !decodeBody(w, r, &req) {
			return
		}
		accepted(w, svc.AddExtraTreatment(r.Context(), bedID, req.Kind))
	}
}

func updateTreatmentHandler(svc *board.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bedID, ok := bedIDParam(w, r)
		if !ok {
			return
		}
		var req clinic.TreatmentUpdate
		if !decodeBody(w, r, &req) {
			return
		}
		accepted(w, svc.UpdateTreatment(r.Context(), bedID, chi.URLParam(r, "treatmentID"), req))
	}
}

// transferHandler takes the drag-and-drop payload verbatim.
func transferHandler(svc *board.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
			return
		}
		accepted(w, svc.Transfer(r.Context(), payload))
	}
}

func addWaitingHandler(svc *board.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AddWaitingRequest
		if !decodeBody(w, r, &req) {
			return
		}
		accepted(w, svc.AddWaitingPatient(r.Context(), req.Name, req.Category))
	}
}

func removeWaitingHandler(svc *board.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accepted(w, svc.RemoveWaitingPatient(r.Context(), chi.URLParam(r, "id")))
	}
}

func queueDirectorTaskHandler(svc *board.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req QueueDirectorTaskRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.BedID == nil || req.TreatmentID == "" {
			writeError(w, http.StatusUnprocessableEntity, "invalid_mutation", "bedId and treatmentId are required")
			return
		}
		accepted(w, svc.QueueDirectorTask(r.Context(), *req.BedID, req.TreatmentID))
	}
}

func completeDirectorTaskHandler(svc *board.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accepted(w, svc.CompleteDirectorTask(r.Context(), chi.URLParam(r, "id")))
	}
}

func dismissDirectorTaskHandler(svc *board.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accepted(w, svc.DismissDirectorTask(r.Context(), chi.URLParam(r, "id")))
	}
}
