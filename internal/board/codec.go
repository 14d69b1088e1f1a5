package board

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/hackgods/clinic-status-board/internal/clinic"
	"github.com/hackgods/clinic-status-board/internal/docstore"
)

var allFields = []clinic.Field{clinic.FieldBeds, clinic.FieldWaitingList, clinic.FieldDirectorTasks}

func encodeFields(s clinic.Snapshot, fields ...clinic.Field) (docstore.Document, error) {
	doc := make(docstore.Document, len(fields))
	for _, f := range fields {
		var v any
		switch f {
		case clinic.FieldBeds:
			v = s.Beds
		case clinic.FieldWaitingList:
			v = s.WaitingList
		case clinic.FieldDirectorTasks:
			v = s.DirectorTasks
		default:
			return nil, fmt.Errorf("unknown snapshot field %q", f)
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", f, err)
		}
		doc[string(f)] = raw
	}
	return doc, nil
}

// decodeSnapshot reads a replicated document. Missing groups decode as empty.
func decodeSnapshot(doc docstore.Document) (clinic.Snapshot, error) {
	s := clinic.Snapshot{
		Beds:          []clinic.Bed{},
		WaitingList:   []clinic.WaitingPatient{},
		DirectorTasks: []clinic.DirectorTask{},
	}
	targets := map[clinic.Field]any{
		clinic.FieldBeds:          &s.Beds,
		clinic.FieldWaitingList:   &s.WaitingList,
		clinic.FieldDirectorTasks: &s.DirectorTasks,
	}
	for f, dst := range targets {
		raw, ok := doc[string(f)]
		if !ok || len(raw) == 0 || string(raw) == "null" {
			continue
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return clinic.Snapshot{}, fmt.Errorf("decode %s: %w", f, err)
		}
	}
	for i := range s.Beds {
		if s.Beds[i].Treatments == nil {
			s.Beds[i].Treatments = []clinic.Treatment{}
		}
	}
	return s, nil
}

// mergeFields copies the named groups of src over dst.
func mergeFields(dst, src clinic.Snapshot, fields ...clinic.Field) clinic.Snapshot {
	out := dst.Clone()
	src = src.Clone()
	for _, f := range fields {
		switch f {
		case clinic.FieldBeds:
			out.Beds = src.Beds
		case clinic.FieldWaitingList:
			out.WaitingList = src.WaitingList
		case clinic.FieldDirectorTasks:
			out.DirectorTasks = src.DirectorTasks
		}
	}
	return out
}

// canonicalFields re-encodes doc through the snapshot types, so it compares equal to a pushed
// document regardless of how the backend formatted the JSON.
func canonicalFields(doc docstore.Document, fields []clinic.Field) (docstore.Document, error) {
	snap, err := decodeSnapshot(doc)
	if err != nil {
		return nil, err
	}
	return encodeFields(snap, fields...)
}

func sameFields(a, b docstore.Document) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if !bytes.Equal(v, b[k]) {
			return false
		}
	}
	return true
}
