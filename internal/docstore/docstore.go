package docstore

import (
	"context"
	"encoding/json"
	"errors"
)

var ErrDocumentNotFound = errors.New("document not found")

// Document is a replicated record keyed by top-level field. Values are raw JSON so the store
// never needs to understand what it replicates.
type Document map[string]json.RawMessage

// Listener receives every full value of a document. found is false while the document
// does not exist.
type Listener func(doc Document, found bool)

// DocumentStore is a single-document replicated store with push notifications.
type DocumentStore interface {
	// Subscribe delivers the current value and then every subsequent change until ctx is
	// done or the returned cancel func is called. It fails only if the subscription could
	// not be established.
	Subscribe(ctx context.Context, path string, fn Listener) (cancel func(), err error)

	// WriteInitial creates the document if it does not exist yet.
	WriteInitial(ctx context.Context, path string, doc Document) error

	// MergeUpdate overwrites the given top-level fields of an existing document.
	MergeUpdate(ctx context.Context, path string, partial Document) error
}

func (d Document) clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}
