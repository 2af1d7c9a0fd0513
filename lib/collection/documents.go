package collection

import (
	"context"
	"fmt"

	"github.com/mediamanager/mstore/lib/doc"
	"github.com/mediamanager/mstore/lib/ident"
	"github.com/mediamanager/mstore/lib/store"
)

// DocStore keeps documents in a collection. Put and Update address documents by
// content, Patch edits a document in place under its existing ID.
type DocStore struct {
	*Collection[doc.Document]
}

// NewDocStore creates a document store over s under prefix.
func NewDocStore(s store.IStore, prefix string) *DocStore {
	return &DocStore{Collection: New[doc.Document](s, prefix)}
}

// Put stores d under the ID derived from its canonical encoding and returns that ID.
// Putting equal documents twice yields the same ID and a single entry.
func (ds *DocStore) Put(ctx context.Context, d doc.Document) (ident.ID, error) {
	id := ident.Generate(d.String())
	if err := ds.Set(ctx, id, d); err != nil {
		return "", err
	}
	return id, nil
}

// Update merges patch into the document stored under id and puts the result. The
// merged document is stored under its own content ID, which is returned; the entry
// under id is left untouched. Merge is biased towards the stored document, so a patch
// that only changes existing values produces the same content and the same ID.
// If id is absent nothing is written and a NotFound error is returned.
func (ds *DocStore) Update(ctx context.Context, id ident.ID, patch doc.Document) (ident.ID, error) {
	current, ok, err := ds.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", store.NewError(store.RetCNotFound, fmt.Sprintf("document %s not found", id))
	}
	return ds.Put(ctx, current.Merge(patch))
}

// Patch merges patch into the document stored under id and writes the result back
// under the same id. Values in patch replace stored values; keys missing from the
// stored document are added. If id is absent nothing is written and a NotFound error
// is returned.
func (ds *DocStore) Patch(ctx context.Context, id ident.ID, patch doc.Document) (doc.Document, error) {
	current, ok, err := ds.Get(ctx, id)
	if err != nil {
		return doc.Document{}, err
	}
	if !ok {
		return doc.Document{}, store.NewError(store.RetCNotFound, fmt.Sprintf("document %s not found", id))
	}
	next := patch.Merge(current)
	if err := ds.Set(ctx, id, next); err != nil {
		return doc.Document{}, err
	}
	return next, nil
}
