// Package memory is an in-process implementation of
// repository.DocumentRepository with the same filter, ordering and cursor
// semantics as the PostgreSQL store. It backs RECORD_STORE=memory and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"docservice/internal/model"
	"docservice/internal/repository"
)

// DocumentMemory is safe for concurrent use.
type DocumentMemory struct {
	mu         sync.RWMutex
	seq        int64
	docs       map[int64]model.Document
	byExternal map[string]int64
}

// NewDocumentMemory returns an empty store.
func NewDocumentMemory() *DocumentMemory {
	return &DocumentMemory{
		docs:       make(map[int64]model.Document),
		byExternal: make(map[string]int64),
	}
}

var _ repository.DocumentRepository = (*DocumentMemory)(nil)

func (r *DocumentMemory) Create(ctx context.Context, doc *model.Document) (*model.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if doc.ExternalID != "" {
		if _, ok := r.byExternal[doc.ExternalID]; ok {
			return nil, repository.ErrDuplicate
		}
	}

	r.seq++
	stored := doc.Clone()
	stored.ID = r.seq
	r.docs[stored.ID] = stored
	if stored.ExternalID != "" {
		r.byExternal[stored.ExternalID] = stored.ID
	}

	out := stored.Clone()
	return &out, nil
}

// Update keeps the stored external id; it is immutable after creation.
func (r *DocumentMemory) Update(ctx context.Context, doc *model.Document) (*model.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.docs[doc.ID]
	if !ok {
		return nil, repository.ErrNotFound
	}

	stored := doc.Clone()
	stored.ExternalID = cur.ExternalID
	r.docs[stored.ID] = stored

	out := stored.Clone()
	return &out, nil
}

func (r *DocumentMemory) FindByID(ctx context.Context, id int64) (*model.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.docs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := d.Clone()
	return &out, nil
}

func (r *DocumentMemory) List(ctx context.Context, q repository.ListQuery) ([]model.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.collect(q.Filter, q.Ordering, nil, 0), nil
}

func (r *DocumentMemory) ListPage(ctx context.Context, q repository.ListQuery, page repository.PageRequest) (*repository.Page[model.Document], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w, err := repository.NewWindow(q.Ordering, page)
	if err != nil {
		return nil, err
	}
	rows := r.collect(q.Filter, w.ScanOrdering(), w.Admits, w.Limit)
	return w.Assemble(rows), nil
}

func (r *DocumentMemory) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.docs[id]
	if !ok {
		return repository.ErrNotFound
	}
	delete(r.docs, id)
	delete(r.byExternal, d.ExternalID)
	return nil
}

// collect returns clones of matching documents sorted by o. A zero limit
// returns everything.
func (r *DocumentMemory) collect(f repository.Filter, o repository.Ordering, admit func(*model.Document) bool, limit int) []model.Document {
	r.mu.RLock()
	out := make([]model.Document, 0, len(r.docs))
	for _, d := range r.docs {
		if !f.Matches(&d) {
			continue
		}
		if admit != nil && !admit(&d) {
			continue
		}
		out = append(out, d.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return o.Less(&out[i], &out[j]) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
