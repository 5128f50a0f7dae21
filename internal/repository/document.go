package repository

import (
	"context"
	"errors"

	"docservice/internal/model"
)

var (
	// ErrNotFound is returned when no document has the requested id.
	ErrNotFound = errors.New("document not found")
	// ErrDuplicate is returned when a unique column such as external_id collides.
	ErrDuplicate = errors.New("document already exists")
)

// DocumentRepository defines data access for document records.
// Persistence only, no business rules.
type DocumentRepository interface {
	// Create inserts a new document record and returns it with the
	// store-assigned id.
	Create(ctx context.Context, doc *model.Document) (*model.Document, error)

	// Update replaces every mutable column of the record with doc.ID.
	Update(ctx context.Context, doc *model.Document) (*model.Document, error)

	// FindByID returns a document by its ID.
	FindByID(ctx context.Context, id int64) (*model.Document, error)

	// List returns every document matching q, ordered, without pagination.
	List(ctx context.Context, q ListQuery) ([]model.Document, error)

	// ListPage returns one cursor page of the documents matching q.
	ListPage(ctx context.Context, q ListQuery, page PageRequest) (*Page[model.Document], error)

	// Delete removes a document by ID.
	Delete(ctx context.Context, id int64) error
}

// Filter restricts a listing. Empty fields are not applied.
type Filter struct {
	ClassifiedType string
	ContactRef     string
	// WorkflowScope1 and WorkflowScope2 match records whose scope contains the value.
	WorkflowScope1 string
	WorkflowScope2 string
}

// Matches reports whether doc satisfies every non-empty field of f.
func (f Filter) Matches(doc *model.Document) bool {
	if f.ClassifiedType != "" && string(doc.ClassifiedType) != f.ClassifiedType {
		return false
	}
	if f.ContactRef != "" && doc.ContactRef != f.ContactRef {
		return false
	}
	if f.WorkflowScope1 != "" && !contains(doc.WorkflowScope1, f.WorkflowScope1) {
		return false
	}
	if f.WorkflowScope2 != "" && !contains(doc.WorkflowScope2, f.WorkflowScope2) {
		return false
	}
	return true
}

// ListQuery combines filtering and ordering of a listing.
type ListQuery struct {
	Filter   Filter
	Ordering Ordering
}

// PageRequest selects one page. An empty Cursor requests the first page.
type PageRequest struct {
	Size   int
	Cursor string
}

// Page is one cursor page. Next and Previous are opaque cursors, empty when
// there is no page in that direction.
type Page[T any] struct {
	Items    []T
	Next     string
	Previous string
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
