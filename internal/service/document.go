package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"docservice/internal/events"
	"docservice/internal/model"
	"docservice/internal/repository"
	"docservice/internal/storage"
)

var (
	ErrIDRequired = errors.New("id is required")
	ErrNotFound   = errors.New("document not found")
)

// StorageError reports a content store failure. It maps to 503.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// DownloadKind selects primary content or its thumbnail.
type DownloadKind int

const (
	DownloadFile DownloadKind = iota
	DownloadThumbnail
)

// Download is a stream of stored content. Body must be closed by the caller.
type Download struct {
	Body        io.ReadCloser
	Size        int64
	Filename    string
	ContentType string
}

// ListRequest selects documents. Pagination is opt-in; without it every
// matching document is returned.
type ListRequest struct {
	Query    repository.ListQuery
	Paginate bool
	PageSize int
	Cursor   string
}

// ListResult holds either a full listing or one page with its cursors.
type ListResult struct {
	Items     []model.Document
	Paginated bool
	Next      string
	Previous  string
}

// DocumentService defines the use cases for handling documents.
type DocumentService interface {
	// Create runs the ingestion pipeline for a new document.
	Create(ctx context.Context, in DocumentInput) (*model.Document, error)

	// Update merges in over the stored document and re-runs the pipeline.
	// Every update is partial.
	Update(ctx context.Context, id int64, in DocumentInput) (*model.Document, error)

	// Get returns a single document by its ID.
	Get(ctx context.Context, id int64) (*model.Document, error)

	// Delete removes the record and, best effort, its blobs.
	Delete(ctx context.Context, id int64) error

	// List returns filtered, ordered and optionally paginated documents.
	List(ctx context.Context, req ListRequest) (*ListResult, error)

	// Download opens the content or thumbnail of a document.
	Download(ctx context.Context, id int64, kind DownloadKind) (*Download, error)
}

// Option configures a documentService.
type Option func(*documentService)

func WithLogger(l *slog.Logger) Option { return func(s *documentService) { s.log = l } }

func WithPublisher(p events.Publisher) Option { return func(s *documentService) { s.events = p } }

func WithMetrics(m *Metrics) Option { return func(s *documentService) { s.metrics = m } }

func WithClock(now func() time.Time) Option { return func(s *documentService) { s.now = now } }

// WithPageSizes sets the default and maximum page size.
func WithPageSizes(def, max int) Option {
	return func(s *documentService) { s.defaultPageSize, s.maxPageSize = def, max }
}

// documentService is a concrete implementation of DocumentService.
type documentService struct {
	store   storage.Storage
	repo    repository.DocumentRepository
	events  events.Publisher
	metrics *Metrics
	log     *slog.Logger
	tracer  trace.Tracer
	now     func() time.Time

	defaultPageSize int
	maxPageSize     int
}

// NewDocumentService constructs a new DocumentService.
func NewDocumentService(store storage.Storage, repo repository.DocumentRepository, opts ...Option) DocumentService {
	s := &documentService{
		store:           store,
		repo:            repo,
		events:          events.Noop{},
		log:             slog.New(slog.DiscardHandler),
		tracer:          otel.Tracer("docservice/service"),
		now:             time.Now,
		defaultPageSize: 30,
		maxPageSize:     100,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns a document by ID.
func (s *documentService) Get(ctx context.Context, id int64) (*model.Document, error) {
	if id <= 0 {
		return nil, ErrIDRequired
	}
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return doc, nil
}

// Delete removes the record first. Blob removal failures only leave
// orphans behind and are logged.
func (s *documentService) Delete(ctx context.Context, id int64) error {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapRepoError(err)
	}

	for _, key := range []string{doc.ContentKey, doc.ThumbnailKey} {
		if key == "" {
			continue
		}
		if err := s.store.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
			s.log.WarnContext(ctx, "blob left after delete", "document_id", id, "key", key, "error", err)
		}
	}

	s.publish(ctx, events.Deleted, doc)
	return nil
}

// List clamps the page size to the configured bounds before querying.
func (s *documentService) List(ctx context.Context, req ListRequest) (*ListResult, error) {
	if !req.Paginate {
		items, err := s.repo.List(ctx, req.Query)
		if err != nil {
			return nil, err
		}
		return &ListResult{Items: items}, nil
	}

	page, err := s.repo.ListPage(ctx, req.Query, repository.PageRequest{
		Size:   s.pageSize(req.PageSize),
		Cursor: req.Cursor,
	})
	if err != nil {
		return nil, err
	}
	return &ListResult{Items: page.Items, Paginated: true, Next: page.Next, Previous: page.Previous}, nil
}

func (s *documentService) pageSize(requested int) int {
	switch {
	case requested <= 0:
		return s.defaultPageSize
	case requested > s.maxPageSize:
		return s.maxPageSize
	}
	return requested
}

// Download reports ErrNotFound both for unknown documents and for absent or
// empty content, so callers cannot tell the two apart.
func (s *documentService) Download(ctx context.Context, id int64, kind DownloadKind) (*Download, error) {
	if id <= 0 {
		return nil, ErrNotFound
	}
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	key, filename := doc.ContentKey, doc.DisplayName
	if kind == DownloadThumbnail {
		key, filename = doc.ThumbnailKey, "thumbnail_"+doc.DisplayName
	}
	if key == "" {
		return nil, ErrNotFound
	}

	body, info, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, &StorageError{Op: "get", Err: err}
	}
	if info.Size == 0 {
		body.Close()
		return nil, ErrNotFound
	}

	return &Download{Body: body, Size: info.Size, Filename: filename, ContentType: info.ContentType}, nil
}

func (s *documentService) publish(ctx context.Context, t events.Type, doc *model.Document) {
	if err := s.events.Publish(ctx, events.NewEvent(t, doc, s.now())); err != nil {
		s.log.WarnContext(ctx, "publish document event failed", "type", t, "document_id", doc.ID, "error", err)
	}
}

func mapRepoError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
