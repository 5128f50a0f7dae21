package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"docservice/internal/events"
	"docservice/internal/model"
	"docservice/internal/storage"
	"docservice/internal/thumbnail"
)

const (
	opCreate = "create"
	opUpdate = "update"
)

// Create runs the ingestion pipeline for a new document.
func (s *documentService) Create(ctx context.Context, in DocumentInput) (doc *model.Document, err error) {
	ctx, span := s.tracer.Start(ctx, "DocumentService.Create")
	defer func() { s.finish(span, opCreate, err) }()

	draft := model.Document{ExternalID: newExternalID()}
	apply(&draft, in)

	return s.ingest(ctx, opCreate, draft, in, nil)
}

// Update merges in over the stored record. Classification is recomputed,
// and the thumbnail re-derived only when content changes or becomes eligible.
func (s *documentService) Update(ctx context.Context, id int64, in DocumentInput) (doc *model.Document, err error) {
	ctx, span := s.tracer.Start(ctx, "DocumentService.Update", trace.WithAttributes(attribute.Int64("document.id", id)))
	defer func() { s.finish(span, opUpdate, err) }()

	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	draft := existing.Clone()
	apply(&draft, in)

	return s.ingest(ctx, opUpdate, draft, in, existing)
}

// ingest validates draft completely before any write, then stores content,
// persists the record and publishes the change. existing is nil on create.
func (s *documentService) ingest(ctx context.Context, op string, draft model.Document, in DocumentInput, existing *model.Document) (*model.Document, error) {
	content := in.Content

	var v model.ValidationError
	v.Merge(in.Invalid)
	// A blank name is reported by Validate, so only named drafts are classified.
	classifyFailed := false
	if draft.DisplayName != "" {
		classified, err := draft.Classified()
		if err != nil {
			classifyFailed = true
			v.Merge(model.InvalidFileType("display_name", err))
		} else {
			draft = classified
			if !draft.ClassifiedType.IsImage() {
				draft.ThumbnailKey = ""
			}
			if content != nil {
				checkContentType(&v, content, draft.ClassifiedType)
			}
		}
	}

	if err := prevalidate(&v, &draft, classifyFailed); err != nil {
		return nil, err
	}

	// Derive before storing so undecodable images leave nothing behind.
	var (
		thumb []byte
		err   error
	)
	switch {
	case content != nil && draft.ClassifiedType.IsImage():
		if thumb, err = s.derive(ctx, content.Data, draft.ClassifiedType); err != nil {
			return nil, err
		}
	case content == nil && draft.ClassifiedType.IsImage() && draft.HasContent() && !draft.HasThumbnail():
		data, err := s.readContent(ctx, draft.ContentKey)
		if err != nil {
			return nil, err
		}
		if thumb, err = s.derive(ctx, data, draft.ClassifiedType); err != nil {
			return nil, err
		}
	}

	now := s.now()
	var written []string
	if content != nil {
		if written, err = s.storeContent(ctx, &draft, content, thumb, now); err != nil {
			return nil, err
		}
		draft.PageCount = s.pageCount(ctx, draft.ClassifiedType, content.Data)
	} else if thumb != nil {
		key := storage.ThumbnailKey(draft.ContentKey)
		if err := s.put(ctx, key, thumb, contentTypeFor(draft.ClassifiedType)); err != nil {
			return nil, err
		}
		draft.ThumbnailKey = key
		written = []string{key}
	}

	if draft.UploadedAt.IsZero() {
		draft.UploadedAt = now.UTC()
	}

	if err := draft.Validate(); err != nil {
		s.orphaned(ctx, written, err)
		return nil, err
	}

	var stored *model.Document
	if existing == nil {
		stored, err = s.repo.Create(ctx, &draft)
	} else {
		stored, err = s.repo.Update(ctx, &draft)
	}
	if err != nil {
		s.orphaned(ctx, written, err)
		return nil, mapRepoError(err)
	}

	s.log.InfoContext(ctx, "document ingested",
		"operation", op,
		"document_id", stored.ID,
		"file_type", stored.ClassifiedType,
		"content_stored", content != nil,
		"thumbnail", stored.HasThumbnail(),
	)

	t := events.Created
	if existing != nil {
		t = events.Updated
	}
	s.publish(ctx, t, stored)
	return stored, nil
}

// prevalidate adds everything knowable before side effects to v: the record
// invariants plus the API-level requirement of at least one workflow scope.
// When classification already failed the stale classified_type is not
// reported a second time.
func prevalidate(v *model.ValidationError, d *model.Document, classifyFailed bool) error {
	if err := d.Validate(); err != nil {
		var ve *model.ValidationError
		if !errors.As(err, &ve) {
			return err
		}
		for _, f := range ve.Fields {
			if classifyFailed && f.Field == "classified_type" {
				continue
			}
			v.Fields = append(v.Fields, f)
		}
	}
	if len(d.WorkflowScope1) == 0 {
		v.Merge(model.MissingField("workflow_scope_1"))
	}
	return v.Err()
}

// storeContent writes content and its thumbnail concurrently under fresh
// keys and records them on d. It returns the keys written.
func (s *documentService) storeContent(ctx context.Context, d *model.Document, c *Content, thumb []byte, now time.Time) ([]string, error) {
	contentKey := storage.ContentKey(storage.GenerateKey(now, "content."+string(d.ClassifiedType)))
	thumbKey := ""
	if thumb != nil {
		thumbKey = storage.ThumbnailKey(contentKey)
	}

	contentType := c.ContentType
	if contentType == "" {
		contentType = contentTypeFor(d.ClassifiedType)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.put(gctx, contentKey, c.Data, contentType)
	})
	if thumb != nil {
		g.Go(func() error {
			return s.put(gctx, thumbKey, thumb, contentTypeFor(d.ClassifiedType))
		})
	}
	if err := g.Wait(); err != nil {
		s.orphaned(ctx, []string{contentKey, thumbKey}, err)
		return nil, err
	}

	d.ContentKey = contentKey
	d.ThumbnailKey = thumbKey
	written := []string{contentKey}
	if thumbKey != "" {
		written = append(written, thumbKey)
	}
	return written, nil
}

func (s *documentService) put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.store.Put(ctx, key, bytes.NewReader(data), storage.PutObjectOptions{
		Size:        int64(len(data)),
		ContentType: contentType,
	})
	if err != nil {
		return &StorageError{Op: "put", Err: err}
	}
	return nil
}

func (s *documentService) readContent(ctx context.Context, key string) ([]byte, error) {
	body, _, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, &StorageError{Op: "get", Err: err}
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, &StorageError{Op: "read", Err: err}
	}
	return data, nil
}

func (s *documentService) derive(ctx context.Context, data []byte, t model.DocType) ([]byte, error) {
	_, span := s.tracer.Start(ctx, "thumbnail.Derive")
	defer span.End()

	start := time.Now()
	thumb, err := thumbnail.Derive(data, t)
	s.metrics.observeDerive(time.Since(start))
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, thumbnail.ErrNotDerivable) {
			return nil, nil
		}
		return nil, fmt.Errorf("derive thumbnail: %w", err)
	}
	return thumb, nil
}

// orphaned logs blobs that were written but will not be referenced.
func (s *documentService) orphaned(ctx context.Context, keys []string, cause error) {
	for _, k := range keys {
		if k != "" {
			s.log.WarnContext(ctx, "orphaned blob", "key", k, "error", cause)
		}
	}
}

func (s *documentService) finish(span trace.Span, op string, err error) {
	result := "success"
	if err != nil {
		result = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	s.metrics.countIngest(op, result)
	span.End()
}

var newExternalID = uuid.NewString

// apply copies every non-nil field of in onto d.
func apply(d *model.Document, in DocumentInput) {
	if in.DisplayName != nil {
		d.DisplayName = *in.DisplayName
	}
	if in.Description != nil {
		d.Description = *in.Description
	}
	if in.CreatedAt != nil {
		t := *in.CreatedAt
		d.CreatedAt = &t
	}
	if in.OrganizationRef != nil {
		d.OrganizationRef = *in.OrganizationRef
	}
	if in.UserRef != nil {
		d.UserRef = *in.UserRef
	}
	if in.ContactRef != nil {
		d.ContactRef = *in.ContactRef
	}
	if in.WorkflowScope1 != nil {
		d.WorkflowScope1 = append([]string(nil), (*in.WorkflowScope1)...)
	}
	if in.WorkflowScope2 != nil {
		d.WorkflowScope2 = append([]string(nil), (*in.WorkflowScope2)...)
	}
}

func contentTypeFor(t model.DocType) string {
	switch t {
	case model.TypeJPG, model.TypeJPEG:
		return "image/jpeg"
	case model.TypePNG:
		return "image/png"
	case model.TypeGIF:
		return "image/gif"
	case model.TypePDF:
		return "application/pdf"
	case model.TypeTXT:
		return "text/plain"
	}
	return "application/octet-stream"
}
