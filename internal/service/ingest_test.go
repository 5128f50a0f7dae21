package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"io/fs"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docservice/internal/config"
	"docservice/internal/events"
	"docservice/internal/model"
	"docservice/internal/repository"
	"docservice/internal/repository/memory"
	"docservice/internal/storage"
	"docservice/internal/thumbnail"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() {}

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type pipeline struct {
	svc     DocumentService
	repo    *memory.DocumentMemory
	root    string
	events  *recordingPublisher
	metrics *Metrics
}

var fixedNow = time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewFilesystem(config.FilesystemConfig{Root: root})
	require.NoError(t, err)

	m, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	p := &pipeline{repo: memory.NewDocumentMemory(), root: root, events: &recordingPublisher{}, metrics: m}
	p.svc = NewDocumentService(store, p.repo,
		WithPublisher(p.events),
		WithMetrics(m),
		WithClock(func() time.Time { return fixedNow }),
	)
	return p
}

// files lists every stored object relative to the store root.
func (p *pipeline) files(t *testing.T) []string {
	t.Helper()
	var out []string
	err := filepath.WalkDir(p.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			rel, _ := filepath.Rel(p.root, path)
			out = append(out, filepath.ToSlash(rel))
		}
		return nil
	})
	require.NoError(t, err)
	return out
}

func (p *pipeline) count(t *testing.T) int {
	t.Helper()
	docs, err := p.repo.List(context.Background(), repository.ListQuery{Ordering: repository.DefaultOrdering})
	require.NoError(t, err)
	return len(docs)
}

func encodeImage(t *testing.T, w, h int, f imaging.Format) []byte {
	t.Helper()
	var buf bytes.Buffer
	img := imaging.New(w, h, color.NRGBA{R: 200, G: 40, B: 90, A: 255})
	require.NoError(t, imaging.Encode(&buf, img, f))
	return buf.Bytes()
}

func scopes(s ...string) *[]string { return &s }

func TestIngest_ImageRoundTrip(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	doc, err := p.svc.Create(ctx, DocumentInput{
		DisplayName:    strPtr("photo.jpg"),
		Content:        &Content{Data: encodeImage(t, 400, 500, imaging.JPEG)},
		WorkflowScope1: scopes("wf-1"),
	})
	require.NoError(t, err)

	assert.Equal(t, model.TypeJPG, doc.ClassifiedType)
	assert.Equal(t, "documents/2026-03/09/", doc.ContentKey[:len("documents/2026-03/09/")])
	assert.Equal(t, storage.ThumbnailKey(doc.ContentKey), doc.ThumbnailKey)
	assert.Equal(t, fixedNow, doc.UploadedAt)
	assert.NotEmpty(t, doc.ExternalID)
	assert.Nil(t, doc.PageCount)

	dl, err := p.svc.Download(ctx, doc.ID, DownloadThumbnail)
	require.NoError(t, err)
	defer dl.Body.Close()
	assert.Equal(t, "thumbnail_photo.jpg", dl.Filename)

	data, err := io.ReadAll(dl.Body)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), dl.Size)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, thumbnail.Width, cfg.Width)
	assert.Equal(t, thumbnail.Height, cfg.Height)

	assert.Equal(t, []events.Type{events.Created}, p.events.types())
	assert.Equal(t, 1.0, testutil.ToFloat64(p.metrics.ingested.WithLabelValues(opCreate, "success")))
	assert.Equal(t, 1, testutil.CollectAndCount(p.metrics.derive))
}

func TestIngest_NonImageHasNoThumbnail(t *testing.T) {
	p := newPipeline(t)

	doc, err := p.svc.Create(context.Background(), DocumentInput{
		DisplayName:    strPtr("notes.txt"),
		Content:        &Content{Data: []byte("hello world")},
		WorkflowScope1: scopes("wf-1"),
	})
	require.NoError(t, err)

	assert.Equal(t, model.TypeTXT, doc.ClassifiedType)
	assert.True(t, doc.HasContent())
	assert.False(t, doc.HasThumbnail())
	assert.Len(t, p.files(t), 1)
}

func TestIngest_MetadataOnly(t *testing.T) {
	p := newPipeline(t)

	doc, err := p.svc.Create(context.Background(), DocumentInput{
		DisplayName:    strPtr("report.docx"),
		Description:    strPtr("quarterly"),
		WorkflowScope1: scopes("wf-1"),
		WorkflowScope2: scopes("wf2-a", "wf2-b"),
	})
	require.NoError(t, err)

	assert.Equal(t, model.TypeDOCX, doc.ClassifiedType)
	assert.False(t, doc.HasContent())
	assert.Equal(t, []string{"wf2-a", "wf2-b"}, doc.WorkflowScope2)
	assert.Empty(t, p.files(t))
}

func TestIngest_RejectedBeforeSideEffects(t *testing.T) {
	tests := []struct {
		name    string
		input   DocumentInput
		wantErr error
	}{
		{
			name: "unsupported extension",
			input: DocumentInput{
				DisplayName:    strPtr("Testfile.exe"),
				Content:        &Content{Data: []byte("MZ")},
				WorkflowScope1: scopes("wf-1"),
			},
			wantErr: model.ErrInvalidFileType,
		},
		{
			name: "pdf without workflow scope",
			input: DocumentInput{
				DisplayName: strPtr("Testfile.pdf"),
				Content:     &Content{Data: []byte("%PDF-1.4")},
			},
			wantErr: model.ErrMissingField,
		},
		{
			name: "name too long",
			input: DocumentInput{
				DisplayName:    strPtr("a-very-long-file-name-that-goes-past-the-fifty-limit.txt"),
				Content:        &Content{Data: []byte("x")},
				WorkflowScope1: scopes("wf-1"),
			},
			wantErr: model.ErrFieldTooLong,
		},
		{
			name: "undecodable image",
			input: DocumentInput{
				DisplayName:    strPtr("broken.png"),
				Content:        &Content{Data: []byte("definitely not a png")},
				WorkflowScope1: scopes("wf-1"),
			},
			wantErr: thumbnail.ErrDecode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPipeline(t)

			doc, err := p.svc.Create(context.Background(), tt.input)

			assert.Nil(t, doc)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, p.files(t))
			assert.Zero(t, p.count(t))
			assert.Empty(t, p.events.types())
			assert.Equal(t, 1.0, testutil.ToFloat64(p.metrics.ingested.WithLabelValues(opCreate, "error")))
		})
	}
}

func TestIngest_ValidationReportsEveryField(t *testing.T) {
	p := newPipeline(t)
	long := "0123456789012345678901234567890123456789"

	_, err := p.svc.Create(context.Background(), DocumentInput{
		DisplayName: strPtr("ok.txt"),
		Description: strPtr(long + long),
		ContactRef:  strPtr(long),
	})

	var ve *model.ValidationError
	require.ErrorAs(t, err, &ve)
	fields := map[string]string{}
	for _, f := range ve.Fields {
		fields[f.Field] = f.Code
	}
	assert.Equal(t, map[string]string{
		"description":      model.CodeTooLong,
		"contact_ref":      model.CodeTooLong,
		"workflow_scope_1": model.CodeRequired,
	}, fields)
}

func TestIngest_ValidationIncludesClassificationAndRequestErrors(t *testing.T) {
	p := newPipeline(t)
	long := "0123456789012345678901234567890123456789"
	decodeErrs := &model.ValidationError{}
	decodeErrs.Add("created_at", "invalid", "datetime has wrong format, use RFC 3339")

	_, err := p.svc.Create(context.Background(), DocumentInput{
		DisplayName: strPtr("Testfile.exe"),
		Description: strPtr(long + long),
		Content:     &Content{Data: []byte("MZ")},
		Invalid:     decodeErrs,
	})

	var ve *model.ValidationError
	require.ErrorAs(t, err, &ve)
	fields := map[string]string{}
	for _, f := range ve.Fields {
		fields[f.Field] = f.Code
	}
	assert.Equal(t, map[string]string{
		"created_at":       "invalid",
		"display_name":     model.CodeInvalidFileType,
		"description":      model.CodeTooLong,
		"workflow_scope_1": model.CodeRequired,
	}, fields)
	assert.Empty(t, p.files(t))
}

func TestIngest_MissingNameIsReportedWithOtherFields(t *testing.T) {
	p := newPipeline(t)

	_, err := p.svc.Create(context.Background(), DocumentInput{})

	var ve *model.ValidationError
	require.ErrorAs(t, err, &ve)
	fields := map[string]string{}
	for _, f := range ve.Fields {
		fields[f.Field] = f.Code
	}
	assert.Equal(t, map[string]string{
		"display_name":     model.CodeRequired,
		"workflow_scope_1": model.CodeRequired,
	}, fields)
}

func TestIngest_ContentMustMatchClassifiedType(t *testing.T) {
	p := newPipeline(t)
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(encodeImage(t, 30, 10, imaging.PNG))
	content, err := ParseDataURI(uri)
	require.NoError(t, err)

	doc, err := p.svc.Create(context.Background(), DocumentInput{
		DisplayName:    strPtr("report.pdf"),
		Content:        content,
		WorkflowScope1: scopes("wf-1"),
	})

	assert.Nil(t, doc)
	assert.ErrorIs(t, err, model.ErrInvalidFileType)
	var ve *model.ValidationError
	require.ErrorAs(t, err, &ve)
	require.Len(t, ve.Fields, 1)
	assert.Equal(t, "content_key", ve.Fields[0].Field)
	assert.Empty(t, p.files(t))
	assert.Zero(t, p.count(t))
}

func TestIngest_KeyExtensionFollowsClassifiedType(t *testing.T) {
	p := newPipeline(t)

	doc, err := p.svc.Create(context.Background(), DocumentInput{
		DisplayName:    strPtr("photo.jpg"),
		Content:        &Content{Data: encodeImage(t, 40, 40, imaging.JPEG), Filename: "IMG_0001.JPEG"},
		WorkflowScope1: scopes("wf-1"),
	})
	require.NoError(t, err)

	assert.Equal(t, ".jpg", filepath.Ext(doc.ContentKey))
	assert.Equal(t, ".jpg", filepath.Ext(doc.ThumbnailKey))
}

func TestIngest_DataURI(t *testing.T) {
	p := newPipeline(t)
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(encodeImage(t, 30, 10, imaging.PNG))

	content, err := ParseDataURI(uri)
	require.NoError(t, err)

	doc, err := p.svc.Create(context.Background(), DocumentInput{
		DisplayName:    strPtr("inline.png"),
		Content:        content,
		WorkflowScope1: scopes("wf-1"),
	})
	require.NoError(t, err)

	assert.Equal(t, ".png", filepath.Ext(doc.ContentKey))
	assert.True(t, doc.HasThumbnail())
}

func TestIngest_PDFPageCountIsBestEffort(t *testing.T) {
	p := newPipeline(t)

	doc, err := p.svc.Create(context.Background(), DocumentInput{
		DisplayName:    strPtr("Testfile.pdf"),
		Content:        &Content{Data: []byte("%PDF-1.4 truncated")},
		WorkflowScope1: scopes("wf-1"),
	})
	require.NoError(t, err)
	assert.Nil(t, doc.PageCount)
	assert.True(t, doc.HasContent())
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()

	create := func(t *testing.T, p *pipeline, name string, data []byte) *model.Document {
		t.Helper()
		doc, err := p.svc.Create(ctx, DocumentInput{
			DisplayName:    strPtr(name),
			Content:        &Content{Data: data},
			WorkflowScope1: scopes("wf-1"),
		})
		require.NoError(t, err)
		return doc
	}

	t.Run("metadata only update keeps keys", func(t *testing.T) {
		p := newPipeline(t)
		orig := create(t, p, "photo.jpg", encodeImage(t, 400, 500, imaging.JPEG))

		first, err := p.svc.Update(ctx, orig.ID, DocumentInput{Description: strPtr("holiday")})
		require.NoError(t, err)
		second, err := p.svc.Update(ctx, orig.ID, DocumentInput{Description: strPtr("holiday")})
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, orig.ContentKey, second.ContentKey)
		assert.Equal(t, orig.ThumbnailKey, second.ThumbnailKey)
		assert.Equal(t, orig.ExternalID, second.ExternalID)
		assert.Equal(t, "holiday", second.Description)
		assert.Equal(t, []string{"wf-1"}, second.WorkflowScope1)
		assert.Len(t, p.files(t), 2)
	})

	t.Run("new content replaces keys", func(t *testing.T) {
		p := newPipeline(t)
		orig := create(t, p, "photo.png", encodeImage(t, 50, 50, imaging.PNG))

		updated, err := p.svc.Update(ctx, orig.ID, DocumentInput{
			Content: &Content{Data: encodeImage(t, 640, 480, imaging.PNG)},
		})
		require.NoError(t, err)

		assert.NotEqual(t, orig.ContentKey, updated.ContentKey)
		assert.NotEqual(t, orig.ThumbnailKey, updated.ThumbnailKey)
		assert.Len(t, p.files(t), 4)
	})

	t.Run("rename to non image clears thumbnail", func(t *testing.T) {
		p := newPipeline(t)
		orig := create(t, p, "photo.gif", encodeImage(t, 20, 20, imaging.GIF))

		updated, err := p.svc.Update(ctx, orig.ID, DocumentInput{DisplayName: strPtr("photo.txt")})
		require.NoError(t, err)

		assert.Equal(t, model.TypeTXT, updated.ClassifiedType)
		assert.Equal(t, orig.ContentKey, updated.ContentKey)
		assert.False(t, updated.HasThumbnail())
	})

	t.Run("rename to image derives from stored content", func(t *testing.T) {
		p := newPipeline(t)
		orig := create(t, p, "scan.txt", encodeImage(t, 300, 100, imaging.PNG))
		require.False(t, orig.HasThumbnail())

		updated, err := p.svc.Update(ctx, orig.ID, DocumentInput{DisplayName: strPtr("scan.png")})
		require.NoError(t, err)

		assert.Equal(t, model.TypePNG, updated.ClassifiedType)
		assert.Equal(t, storage.ThumbnailKey(orig.ContentKey), updated.ThumbnailKey)
	})

	t.Run("invalid rename leaves record untouched", func(t *testing.T) {
		p := newPipeline(t)
		orig := create(t, p, "notes.txt", []byte("hello"))

		_, err := p.svc.Update(ctx, orig.ID, DocumentInput{DisplayName: strPtr("notes.exe")})
		assert.ErrorIs(t, err, model.ErrInvalidFileType)

		got, err := p.svc.Get(ctx, orig.ID)
		require.NoError(t, err)
		assert.Equal(t, orig, got)
	})

	t.Run("blank display name", func(t *testing.T) {
		p := newPipeline(t)
		orig := create(t, p, "notes.txt", []byte("hello"))

		_, err := p.svc.Update(ctx, orig.ID, DocumentInput{DisplayName: strPtr("")})
		assert.ErrorIs(t, err, model.ErrMissingField)
	})

	t.Run("unknown id", func(t *testing.T) {
		p := newPipeline(t)
		_, err := p.svc.Update(ctx, 42, DocumentInput{Description: strPtr("x")})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("publishes updated and deleted", func(t *testing.T) {
		p := newPipeline(t)
		orig := create(t, p, "notes.txt", []byte("hello"))

		_, err := p.svc.Update(ctx, orig.ID, DocumentInput{Description: strPtr("x")})
		require.NoError(t, err)
		require.NoError(t, p.svc.Delete(ctx, orig.ID))

		assert.Equal(t, []events.Type{events.Created, events.Updated, events.Deleted}, p.events.types())
		assert.Empty(t, p.files(t))
		assert.Equal(t, 1.0, testutil.ToFloat64(p.metrics.ingested.WithLabelValues(opUpdate, "success")))
	})
}
