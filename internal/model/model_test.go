package model

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		want     DocType
		wantErr  bool
	}{
		{name: "pdf", filename: "Testfile.pdf", want: TypePDF},
		{name: "upper case", filename: "PHOTO.JPG", want: TypeJPG},
		{name: "mixed case", filename: "slides.PpTx", want: TypePPTX},
		{name: "last dot wins", filename: "archive.tar.png", want: TypePNG},
		{name: "executable", filename: "Testfile.exe", wantErr: true},
		{name: "no extension", filename: "README", wantErr: true},
		{name: "trailing dot", filename: "report.", wantErr: true},
		{name: "empty", filename: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Classify(tt.filename)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidFileType)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassify_AllKnownTypes(t *testing.T) {
	for dt := range docTypes {
		got, err := Classify("file." + strings.ToUpper(string(dt)))
		require.NoError(t, err)
		assert.Equal(t, dt, got)
	}
}

func TestDocType_IsImage(t *testing.T) {
	for _, dt := range []DocType{TypeJPG, TypeJPEG, TypePNG, TypeGIF} {
		assert.True(t, dt.IsImage(), dt)
	}
	for _, dt := range []DocType{TypePDF, TypeTXT, TypeDOCX, DocType("exe")} {
		assert.False(t, dt.IsImage(), dt)
	}
}

func TestDocument_Classified(t *testing.T) {
	d := Document{DisplayName: "scan.Png", ClassifiedType: TypePDF}

	got, err := d.Classified()
	require.NoError(t, err)
	assert.Equal(t, TypePNG, got.ClassifiedType)
	assert.Equal(t, TypePDF, d.ClassifiedType, "receiver must not be mutated")

	_, err = Document{DisplayName: "virus.exe"}.Classified()
	assert.ErrorIs(t, err, ErrInvalidFileType)
}

func TestDocument_Validate(t *testing.T) {
	valid := func() Document {
		return Document{
			DisplayName:    "photo.jpg",
			ClassifiedType: TypeJPG,
			ContentKey:     "documents/2024-01/02/a.jpg",
			ThumbnailKey:   "thumbnails/2024-01/02/a.jpg",
			WorkflowScope1: []string{"wf-1"},
		}
	}

	tests := []struct {
		name       string
		mutate     func(d *Document)
		wantFields []string
		wantIs     error
	}{
		{name: "valid", mutate: func(d *Document) {}},
		{
			name:       "missing display name",
			mutate:     func(d *Document) { d.DisplayName = "" },
			wantFields: []string{"display_name"},
			wantIs:     ErrMissingField,
		},
		{
			name:       "display name too long",
			mutate:     func(d *Document) { d.DisplayName = strings.Repeat("a", 47) + ".jpg" },
			wantFields: []string{"display_name"},
			wantIs:     ErrFieldTooLong,
		},
		{
			name:       "inconsistent type",
			mutate:     func(d *Document) { d.ClassifiedType = TypePNG },
			wantFields: []string{"classified_type"},
		},
		{
			name: "thumbnail on non-image",
			mutate: func(d *Document) {
				d.DisplayName = "doc.pdf"
				d.ClassifiedType = TypePDF
			},
			wantFields: []string{"thumbnail_key"},
		},
		{
			name:       "thumbnail without content",
			mutate:     func(d *Document) { d.ContentKey = "" },
			wantFields: []string{"thumbnail_key"},
		},
		{
			name: "every field reported",
			mutate: func(d *Document) {
				d.Description = strings.Repeat("d", 51)
				d.ContactRef = strings.Repeat("c", 37)
				d.WorkflowScope2 = []string{"ok", strings.Repeat("w", 37)}
			},
			wantFields: []string{"description", "contact_ref", "workflow_scope_2"},
			wantIs:     ErrFieldTooLong,
		},
		{
			name: "created_at far in the past is allowed",
			mutate: func(d *Document) {
				ts := time.Date(1500, 1, 1, 0, 0, 0, 0, time.UTC)
				d.CreatedAt = &ts
			},
		},
		{
			name: "created_at beyond year 9999",
			mutate: func(d *Document) {
				ts := time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC)
				d.CreatedAt = &ts
			},
			wantFields: []string{"created_at"},
		},
		{
			name:       "unknown extension",
			mutate:     func(d *Document) { d.DisplayName = "setup.exe"; d.ThumbnailKey = "" },
			wantFields: []string{"classified_type"},
			wantIs:     ErrInvalidFileType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := valid()
			tt.mutate(&d)

			err := d.Validate()
			if len(tt.wantFields) == 0 {
				assert.NoError(t, err)
				return
			}

			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			var fields []string
			for _, f := range ve.Fields {
				fields = append(fields, f.Field)
			}
			assert.Equal(t, tt.wantFields, fields)
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}
		})
	}
}

func TestDocument_Clone(t *testing.T) {
	n := 3
	now := time.Now()
	d := Document{PageCount: &n, CreatedAt: &now, WorkflowScope1: []string{"a"}}

	c := d.Clone()
	*c.PageCount = 9
	c.WorkflowScope1[0] = "b"

	assert.Equal(t, 3, *d.PageCount)
	assert.Equal(t, "a", d.WorkflowScope1[0])
	assert.Nil(t, Document{}.Clone().WorkflowScope2)
}

func TestValidationError(t *testing.T) {
	err := MissingField("workflow_scope_1")
	assert.ErrorIs(t, err, ErrMissingField)
	assert.NotErrorIs(t, err, ErrInvalidFileType)
	assert.Contains(t, err.Error(), "workflow_scope_1")

	var empty ValidationError
	assert.NoError(t, empty.Err())

	empty.Merge(InvalidFileType("display_name", ErrInvalidFileType))
	assert.ErrorIs(t, empty.Err(), ErrInvalidFileType)
}
