package model

import "time"

// Field size limits enforced by Validate.
const (
	MaxNameLength = 50
	MaxRefLength  = 36

	MinCreatedYear = 1
	MaxCreatedYear = 9999
)

// Document represents one uploaded asset and its metadata.
// This is a pure domain model with no database-specific dependencies or tags.
// It can be used across layers (HTTP, service, storage) without coupling to persistence.
//
// Empty strings stand for absent optional values. ClassifiedType is derived
// from DisplayName and must only be set through Classified.
type Document struct {
	ID             int64
	ExternalID     string
	DisplayName    string
	Description    string
	ClassifiedType DocType
	ContentKey     string
	ThumbnailKey   string
	PageCount      *int
	CreatedAt      *time.Time
	UploadedAt     time.Time

	OrganizationRef string
	UserRef         string
	ContactRef      string
	WorkflowScope1  []string
	WorkflowScope2  []string
}

// HasContent reports whether primary content is attached.
func (d *Document) HasContent() bool {
	return d.ContentKey != ""
}

// HasThumbnail reports whether a derived thumbnail is attached.
func (d *Document) HasThumbnail() bool {
	return d.ThumbnailKey != ""
}

// Classified returns a copy of d with ClassifiedType recomputed from
// DisplayName. The receiver is left untouched.
func (d Document) Classified() (Document, error) {
	t, err := Classify(d.DisplayName)
	if err != nil {
		return d, err
	}
	d.ClassifiedType = t
	return d, nil
}

// Clone returns a deep copy so callers can merge updates without aliasing
// slices or pointers held by a store.
func (d Document) Clone() Document {
	if d.PageCount != nil {
		n := *d.PageCount
		d.PageCount = &n
	}
	if d.CreatedAt != nil {
		t := *d.CreatedAt
		d.CreatedAt = &t
	}
	d.WorkflowScope1 = cloneStrings(d.WorkflowScope1)
	d.WorkflowScope2 = cloneStrings(d.WorkflowScope2)
	return d
}

// Validate runs the full-record integrity check and returns a
// *ValidationError listing every failing field, or nil.
func (d *Document) Validate() error {
	var v ValidationError

	switch {
	case d.DisplayName == "":
		v.Add("display_name", CodeRequired, "this field may not be blank")
	case len([]rune(d.DisplayName)) > MaxNameLength:
		v.Add("display_name", CodeTooLong, "ensure this field has no more than 50 characters")
	}

	if len([]rune(d.Description)) > MaxNameLength {
		v.Add("description", CodeTooLong, "ensure this field has no more than 50 characters")
	}

	if d.DisplayName != "" {
		want, err := Classify(d.DisplayName)
		switch {
		case err != nil:
			v.Add("classified_type", CodeInvalidFileType, err.Error())
		case d.ClassifiedType != want:
			v.Add("classified_type", CodeInconsistent, "classified type does not match the file extension")
		}
	}

	if d.CreatedAt != nil {
		if y := d.CreatedAt.UTC().Year(); y < MinCreatedYear || y > MaxCreatedYear {
			v.Add("created_at", CodeOutOfRange, "datetime must fall between years 1 and 9999")
		}
	}

	if d.HasThumbnail() && (!d.HasContent() || !d.ClassifiedType.IsImage()) {
		v.Add("thumbnail_key", CodeInconsistent, "thumbnails require image content")
	}

	checkRef(&v, "organization_ref", d.OrganizationRef)
	checkRef(&v, "user_ref", d.UserRef)
	checkRef(&v, "contact_ref", d.ContactRef)
	for _, s := range d.WorkflowScope1 {
		checkRef(&v, "workflow_scope_1", s)
	}
	for _, s := range d.WorkflowScope2 {
		checkRef(&v, "workflow_scope_2", s)
	}

	return v.Err()
}

func checkRef(v *ValidationError, field, value string) {
	if len([]rune(value)) > MaxRefLength {
		v.Add(field, CodeTooLong, "ensure this field has no more than 36 characters")
	}
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
