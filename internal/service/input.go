package service

import (
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"strings"
	"time"

	"docservice/internal/model"
)

// ErrInvalidContent is returned for malformed inline content.
var ErrInvalidContent = errors.New("invalid file content")

// DocumentInput carries the caller-supplied fields of a create or update.
// Nil fields are left unchanged by Update.
type DocumentInput struct {
	DisplayName     *string
	Description     *string
	Content         *Content
	CreatedAt       *time.Time
	OrganizationRef *string
	UserRef         *string
	ContactRef      *string
	WorkflowScope1  *[]string
	WorkflowScope2  *[]string

	// Invalid holds field errors found while decoding the request. They are
	// reported together with the record's own validation failures.
	Invalid *model.ValidationError
}

// Content is new primary content. Classification always follows the display
// name; a known extension on Filename must agree with it. ContentType is
// stored as object metadata.
type Content struct {
	Data        []byte
	Filename    string
	ContentType string
}

// subtypeExtensions maps MIME types whose subtype is not the extension.
var subtypeExtensions = map[string]string{
	"text/plain":         "txt",
	"application/msword": "doc",
	"application/vnd.ms-excel":      "xls",
	"application/vnd.ms-powerpoint": "ppt",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   "docx",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         "xlsx",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": "pptx",
}

// ParseDataURI decodes "data:<mime>;base64,<payload>". A bare base64 string
// is accepted as content without a MIME type. The returned Filename carries
// the extension derived from the MIME subtype.
func ParseDataURI(s string) (*Content, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrInvalidContent
	}

	var mediaType, payload string
	if rest, ok := strings.CutPrefix(s, "data:"); ok {
		header, data, found := strings.Cut(rest, ",")
		if !found {
			return nil, ErrInvalidContent
		}
		params := strings.Split(header, ";")
		if params[len(params)-1] != "base64" {
			return nil, ErrInvalidContent
		}
		mediaType = strings.ToLower(strings.TrimSpace(params[0]))
		payload = data
	} else {
		payload = s
	}

	data, err := decodeBase64(payload)
	if err != nil || len(data) == 0 {
		return nil, ErrInvalidContent
	}

	c := &Content{Data: data, ContentType: mediaType}
	if ext := extensionForMIME(mediaType); ext != "" {
		c.Filename = "upload." + ext
	}
	return c, nil
}

func decodeBase64(s string) ([]byte, error) {
	// Payloads are often line wrapped.
	s = strings.TrimRight(strings.Join(strings.Fields(s), ""), "=")
	if data, err := base64.RawStdEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	return base64.RawURLEncoding.DecodeString(s)
}

func extensionForMIME(mediaType string) string {
	if mediaType == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(mediaType); err == nil {
		mediaType = mt
	}
	if ext, ok := subtypeExtensions[mediaType]; ok {
		return ext
	}
	_, sub, ok := strings.Cut(mediaType, "/")
	if !ok || sub == "" {
		return ""
	}
	return sub
}

// checkContentType rejects content whose own extension names a different
// known type than the one classified from the display name. jpg and jpeg
// are the same format.
func checkContentType(v *model.ValidationError, c *Content, classified model.DocType) {
	ext := model.DocType(model.Extension(c.Filename))
	if !ext.Valid() || sameFormat(ext, classified) {
		return
	}
	v.Add("content_key", model.CodeInvalidFileType,
		fmt.Sprintf("file content is %s but file_name is %s", ext, classified))
}

func sameFormat(a, b model.DocType) bool {
	jpeg := func(t model.DocType) bool { return t == model.TypeJPG || t == model.TypeJPEG }
	return a == b || (jpeg(a) && jpeg(b))
}
