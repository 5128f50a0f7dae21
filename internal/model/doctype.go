package model

import (
	"fmt"
	"strings"
)

// DocType is the classified type of a document, stored as its extension.
type DocType string

const (
	TypeJPG  DocType = "jpg"
	TypeJPEG DocType = "jpeg"
	TypePNG  DocType = "png"
	TypeGIF  DocType = "gif"
	TypePDF  DocType = "pdf"
	TypeTXT  DocType = "txt"
	TypeDOC  DocType = "doc"
	TypeDOCX DocType = "docx"
	TypeXLS  DocType = "xls"
	TypeXLSX DocType = "xlsx"
	TypePPT  DocType = "ppt"
	TypePPTX DocType = "pptx"
)

var docTypes = map[DocType]struct{}{
	TypeJPG: {}, TypeJPEG: {}, TypePNG: {}, TypeGIF: {},
	TypePDF: {}, TypeTXT: {},
	TypeDOC: {}, TypeDOCX: {},
	TypeXLS: {}, TypeXLSX: {},
	TypePPT: {}, TypePPTX: {},
}

// IsImage reports whether thumbnails can be derived for t.
func (t DocType) IsImage() bool {
	switch t {
	case TypeJPG, TypeJPEG, TypePNG, TypeGIF:
		return true
	}
	return false
}

// Valid reports whether t is one of the known types.
func (t DocType) Valid() bool {
	_, ok := docTypes[t]
	return ok
}

// Extension returns the lowercase extension of filename without the dot,
// or "" when there is none.
func Extension(filename string) string {
	i := strings.LastIndex(filename, ".")
	if i < 0 {
		return ""
	}
	return strings.ToLower(filename[i+1:])
}

// Classify maps filename to a DocType using its extension only. Contents are
// never inspected. Unknown or missing extensions fail with ErrInvalidFileType.
func Classify(filename string) (DocType, error) {
	ext := Extension(filename)
	if ext == "" {
		return "", fmt.Errorf("%w: %q has no extension", ErrInvalidFileType, filename)
	}
	t := DocType(ext)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidFileType, ext)
	}
	return t, nil
}
