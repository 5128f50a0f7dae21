package service

import (
	"bytes"
	"context"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"docservice/internal/model"
)

// pageCount returns the page count of PDF content, or nil for other types
// and for PDFs pdfcpu cannot read.
func (s *documentService) pageCount(ctx context.Context, t model.DocType, data []byte) *int {
	if t != model.TypePDF {
		return nil
	}

	count, err := api.PageCount(bytes.NewReader(data), nil)
	if err != nil {
		s.log.WarnContext(ctx, "failed to extract PDF page count", "error", err)
		return nil
	}
	return &count
}
