package repository

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"docservice/internal/model"
)

// ErrInvalidOrdering is returned for unknown ordering fields.
var ErrInvalidOrdering = errors.New("invalid ordering")

// OrderField names a sortable column.
type OrderField string

const (
	OrderID         OrderField = "id"
	OrderUploadedAt OrderField = "uploaded_at"
	OrderCreatedAt  OrderField = "created_at"
)

// Ordering is a single sort field. Ties are always broken by id in the same
// direction, which makes the order total.
type Ordering struct {
	Field      OrderField
	Descending bool
}

// DefaultOrdering is id ascending.
var DefaultOrdering = Ordering{Field: OrderID}

// ParseOrdering parses "field" or "-field". An empty string yields DefaultOrdering.
func ParseOrdering(s string) (Ordering, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultOrdering, nil
	}

	var o Ordering
	if after, ok := strings.CutPrefix(s, "-"); ok {
		o.Descending = true
		s = after
	}

	switch f := OrderField(s); f {
	case OrderID, OrderUploadedAt, OrderCreatedAt:
		o.Field = f
	default:
		return Ordering{}, fmt.Errorf("%w: %q", ErrInvalidOrdering, s)
	}
	return o, nil
}

func (o Ordering) String() string {
	if o.Field == "" {
		o.Field = OrderID
	}
	if o.Descending {
		return "-" + string(o.Field)
	}
	return string(o.Field)
}

// NullSortValue is the sort value of a missing created_at. It orders before
// every real timestamp.
const NullSortValue = math.MinInt64

// SortValue returns the comparable value of doc for field o.Field.
// Timestamps are Unix microseconds, the precision PostgreSQL keeps, which
// stays in range for every representable calendar year.
func (o Ordering) SortValue(doc *model.Document) int64 {
	switch o.Field {
	case OrderUploadedAt:
		return doc.UploadedAt.UnixMicro()
	case OrderCreatedAt:
		if doc.CreatedAt == nil {
			return NullSortValue
		}
		return doc.CreatedAt.UnixMicro()
	default:
		return doc.ID
	}
}

// Less reports whether a sorts before b under o, ties broken by id.
func (o Ordering) Less(a, b *model.Document) bool {
	av, bv := o.SortValue(a), o.SortValue(b)
	if av == bv {
		av, bv = a.ID, b.ID
	}
	if o.Descending {
		return av > bv
	}
	return av < bv
}
