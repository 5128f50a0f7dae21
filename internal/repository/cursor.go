package repository

import (
	"encoding/base64"
	"encoding/json"
	"errors"

	"docservice/internal/model"
)

// ErrInvalidCursor is returned when a cursor cannot be decoded or was
// issued for a different ordering.
var ErrInvalidCursor = errors.New("invalid cursor")

// Cursor is the decoded form of a pagination token. It marks a boundary
// position (Value, ID) in the ordering. A forward cursor selects rows after
// the boundary, a Reverse cursor the rows before it. Inclusive also selects
// the boundary row itself. Ordering is the ordering the cursor was issued
// for, in its String form.
type Cursor struct {
	Ordering  string `json:"o"`
	Reverse   bool   `json:"r,omitempty"`
	Inclusive bool   `json:"n,omitempty"`
	Value     int64  `json:"v"`
	ID        int64  `json:"i"`
}

// Encode returns the opaque token for c.
func (c Cursor) Encode() string {
	b, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeCursor parses a token produced by Encode.
func DecodeCursor(token string) (*Cursor, error) {
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	var c Cursor
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, ErrInvalidCursor
	}
	return &c, nil
}

func cursorAt(o Ordering, doc *model.Document, reverse bool) string {
	return Cursor{Ordering: o.String(), Reverse: reverse, Value: o.SortValue(doc), ID: doc.ID}.Encode()
}
