package repository

import (
	"docservice/internal/model"
)

// Window describes the rows a store must fetch for one page: the rows on the
// far side of Cursor (all rows when nil), ordered by Ordering flipped when
// scanning in reverse, and at most Limit of them.
type Window struct {
	Ordering Ordering
	Cursor   *Cursor
	Size     int
	Limit    int
}

// NewWindow decodes page.Cursor and prepares a fetch of one row beyond the
// page size, which is how stores detect a following page.
func NewWindow(o Ordering, page PageRequest) (Window, error) {
	size := page.Size
	if size < 1 {
		size = 1
	}
	w := Window{Ordering: o, Size: size, Limit: size + 1}
	if page.Cursor != "" {
		c, err := DecodeCursor(page.Cursor)
		if err != nil {
			return Window{}, err
		}
		if c.Ordering != o.String() {
			return Window{}, ErrInvalidCursor
		}
		w.Cursor = c
	}
	return w, nil
}

// Reverse reports whether the window scans backwards from its cursor.
func (w Window) Reverse() bool {
	return w.Cursor != nil && w.Cursor.Reverse
}

// ScanOrdering is the order in which rows must be fetched.
func (w Window) ScanOrdering() Ordering {
	o := w.Ordering
	if w.Reverse() {
		o.Descending = !o.Descending
	}
	return o
}

// Admits reports whether doc lies on the scanned side of the cursor.
func (w Window) Admits(doc *model.Document) bool {
	if w.Cursor == nil {
		return true
	}
	o := w.ScanOrdering()
	cmp := compareKeys(o.SortValue(doc), doc.ID, w.Cursor.Value, w.Cursor.ID)
	if cmp == 0 {
		return w.Cursor.Inclusive
	}
	if o.Descending {
		return cmp < 0
	}
	return cmp > 0
}

func compareKeys(v1, id1, v2, id2 int64) int {
	switch {
	case v1 < v2:
		return -1
	case v1 > v2:
		return 1
	case id1 < id2:
		return -1
	case id1 > id2:
		return 1
	}
	return 0
}

// Assemble turns the rows fetched for w, in scan order, into a page in
// display order with its neighbouring cursors.
func (w Window) Assemble(rows []model.Document) *Page[model.Document] {
	more := len(rows) > w.Size
	if more {
		rows = rows[:w.Size]
	}

	page := &Page[model.Document]{Items: rows}
	o := w.Ordering

	if w.Reverse() {
		for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
			rows[i], rows[j] = rows[j], rows[i]
		}
		if len(rows) == 0 {
			page.Next = Cursor{Ordering: o.String(), Value: w.Cursor.Value, ID: w.Cursor.ID, Inclusive: !w.Cursor.Inclusive}.Encode()
			return page
		}
		page.Next = cursorAt(o, &rows[len(rows)-1], false)
		if more {
			page.Previous = cursorAt(o, &rows[0], true)
		}
		return page
	}

	if more {
		page.Next = cursorAt(o, &rows[len(rows)-1], false)
	}
	if w.Cursor != nil {
		if len(rows) == 0 {
			page.Previous = Cursor{Ordering: o.String(), Reverse: true, Value: w.Cursor.Value, ID: w.Cursor.ID, Inclusive: !w.Cursor.Inclusive}.Encode()
		} else {
			page.Previous = cursorAt(o, &rows[0], true)
		}
	}
	return page
}
