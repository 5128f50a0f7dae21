package postgres

import (
	"fmt"
	"strings"
)

// builder assembles a SELECT over documents. Conditions use "$%d" as the
// placeholder for each argument; Build numbers them in order.
type builder struct {
	conditions []condition
	orderBy    string
	limit      int
}

type condition struct {
	clause string
	args   []any
}

func newBuilder() *builder {
	return &builder{}
}

// where adds clause with args. It is a no-op when any arg is an empty string,
// so absent filter values are never applied.
func (b *builder) where(clause string, args ...any) *builder {
	for _, a := range args {
		if s, ok := a.(string); ok && s == "" {
			return b
		}
	}
	b.conditions = append(b.conditions, condition{clause: clause, args: args})
	return b
}

func (b *builder) order(orderBy string) *builder {
	b.orderBy = orderBy
	return b
}

func (b *builder) withLimit(n int) *builder {
	b.limit = n
	return b
}

func (b *builder) build() (string, []any) {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(selectColumns)
	sb.WriteString(" FROM documents d")

	args := make([]any, 0)
	if len(b.conditions) > 0 {
		clauses := make([]string, 0, len(b.conditions))
		idx := 1
		for _, c := range b.conditions {
			clause := c.clause
			for _, a := range c.args {
				clause = strings.Replace(clause, "$%d", fmt.Sprintf("$%d", idx), 1)
				args = append(args, a)
				idx++
			}
			clauses = append(clauses, clause)
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(clauses, " AND "))
	}

	if b.orderBy != "" {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(b.orderBy)
	}
	if b.limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", b.limit)
	}
	return sb.String(), args
}
