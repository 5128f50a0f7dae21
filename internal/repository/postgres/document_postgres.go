package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"docservice/internal/model"
	"docservice/internal/repository"
)

const selectColumns = `d.id, d.external_id, d.file_name, d.file_description, d.file_type, d.content_key, d.thumbnail_key, ` +
	`d.page_count, d.created_at, d.uploaded_at, d.organization_ref, d.user_ref, d.contact_ref, ` +
	`d.workflow_scope_1, d.workflow_scope_2`

const returningColumns = `id, external_id, file_name, file_description, file_type, content_key, thumbnail_key, ` +
	`page_count, created_at, uploaded_at, organization_ref, user_ref, contact_ref, ` +
	`workflow_scope_1, workflow_scope_2`

const pgUniqueViolation = "23505"

// DocumentPostgres is a PostgreSQL implementation of repository.DocumentRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type DocumentPostgres struct {
	db *sql.DB
}

// NewDocumentPostgres creates a new DocumentPostgres repository.
func NewDocumentPostgres(db *sql.DB) *DocumentPostgres {
	return &DocumentPostgres{db: db}
}

var _ repository.DocumentRepository = (*DocumentPostgres)(nil)

// Create inserts a new document row and returns the stored record.
func (r *DocumentPostgres) Create(ctx context.Context, doc *model.Document) (*model.Document, error) {
	q := `
		INSERT INTO documents (external_id, file_name, file_description, file_type, content_key, thumbnail_key,
			page_count, created_at, uploaded_at, organization_ref, user_ref, contact_ref,
			workflow_scope_1, workflow_scope_2)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING ` + returningColumns
	row := r.db.QueryRowContext(ctx, q, append([]any{doc.ExternalID}, mutableArgs(doc)...)...)
	out, err := scanDocument(row)
	if err != nil {
		return nil, mapError(err)
	}
	return out, nil
}

// Update rewrites every mutable column. external_id and id are never changed.
func (r *DocumentPostgres) Update(ctx context.Context, doc *model.Document) (*model.Document, error) {
	q := `
		UPDATE documents SET file_name = $1, file_description = $2, file_type = $3, content_key = $4,
			thumbnail_key = $5, page_count = $6, created_at = $7, uploaded_at = $8, organization_ref = $9,
			user_ref = $10, contact_ref = $11, workflow_scope_1 = $12, workflow_scope_2 = $13
		WHERE id = $14
		RETURNING ` + returningColumns
	row := r.db.QueryRowContext(ctx, q, append(mutableArgs(doc), doc.ID)...)
	out, err := scanDocument(row)
	if err != nil {
		return nil, mapError(err)
	}
	return out, nil
}

// FindByID fetches a single document by its ID.
func (r *DocumentPostgres) FindByID(ctx context.Context, id int64) (*model.Document, error) {
	q, args := newBuilder().where("d.id = $%d", id).build()
	out, err := scanDocument(r.db.QueryRowContext(ctx, q, args...))
	if err != nil {
		return nil, mapError(err)
	}
	return out, nil
}

// List returns every matching document in the requested order.
func (r *DocumentPostgres) List(ctx context.Context, lq repository.ListQuery) ([]model.Document, error) {
	b := applyFilter(newBuilder(), lq.Filter).order(orderClause(lq.Ordering))
	q, args := b.build()
	return r.queryMany(ctx, q, args)
}

// ListPage returns one keyset page. The cursor boundary becomes a row
// comparison on (sort expression, id), which the ORDER BY makes total.
func (r *DocumentPostgres) ListPage(ctx context.Context, lq repository.ListQuery, page repository.PageRequest) (*repository.Page[model.Document], error) {
	w, err := repository.NewWindow(lq.Ordering, page)
	if err != nil {
		return nil, err
	}

	scan := w.ScanOrdering()
	b := applyFilter(newBuilder(), lq.Filter)
	if w.Cursor != nil {
		clause, args := boundary(scan, w.Cursor)
		b.where(clause, args...)
	}
	q, args := b.order(orderClause(scan)).withLimit(w.Limit).build()

	rows, err := r.queryMany(ctx, q, args)
	if err != nil {
		return nil, err
	}
	return w.Assemble(rows), nil
}

// Delete removes a document by ID.
func (r *DocumentPostgres) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *DocumentPostgres) queryMany(ctx context.Context, q string, args []any) ([]model.Document, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func applyFilter(b *builder, f repository.Filter) *builder {
	return b.
		where("d.file_type = $%d", f.ClassifiedType).
		where("d.contact_ref = $%d", f.ContactRef).
		where("$%d = ANY(d.workflow_scope_1)", f.WorkflowScope1).
		where("$%d = ANY(d.workflow_scope_2)", f.WorkflowScope2)
}

func sortExpr(field repository.OrderField) string {
	switch field {
	case repository.OrderUploadedAt:
		return "d.uploaded_at"
	case repository.OrderCreatedAt:
		// NULLs sort as the earliest possible time.
		return "COALESCE(d.created_at, '-infinity'::timestamptz)"
	default:
		return "d.id"
	}
}

func orderClause(o repository.Ordering) string {
	dir := "ASC"
	if o.Descending {
		dir = "DESC"
	}
	if o.Field == repository.OrderID || o.Field == "" {
		return "d.id " + dir
	}
	return fmt.Sprintf("%s %s, d.id %s", sortExpr(o.Field), dir, dir)
}

func boundary(o repository.Ordering, c *repository.Cursor) (string, []any) {
	op := ">"
	if o.Descending {
		op = "<"
	}
	if c.Inclusive {
		op += "="
	}
	if o.Field == repository.OrderID || o.Field == "" {
		return fmt.Sprintf("d.id %s $%%d", op), []any{c.ID}
	}
	return fmt.Sprintf("(%s, d.id) %s ($%%d::timestamptz, $%%d)", sortExpr(o.Field), op),
		[]any{timeParam(c.Value), c.ID}
}

// timeParam renders a cursor sort value as a timestamptz literal.
func timeParam(v int64) string {
	if v == repository.NullSortValue {
		return "-infinity"
	}
	return time.UnixMicro(v).UTC().Format(time.RFC3339Nano)
}

func mutableArgs(doc *model.Document) []any {
	return []any{
		doc.DisplayName,
		doc.Description,
		string(doc.ClassifiedType),
		nullString(doc.ContentKey),
		nullString(doc.ThumbnailKey),
		nullInt(doc.PageCount),
		nullTime(doc.CreatedAt),
		doc.UploadedAt,
		doc.OrganizationRef,
		doc.UserRef,
		doc.ContactRef,
		pq.Array(nonNil(doc.WorkflowScope1)),
		pq.Array(nonNil(doc.WorkflowScope2)),
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(s scanner) (*model.Document, error) {
	var (
		d            model.Document
		docType      string
		contentKey   sql.NullString
		thumbnailKey sql.NullString
		pageCount    sql.NullInt64
		createdAt    sql.NullTime
	)
	if err := s.Scan(
		&d.ID,
		&d.ExternalID,
		&d.DisplayName,
		&d.Description,
		&docType,
		&contentKey,
		&thumbnailKey,
		&pageCount,
		&createdAt,
		&d.UploadedAt,
		&d.OrganizationRef,
		&d.UserRef,
		&d.ContactRef,
		pq.Array(&d.WorkflowScope1),
		pq.Array(&d.WorkflowScope2),
	); err != nil {
		return nil, err
	}

	d.ClassifiedType = model.DocType(docType)
	d.ContentKey = contentKey.String
	d.ThumbnailKey = thumbnailKey.String
	if pageCount.Valid {
		n := int(pageCount.Int64)
		d.PageCount = &n
	}
	if createdAt.Valid {
		t := createdAt.Time
		d.CreatedAt = &t
	}
	return &d, nil
}

func mapError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return repository.ErrDuplicate
	}
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
