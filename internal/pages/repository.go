package pages

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/observa-edu/observa/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence. Paths are unique.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const pageColumns = `id, name, path, COALESCE(icon, ''), sort_order, category_id, created_at`

// ListPages returns every page by id.
func (r *Repository) ListPages(ctx context.Context) ([]Page, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+pageColumns+` FROM pages ORDER BY id`)
	if err != nil {
		return nil, db.Classify(err)
	}
	pages, err := pgx.CollectRows(rows, scanPage)
	if err != nil {
		return nil, db.Classify(err)
	}
	return pages, nil
}

// CreatePage inserts a page. A duplicate path surfaces as shared.ErrConflict and an
// unknown category as shared.ErrNotFound.
func (r *Repository) CreatePage(ctx context.Context, in CreateInput) (Page, error) {
	var order pgtype.Int4
	if in.SortOrder != nil {
		order = pgtype.Int4{Int32: int32(*in.SortOrder), Valid: true}
	}
	var category pgtype.Int8
	if in.CategoryID != nil {
		category = pgtype.Int8{Int64: *in.CategoryID, Valid: true}
	}
	rows, err := r.pool.Query(ctx, `INSERT INTO pages (name, path, icon, sort_order, category_id, created_at, updated_at)
	VALUES ($1, $2, NULLIF($3, ''), $4, $5, NOW(), NOW())
	RETURNING `+pageColumns, in.Name, in.Path, in.Icon, order, category)
	if err != nil {
		return Page{}, db.Classify(err)
	}
	page, err := pgx.CollectExactlyOneRow(rows, scanPage)
	if err != nil {
		return Page{}, db.Classify(err)
	}
	return page, nil
}

func scanPage(row pgx.CollectableRow) (Page, error) {
	var (
		p        Page
		order    pgtype.Int4
		category pgtype.Int8
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Path, &p.Icon, &order, &category, &p.CreatedAt); err != nil {
		return Page{}, err
	}
	if order.Valid {
		v := int(order.Int32)
		p.SortOrder = &v
	}
	if category.Valid {
		p.CategoryID = &category.Int64
	}
	return p, nil
}
