package menu

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/observa-edu/observa/internal/platform/db"
	"github.com/observa-edu/observa/internal/shared"
)

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Pages lists every page in insertion order.
func (r *PGRepository) Pages(ctx context.Context) ([]Page, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, path, COALESCE(icon, ''), sort_order, category_id
	FROM pages ORDER BY id`)
	if err != nil {
		return nil, db.Classify(err)
	}
	pages, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Page, error) {
		var (
			p        Page
			order    pgtype.Int4
			category pgtype.Int8
		)
		if err := row.Scan(&p.ID, &p.Name, &p.Path, &p.Icon, &order, &category); err != nil {
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
	})
	if err != nil {
		return nil, db.Classify(err)
	}
	return pages, nil
}

// Categories lists menu categories.
func (r *PGRepository) Categories(ctx context.Context) ([]Category, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, sort_order FROM menu_categories ORDER BY sort_order, name`)
	if err != nil {
		return nil, db.Classify(err)
	}
	categories, err := pgx.CollectRows(rows, pgx.RowToStructByPos[Category])
	if err != nil {
		return nil, db.Classify(err)
	}
	return categories, nil
}

// Reorder applies every order in one transaction, locking each page row first.
func (r *PGRepository) Reorder(ctx context.Context, orders []PageOrder) ([]OrderChange, error) {
	changes := make([]OrderChange, 0, len(orders))
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, o := range orders {
			var prev pgtype.Int4
			err := tx.QueryRow(ctx, `SELECT sort_order FROM pages WHERE id = $1 FOR UPDATE`, o.ID).Scan(&prev)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return fmt.Errorf("page %d: %w", o.ID, shared.ErrNotFound)
				}
				return db.Classify(err)
			}
			change := OrderChange{PageID: o.ID, Order: o.Order}
			if prev.Valid {
				v := int(prev.Int32)
				change.Previous = &v
			}
			if change.Changed() {
				if _, err := tx.Exec(ctx, `UPDATE pages SET sort_order = $2, updated_at = NOW() WHERE id = $1`, o.ID, o.Order); err != nil {
					return db.Classify(err)
				}
			}
			changes = append(changes, change)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return changes, nil
}
