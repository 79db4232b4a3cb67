package permissions

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/observa-edu/observa/internal/platform/db"
	"github.com/observa-edu/observa/internal/shared"
)

// Repository defines persistence for the matrix.
type Repository interface {
	Store
	Matrix(ctx context.Context) (Matrix, error)
	FindRole(ctx context.Context, name string) (RoleRef, error)
	FindPage(ctx context.Context, id int64) (PageRef, error)
	CurrentCell(ctx context.Context, roleID, pageID int64, action string) (*bool, error)
	UpsertCells(ctx context.Context, inputs []CellInput) ([]CellChange, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// RoleRules loads every page-level row of role.
func (r *PGRepository) RoleRules(ctx context.Context, role string) ([]Rule, error) {
	rows, err := r.pool.Query(ctx, `SELECT p.id, p.path, rpp.is_allowed
	FROM role_page_permissions rpp
	JOIN roles ro ON ro.id = rpp.role_id
	JOIN pages p ON p.id = rpp.page_id
	WHERE lower(ro.name) = $1`, role)
	if err != nil {
		return nil, db.Classify(err)
	}
	rules, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Rule, error) {
		var rule Rule
		err := row.Scan(&rule.PageID, &rule.Path, &rule.Allowed)
		return rule, err
	})
	return rules, db.Classify(err)
}

// RoleActionRules loads the action rows of role for one action.
func (r *PGRepository) RoleActionRules(ctx context.Context, role, action string) ([]ActionRule, error) {
	rows, err := r.pool.Query(ctx, `SELECT p.id, p.path, pap.action, pap.is_allowed
	FROM page_action_permissions pap
	JOIN roles ro ON ro.id = pap.role_id
	JOIN pages p ON p.id = pap.page_id
	WHERE lower(ro.name) = $1 AND lower(pap.action) = $2`, role, action)
	if err != nil {
		return nil, db.Classify(err)
	}
	rules, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ActionRule, error) {
		var rule ActionRule
		err := row.Scan(&rule.PageID, &rule.Path, &rule.Action, &rule.Allowed)
		return rule, err
	})
	return rules, db.Classify(err)
}

// Matrix loads roles, pages and stored cells. Missing permission tables yield empty cells.
func (r *PGRepository) Matrix(ctx context.Context) (Matrix, error) {
	var m Matrix
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM roles ORDER BY lower(name), id`)
	if err != nil {
		return Matrix{}, db.Classify(err)
	}
	m.Roles, err = pgx.CollectRows(rows, pgx.RowToStructByPos[RoleRef])
	if err != nil {
		return Matrix{}, db.Classify(err)
	}
	rows, err = r.pool.Query(ctx, `SELECT id, name, path FROM pages ORDER BY COALESCE(sort_order, id), name`)
	if err != nil {
		return Matrix{}, db.Classify(err)
	}
	m.Pages, err = pgx.CollectRows(rows, pgx.RowToStructByPos[PageRef])
	if err != nil {
		return Matrix{}, db.Classify(err)
	}
	m.Cells, err = r.cells(ctx)
	if err != nil {
		return Matrix{}, err
	}
	m.Actions, err = r.actionCells(ctx)
	if err != nil {
		return Matrix{}, err
	}
	return m, nil
}

func (r *PGRepository) cells(ctx context.Context) ([]Cell, error) {
	rows, err := r.pool.Query(ctx, `SELECT role_id, page_id, is_allowed FROM role_page_permissions ORDER BY role_id, page_id`)
	if err != nil {
		return emptyOnMissing[Cell](db.Classify(err))
	}
	cells, err := pgx.CollectRows(rows, pgx.RowToStructByPos[Cell])
	if err != nil {
		return emptyOnMissing[Cell](db.Classify(err))
	}
	return cells, nil
}

func (r *PGRepository) actionCells(ctx context.Context) ([]ActionCell, error) {
	rows, err := r.pool.Query(ctx, `SELECT role_id, page_id, action, is_allowed FROM page_action_permissions ORDER BY role_id, page_id, action`)
	if err != nil {
		return emptyOnMissing[ActionCell](db.Classify(err))
	}
	cells, err := pgx.CollectRows(rows, pgx.RowToStructByPos[ActionCell])
	if err != nil {
		return emptyOnMissing[ActionCell](db.Classify(err))
	}
	return cells, nil
}

func emptyOnMissing[T any](err error) ([]T, error) {
	if errors.Is(err, shared.ErrSchemaMissing) {
		return []T{}, nil
	}
	return nil, err
}

// FindRole looks a role up by case-insensitive name.
func (r *PGRepository) FindRole(ctx context.Context, name string) (RoleRef, error) {
	var role RoleRef
	err := r.pool.QueryRow(ctx, `SELECT id, name FROM roles WHERE lower(name) = $1`, NormalizeRole(name)).Scan(&role.ID, &role.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RoleRef{}, fmt.Errorf("role %q: %w", name, shared.ErrNotFound)
		}
		return RoleRef{}, db.Classify(err)
	}
	return role, nil
}

// FindPage looks a page up by id.
func (r *PGRepository) FindPage(ctx context.Context, id int64) (PageRef, error) {
	var page PageRef
	err := r.pool.QueryRow(ctx, `SELECT id, name, path FROM pages WHERE id = $1`, id).Scan(&page.ID, &page.Name, &page.Path)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PageRef{}, fmt.Errorf("page %d: %w", id, shared.ErrNotFound)
		}
		return PageRef{}, db.Classify(err)
	}
	return page, nil
}

// CurrentCell returns the stored decision or nil when no row exists.
func (r *PGRepository) CurrentCell(ctx context.Context, roleID, pageID int64, action string) (*bool, error) {
	return currentCell(ctx, r.pool, roleID, pageID, action, false)
}

// UpsertCells applies every input in one transaction. Either all land or none do.
func (r *PGRepository) UpsertCells(ctx context.Context, inputs []CellInput) ([]CellChange, error) {
	changes := make([]CellChange, 0, len(inputs))
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, in := range inputs {
			change, err := upsertCell(ctx, tx, in)
			if err != nil {
				return err
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

func upsertCell(ctx context.Context, q db.Querier, in CellInput) (CellChange, error) {
	change := CellChange{Action: in.Action, Allowed: in.Allowed}
	err := q.QueryRow(ctx, `SELECT ro.id, ro.name, p.id, p.name, p.path FROM roles ro, pages p WHERE ro.id = $1 AND p.id = $2`,
		in.RoleID, in.PageID).Scan(&change.Role.ID, &change.Role.Name, &change.Page.ID, &change.Page.Name, &change.Page.Path)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CellChange{}, fmt.Errorf("role %d or page %d: %w", in.RoleID, in.PageID, shared.ErrNotFound)
		}
		return CellChange{}, db.Classify(err)
	}
	change.Previous, err = currentCell(ctx, q, in.RoleID, in.PageID, in.Action, true)
	if err != nil {
		return CellChange{}, err
	}
	if in.Action == "" {
		_, err = q.Exec(ctx, `INSERT INTO role_page_permissions (role_id, page_id, is_allowed, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (role_id, page_id) DO UPDATE SET is_allowed = EXCLUDED.is_allowed, updated_at = NOW()
		WHERE role_page_permissions.is_allowed IS DISTINCT FROM EXCLUDED.is_allowed`, in.RoleID, in.PageID, in.Allowed)
	} else {
		_, err = q.Exec(ctx, `INSERT INTO page_action_permissions (role_id, page_id, action, is_allowed, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (role_id, page_id, action) DO UPDATE SET is_allowed = EXCLUDED.is_allowed, updated_at = NOW()
		WHERE page_action_permissions.is_allowed IS DISTINCT FROM EXCLUDED.is_allowed`, in.RoleID, in.PageID, in.Action, in.Allowed)
	}
	if err != nil {
		return CellChange{}, db.Classify(err)
	}
	return change, nil
}

func currentCell(ctx context.Context, q db.Querier, roleID, pageID int64, action string, lock bool) (*bool, error) {
	var (
		query string
		args  []any
	)
	if action == "" {
		query = `SELECT is_allowed FROM role_page_permissions WHERE role_id = $1 AND page_id = $2`
		args = []any{roleID, pageID}
	} else {
		query = `SELECT is_allowed FROM page_action_permissions WHERE role_id = $1 AND page_id = $2 AND action = $3`
		args = []any{roleID, pageID, action}
	}
	if lock {
		query += ` FOR UPDATE`
	}
	var allowed bool
	if err := q.QueryRow(ctx, query, args...).Scan(&allowed); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, db.Classify(err)
	}
	return &allowed, nil
}

var _ Repository = (*PGRepository)(nil)
