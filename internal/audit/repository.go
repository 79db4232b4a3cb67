package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/observa-edu/observa/internal/platform/db"
)

// PGRepository stores entries in audit_entries.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PGRepository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Insert appends one entry.
func (r *PGRepository) Insert(ctx context.Context, e Entry) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO audit_entries
	(actor_user_id, actor_role, action, target_entity, target_id, role_id, page_id, summary, before_value, after_value, remote_addr, occurred_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	RETURNING id`,
		e.ActorUserID, e.ActorRole, string(e.Action), e.TargetEntity, e.TargetID,
		optionalInt(e.RoleID), optionalInt(e.PageID), e.Summary,
		nullableJSON(e.Before), nullableJSON(e.After), e.RemoteAddr, e.OccurredAt,
	).Scan(&id)
	if err != nil {
		return 0, db.Classify(err)
	}
	return id, nil
}

// List returns up to limit rows matching filter, newest first. limit is passed through so
// callers can over-fetch by one to detect a next page.
func (r *PGRepository) List(ctx context.Context, f Filter, limit int) ([]Entry, error) {
	where, args := filterClause(f)
	args = append(args, limit, f.Offset)
	query := fmt.Sprintf(`SELECT id, actor_user_id, actor_role, action, target_entity, target_id, role_id, page_id, summary, before_value, after_value, remote_addr, occurred_at
	FROM audit_entries %s ORDER BY occurred_at DESC, id DESC LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))
	return r.query(ctx, query, args...)
}

// All returns every row matching filter, newest first.
func (r *PGRepository) All(ctx context.Context, f Filter) ([]Entry, error) {
	where, args := filterClause(f)
	query := `SELECT id, actor_user_id, actor_role, action, target_entity, target_id, role_id, page_id, summary, before_value, after_value, remote_addr, occurred_at
	FROM audit_entries ` + where + ` ORDER BY occurred_at DESC, id DESC`
	return r.query(ctx, query, args...)
}

func (r *PGRepository) query(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, db.Classify(err)
	}
	entries, err := pgx.CollectRows(rows, scanEntry)
	if err != nil {
		return nil, db.Classify(err)
	}
	return entries, nil
}

func scanEntry(row pgx.CollectableRow) (Entry, error) {
	var (
		e      Entry
		action string
		roleID pgtype.Int8
		pageID pgtype.Int8
		remote pgtype.Text
	)
	if err := row.Scan(&e.ID, &e.ActorUserID, &e.ActorRole, &action, &e.TargetEntity, &e.TargetID,
		&roleID, &pageID, &e.Summary, &e.Before, &e.After, &remote, &e.OccurredAt); err != nil {
		return Entry{}, err
	}
	e.Action = Action(action)
	if roleID.Valid {
		e.RoleID = &roleID.Int64
	}
	if pageID.Valid {
		e.PageID = &pageID.Int64
	}
	e.RemoteAddr = remote.String
	return e, nil
}

func filterClause(f Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.RoleID != nil {
		args = append(args, *f.RoleID)
		conds = append(conds, fmt.Sprintf("role_id = $%d", len(args)))
	}
	if f.PageID != nil {
		args = append(args, *f.PageID)
		conds = append(conds, fmt.Sprintf("page_id = $%d", len(args)))
	}
	if f.Action != "" {
		args = append(args, string(f.Action))
		conds = append(conds, fmt.Sprintf("action = $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

func optionalInt(v *int64) pgtype.Int8 {
	if v == nil {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: *v, Valid: true}
}

func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}

var _ Appender = (*PGRepository)(nil)
