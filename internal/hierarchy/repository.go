package hierarchy

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/observa-edu/observa/internal/platform/db"
	"github.com/observa-edu/observa/internal/shared"
)

var levelTables = map[Level]string{
	LevelZone:     "zones",
	LevelProvince: "provinces",
	LevelDistrict: "districts",
	LevelSchool:   "schools",
	LevelClass:    "classes",
}

// ancestorQueries select the node id followed by each ancestor id, leaf to root.
var ancestorQueries = map[Level]string{
	LevelZone:     `SELECT z.id FROM zones z WHERE z.id = $1`,
	LevelProvince: `SELECT p.id, p.zone_id FROM provinces p WHERE p.id = $1`,
	LevelDistrict: `SELECT d.id, d.province_id, p.zone_id FROM districts d JOIN provinces p ON p.id = d.province_id WHERE d.id = $1`,
	LevelSchool: `SELECT s.id, s.district_id, d.province_id, p.zone_id FROM schools s
	JOIN districts d ON d.id = s.district_id JOIN provinces p ON p.id = d.province_id WHERE s.id = $1`,
	LevelClass: `SELECT c.id, c.school_id, s.district_id, d.province_id, p.zone_id FROM classes c
	JOIN schools s ON s.id = c.school_id JOIN districts d ON d.id = s.district_id JOIN provinces p ON p.id = d.province_id WHERE c.id = $1`,
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Assignments returns every assignment of userID.
func (r *PGRepository) Assignments(ctx context.Context, userID int64) ([]Assignment, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id, level, node_id, assigned_by, assigned_at
	FROM user_hierarchy_assignments WHERE user_id = $1 ORDER BY assigned_at, level, node_id`, userID)
	if err != nil {
		return nil, db.Classify(err)
	}
	assignments, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Assignment, error) {
		var (
			a     Assignment
			level string
		)
		err := row.Scan(&a.UserID, &level, &a.NodeID, &a.AssignedBy, &a.AssignedAt)
		a.Level = Level(level)
		return a, err
	})
	if err != nil {
		return nil, db.Classify(err)
	}
	return assignments, nil
}

// Ancestors returns node followed by its ancestors up to the zone.
func (r *PGRepository) Ancestors(ctx context.Context, node Node) ([]Node, error) {
	query, ok := ancestorQueries[node.Level]
	if !ok {
		return nil, fmt.Errorf("%w: unknown level %q", shared.ErrValidation, node.Level)
	}
	depth := levelDepth(node.Level)
	ids := make([]int64, depth+1)
	dest := make([]any, len(ids))
	for i := range ids {
		dest[i] = &ids[i]
	}
	if err := r.pool.QueryRow(ctx, query, node.ID).Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s %d: %w", node.Level, node.ID, shared.ErrNotFound)
		}
		return nil, db.Classify(err)
	}
	chain := make([]Node, 0, len(ids))
	for i, id := range ids {
		chain = append(chain, Node{Level: Levels[depth-i], ID: id})
	}
	return chain, nil
}

// NodeExists reports whether the node is present.
func (r *PGRepository) NodeExists(ctx context.Context, node Node) (bool, error) {
	table, ok := levelTables[node.Level]
	if !ok {
		return false, fmt.Errorf("%w: unknown level %q", shared.ErrValidation, node.Level)
	}
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = $1)`, node.ID).Scan(&exists); err != nil {
		return false, db.Classify(err)
	}
	return exists, nil
}

// Schools lists the schools whose ancestor chain meets scope. Class assignments do not
// expose their school.
func (r *PGRepository) Schools(ctx context.Context, scope Scope) ([]School, error) {
	query := `SELECT s.id, s.name, s.district_id, d.province_id, p.zone_id
	FROM schools s
	JOIN districts d ON d.id = s.district_id
	JOIN provinces p ON p.id = d.province_id`
	var args []any
	if !scope.All() {
		query += ` WHERE s.id = ANY($1) OR s.district_id = ANY($2) OR d.province_id = ANY($3) OR p.zone_id = ANY($4)`
		args = []any{scope.Roots(LevelSchool), scope.Roots(LevelDistrict), scope.Roots(LevelProvince), scope.Roots(LevelZone)}
	}
	query += ` ORDER BY s.name, s.id`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, db.Classify(err)
	}
	schools, err := pgx.CollectRows(rows, pgx.RowToStructByPos[School])
	if err != nil {
		return nil, db.Classify(err)
	}
	return schools, nil
}

// Insert stores an assignment. It reports false when the assignment already existed.
func (r *PGRepository) Insert(ctx context.Context, a Assignment) (bool, error) {
	tag, err := r.pool.Exec(ctx, `INSERT INTO user_hierarchy_assignments (user_id, level, node_id, assigned_by, assigned_at)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (user_id, level, node_id) DO NOTHING`, a.UserID, string(a.Level), a.NodeID, a.AssignedBy, a.AssignedAt)
	if err != nil {
		return false, db.Classify(err)
	}
	return tag.RowsAffected() == 1, nil
}

// Delete removes an assignment. It reports false when nothing matched.
func (r *PGRepository) Delete(ctx context.Context, userID int64, node Node) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM user_hierarchy_assignments WHERE user_id = $1 AND level = $2 AND node_id = $3`,
		userID, string(node.Level), node.ID)
	if err != nil {
		return false, db.Classify(err)
	}
	return tag.RowsAffected() > 0, nil
}

func levelDepth(level Level) int {
	for i, l := range Levels {
		if l == level {
			return i
		}
	}
	return -1
}

var _ Repository = (*PGRepository)(nil)
