package permissions

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/observa-edu/observa/internal/audit"
	"github.com/observa-edu/observa/internal/session"
	"github.com/observa-edu/observa/internal/shared"
)

type memoryRepo struct {
	roles   []RoleRef
	pages   []PageRef
	cells   map[[2]int64]bool
	actions map[string]bool
	failOn  int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		roles:   []RoleRef{{ID: 1, Name: "Admin"}, {ID: 2, Name: "teacher"}, {ID: 3, Name: "Coordinator"}},
		pages:   []PageRef{{ID: 10, Name: "Dashboard", Path: "/dashboard"}, {ID: 11, Name: "Page permissions", Path: ManagePath}, {ID: 12, Name: "Schools", Path: "/schools"}},
		cells:   map[[2]int64]bool{},
		actions: map[string]bool{},
	}
}

func (m *memoryRepo) roleName(id int64) string {
	for _, r := range m.roles {
		if r.ID == id {
			return r.Name
		}
	}
	return ""
}

func (m *memoryRepo) RoleRules(_ context.Context, role string) ([]Rule, error) {
	var out []Rule
	for key, allowed := range m.cells {
		if NormalizeRole(m.roleName(key[0])) != role {
			continue
		}
		page, _ := m.FindPage(context.Background(), key[1])
		out = append(out, Rule{PageID: page.ID, Path: page.Path, Allowed: allowed})
	}
	return out, nil
}

func (m *memoryRepo) RoleActionRules(_ context.Context, role, action string) ([]ActionRule, error) {
	var out []ActionRule
	for _, r := range m.roles {
		if NormalizeRole(r.Name) != role {
			continue
		}
		for _, p := range m.pages {
			if allowed, ok := m.actions[actionKey(r.ID, p.ID, action)]; ok {
				out = append(out, ActionRule{PageID: p.ID, Path: p.Path, Action: action, Allowed: allowed})
			}
		}
	}
	return out, nil
}

func actionKey(roleID, pageID int64, action string) string {
	return fmt.Sprintf("%d:%d:%s", roleID, pageID, action)
}

func (m *memoryRepo) Matrix(context.Context) (Matrix, error) {
	matrix := Matrix{Roles: m.roles, Pages: m.pages}
	for key, allowed := range m.cells {
		matrix.Cells = append(matrix.Cells, Cell{RoleID: key[0], PageID: key[1], IsAllowed: allowed})
	}
	return matrix, nil
}

func (m *memoryRepo) FindRole(_ context.Context, name string) (RoleRef, error) {
	for _, r := range m.roles {
		if NormalizeRole(r.Name) == NormalizeRole(name) {
			return r, nil
		}
	}
	return RoleRef{}, shared.ErrNotFound
}

func (m *memoryRepo) FindPage(_ context.Context, id int64) (PageRef, error) {
	for _, p := range m.pages {
		if p.ID == id {
			return p, nil
		}
	}
	return PageRef{}, shared.ErrNotFound
}

func (m *memoryRepo) CurrentCell(_ context.Context, roleID, pageID int64, action string) (*bool, error) {
	var (
		v  bool
		ok bool
	)
	if action == "" {
		v, ok = m.cells[[2]int64{roleID, pageID}]
	} else {
		v, ok = m.actions[actionKey(roleID, pageID, action)]
	}
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (m *memoryRepo) UpsertCells(ctx context.Context, inputs []CellInput) ([]CellChange, error) {
	staged := make(map[[2]int64]bool, len(m.cells))
	for k, v := range m.cells {
		staged[k] = v
	}
	stagedActions := make(map[string]bool, len(m.actions))
	for k, v := range m.actions {
		stagedActions[k] = v
	}
	var changes []CellChange
	for _, in := range inputs {
		if in.PageID == m.failOn {
			return nil, fmt.Errorf("%w: simulated", shared.ErrStorageUnavailable)
		}
		page, err := m.FindPage(ctx, in.PageID)
		if err != nil {
			return nil, err
		}
		prev, _ := m.CurrentCell(ctx, in.RoleID, in.PageID, in.Action)
		if in.Action == "" {
			staged[[2]int64{in.RoleID, in.PageID}] = in.Allowed
		} else {
			stagedActions[actionKey(in.RoleID, in.PageID, in.Action)] = in.Allowed
		}
		changes = append(changes, CellChange{Role: RoleRef{ID: in.RoleID, Name: m.roleName(in.RoleID)}, Page: page, Action: in.Action, Previous: prev, Allowed: in.Allowed})
	}
	m.cells = staged
	m.actions = stagedActions
	return changes, nil
}

type recordingAudit struct {
	entries []audit.Entry
	err     error
}

func (r *recordingAudit) Record(_ context.Context, e audit.Entry) error {
	if r.err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAuditWriteFailed, r.err)
	}
	r.entries = append(r.entries, e)
	return nil
}

type memoryIdem struct {
	keys map[string]string
	err  error
}

func (m *memoryIdem) CheckAndInsert(_ context.Context, key, module, fp string) error {
	if m.err != nil {
		return m.err
	}
	stored, ok := m.keys[module+"/"+key]
	if ok {
		return shared.MatchFingerprint(stored, fp)
	}
	m.keys[module+"/"+key] = fp
	return nil
}

func (m *memoryIdem) Delete(_ context.Context, key, module string) error {
	delete(m.keys, module+"/"+key)
	return nil
}

type directory map[int64]session.UserInfo

func (d directory) SessionUser(_ context.Context, id int64) (session.UserInfo, error) {
	info, ok := d[id]
	if !ok {
		return session.UserInfo{}, shared.ErrNotFound
	}
	return info, nil
}

type fixture struct {
	repo    *memoryRepo
	audit   *recordingAudit
	idem    *memoryIdem
	service *Service
}

func newFixture() fixture {
	repo := newMemoryRepo()
	rec := &recordingAudit{}
	idem := &memoryIdem{keys: map[string]string{}}
	users := directory{
		20: {Role: "Teacher", Active: true},
		21: {Role: "teacher", Active: false},
	}
	svc := NewService(repo, NewResolver(repo, nil), rec, idem, users, nil)
	return fixture{repo: repo, audit: rec, idem: idem, service: svc}
}

var admin = shared.Principal{UserID: 1, Role: "admin", Tier: shared.TierStaff}

func TestSetUpsertsAndAudits(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	res, err := f.service.Set(ctx, admin, SetInput{Role: "TEACHER", PageID: 12, IsAllowed: true})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, "teacher", res.Role)
	assert.Equal(t, "/schools", res.PagePath)
	assert.Empty(t, res.Warnings)
	require.Len(t, f.audit.entries, 1)
	entry := f.audit.entries[0]
	assert.Equal(t, audit.ActionPermissionChanged, entry.Action)
	assert.Equal(t, int64(2), *entry.RoleID)
	assert.Equal(t, int64(12), *entry.PageID)
	assert.Nil(t, entry.Before)
	assert.JSONEq(t, `{"isAllowed":true}`, string(entry.After))
}

func TestSetIdenticalEditIsIdempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	in := SetInput{Role: "teacher", PageID: 12, IsAllowed: true}

	_, err := f.service.Set(ctx, admin, in)
	require.NoError(t, err)
	res, err := f.service.Set(ctx, admin, in)
	require.NoError(t, err)

	assert.False(t, res.Changed)
	assert.Len(t, f.repo.cells, 1)
	assert.Len(t, f.audit.entries, 1)
}

func TestSetReplayedKeySkipsMutation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	in := SetInput{Role: "teacher", PageID: 12, IsAllowed: true, IdempotencyKey: "k-1"}

	_, err := f.service.Set(ctx, admin, in)
	require.NoError(t, err)
	f.repo.cells[[2]int64{2, 12}] = false
	res, err := f.service.Set(ctx, admin, in)
	require.NoError(t, err)

	assert.True(t, res.Replayed)
	assert.False(t, res.IsAllowed, "replay reports the current state")
	assert.False(t, f.repo.cells[[2]int64{2, 12}])
	assert.Len(t, f.audit.entries, 1)
}

func TestSetReusedKeyForDifferentEditConflicts(t *testing.T) {
	cases := []struct {
		name  string
		input SetInput
	}{
		{name: "other value", input: SetInput{Role: "teacher", PageID: 12, IsAllowed: false, IdempotencyKey: "1"}},
		{name: "other role", input: SetInput{Role: "coordinator", PageID: 12, IsAllowed: true, IdempotencyKey: "1"}},
		{name: "other page", input: SetInput{Role: "teacher", PageID: 10, IsAllowed: true, IdempotencyKey: "1"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			ctx := context.Background()
			_, err := f.service.Set(ctx, admin, SetInput{Role: "teacher", PageID: 12, IsAllowed: true, IdempotencyKey: "1"})
			require.NoError(t, err)

			_, err = f.service.Set(ctx, admin, tc.input)
			require.ErrorIs(t, err, shared.ErrConflict)
			assert.Len(t, f.repo.cells, 1)
			assert.True(t, f.repo.cells[[2]int64{2, 12}])
			assert.Len(t, f.audit.entries, 1)
		})
	}
}

func TestSetKeysAreScopedPerActor(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	other := shared.Principal{UserID: 7, Role: "admin", Tier: shared.TierStaff}

	_, err := f.service.Set(ctx, admin, SetInput{Role: "teacher", PageID: 12, IsAllowed: true, IdempotencyKey: "1"})
	require.NoError(t, err)
	res, err := f.service.Set(ctx, other, SetInput{Role: "teacher", PageID: 10, IsAllowed: true, IdempotencyKey: "1"})
	require.NoError(t, err)

	assert.False(t, res.Replayed)
	assert.True(t, res.Changed)
	assert.True(t, f.repo.cells[[2]int64{2, 10}])
}

func TestSetWithoutIdempotencyTableStillWrites(t *testing.T) {
	f := newFixture()
	f.idem.err = shared.ErrSchemaMissing

	res, err := f.service.Set(context.Background(), admin, SetInput{Role: "teacher", PageID: 12, IsAllowed: true, IdempotencyKey: "k-3"})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.True(t, f.repo.cells[[2]int64{2, 12}])
	assert.Len(t, f.audit.entries, 1)
}

func TestSetFailureReleasesKey(t *testing.T) {
	f := newFixture()
	f.repo.failOn = 12

	_, err := f.service.Set(context.Background(), admin, SetInput{Role: "teacher", PageID: 12, IsAllowed: true, IdempotencyKey: "k-2"})
	require.ErrorIs(t, err, shared.ErrStorageUnavailable)
	assert.Empty(t, f.idem.keys)
	assert.Empty(t, f.audit.entries)
}

func TestSetAuditFailureIsWarning(t *testing.T) {
	f := newFixture()
	f.audit.err = errors.New("disk full")

	res, err := f.service.Set(context.Background(), admin, SetInput{Role: "teacher", PageID: 12, IsAllowed: true})
	require.NoError(t, err)
	assert.Equal(t, []string{shared.WarningAuditWriteFailed}, res.Warnings)
	assert.True(t, f.repo.cells[[2]int64{2, 12}])
}

func TestSetValidation(t *testing.T) {
	f := newFixture()
	_, err := f.service.Set(context.Background(), admin, SetInput{Role: " ", PageID: 12})
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = f.service.Set(context.Background(), admin, SetInput{Role: "ghost", PageID: 12})
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = f.service.Set(context.Background(), admin, SetInput{Role: "teacher", PageID: 99})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestSetActionPermission(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.service.Set(ctx, admin, SetInput{Role: "teacher", PageID: 12, IsAllowed: true})
	require.NoError(t, err)
	res, err := f.service.Set(ctx, admin, SetInput{Role: "teacher", PageID: 12, Action: " Delete ", IsAllowed: false})
	require.NoError(t, err)
	assert.Equal(t, "delete", res.Action)

	teacher := shared.Principal{UserID: 20, Role: "teacher", Tier: shared.TierStaff}
	ok, err := f.service.Check(ctx, teacher, 0, "/schools", "delete")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = f.service.Check(ctx, teacher, 0, "/schools", "")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2:12:delete", f.audit.entries[1].TargetID)
}

func TestBulkSetIsAtomicWithOneEntry(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	res, err := f.service.BulkSet(ctx, admin, []CellInput{
		{RoleID: 2, PageID: 10, Allowed: true},
		{RoleID: 3, PageID: 10, Allowed: true},
		{RoleID: 3, PageID: 12, Allowed: false},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Applied)
	assert.Equal(t, 3, res.Changed)
	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, "3 permissions changed", f.audit.entries[0].Summary)

	f.repo.failOn = 12
	_, err = f.service.BulkSet(ctx, admin, []CellInput{
		{RoleID: 2, PageID: 10, Allowed: false},
		{RoleID: 2, PageID: 12, Allowed: true},
	})
	require.ErrorIs(t, err, shared.ErrStorageUnavailable)
	assert.True(t, f.repo.cells[[2]int64{2, 10}], "failed bulk edit must leave prior state")
	assert.Len(t, f.audit.entries, 1)
}

func TestBulkSetRejectsDuplicates(t *testing.T) {
	f := newFixture()
	_, err := f.service.BulkSet(context.Background(), admin, []CellInput{
		{RoleID: 2, PageID: 10, Allowed: true},
		{RoleID: 2, PageID: 10, Allowed: false},
	})
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = f.service.BulkSet(context.Background(), admin, nil)
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestCheckTeacherWithoutRowIsDenied(t *testing.T) {
	f := newFixture()
	teacher := shared.Principal{UserID: 20, Role: "teacher", Tier: shared.TierStaff}

	ok, err := f.service.Check(context.Background(), teacher, 0, ManagePath, "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheckOtherUserRequiresManageAccess(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	teacher := shared.Principal{UserID: 20, Role: "teacher", Tier: shared.TierStaff}

	_, err := f.service.Check(ctx, teacher, 21, "/dashboard", "")
	assert.ErrorIs(t, err, shared.ErrForbidden)

	_, err = f.service.Set(ctx, admin, SetInput{Role: "teacher", PageID: 10, IsAllowed: true})
	require.NoError(t, err)

	ok, err := f.service.Check(ctx, admin, 20, "/dashboard", "")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.service.Check(ctx, admin, 21, "/dashboard", "")
	require.NoError(t, err)
	assert.False(t, ok, "inactive user resolves to no access")

	_, err = f.service.Check(ctx, admin, 404, "/dashboard", "")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
