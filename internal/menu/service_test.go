package menu

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/observa-edu/observa/internal/audit"
	"github.com/observa-edu/observa/internal/shared"
)

var admin = shared.Principal{UserID: 1, Role: "admin", Tier: shared.TierStaff}

func TestReorderScenario(t *testing.T) {
	repo := newMemoryRepo()
	log := &recordingAudit{}
	svc := NewService(repo, log, nil)

	result, err := svc.Reorder(context.Background(), admin, []PageOrder{{ID: 5, Order: 1}, {ID: 2, Order: 2}})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Updated)
	assert.Equal(t, 2, result.Changed)
	assert.Empty(t, result.Warnings)

	require.Len(t, log.entries, 1)
	assert.Equal(t, audit.ActionMenuOrderChanged, log.entries[0].Action)
	assert.Equal(t, "2 pages reordered", log.entries[0].Summary)
	assert.JSONEq(t, `{"5":1,"2":2}`, string(log.entries[0].After))

	items, err := newComposer(repo).Items(context.Background(), "teacher")
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 1, 2, 6}, ids(items))
}

func TestReorderAcceptsLargestStoredOrder(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, &recordingAudit{}, nil)

	_, err := svc.Reorder(context.Background(), admin, []PageOrder{{ID: 2, Order: 1<<31 - 1}})
	require.NoError(t, err)
	require.NotNil(t, repo.pages[1].SortOrder)
	assert.Equal(t, 1<<31-1, *repo.pages[1].SortOrder)
}

func TestReorderUnchangedWritesNoAudit(t *testing.T) {
	repo := newMemoryRepo()
	log := &recordingAudit{}
	svc := NewService(repo, log, nil)
	orders := []PageOrder{{ID: 5, Order: 1}}

	_, err := svc.Reorder(context.Background(), admin, orders)
	require.NoError(t, err)
	result, err := svc.Reorder(context.Background(), admin, orders)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Changed)
	assert.Len(t, log.entries, 1)
}

func TestReorderRejectsBadInput(t *testing.T) {
	repo := newMemoryRepo()
	log := &recordingAudit{}
	svc := NewService(repo, log, nil)
	ctx := context.Background()

	_, err := svc.Reorder(ctx, admin, nil)
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Reorder(ctx, admin, []PageOrder{{ID: 2, Order: -1}})
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Reorder(ctx, admin, []PageOrder{{ID: 2, Order: 1 << 31}})
	assert.ErrorIs(t, err, shared.ErrValidation, "orders beyond int4 never reach the database")

	_, err = svc.Reorder(ctx, admin, []PageOrder{{ID: 2, Order: 1}, {ID: 2, Order: 3}})
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Reorder(ctx, admin, []PageOrder{{ID: 2, Order: 1}, {ID: 99, Order: 2}})
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.Nil(t, repo.pages[1].SortOrder, "a failed batch leaves every page untouched")

	assert.Empty(t, log.entries)
}
