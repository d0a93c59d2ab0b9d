package repository

import (
	"context"
	"testing"

	"github.com/alexanderramin/trilium-bot/internal/domain"
	"github.com/alexanderramin/trilium-bot/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatRepo_RegisterIsIdempotent(t *testing.T) {
	repo := NewSQLiteChatRepo(testutil.NewTestDB(t))
	ctx := context.Background()

	c, err := repo.Register(ctx, 100, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(100), c.ID)
	assert.Equal(t, int64(7), c.UserID)
	assert.Nil(t, c.RolloverCursor)

	require.NoError(t, repo.AdvanceCursor(ctx, 100, testutil.Yesterday))

	again, err := repo.Register(ctx, 100, 7)
	require.NoError(t, err)
	require.NotNil(t, again.RolloverCursor)
	assert.Equal(t, testutil.Yesterday, *again.RolloverCursor, "re-registering must keep the cursor")
}

func TestChatRepo_GetByID_NotFound(t *testing.T) {
	repo := NewSQLiteChatRepo(testutil.NewTestDB(t))

	_, err := repo.GetByID(context.Background(), 5)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestChatRepo_List(t *testing.T) {
	repo := NewSQLiteChatRepo(testutil.NewTestDB(t))
	ctx := context.Background()

	for _, id := range []int64{3, 1, 2} {
		_, err := repo.Register(ctx, id, id*10)
		require.NoError(t, err)
	}

	chats, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, chats, 3)
	assert.Equal(t, int64(1), chats[0].ID)
	assert.Equal(t, int64(3), chats[2].ID)
}

func TestChatRepo_AdvanceCursor_OnlyMovesForward(t *testing.T) {
	repo := NewSQLiteChatRepo(testutil.NewTestDB(t))
	ctx := context.Background()
	_, err := repo.Register(ctx, 1, 1)
	require.NoError(t, err)

	require.NoError(t, repo.AdvanceCursor(ctx, 1, testutil.Yesterday))
	require.NoError(t, repo.AdvanceCursor(ctx, 1, testutil.Yesterday.Yesterday()))

	c, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, testutil.Yesterday, *c.RolloverCursor)

	assert.ErrorIs(t, repo.AdvanceCursor(ctx, 99, testutil.Today), domain.ErrNotFound)
}
