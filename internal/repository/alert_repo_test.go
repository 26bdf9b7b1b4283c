package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Debayan00100101/chatt/internal/apperrors"
)

func TestPushAndListOldestFirst(t *testing.T) {
	repo := NewAlertRepo(newTestDB(t))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := repo.Push(ctx, fmt.Sprintf("notice %d", i))
		require.NoError(t, err)
	}

	alerts, err := repo.List(ctx, 3, "alice")
	require.NoError(t, err)
	require.Len(t, alerts, 3)
	assert.Equal(t, "notice 2", alerts[0].Text)
	assert.Equal(t, "notice 4", alerts[2].Text)
}

func TestDismissIsPerViewer(t *testing.T) {
	repo := NewAlertRepo(newTestDB(t))
	ctx := context.Background()

	alert, err := repo.Push(ctx, "alice joined the chat")
	require.NoError(t, err)

	require.NoError(t, repo.Dismiss(ctx, alert.ID, "bob"))
	// repeated dismissal is a no-op
	require.NoError(t, repo.Dismiss(ctx, alert.ID, "bob"))

	bobView, err := repo.List(ctx, 10, "bob")
	require.NoError(t, err)
	assert.Empty(t, bobView)

	carolView, err := repo.List(ctx, 10, "carol")
	require.NoError(t, err)
	assert.Len(t, carolView, 1)
}

func TestDismissMissingAlert(t *testing.T) {
	repo := NewAlertRepo(newTestDB(t))
	err := repo.Dismiss(context.Background(), 999, "bob")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestPurgeRemovesForAllViewers(t *testing.T) {
	repo := NewAlertRepo(newTestDB(t))
	ctx := context.Background()

	alert, err := repo.Push(ctx, "bob left the chat")
	require.NoError(t, err)
	require.NoError(t, repo.Dismiss(ctx, alert.ID, "carol"))

	removed, err := repo.Purge(ctx, alert.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	for _, viewer := range []string{"alice", "bob", "carol"} {
		view, err := repo.List(ctx, 10, viewer)
		require.NoError(t, err)
		assert.Empty(t, view)
	}

	removed, err = repo.Purge(ctx, alert.ID)
	require.NoError(t, err)
	assert.False(t, removed)
}
