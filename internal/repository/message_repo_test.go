package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Debayan00100101/chatt/internal/models"
)

func textMsg(author, text string) *models.Message {
	return &models.Message{Author: author, Kind: models.KindText, Content: text}
}

func mediaMsg(author, key string) *models.Message {
	return &models.Message{Author: author, Kind: models.KindImage, Content: key}
}

func TestAppendAssignsIncreasingIDs(t *testing.T) {
	repo := NewMessageRepo(newTestDB(t))
	ctx := context.Background()

	var last uint64
	for _, author := range []string{"alice", "bob", "alice", "carol"} {
		msg := textMsg(author, "hi")
		require.NoError(t, repo.Append(ctx, msg))
		assert.Greater(t, msg.ID, last)
		last = msg.ID
	}
}

func TestIDsNeverReusedAfterDelete(t *testing.T) {
	repo := NewMessageRepo(newTestDB(t))
	ctx := context.Background()

	first := textMsg("alice", "one")
	require.NoError(t, repo.Append(ctx, first))
	second := textMsg("alice", "two")
	require.NoError(t, repo.Append(ctx, second))

	_, ok, err := repo.Delete(ctx, second.ID, "alice", false)
	require.NoError(t, err)
	require.True(t, ok)

	third := textMsg("alice", "three")
	require.NoError(t, repo.Append(ctx, third))
	assert.Greater(t, third.ID, second.ID)
}

func TestListReturnsIDOrder(t *testing.T) {
	repo := NewMessageRepo(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx, textMsg("alice", "a")))
	require.NoError(t, repo.Append(ctx, textMsg("bob", "b")))
	require.NoError(t, repo.Append(ctx, textMsg("alice", "c")))

	msgs, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	for i := 1; i < len(msgs); i++ {
		assert.Greater(t, msgs[i].ID, msgs[i-1].ID)
	}
}

func TestDeleteRequiresOwnership(t *testing.T) {
	repo := NewMessageRepo(newTestDB(t))
	ctx := context.Background()

	msg := textMsg("alice", "hello")
	require.NoError(t, repo.Append(ctx, msg))

	_, ok, err := repo.Delete(ctx, msg.ID, "bob", false)
	require.NoError(t, err)
	assert.False(t, ok)

	msgs, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)

	_, ok, err = repo.Delete(ctx, msg.ID, "alice", false)
	require.NoError(t, err)
	assert.True(t, ok)

	msgs, err = repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestDeleteWithOverride(t *testing.T) {
	repo := NewMessageRepo(newTestDB(t))
	ctx := context.Background()

	msg := textMsg("alice", "hello")
	require.NoError(t, repo.Append(ctx, msg))

	_, ok, err := repo.Delete(ctx, msg.ID, "admin", true)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDeleteMissingIsIdempotent(t *testing.T) {
	repo := NewMessageRepo(newTestDB(t))
	ctx := context.Background()

	msg := textMsg("alice", "hello")
	require.NoError(t, repo.Append(ctx, msg))

	_, ok, err := repo.Delete(ctx, msg.ID, "alice", false)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = repo.Delete(ctx, msg.ID, "alice", false)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBlobRefCounting(t *testing.T) {
	repo := NewMessageRepo(newTestDB(t))
	ctx := context.Background()
	const key = "abc123.png"

	first := mediaMsg("alice", key)
	require.NoError(t, repo.Append(ctx, first))
	second := mediaMsg("bob", key)
	require.NoError(t, repo.Append(ctx, second))

	released, ok, err := repo.Delete(ctx, first.ID, "alice", false)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, released, "key still referenced by the second message")

	released, ok, err = repo.Delete(ctx, second.ID, "bob", false)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{key}, released)
}

func TestDeleteReleasesThumbRef(t *testing.T) {
	repo := NewMessageRepo(newTestDB(t))
	ctx := context.Background()

	msg := mediaMsg("alice", "photo.png")
	msg.ThumbRef = "thumb.jpg"
	require.NoError(t, repo.Append(ctx, msg))

	released, ok, err := repo.Delete(ctx, msg.ID, "alice", false)
	require.NoError(t, err)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"photo.png", "thumb.jpg"}, released)
}

func TestTextDeleteReleasesNothing(t *testing.T) {
	repo := NewMessageRepo(newTestDB(t))
	ctx := context.Background()

	msg := textMsg("alice", "just words")
	require.NoError(t, repo.Append(ctx, msg))

	released, ok, err := repo.Delete(ctx, msg.ID, "alice", false)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, released)
}
