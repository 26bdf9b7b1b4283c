package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Debayan00100101/chatt/internal/apperrors"
	"github.com/Debayan00100101/chatt/internal/blob"
	"github.com/Debayan00100101/chatt/internal/cache"
	"github.com/Debayan00100101/chatt/internal/models"
	"github.com/Debayan00100101/chatt/internal/repository"
)

type fixture struct {
	svc *ChatService
	fs  afero.Fs
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	db, err := repository.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	fs := afero.NewMemMapFs()
	log := zap.NewNop().Sugar()
	blobs, err := blob.NewLocalStore(fs, "media", log)
	require.NoError(t, err)

	svc := New(
		repository.NewMessageRepo(db),
		repository.NewPresenceRepo(db),
		repository.NewAlertRepo(db),
		blobs,
		cache.Noop{},
		opts,
		log,
	)
	return &fixture{svc: svc, fs: fs}
}

func (f *fixture) blobCount(t *testing.T) int {
	t.Helper()
	infos, err := afero.ReadDir(f.fs, "media")
	require.NoError(t, err)
	return len(infos)
}

func alertTexts(t *testing.T, svc *ChatService, viewer string) []string {
	t.Helper()
	alerts, err := svc.ListAlerts(context.Background(), viewer)
	require.NoError(t, err)
	out := make([]string, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, a.Text)
	}
	return out
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 30), G: uint8(y * 30), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestPostTextRoundTrip(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	posted, err := f.svc.PostText(ctx, "alice", "hello")
	require.NoError(t, err)
	assert.NotZero(t, posted.ID)

	msgs, err := f.svc.ListMessages(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "alice", msgs[0].Author)
	assert.Equal(t, models.KindText, msgs[0].Kind)
	assert.Equal(t, "hello", msgs[0].Content)
}

func TestPostTextRejectsEmpty(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	_, err := f.svc.PostText(ctx, "", "hello")
	assert.ErrorIs(t, err, apperrors.ErrBadRequest)
	_, err = f.svc.PostText(ctx, "alice", "")
	assert.ErrorIs(t, err, apperrors.ErrBadRequest)
}

func TestDeleteOnlyByAuthor(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	posted, err := f.svc.PostText(ctx, "alice", "hello")
	require.NoError(t, err)

	ok, err := f.svc.DeleteMessage(ctx, posted.ID, "bob")
	require.NoError(t, err)
	assert.False(t, ok)

	msgs, err := f.svc.ListMessages(ctx)
	require.NoError(t, err)
	assert.Len(t, msgs, 1, "message survives a foreign delete")

	ok, err = f.svc.DeleteMessage(ctx, posted.ID, "alice")
	require.NoError(t, err)
	assert.True(t, ok)

	msgs, err = f.svc.ListMessages(ctx)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestOwnerCanDeleteAnyMessage(t *testing.T) {
	f := newFixture(t, Options{Owners: map[string]struct{}{"admin": {}}})
	ctx := context.Background()

	posted, err := f.svc.PostText(ctx, "alice", "hello")
	require.NoError(t, err)

	ok, err := f.svc.DeleteMessage(ctx, posted.ID, "admin")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMediaDeduplication(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	payload := bytes.Repeat([]byte{0xAB}, 1024)

	first, err := f.svc.PostMedia(ctx, "alice", "application/octet-stream", payload)
	require.NoError(t, err)
	second, err := f.svc.PostMedia(ctx, "bob", "application/octet-stream", payload)
	require.NoError(t, err)

	assert.Equal(t, first.Content, second.Content, "identical bytes share one key")
	assert.Equal(t, 1, f.blobCount(t))

	// first delete keeps the shared blob alive
	ok, err := f.svc.DeleteMessage(ctx, first.ID, "alice")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, f.blobCount(t))

	// last reference gone, object released
	ok, err = f.svc.DeleteMessage(ctx, second.ID, "bob")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0, f.blobCount(t))
}

func TestMediaRoundTripResolved(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	payload := []byte("not really an mp3 but stored faithfully")

	posted, err := f.svc.PostMedia(ctx, "alice", "audio/mp3", payload)
	require.NoError(t, err)
	assert.Equal(t, models.KindAudio, posted.Kind)

	resolved, err := f.svc.ListMessagesResolved(ctx)
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, payload, resolved[0].Data)
	assert.False(t, resolved[0].Missing)
}

func TestImageGetsThumbnail(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	posted, err := f.svc.PostMedia(ctx, "alice", "image/png", testPNG(t))
	require.NoError(t, err)
	assert.Equal(t, models.KindImage, posted.Kind)
	require.NotEmpty(t, posted.ThumbRef)

	thumb, err := f.svc.ResolveBlob(ctx, posted.ThumbRef)
	require.NoError(t, err)
	assert.NotEmpty(t, thumb)

	// original plus thumbnail
	assert.Equal(t, 2, f.blobCount(t))
}

func TestMissingBlobRendersPlaceholder(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	posted, err := f.svc.PostMedia(ctx, "alice", "video/mp4", []byte("clip bytes"))
	require.NoError(t, err)

	// storage lost the object out from under the row
	require.NoError(t, f.fs.Remove(filepath.Join("media", posted.Content)))

	resolved, err := f.svc.ListMessagesResolved(ctx)
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.True(t, resolved[0].Missing)
	assert.Empty(t, resolved[0].Data)
}

func TestJoinAlertOncePerSession(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	require.NoError(t, f.svc.Heartbeat(ctx, "alice"))
	require.NoError(t, f.svc.Heartbeat(ctx, "alice"))
	require.NoError(t, f.svc.Heartbeat(ctx, "alice"))

	assert.Equal(t, []string{"alice joined the chat"}, alertTexts(t, f.svc, ""))
}

func TestHeartbeatThenOnline(t *testing.T) {
	f := newFixture(t, Options{OnlineWindow: time.Minute})
	ctx := context.Background()

	require.NoError(t, f.svc.Heartbeat(ctx, "alice"))

	users, err := f.svc.OnlineUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "alice", users[0].Username)
}

func TestSweepEmitsOneLeaveAlert(t *testing.T) {
	f := newFixture(t, Options{OnlineWindow: 10 * time.Millisecond})
	ctx := context.Background()

	require.NoError(t, f.svc.Heartbeat(ctx, "alice"))
	time.Sleep(25 * time.Millisecond)

	expired, err := f.svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, expired)

	users, err := f.svc.OnlineUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)

	assert.Equal(t,
		[]string{"alice joined the chat", "alice left the chat"},
		alertTexts(t, f.svc, ""))

	// nothing left to sweep
	expired, err = f.svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Empty(t, expired)
	assert.Len(t, alertTexts(t, f.svc, ""), 2)
}

func TestLogoutAlwaysEmitsLeaveAlert(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	require.NoError(t, f.svc.Heartbeat(ctx, "alice"))
	require.NoError(t, f.svc.Logout(ctx, "alice"))

	assert.Equal(t,
		[]string{"alice joined the chat", "alice left the chat"},
		alertTexts(t, f.svc, ""))
}

func TestDismissIsPerViewerPurgeIsGlobal(t *testing.T) {
	f := newFixture(t, Options{Owners: map[string]struct{}{"admin": {}}})
	ctx := context.Background()

	alert, err := f.svc.PushAlert(ctx, "maintenance tonight")
	require.NoError(t, err)

	// non-owner purge is a silent no-op
	ok, err := f.svc.PurgeAlert(ctx, alert.ID, "bob")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, alertTexts(t, f.svc, "carol"), 1)

	// dismissal hides it for bob only
	require.NoError(t, f.svc.DismissAlert(ctx, alert.ID, "bob"))
	assert.Empty(t, alertTexts(t, f.svc, "bob"))
	assert.Len(t, alertTexts(t, f.svc, "carol"), 1)

	// owner purge removes it for everyone
	ok, err = f.svc.PurgeAlert(ctx, alert.ID, "admin")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, alertTexts(t, f.svc, "carol"))
}

func TestRegisterUserStoresAvatarSlot(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	ref, err := f.svc.RegisterUser(ctx, "alice", testPNG(t))
	require.NoError(t, err)
	assert.Equal(t, "alice_avatar.png", ref)

	// registration counts as the session's first heartbeat
	assert.Equal(t, []string{"alice joined the chat"}, alertTexts(t, f.svc, ""))

	// messages snapshot the stored avatar reference
	posted, err := f.svc.PostText(ctx, "alice", "hi all")
	require.NoError(t, err)
	assert.Equal(t, ref, posted.AvatarRef)
}

func TestRegisterUserWithoutAvatar(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	ref, err := f.svc.RegisterUser(ctx, "bob", nil)
	require.NoError(t, err)
	assert.Empty(t, ref)
	assert.Equal(t, 0, f.blobCount(t))
}

func TestKindFromMIME(t *testing.T) {
	assert.Equal(t, models.KindImage, KindFromMIME("image/png"))
	assert.Equal(t, models.KindVideo, KindFromMIME("video/mp4"))
	assert.Equal(t, models.KindAudio, KindFromMIME("audio/wav"))
	assert.Equal(t, models.KindFile, KindFromMIME("application/pdf"))
	assert.Equal(t, models.KindFile, KindFromMIME(""))
}
