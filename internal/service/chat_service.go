package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Debayan00100101/chatt/internal/apperrors"
	"github.com/Debayan00100101/chatt/internal/blob"
	"github.com/Debayan00100101/chatt/internal/metrics"
	"github.com/Debayan00100101/chatt/internal/models"
	"github.com/Debayan00100101/chatt/internal/repository"
)

// Cache holds a short-lived copy of the message list across poll ticks.
type Cache interface {
	GetMessages(ctx context.Context) ([]models.Message, bool)
	SetMessages(ctx context.Context, msgs []models.Message)
	Invalidate(ctx context.Context)
}

// Options carries the tunables of the chat core.
type Options struct {
	// OnlineWindow is how long after its last heartbeat a user counts as online.
	OnlineWindow time.Duration
	// AlertLimit caps how many recent alerts a listing returns.
	AlertLimit int
	// Owners are the identities allowed to purge alerts and delete any message.
	Owners map[string]struct{}
}

// ChatService composes the stores behind one façade. It owns no state of its
// own and no timers: expiry sweeps run when the polling caller asks for them.
type ChatService struct {
	messages *repository.MessageRepo
	presence *repository.PresenceRepo
	alerts   *repository.AlertRepo
	blobs    blob.Store
	cache    Cache
	opts     Options
	log      *zap.SugaredLogger
}

func New(messages *repository.MessageRepo, presence *repository.PresenceRepo, alerts *repository.AlertRepo, blobs blob.Store, cache Cache, opts Options, log *zap.SugaredLogger) *ChatService {
	if opts.OnlineWindow <= 0 {
		opts.OnlineWindow = 120 * time.Second
	}
	if opts.AlertLimit <= 0 {
		opts.AlertLimit = 50
	}
	return &ChatService{
		messages: messages,
		presence: presence,
		alerts:   alerts,
		blobs:    blobs,
		cache:    cache,
		opts:     opts,
		log:      log,
	}
}

func (s *ChatService) isOwner(username string) bool {
	_, ok := s.opts.Owners[username]
	return ok
}

// RegisterUser stores the user's avatar slot and brings the user online.
// Empty avatar bytes leave any existing avatar untouched.
func (s *ChatService) RegisterUser(ctx context.Context, username string, avatar []byte) (string, error) {
	if strings.TrimSpace(username) == "" {
		return "", apperrors.ErrBadRequest
	}
	var ref string
	if len(avatar) > 0 {
		var err error
		ref, err = s.blobs.PutAvatar(ctx, username, normalizeAvatar(avatar))
		if err != nil {
			return "", err
		}
		metrics.BlobsWritten.Inc()
	}
	if err := s.heartbeat(ctx, username, ref); err != nil {
		return "", err
	}
	return ref, nil
}

// Heartbeat marks the user active. The first heartbeat of a session creates
// the presence row and emits the join alert exactly once.
func (s *ChatService) Heartbeat(ctx context.Context, username string) error {
	if strings.TrimSpace(username) == "" {
		return apperrors.ErrBadRequest
	}
	return s.heartbeat(ctx, username, "")
}

func (s *ChatService) heartbeat(ctx context.Context, username, avatarRef string) error {
	created, err := s.presence.Heartbeat(ctx, username, avatarRef)
	if err != nil {
		return err
	}
	if created {
		if _, err := s.PushAlert(ctx, fmt.Sprintf("%s joined the chat", username)); err != nil {
			return err
		}
	}
	return nil
}

// PostText appends a text message.
func (s *ChatService) PostText(ctx context.Context, author, text string) (*models.Message, error) {
	if strings.TrimSpace(author) == "" || text == "" {
		return nil, apperrors.ErrBadRequest
	}
	msg := &models.Message{
		Author:    author,
		AvatarRef: s.avatarRef(ctx, author),
		Kind:      models.KindText,
		Content:   text,
	}
	return msg, s.append(ctx, msg)
}

// PostMedia routes the payload through blob storage, then appends the row.
// The blob write happening first means a crash in between leaves at worst an
// inert orphan object, never a row pointing at nothing.
func (s *ChatService) PostMedia(ctx context.Context, author, mime string, data []byte) (*models.Message, error) {
	if strings.TrimSpace(author) == "" || len(data) == 0 {
		return nil, apperrors.ErrBadRequest
	}
	key, err := s.blobs.Put(ctx, data, mime)
	if err != nil {
		return nil, err
	}
	metrics.BlobsWritten.Inc()

	kind := KindFromMIME(mime)
	msg := &models.Message{
		Author:    author,
		AvatarRef: s.avatarRef(ctx, author),
		Kind:      kind,
		Content:   key,
	}
	if kind == models.KindImage {
		if thumb, terr := generateThumbnail(data); terr == nil {
			if tkey, perr := s.blobs.Put(ctx, thumb, "image/jpeg"); perr == nil {
				msg.ThumbRef = tkey
			}
		}
	}
	return msg, s.append(ctx, msg)
}

func (s *ChatService) append(ctx context.Context, msg *models.Message) error {
	if err := s.messages.Append(ctx, msg); err != nil {
		return err
	}
	metrics.MessagesPosted.WithLabelValues(msg.Kind).Inc()
	s.cache.Invalidate(ctx)
	// posting counts as activity
	return s.heartbeat(ctx, msg.Author, "")
}

// avatarRef snapshots the author's current avatar onto the message row.
func (s *ChatService) avatarRef(ctx context.Context, username string) string {
	row, err := s.presence.Get(ctx, username)
	if err != nil {
		return ""
	}
	return row.AvatarRef
}

// ListMessages returns message metadata in id order; blob keys stay lazy.
func (s *ChatService) ListMessages(ctx context.Context) ([]models.Message, error) {
	if msgs, ok := s.cache.GetMessages(ctx); ok {
		return msgs, nil
	}
	msgs, err := s.messages.List(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.SetMessages(ctx, msgs)
	return msgs, nil
}

// ResolvedMessage is a message with its blob references materialized.
// Missing marks media whose blob no longer resolves; the viewer renders a
// placeholder instead of failing the whole listing.
type ResolvedMessage struct {
	models.Message
	Data    []byte `json:"data,omitempty"`
	Avatar  []byte `json:"avatar,omitempty"`
	Missing bool   `json:"missing,omitempty"`
}

// ListMessagesResolved materializes every blob reference eagerly, the view
// the UI boundary consumes on each poll tick.
func (s *ChatService) ListMessagesResolved(ctx context.Context) ([]ResolvedMessage, error) {
	msgs, err := s.ListMessages(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ResolvedMessage, 0, len(msgs))
	for _, m := range msgs {
		rm := ResolvedMessage{Message: m}
		if m.IsMedia() {
			data, err := s.blobs.Get(ctx, m.Content)
			switch {
			case errors.Is(err, apperrors.ErrNotFound):
				rm.Missing = true
			case err != nil:
				return nil, err
			default:
				rm.Data = data
			}
		}
		if m.AvatarRef != "" {
			if av, err := s.blobs.Get(ctx, m.AvatarRef); err == nil {
				rm.Avatar = av
			}
		}
		out = append(out, rm)
	}
	return out, nil
}

// DeleteMessage removes a message when requester authored it or is an owner.
// Unauthorized and already-gone deletes both report false without error, so
// a stale delete button never aborts the caller's poll cycle.
func (s *ChatService) DeleteMessage(ctx context.Context, id uint64, requester string) (bool, error) {
	released, ok, err := s.messages.Delete(ctx, id, requester, s.isOwner(requester))
	if err != nil || !ok {
		return false, err
	}
	for _, key := range released {
		if err := s.blobs.Delete(ctx, key); err != nil {
			s.log.Warnw("release blob", "key", key, "err", err)
		}
	}
	metrics.MessagesDeleted.Inc()
	s.cache.Invalidate(ctx)
	return true, nil
}

// ResolveBlob fetches raw stored bytes for a reference.
func (s *ChatService) ResolveBlob(ctx context.Context, key string) ([]byte, error) {
	return s.blobs.Get(ctx, key)
}

// OnlineUsers lists users inside the presence window.
func (s *ChatService) OnlineUsers(ctx context.Context) ([]models.UserPresence, error) {
	rows, err := s.presence.Online(ctx, s.opts.OnlineWindow)
	if err != nil {
		return nil, err
	}
	metrics.OnlineUsers.Set(float64(len(rows)))
	return rows, nil
}

// SweepExpired drops users whose heartbeat fell out of the window and emits
// one leave alert each. The polling caller invokes this once per tick; the
// core schedules nothing on its own.
func (s *ChatService) SweepExpired(ctx context.Context) ([]string, error) {
	expired, err := s.presence.SweepExpired(ctx, s.opts.OnlineWindow)
	if err != nil {
		return nil, err
	}
	for _, username := range expired {
		if _, err := s.PushAlert(ctx, fmt.Sprintf("%s left the chat", username)); err != nil {
			return expired, err
		}
	}
	return expired, nil
}

// Logout removes the user's presence row and always emits a leave alert,
// independent of the timeout sweep.
func (s *ChatService) Logout(ctx context.Context, username string) error {
	if strings.TrimSpace(username) == "" {
		return apperrors.ErrBadRequest
	}
	if _, err := s.presence.Remove(ctx, username); err != nil {
		return err
	}
	_, err := s.PushAlert(ctx, fmt.Sprintf("%s left the chat", username))
	return err
}

// PushAlert appends a system notice.
func (s *ChatService) PushAlert(ctx context.Context, text string) (*models.Alert, error) {
	alert, err := s.alerts.Push(ctx, text)
	if err != nil {
		return nil, err
	}
	metrics.AlertsPushed.Inc()
	return alert, nil
}

// ListAlerts returns the recent alerts the viewer has not dismissed.
func (s *ChatService) ListAlerts(ctx context.Context, viewer string) ([]models.Alert, error) {
	return s.alerts.List(ctx, s.opts.AlertLimit, viewer)
}

// DismissAlert hides an alert for one viewer only.
func (s *ChatService) DismissAlert(ctx context.Context, id uint64, viewer string) error {
	if strings.TrimSpace(viewer) == "" {
		return apperrors.ErrBadRequest
	}
	return s.alerts.Dismiss(ctx, id, viewer)
}

// PurgeAlert permanently removes an alert for every viewer. Non-owners get a
// silent no-op reporting false.
func (s *ChatService) PurgeAlert(ctx context.Context, id uint64, requester string) (bool, error) {
	if !s.isOwner(requester) {
		return false, nil
	}
	return s.alerts.Purge(ctx, id)
}
