package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Debayan00100101/chatt/internal/apperrors"
	"github.com/Debayan00100101/chatt/internal/blob"
	"github.com/Debayan00100101/chatt/internal/service"
)

type Handlers struct {
	svc *service.ChatService
	log *zap.SugaredLogger
}

func NewHandlers(svc *service.ChatService, log *zap.SugaredLogger) *Handlers {
	return &Handlers{svc: svc, log: log}
}

func username(c *fiber.Ctx) string {
	u, _ := c.Locals("username").(string)
	return u
}

func (h *Handlers) mapError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, apperrors.ErrBadRequest):
		return JSONError(c, fiber.StatusBadRequest, "bad request")
	case errors.Is(err, apperrors.ErrUnauthorized):
		return JSONError(c, fiber.StatusForbidden, "forbidden")
	case errors.Is(err, apperrors.ErrNotFound):
		return JSONError(c, fiber.StatusNotFound, "not found")
	default:
		h.log.Errorw("request failed", "path", c.Path(), "err", err)
		return JSONError(c, fiber.StatusInternalServerError, "internal error")
	}
}

// POST /v1/users (multipart, optional 'avatar' file)
func (h *Handlers) registerUser(c *fiber.Ctx) error {
	var avatar []byte
	if fh, err := c.FormFile("avatar"); err == nil {
		f, err := fh.Open()
		if err != nil {
			return JSONError(c, fiber.StatusBadRequest, "cannot open avatar")
		}
		defer f.Close()
		avatar, err = io.ReadAll(f)
		if err != nil {
			return JSONError(c, fiber.StatusBadRequest, "cannot read avatar")
		}
	}
	ref, err := h.svc.RegisterUser(c.Context(), username(c), avatar)
	if err != nil {
		return h.mapError(c, err)
	}
	return JSONSuccess(c, fiber.StatusCreated, fiber.Map{"username": username(c), "avatar_ref": ref})
}

// POST /v1/messages
// JSON {"text": ...} posts text; multipart with a 'file' part posts media.
func (h *Handlers) postMessage(c *fiber.Ctx) error {
	if fh, err := c.FormFile("file"); err == nil {
		f, err := fh.Open()
		if err != nil {
			return JSONError(c, fiber.StatusBadRequest, "cannot open file")
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return JSONError(c, fiber.StatusBadRequest, "cannot read file")
		}
		ct := fh.Header.Get("Content-Type")
		if ct == "" {
			ct = http.DetectContentType(data)
		}
		msg, err := h.svc.PostMedia(c.Context(), username(c), ct, data)
		if err != nil {
			return h.mapError(c, err)
		}
		return JSONSuccess(c, fiber.StatusCreated, msg)
	}

	var body struct {
		Text string `json:"text"`
	}
	if err := c.BodyParser(&body); err != nil {
		return JSONError(c, fiber.StatusBadRequest, "invalid body")
	}
	msg, err := h.svc.PostText(c.Context(), username(c), body.Text)
	if err != nil {
		return h.mapError(c, err)
	}
	return JSONSuccess(c, fiber.StatusCreated, msg)
}

// GET /v1/messages?resolve=1
// Each poll tick lists messages; the expiry sweep piggybacks on it so stale
// users age out without any server-side timer.
func (h *Handlers) listMessages(c *fiber.Ctx) error {
	if _, err := h.svc.SweepExpired(c.Context()); err != nil {
		h.log.Warnw("presence sweep", "err", err)
	}
	if c.QueryBool("resolve") {
		msgs, err := h.svc.ListMessagesResolved(c.Context())
		if err != nil {
			return h.mapError(c, err)
		}
		return JSONSuccess(c, fiber.StatusOK, msgs)
	}
	msgs, err := h.svc.ListMessages(c.Context())
	if err != nil {
		return h.mapError(c, err)
	}
	return JSONSuccess(c, fiber.StatusOK, msgs)
}

// DELETE /v1/messages/:id
// An unauthorized or repeated delete reports deleted=false instead of an
// error, so the UI's delete button is safely retryable.
func (h *Handlers) deleteMessage(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return JSONError(c, fiber.StatusBadRequest, "invalid id")
	}
	ok, err := h.svc.DeleteMessage(c.Context(), id, username(c))
	if err != nil {
		return h.mapError(c, err)
	}
	return JSONSuccess(c, fiber.StatusOK, fiber.Map{"deleted": ok})
}

// GET /v1/blobs/:key
func (h *Handlers) getBlob(c *fiber.Ctx) error {
	key := c.Params("key")
	data, err := h.svc.ResolveBlob(c.Context(), key)
	if err != nil {
		return h.mapError(c, err)
	}
	c.Type(blob.Ext(key))
	return c.Send(data)
}

// POST /v1/heartbeat
func (h *Handlers) heartbeat(c *fiber.Ctx) error {
	if err := h.svc.Heartbeat(c.Context(), username(c)); err != nil {
		return h.mapError(c, err)
	}
	return JSONSuccess(c, fiber.StatusOK, fiber.Map{"username": username(c)})
}

// POST /v1/logout
func (h *Handlers) logout(c *fiber.Ctx) error {
	if err := h.svc.Logout(c.Context(), username(c)); err != nil {
		return h.mapError(c, err)
	}
	return JSONSuccess(c, fiber.StatusOK, fiber.Map{"username": username(c)})
}

// GET /v1/online
func (h *Handlers) onlineUsers(c *fiber.Ctx) error {
	if _, err := h.svc.SweepExpired(c.Context()); err != nil {
		h.log.Warnw("presence sweep", "err", err)
	}
	users, err := h.svc.OnlineUsers(c.Context())
	if err != nil {
		return h.mapError(c, err)
	}
	return JSONSuccess(c, fiber.StatusOK, users)
}

// GET /v1/alerts
func (h *Handlers) listAlerts(c *fiber.Ctx) error {
	alerts, err := h.svc.ListAlerts(c.Context(), username(c))
	if err != nil {
		return h.mapError(c, err)
	}
	return JSONSuccess(c, fiber.StatusOK, alerts)
}

// POST /v1/alerts/:id/dismiss
func (h *Handlers) dismissAlert(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return JSONError(c, fiber.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DismissAlert(c.Context(), id, username(c)); err != nil {
		return h.mapError(c, err)
	}
	return JSONSuccess(c, fiber.StatusOK, fiber.Map{"dismissed": true})
}

// DELETE /v1/alerts/:id (owner only; others get purged=false)
func (h *Handlers) purgeAlert(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return JSONError(c, fiber.StatusBadRequest, "invalid id")
	}
	ok, err := h.svc.PurgeAlert(c.Context(), id, username(c))
	if err != nil {
		return h.mapError(c, err)
	}
	return JSONSuccess(c, fiber.StatusOK, fiber.Map{"purged": ok})
}
