package handlers

import (
	"bufio"
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/spec-kit/support-stream/internal/api/dto"
	"github.com/spec-kit/support-stream/internal/auth"
	"github.com/spec-kit/support-stream/internal/domain"
	"github.com/spec-kit/support-stream/internal/persistence"
	"github.com/spec-kit/support-stream/internal/stream"
	apperrors "github.com/spec-kit/support-stream/pkg/errorutil"
)

// StreamHandler owns the SSE endpoint and the admin ops surface around it.
type StreamHandler struct {
	registry   *stream.Registry
	dispatcher *stream.Dispatcher
	presence   *persistence.PresenceStore
	bufferSize int
	logger     *zap.Logger
}

// NewStreamHandler constructs handler.
func NewStreamHandler(registry *stream.Registry, dispatcher *stream.Dispatcher, presence *persistence.PresenceStore, bufferSize int, logger *zap.Logger) *StreamHandler {
	return &StreamHandler{
		registry:   registry,
		dispatcher: dispatcher,
		presence:   presence,
		bufferSize: bufferSize,
		logger:     logger,
	}
}

// Subscribe GET /stream. Upgrades the response to a server-push stream,
// registers the channel (replacing any previous one for this identity) and
// sends a CONNECTED acknowledgement before any application event.
func (h *StreamHandler) Subscribe(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	identity, role := principal.Identity, principal.Role

	ch := stream.NewBufferedChannel(h.bufferSize)
	if previous := h.registry.Register(role, identity, ch); previous != nil {
		previous.Close()
	}
	h.presence.Touch(c.Context(), identity, role)

	ack := stream.NewEvent(stream.EventConnected, stream.ToUser(identity, role), stream.ConnectedPayload{
		Identity:    identity,
		Role:        role,
		ConnectedAt: timeNowMillis(),
	})
	ackPayload, err := ack.Marshal()
	if err != nil {
		h.registry.Unregister(role, identity, ch)
		ch.Close()
		return apperrors.NewInternalError(err)
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	registry, presence, logger := h.registry, h.presence, h.logger
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer func() {
			registry.Unregister(role, identity, ch)
			ch.Close()
			presence.Remove(context.Background(), identity, role)
			logger.Debug("stream closed", zap.String("identity", identity), zap.String("role", string(role)))
		}()

		if !writeFrame(w, ackPayload) {
			return
		}
		for {
			select {
			case payload := <-ch.Outbound():
				if !writeFrame(w, payload) {
					return
				}
			case <-ch.Done():
				return
			}
		}
	}))
	return nil
}

func timeNowMillis() int64 {
	return time.Now().UnixMilli()
}

// writeFrame writes one SSE data frame and flushes; a false return means the
// peer is gone.
func writeFrame(w *bufio.Writer, payload []byte) bool {
	if _, err := w.WriteString("data: "); err != nil {
		return false
	}
	if _, err := w.Write(payload); err != nil {
		return false
	}
	if _, err := w.WriteString("\n\n"); err != nil {
		return false
	}
	return w.Flush() == nil
}

// TriggerEvent POST /admin/stream/events. Routes a hand-built event through
// the same dispatcher as production events.
func (h *StreamHandler) TriggerEvent(c *fiber.Ctx) error {
	var req dto.TriggerEventRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.EventType == "" {
		return apperrors.NewValidationError("event_type required", nil)
	}

	scope := stream.ToAll()
	switch {
	case req.Identity != "" && req.Identity != "*":
		if !req.Role.Valid() {
			return apperrors.NewValidationError("valid role required for identity scope", nil)
		}
		scope = stream.ToUser(req.Identity, req.Role)
	case req.Role != "":
		if !req.Role.Valid() {
			return apperrors.NewValidationError("unknown role", map[string]any{"role": req.Role})
		}
		scope = stream.ToRole(req.Role)
	}

	h.dispatcher.Dispatch(stream.NewEvent(stream.EventType(req.EventType), scope, req.Data))
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"data": fiber.Map{"dispatched": true}})
}

// Stats GET /admin/stream/stats.
func (h *StreamHandler) Stats(c *fiber.Ctx) error {
	stats := h.registry.Stats()
	response := fiber.Map{"data": dto.StreamStatsResponse{
		PerRole: stats.PerRole,
		Total:   stats.Total,
	}}

	if h.presence != nil {
		online := fiber.Map{}
		for _, role := range domain.AllRoles() {
			identities, err := h.presence.Online(c.Context(), role)
			if err != nil {
				h.logger.Debug("presence scan failed", zap.Error(err))
				continue
			}
			if len(identities) > 0 {
				online[string(role)] = identities
			}
		}
		response["presence"] = online
	}
	return c.JSON(response)
}
