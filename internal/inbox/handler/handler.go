package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"

	"whisper/internal/inbox/service"
	"whisper/internal/message/models"
	id "whisper/pkg/domain"
	dErrors "whisper/pkg/domain-errors"
	"whisper/pkg/platform/httputil"
	"whisper/pkg/requestcontext"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Service defines the inbox operations exposed over HTTP.
type Service interface {
	Snapshot(ctx context.Context, recipient id.RecipientID) ([]*models.Message, error)
	Watch(ctx context.Context, recipient id.RecipientID) (*service.Subscription, error)
}

type Handler struct {
	service  Service
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// New creates the inbox handler. Websocket upgrades are accepted from
// allowedOrigin, or from clients that send no Origin header. An empty
// allowedOrigin admits origins whose host matches the request's Host.
func New(svc Service, logger *slog.Logger, allowedOrigin string) *Handler {
	return &Handler{
		service: svc,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return sameOrigin(r.Header.Get("Origin"), allowedOrigin, r.Host)
			},
		},
	}
}

// Register mounts the owner's inbox endpoints. The router must authenticate
// the owner first.
func (h *Handler) Register(r chi.Router) {
	r.Get("/inbox", h.HandleSnapshot)
	r.Get("/inbox/stream", h.HandleStream)
}

type MessageResponse struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type InboxResponse struct {
	RecipientID string            `json:"recipient_id"`
	Messages    []MessageResponse `json:"messages"`
}

func toResponse(recipient id.RecipientID, msgs []*models.Message) InboxResponse {
	return InboxResponse{
		RecipientID: string(recipient),
		Messages: lo.Map(msgs, func(m *models.Message, _ int) MessageResponse {
			return MessageResponse{ID: m.ID.String(), Text: m.Text, CreatedAt: m.CreatedAt}
		}),
	}
}

// HandleSnapshot handles GET /inbox.
func (h *Handler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner := requestcontext.UserID(ctx)
	if owner.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	msgs, err := h.service.Snapshot(ctx, owner)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to load inbox",
			"request_id", requestcontext.RequestID(ctx),
			"recipient_id", owner,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(owner, msgs))
}

// HandleStream handles GET /inbox/stream. Every inbox view is sent as one
// JSON text frame; the subscription ends when the socket closes.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner := requestcontext.UserID(ctx)
	if owner.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	sub, err := h.service.Watch(context.WithoutCancel(ctx), owner)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to open inbox stream",
			"request_id", requestcontext.RequestID(ctx),
			"recipient_id", owner,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	defer sub.Cancel()

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to upgrade inbox stream",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return
	}
	defer ws.Close()

	quit := make(chan struct{})
	go h.readPump(ctx, ws, quit)

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-quit:
			return
		case view, ok := <-sub.Updates():
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "inbox closed"))
				return
			}
			if err := ws.WriteJSON(toResponse(owner, view)); err != nil {
				h.logger.DebugContext(ctx, "inbox stream write failed",
					"recipient_id", owner,
					"error", err,
				)
				return
			}
		case <-ping.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes control frames until the client goes away.
func (h *Handler) readPump(ctx context.Context, ws *websocket.Conn, quit chan<- struct{}) {
	defer close(quit)
	ws.SetReadLimit(512)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := ws.NextReader(); err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) &&
				(closeErr.Code == websocket.CloseNormalClosure || closeErr.Code == websocket.CloseGoingAway) {
				return
			}
			h.logger.DebugContext(ctx, "inbox stream closed", "error", err)
			return
		}
	}
}

func sameOrigin(origin, allowed, host string) bool {
	if origin == "" {
		return true
	}
	o, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if allowed == "" {
		return o.Host != "" && strings.EqualFold(o.Host, host)
	}
	a, err := url.Parse(allowed)
	if err != nil {
		return false
	}
	return o.Scheme == a.Scheme && o.Host == a.Host
}
