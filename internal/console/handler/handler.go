package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"whisper/internal/console/service"
	"whisper/pkg/platform/httputil"
	"whisper/pkg/requestcontext"
)

// Service defines the capability exchange exposed over HTTP.
type Service interface {
	Issue(ctx context.Context, operator, secret string) (*service.Capability, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/admin/capabilities", h.HandleIssue)
}

type IssueRequest struct {
	OperatorSecret string `json:"operator_secret" validate:"required,max=256"`
	Operator       string `json:"operator" validate:"omitempty,max=64,alphanum"`
}

func (r *IssueRequest) Normalize() {
	r.Operator = strings.ToLower(strings.TrimSpace(r.Operator))
}

func (r *IssueRequest) Validate() error {
	return httputil.ValidateStruct(r)
}

type IssueResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int       `json:"expires_in"`
	ExpiresAt   time.Time `json:"expires_at"`
	Scope       string    `json:"scope"`
}

// HandleIssue handles POST /admin/capabilities.
func (h *Handler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[IssueRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	capability, err := h.service.Issue(ctx, req.Operator, req.OperatorSecret)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	httputil.WriteJSON(w, http.StatusCreated, IssueResponse{
		AccessToken: capability.Token,
		TokenType:   "Bearer",
		ExpiresIn:   int(capability.ExpiresIn.Seconds()),
		ExpiresAt:   capability.ExpiresAt,
		Scope:       strings.Join(capability.Scopes, " "),
	})
}
