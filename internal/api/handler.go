package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"petbot/internal/model"
	"petbot/internal/notify"
	logx "petbot/pkg/logx"
)

// Broadcaster delivers keyword notifications.
type Broadcaster interface {
	Broadcast(ctx context.Context, req notify.Request) error
}

// NotifyRequest is the POST /api/notify body.
type NotifyRequest struct {
	APIKey    string         `json:"apiKey" binding:"required"`
	Keyword   string         `json:"keyword" binding:"required"`
	Variables map[string]any `json:"variables"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type Handler struct {
	b   Broadcaster
	log logx.Logger
}

func NewHandler(b Broadcaster, log logx.Logger) *Handler {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Handler{b: b, log: log}
}

// Notify answers 202 once every recipient has been tried. Individual delivery
// failures do not change the status. A client that disconnects does not
// cancel the deliveries.
func (h *Handler) Notify(c *gin.Context) {
	var req NotifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	err := h.b.Broadcast(context.WithoutCancel(c.Request.Context()), notify.Request{
		APIKey:    req.APIKey,
		Keyword:   req.Keyword,
		Variables: req.Variables,
	})
	switch {
	case err == nil:
		c.Status(http.StatusAccepted)
	case errors.Is(err, model.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Error: "not found"})
	default:
		h.log.Error("broadcast failed", logx.String("keyword", req.Keyword), logx.Err(err))
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}
