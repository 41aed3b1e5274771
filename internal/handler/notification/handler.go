package notification

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rezacr588/pactoria-mvp-sub005/internal/handler"
	"github.com/rezacr588/pactoria-mvp-sub005/internal/push"
	"github.com/rezacr588/pactoria-mvp-sub005/internal/store"
)

// Service is the store surface exposed to UI collaborators: the
// aggregate snapshot and the three user actions.
type Service interface {
	Snapshot() store.Aggregate
	MarkAsRead(ctx context.Context, id string) error
	MarkAllAsRead(ctx context.Context) error
	Delete(ctx context.Context, id string) error
}

// Connection is the read-only connection manager surface.
type Connection interface {
	Status() push.Status
	SessionID() string
	LastHeartbeat() time.Time
}

type Handler struct {
	svc  Service
	conn Connection
}

func NewHandler(svc Service, conn Connection) *Handler {
	return &Handler{svc: svc, conn: conn}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	notifications := rg.Group("/notifications")
	{
		notifications.GET("", h.list)
		notifications.PUT("/read-all", h.markAllRead)
		notifications.PUT("/:id/read", h.markRead)
		notifications.DELETE("/:id", h.delete)
	}
	rg.GET("/connection", h.connection)
}

func (h *Handler) list(c *gin.Context) {
	c.JSON(http.StatusOK, handler.NewSuccessResponse(h.svc.Snapshot()))
}

func (h *Handler) markRead(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("notification id is required"))
		return
	}
	if err := h.svc.MarkAsRead(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusBadGateway, handler.NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"id": id}))
}

func (h *Handler) markAllRead(c *gin.Context) {
	if err := h.svc.MarkAllAsRead(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, handler.NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(h.svc.Snapshot()))
}

func (h *Handler) delete(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("notification id is required"))
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusBadGateway, handler.NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"id": id}))
}

func (h *Handler) connection(c *gin.Context) {
	var lastHeartbeat string
	if hb := h.conn.LastHeartbeat(); !hb.IsZero() {
		lastHeartbeat = hb.Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{
		"status":         h.conn.Status(),
		"session_id":     h.conn.SessionID(),
		"last_heartbeat": lastHeartbeat,
	}))
}
