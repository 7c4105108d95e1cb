package room

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"WChat/middleware"
	"WChat/service/chat"
	"WChat/service/storage"
)

type Handler struct {
	svc *chat.Service
}

func NewHandler(svc *chat.Service) *Handler {
	return &Handler{svc: svc}
}

type createRoomReq struct {
	Name string `json:"name" binding:"required"`
}

func (h *Handler) Create(c *gin.Context) {
	me := middleware.CurrentUser(c)
	var req createRoomReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	r, err := h.svc.CreateRoom(c.Request.Context(), me.UUID, req.Name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "room creation failed"})
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (h *Handler) List(c *gin.Context) {
	me := middleware.CurrentUser(c)
	rooms, err := h.svc.RoomsForUser(c.Request.Context(), me.UUID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "room listing failed"})
		return
	}
	c.JSON(http.StatusOK, rooms)
}

type joinReq struct {
	Member                  string `json:"member" binding:"required"`
	WithElevatedPermissions bool   `json:"with_elevated_permissions"`
}

func (h *Handler) Join(c *gin.Context) {
	var req joinReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	member, err := h.svc.JoinRoom(c.Request.Context(), c.Param("id"), req.Member, req.WithElevatedPermissions)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, chat.ErrAlreadyAMember), errors.Is(err, storage.ErrDuplicateMember):
			c.JSON(http.StatusConflict, gin.H{"error": chat.ErrAlreadyAMember.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "join failed"})
		}
		return
	}
	c.JSON(http.StatusOK, member)
}

func (h *Handler) Get(c *gin.Context) {
	r, err := h.svc.Room(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "room lookup failed"})
		return
	}
	c.JSON(http.StatusOK, r)
}

type createMessageReq struct {
	Content string `json:"content" binding:"required"`
}

func (h *Handler) CreateMessage(c *gin.Context) {
	me := middleware.CurrentUser(c)
	var req createMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	msg, err := h.svc.CreateMessage(c.Request.Context(), c.Param("id"), me.UUID, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrNotAMember):
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		case errors.Is(err, storage.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "message creation failed"})
		}
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *Handler) ListMessages(c *gin.Context) {
	me := middleware.CurrentUser(c)
	msgs, err := h.svc.RoomMessages(c.Request.Context(), c.Param("id"), me.UUID)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrNotAMember):
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		case errors.Is(err, storage.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "message listing failed"})
		}
		return
	}
	c.JSON(http.StatusOK, msgs)
}
