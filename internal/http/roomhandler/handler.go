package roomhandler

import (
	"errors"
	"net/http"

	"zensyncgo/internal/roomstate"
	"zensyncgo/internal/services/rooms"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const kindKey = "room_kind"

type Handler struct {
	svc rooms.IRoomService
}

func New(svc rooms.IRoomService) *Handler { return &Handler{svc: svc} }

// Register mounts /api/:kind/rooms on r.
func (h *Handler) Register(r gin.IRouter) {
	g := r.Group("/api/:kind", h.kind)
	g.GET("/rooms", h.list)
	g.POST("/rooms", h.create)
	g.GET("/rooms/:id", h.info)
	g.POST("/rooms/:id/join", h.join)
	g.POST("/rooms/:id/leave", h.leave)
}

func (h *Handler) kind(c *gin.Context) {
	k, err := roomstate.ParseKind(c.Param("kind"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return
	}
	c.Set(kindKey, k)
	c.Next()
}

func kindOf(c *gin.Context) roomstate.Kind {
	return c.MustGet(kindKey).(roomstate.Kind)
}

// fail maps directory errors to status codes.
func fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, rooms.ErrRoomNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, rooms.ErrInvalidRoom), errors.Is(err, roomstate.ErrInvalidKind):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	default:
		zap.L().Error("rooms.api", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

func (h *Handler) list(c *gin.Context) {
	var q ListRoomsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	out, err := h.svc.ListRooms(c.Request.Context(), kindOf(c), q.Public, q.Limit, q.Offset)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) create(c *gin.Context) {
	var body CreateRoomBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	public := true
	if body.IsPublic != nil {
		public = *body.IsPublic
	}

	dto, err := h.svc.CreateRoom(c.Request.Context(), kindOf(c), rooms.CreateRoomInput{
		Name:            body.Name,
		CreatorID:       body.CreatorID,
		DurationMinutes: body.DurationMinutes,
		Goal:            body.Goal,
		PlaylistID:      body.PlaylistID,
		PlaylistName:    body.PlaylistName,
		IsPublic:        public,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto)
}

func (h *Handler) info(c *gin.Context) {
	dto, err := h.svc.GetRoom(c.Request.Context(), kindOf(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto)
}

func (h *Handler) join(c *gin.Context) {
	var body MembershipBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	if err := h.svc.JoinRoom(c.Request.Context(), kindOf(c), c.Param("id"), body.UserID); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) leave(c *gin.Context) {
	var body MembershipBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	if err := h.svc.LeaveRoom(c.Request.Context(), kindOf(c), c.Param("id"), body.UserID); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
