package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/pulsechat/pulsechat-server/internal/store"
)

// RoomHandlers provides HTTP handlers for room management endpoints.
type RoomHandlers struct {
	store store.RoomStore
	log   *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(st store.RoomStore, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		store: st,
		log:   logger,
	}
}

// CreateRoomRequest represents the create room request body.
type CreateRoomRequest struct {
	Name         string  `json:"name" binding:"required,min=1,max=64"`
	Participants []int64 `json:"participants" binding:"required,min=1"`
}

// RoomResponse represents a room in API responses.
type RoomResponse struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	IsGroup      bool    `json:"is_group"`
	CreatedBy    int64   `json:"created_by"`
	Participants []int64 `json:"participants"`
	Admins       []int64 `json:"admins"`
	CreatedAt    string  `json:"created_at"`
}

// CreateRoom handles group room creation. The creator becomes both admin and
// participant.
// POST /api/rooms
func (h *RoomHandlers) CreateRoom(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		h.log.Error().Msg("user_id not found in context")
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create room request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	room, err := h.store.CreateRoom(c.Request.Context(), req.Name, uid, req.Participants)
	if err != nil {
		if errors.Is(err, store.ErrTooFewParticipants) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "room requires at least two participants"})
			return
		}
		h.log.Error().Err(err).Str("room_name", req.Name).Msg("failed to create room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Str("room_name", room.Name).Int64("room_id", room.ID).Int64("creator_id", uid).Msg("room created successfully")
	c.JSON(http.StatusCreated, roomResponse(room))
}

// ListRooms handles listing the caller's rooms.
// GET /api/rooms
func (h *RoomHandlers) ListRooms(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		h.log.Error().Msg("user_id not found in context")
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	rooms, err := h.store.ListRoomsForUser(c.Request.Context(), uid)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to list rooms")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]RoomResponse, 0, len(rooms))
	for _, room := range rooms {
		response = append(response, roomResponse(room))
	}

	h.log.Debug().Int64("user_id", uid).Int("room_count", len(rooms)).Msg("rooms listed successfully")
	c.JSON(http.StatusOK, response)
}

func roomResponse(room *store.Room) RoomResponse {
	return RoomResponse{
		ID:           room.ID,
		Name:         room.Name,
		IsGroup:      room.IsGroup,
		CreatedBy:    room.CreatedBy,
		Participants: room.Participants,
		Admins:       room.Admins,
		CreatedAt:    room.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}
