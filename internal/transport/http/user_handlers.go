package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/pulsechat/pulsechat-server/internal/store"
)

// Presence answers whether a user currently has a live connection.
type Presence interface {
	IsOnline(userID int64) bool
}

// UserHandlers provides HTTP handlers for user lookup.
type UserHandlers struct {
	users    store.UserStore
	presence Presence
	log      *zerolog.Logger
}

// NewUserHandlers creates a new user handlers instance.
func NewUserHandlers(users store.UserStore, presence Presence, logger *zerolog.Logger) *UserHandlers {
	return &UserHandlers{
		users:    users,
		presence: presence,
		log:      logger,
	}
}

// UserResponse represents a user in API responses.
type UserResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Online   bool   `json:"online"`
}

// SearchUsers finds users by username fragment, excluding the caller.
// GET /api/users?q=query
func (h *UserHandlers) SearchUsers(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		h.log.Error().Msg("user_id not found in context")
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	query := strings.TrimSpace(c.Query("q"))
	if len(query) < 2 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "search query must be at least 2 characters"})
		return
	}

	users, err := h.users.SearchUsers(c.Request.Context(), query)
	if err != nil {
		h.log.Error().Err(err).Str("query", query).Msg("failed to search users")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]UserResponse, 0, len(users))
	for _, u := range users {
		if u.ID == uid {
			continue
		}
		response = append(response, UserResponse{
			ID:       u.ID,
			Username: u.Username,
			Online:   h.presence.IsOnline(u.ID),
		})
	}

	c.JSON(http.StatusOK, response)
}
