package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/pulsechat/pulsechat-server/internal/proto"
	"github.com/pulsechat/pulsechat-server/internal/store"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// MessageHandlers serves the pull-based catch-up API. History reads are
// ordinary paginated queries over the persistence gateway, explicitly outside
// the push path.
type MessageHandlers struct {
	messages store.MessageStore
	rooms    store.RoomStore
	log      *zerolog.Logger
}

// NewMessageHandlers creates a new message handlers instance.
func NewMessageHandlers(messages store.MessageStore, rooms store.RoomStore, logger *zerolog.Logger) *MessageHandlers {
	return &MessageHandlers{
		messages: messages,
		rooms:    rooms,
		log:      logger,
	}
}

// HistoryResponse is the paginated catch-up response body.
type HistoryResponse struct {
	Messages []proto.MessagePayload `json:"messages"`
	// NextBefore is the cursor for the next (older) page, 0 when exhausted.
	NextBefore int64 `json:"next_before"`
}

// UnreadResponse carries the unread direct message count.
type UnreadResponse struct {
	UnreadCount int64 `json:"unread_count"`
}

// ListMessages returns one channel's history, newest first. The optional
// search parameter restricts results to messages containing the term.
// GET /api/messages?receiver=<userId>|room=<roomId>&limit=&before=&search=&include_deleted=
func (h *MessageHandlers) ListMessages(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		h.log.Error().Msg("user_id not found in context")
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	receiverParam := c.Query("receiver")
	roomParam := c.Query("room")
	if receiverParam == "" && roomParam == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "either receiver or room must be provided"})
		return
	}
	if receiverParam != "" && roomParam != "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "provide either receiver or room, not both"})
		return
	}

	query := store.ChannelQuery{
		ViewerID:       uid,
		Limit:          defaultHistoryLimit,
		Search:         strings.TrimSpace(c.Query("search")),
		IncludeDeleted: c.Query("include_deleted") == "true",
	}

	if receiverParam != "" {
		peer, err := strconv.ParseInt(receiverParam, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "receiver must be an integer"})
			return
		}
		query.PeerID = &peer
	} else {
		roomID, err := strconv.ParseInt(roomParam, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "room must be an integer"})
			return
		}
		member, err := h.rooms.IsParticipant(c.Request.Context(), roomID, uid)
		if err != nil {
			h.log.Error().Err(err).Int64("room_id", roomID).Msg("failed to check membership")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
			return
		}
		if !member {
			c.JSON(http.StatusForbidden, ErrorResponse{Error: "not a participant of this room"})
			return
		}
		query.RoomID = &roomID
	}

	if limitParam := c.Query("limit"); limitParam != "" {
		limit, err := strconv.Atoi(limitParam)
		if err != nil || limit <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer"})
			return
		}
		if limit > maxHistoryLimit {
			limit = maxHistoryLimit
		}
		query.Limit = limit
	}

	if beforeParam := c.Query("before"); beforeParam != "" {
		before, err := strconv.ParseInt(beforeParam, 10, 64)
		if err != nil || before <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "before must be a positive integer"})
			return
		}
		query.BeforeID = &before
	}

	messages, err := h.messages.ListChannelMessages(c.Request.Context(), query)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to list messages")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := HistoryResponse{Messages: make([]proto.MessagePayload, 0, len(messages))}
	for _, msg := range messages {
		response.Messages = append(response.Messages, messagePayload(msg))
	}
	if len(messages) == query.Limit {
		response.NextBefore = messages[len(messages)-1].ID
	}

	c.JSON(http.StatusOK, response)
}

// ConversationResponse is one chat-list entry: the counterpart, its most
// recent message and the caller's unread count for that conversation.
type ConversationResponse struct {
	Peer        *int64               `json:"peer,omitempty"`
	Room        *int64               `json:"room,omitempty"`
	LastMessage proto.MessagePayload `json:"last_message"`
	UnreadCount int64                `json:"unread_count"`
}

// ChatList returns the caller's conversation overview, newest activity first.
// GET /api/chats
func (h *MessageHandlers) ChatList(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		h.log.Error().Msg("user_id not found in context")
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	conversations, err := h.messages.ListConversations(c.Request.Context(), uid)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to list conversations")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]ConversationResponse, 0, len(conversations))
	for _, conv := range conversations {
		response = append(response, ConversationResponse{
			Peer:        conv.PeerID,
			Room:        conv.RoomID,
			LastMessage: messagePayload(conv.LastMessage),
			UnreadCount: conv.Unread,
		})
	}

	c.JSON(http.StatusOK, response)
}

// UnreadCount returns the caller's unread direct message count.
// GET /api/messages/unread
func (h *MessageHandlers) UnreadCount(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		h.log.Error().Msg("user_id not found in context")
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	count, err := h.messages.CountUnread(c.Request.Context(), uid)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to count unread")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, UnreadResponse{UnreadCount: count})
}
