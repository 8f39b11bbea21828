package core

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pulsechat/pulsechat-server/internal/store"
)

// Gateway is the slice of the persistence layer the coordinator depends on.
type Gateway interface {
	UserExists(ctx context.Context, id int64) (bool, error)
	GetRoomByID(ctx context.Context, id int64, includeDeleted bool) (*store.Room, error)
	IsParticipant(ctx context.Context, roomID, userID int64) (bool, error)
	CreateMessage(ctx context.Context, msg *store.Message) error
	GetMessage(ctx context.Context, id int64, includeDeleted bool) (*store.Message, error)
	UpdateContent(ctx context.Context, id int64, content string) (*store.Message, error)
	MarkDeleted(ctx context.Context, id int64) error
	AddReader(ctx context.Context, id, userID int64) (bool, error)
}

// SendTarget addresses a new message. Exactly one field must be set.
type SendTarget struct {
	Receiver *int64
	Room     *int64
}

// Coordinator orchestrates validate, persist, fan out for new messages and
// for mutations. It holds explicit references to the registry and router
// passed at construction; nothing is looked up from ambient state.
type Coordinator struct {
	registry *Registry
	router   *Router
	gateway  Gateway
	log      *zerolog.Logger
}

// NewCoordinator builds a delivery coordinator.
func NewCoordinator(registry *Registry, router *Router, gateway Gateway, logger *zerolog.Logger) *Coordinator {
	return &Coordinator{
		registry: registry,
		router:   router,
		gateway:  gateway,
		log:      logger,
	}
}

// Connect admits an authenticated connection into the registry.
func (c *Coordinator) Connect(conn *Connection) {
	c.registry.Register(conn)
	c.log.Debug().Str("connection_id", conn.ID).Int64("user_id", conn.UserID).Msg("connection registered")
}

// Disconnect deterministically removes the connection from every channel it
// joined and from the registry. After it returns no broadcast can reach the
// connection.
func (c *Coordinator) Disconnect(conn *Connection) {
	c.router.LeaveAll(conn)
	c.registry.Unregister(conn)
	c.log.Debug().Str("connection_id", conn.ID).Int64("user_id", conn.UserID).Msg("connection evicted")
}

// IsOnline reports whether the user has at least one live connection.
func (c *Coordinator) IsOnline(userID int64) bool {
	return c.registry.IsOnline(userID)
}

// JoinRoom subscribes the connection to a group room channel. The room must
// exist and the caller must be a current participant. Returns the channel id.
func (c *Coordinator) JoinRoom(ctx context.Context, conn *Connection, roomID int64) (string, error) {
	room, err := c.gateway.GetRoomByID(ctx, roomID, false)
	if errors.Is(err, store.ErrNotFound) {
		return "", coreError(ErrCodeUnknownRoom, "chat room not found")
	}
	if err != nil {
		c.log.Error().Err(err).Int64("room_id", roomID).Msg("load room")
		return "", coreError(ErrCodePersistenceFailed, "failed to load room")
	}
	if !containsUser(room.Participants, conn.UserID) {
		return "", coreError(ErrCodeNotAMember, "not a participant of this room")
	}

	channel := RoomChannel(roomID)
	c.router.Join(channel, conn)
	return channel, nil
}

// Send validates, persists and fans out a new message. Broadcast happens
// strictly after persistence acknowledges; a persistence failure surfaces to
// the sender with no broadcast attempted.
func (c *Coordinator) Send(ctx context.Context, sender *Connection, target SendTarget, msgType store.MessageType, content, fileRef string) (*store.Message, error) {
	if target.Receiver != nil && target.Room != nil {
		return nil, coreError(ErrCodeAmbiguousTarget, "provide either receiver or room, not both")
	}
	if target.Receiver == nil && target.Room == nil {
		return nil, coreError(ErrCodeNoTarget, "either receiver or room must be provided")
	}
	if !store.ValidMessageType(msgType) {
		return nil, coreError(ErrCodeInvalidType, "invalid or missing message type")
	}
	if msgType == store.MessageTypeText {
		if strings.TrimSpace(content) == "" {
			return nil, coreError(ErrCodeEmptyContent, "text message must have content")
		}
	} else if strings.TrimSpace(fileRef) == "" {
		return nil, coreError(ErrCodeMissingFile, "non-text message must have a file reference")
	}

	if target.Receiver != nil {
		exists, err := c.gateway.UserExists(ctx, *target.Receiver)
		if err != nil {
			c.log.Error().Err(err).Int64("receiver_id", *target.Receiver).Msg("check receiver")
			return nil, coreError(ErrCodePersistenceFailed, "failed to resolve receiver")
		}
		if !exists {
			return nil, coreError(ErrCodeUnknownReceiver, "receiver user not found")
		}
	} else {
		room, err := c.gateway.GetRoomByID(ctx, *target.Room, false)
		if errors.Is(err, store.ErrNotFound) {
			return nil, coreError(ErrCodeUnknownRoom, "chat room not found")
		}
		if err != nil {
			c.log.Error().Err(err).Int64("room_id", *target.Room).Msg("load room")
			return nil, coreError(ErrCodePersistenceFailed, "failed to load room")
		}
		if !containsUser(room.Participants, sender.UserID) {
			return nil, coreError(ErrCodeNotAMember, "not a participant of this room")
		}
	}

	msg := &store.Message{
		SenderID:   sender.UserID,
		ReceiverID: target.Receiver,
		RoomID:     target.Room,
		Content:    content,
		Type:       msgType,
	}
	if msgType != store.MessageTypeText {
		msg.FileURL = fileRef
	}

	if err := c.gateway.CreateMessage(ctx, msg); err != nil {
		c.log.Error().Err(err).Int64("sender_id", sender.UserID).Msg("persist message")
		return nil, coreError(ErrCodePersistenceFailed, "failed to persist message")
	}

	channel := channelFor(msg)
	if msg.ReceiverID != nil {
		// Direct channels are joined implicitly: the sender's connection and
		// every live connection of the receiver subscribe on send.
		c.router.Join(channel, sender)
		for _, conn := range c.registry.ConnectionsFor(*msg.ReceiverID) {
			c.router.Join(channel, conn)
		}
	}

	c.broadcast(channel, &Event{Kind: EventMessageReceived, Channel: channel, Message: msg}, skipOriginator(msg, sender))
	return msg, nil
}

// Edit replaces the content of a text message owned by the caller, then
// notifies the message's channel subscribers.
func (c *Coordinator) Edit(ctx context.Context, caller *Connection, messageID int64, content string) (*store.Message, error) {
	msg, err := c.loadMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.Deleted {
		return nil, coreError(ErrCodeAlreadyDeleted, "cannot edit a deleted message")
	}
	if msg.SenderID != caller.UserID {
		return nil, coreError(ErrCodeForbidden, "only the sender may edit this message")
	}
	if msg.Type != store.MessageTypeText {
		return nil, coreError(ErrCodeWrongType, "only text messages can be edited")
	}
	if strings.TrimSpace(content) == "" {
		return nil, coreError(ErrCodeEmptyContent, "content is required to edit the message")
	}

	updated, err := c.gateway.UpdateContent(ctx, messageID, content)
	if err != nil {
		c.log.Error().Err(err).Int64("message_id", messageID).Msg("persist edit")
		return nil, coreError(ErrCodePersistenceFailed, "failed to persist edit")
	}

	channel := channelFor(updated)
	c.broadcast(channel, &Event{Kind: EventMessageEdited, Channel: channel, Message: updated}, skipOriginator(updated, caller))
	return updated, nil
}

// Delete soft-deletes a message owned by the caller. Deleting an already
// deleted message is a no-op success with no further broadcast.
func (c *Coordinator) Delete(ctx context.Context, caller *Connection, messageID int64) error {
	msg, err := c.loadMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != caller.UserID {
		return coreError(ErrCodeForbidden, "only the sender may delete this message")
	}
	if msg.Deleted {
		return nil
	}

	if err := c.gateway.MarkDeleted(ctx, messageID); err != nil {
		c.log.Error().Err(err).Int64("message_id", messageID).Msg("persist delete")
		return coreError(ErrCodePersistenceFailed, "failed to persist delete")
	}

	// The delete event carries only the message id, never content.
	channel := channelFor(msg)
	c.broadcast(channel, &Event{Kind: EventMessageDeleted, Channel: channel, MessageID: messageID}, skipOriginator(msg, caller))
	return nil
}

// MarkRead records a read receipt. For a direct message only the receiver may
// mark read; for a room message any current participant may. On state change
// the original sender's live connections are notified.
func (c *Coordinator) MarkRead(ctx context.Context, caller *Connection, messageID int64) error {
	msg, err := c.loadMessage(ctx, messageID)
	if err != nil {
		return err
	}

	if msg.ReceiverID != nil {
		if caller.UserID != *msg.ReceiverID {
			return coreError(ErrCodeForbidden, "only the receiver may mark this message as read")
		}
	} else {
		member, err := c.gateway.IsParticipant(ctx, *msg.RoomID, caller.UserID)
		if err != nil {
			c.log.Error().Err(err).Int64("room_id", *msg.RoomID).Msg("check participant")
			return coreError(ErrCodePersistenceFailed, "failed to check room membership")
		}
		if !member {
			return coreError(ErrCodeForbidden, "not a participant of this room")
		}
	}

	changed, err := c.gateway.AddReader(ctx, messageID, caller.UserID)
	if err != nil {
		c.log.Error().Err(err).Int64("message_id", messageID).Msg("persist read receipt")
		return coreError(ErrCodePersistenceFailed, "failed to persist read receipt")
	}
	if !changed {
		return nil
	}

	ev := &Event{Kind: EventMessageRead, Channel: channelFor(msg), MessageID: messageID, ReaderID: caller.UserID}
	for _, conn := range c.registry.ConnectionsFor(msg.SenderID) {
		if !conn.Push(ev) {
			c.log.Warn().Str("connection_id", conn.ID).Int64("message_id", messageID).Msg("dropped read event for slow connection")
		}
	}
	return nil
}

func (c *Coordinator) loadMessage(ctx context.Context, messageID int64) (*store.Message, error) {
	msg, err := c.gateway.GetMessage(ctx, messageID, true)
	if errors.Is(err, store.ErrNotFound) {
		return nil, coreError(ErrCodeMessageNotFound, "message not found")
	}
	if err != nil {
		c.log.Error().Err(err).Int64("message_id", messageID).Msg("load message")
		return nil, coreError(ErrCodePersistenceFailed, "failed to load message")
	}
	return msg, nil
}

// broadcast pushes an event to every channel subscriber except those skipped.
// Delivery is independent and best-effort: a slow or dead connection never
// rolls back persistence or blocks the others.
func (c *Coordinator) broadcast(channelID string, ev *Event, skip func(*Connection) bool) {
	for _, conn := range c.router.SubscribersOf(channelID) {
		if skip != nil && skip(conn) {
			continue
		}
		if !conn.Push(ev) {
			c.log.Warn().Str("connection_id", conn.ID).Str("channel", channelID).Msg("dropped event for slow connection")
		}
	}
}

func channelFor(msg *store.Message) string {
	if msg.ReceiverID != nil {
		return DeriveDirectChannel(msg.SenderID, *msg.ReceiverID)
	}
	return RoomChannel(*msg.RoomID)
}

// skipOriginator excludes the sender side from a broadcast. Direct messages
// are not echoed to any of the sender's devices; the sender's other devices
// catch up via history queries. Room broadcasts reach every subscriber except
// the originating device itself. A message to oneself is treated like a room
// broadcast: every device but the originating one receives it, otherwise a
// self-note would be delivered to nobody.
func skipOriginator(msg *store.Message, origin *Connection) func(*Connection) bool {
	if msg.ReceiverID != nil && *msg.ReceiverID != msg.SenderID {
		senderID := msg.SenderID
		return func(conn *Connection) bool { return conn.UserID == senderID }
	}
	originID := origin.ID
	return func(conn *Connection) bool { return conn.ID == originID }
}

func containsUser(ids []int64, userID int64) bool {
	for _, id := range ids {
		if id == userID {
			return true
		}
	}
	return false
}
