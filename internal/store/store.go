package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrTooFewParticipants is returned when a room would end up with fewer than
// two participants.
var ErrTooFewParticipants = errors.New("room requires at least two participants")

// User represents a registered user.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// RefreshToken is an opaque long-lived credential used to mint new access tokens.
type RefreshToken struct {
	ID        int64
	UserID    int64
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Room represents a persisted chat room. Direct conversations are not rooms;
// they are routed by a derived pairwise channel key and only their messages
// are persisted.
type Room struct {
	ID           int64
	Name         string
	IsGroup      bool
	CreatedBy    int64
	Participants []int64
	Admins       []int64
	Deleted      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// MessageType defines the kind of a message payload.
type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
	MessageTypeVideo MessageType = "video"
	MessageTypeFile  MessageType = "file"
)

// ValidMessageType reports whether t is one of the recognized kinds.
func ValidMessageType(t MessageType) bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeVideo, MessageTypeFile:
		return true
	}
	return false
}

// Message is a persisted chat message. Exactly one of ReceiverID and RoomID
// is set: ReceiverID for direct messages, RoomID for room messages.
// Messages are soft-deleted, never removed.
type Message struct {
	ID         int64
	SenderID   int64
	ReceiverID *int64
	RoomID     *int64
	Content    string
	FileURL    string
	Type       MessageType
	Edited     bool
	Deleted    bool
	ReadBy     []int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ChannelQuery selects messages from one conversation for catch-up reads.
// Exactly one of PeerID and RoomID must be set. PeerID selects the direct
// conversation between ViewerID and PeerID. BeforeID, when set, returns only
// messages older than that ID. IncludeDeleted must be set explicitly; there
// is no implicit soft-delete filtering.
type ChannelQuery struct {
	ViewerID int64
	PeerID   *int64
	RoomID   *int64
	BeforeID *int64
	Limit    int
	// Search, when non-empty, restricts results to messages whose content
	// contains the term (case-insensitive).
	Search         string
	IncludeDeleted bool
}

// Conversation is one entry of a user's chat overview: the counterpart
// (direct peer or room), the most recent message, and how many messages the
// user has not read yet.
type Conversation struct {
	PeerID      *int64
	RoomID      *int64
	LastMessage *Message
	Unread      int64
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, username, passwordHash string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// UserExists reports whether a user with the given ID exists.
	UserExists(ctx context.Context, id int64) (bool, error)

	// SearchUsers finds users whose username contains the query term.
	SearchUsers(ctx context.Context, query string) ([]*User, error)
}

// TokenStore handles refresh token persistence.
type TokenStore interface {
	// CreateRefreshToken stores a refresh token for a user.
	CreateRefreshToken(ctx context.Context, userID int64, token string, expiresAt time.Time) (*RefreshToken, error)

	// GetRefreshToken retrieves a refresh token record by its value.
	GetRefreshToken(ctx context.Context, token string) (*RefreshToken, error)

	// DeleteRefreshToken revokes a single refresh token.
	DeleteRefreshToken(ctx context.Context, token string) error

	// DeleteUserRefreshTokens revokes every refresh token for a user.
	DeleteUserRefreshTokens(ctx context.Context, userID int64) error
}

// RoomStore handles room persistence.
type RoomStore interface {
	// CreateRoom creates a group room. The creator is added to both the
	// participant and admin sets; participants must number at least two
	// after the creator is included.
	CreateRoom(ctx context.Context, name string, creatorID int64, participants []int64) (*Room, error)

	// GetRoomByID retrieves a room. Soft-deleted rooms are only returned
	// when includeDeleted is set.
	GetRoomByID(ctx context.Context, id int64, includeDeleted bool) (*Room, error)

	// IsParticipant reports whether the user is a current room participant.
	IsParticipant(ctx context.Context, roomID, userID int64) (bool, error)

	// ListRoomsForUser lists non-deleted rooms the user participates in.
	ListRoomsForUser(ctx context.Context, userID int64) ([]*Room, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// CreateMessage persists a new message, filling its ID and timestamps.
	CreateMessage(ctx context.Context, msg *Message) error

	// GetMessage retrieves a message by ID. Soft-deleted messages are only
	// returned when includeDeleted is set.
	GetMessage(ctx context.Context, id int64, includeDeleted bool) (*Message, error)

	// UpdateContent replaces the message content, marks it edited and
	// returns the updated record.
	UpdateContent(ctx context.Context, id int64, content string) (*Message, error)

	// MarkDeleted sets the soft-delete flag.
	MarkDeleted(ctx context.Context, id int64) error

	// AddReader records that a user has read the message. It reports
	// whether the reader set actually changed.
	AddReader(ctx context.Context, id, userID int64) (bool, error)

	// ListChannelMessages retrieves messages from one conversation, newest
	// first, paginated by q.BeforeID.
	ListChannelMessages(ctx context.Context, q ChannelQuery) ([]*Message, error)

	// CountUnread counts non-deleted direct messages addressed to the user
	// that the user has not read.
	CountUnread(ctx context.Context, userID int64) (int64, error)

	// ListConversations returns the user's chat overview: one entry per
	// direct peer and per joined room holding a conversation, newest
	// activity first.
	ListConversations(ctx context.Context, userID int64) ([]*Conversation, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	TokenStore
	RoomStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
