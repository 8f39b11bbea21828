package proto

import "encoding/json"

// Inbound is the envelope for operations coming from a connection.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeJoinChannel   = "join-channel"
	InboundTypeSendMessage   = "send-message"
	InboundTypeEditMessage   = "edit-message"
	InboundTypeDeleteMessage = "delete-message"
	InboundTypeMarkRead      = "mark-read"

	OutboundTypeConnected = "connected"
	OutboundTypeEvent     = "event"
	OutboundTypeError     = "error"

	EventMessageReceived = "message-received"
	EventMessageEdited   = "message-edited"
	EventMessageDeleted  = "message-deleted"
	EventMessageRead     = "message-read"
	EventChannelJoined   = "channel-joined"
)

// JoinChannelData requests subscription to a group room channel.
type JoinChannelData struct {
	Room int64 `json:"room"`
}

// SendMessageData is a new message from the client. Exactly one of Receiver
// and Room must be set.
type SendMessageData struct {
	Receiver *int64 `json:"receiver,omitempty"`
	Room     *int64 `json:"room,omitempty"`
	Type     string `json:"type"`
	Content  string `json:"content,omitempty"`
	FileRef  string `json:"fileRef,omitempty"`
}

// EditMessageData replaces the content of an owned text message.
type EditMessageData struct {
	MessageID int64  `json:"messageId"`
	Content   string `json:"content"`
}

// MessageRefData addresses an existing message by id (delete, mark-read).
type MessageRefData struct {
	MessageID int64 `json:"messageId"`
}

// Outbound is the envelope for events sent to a connection.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// MessagePayload is the wire form of a persisted message.
type MessagePayload struct {
	ID        int64   `json:"id"`
	Sender    int64   `json:"sender"`
	Receiver  *int64  `json:"receiver,omitempty"`
	Room      *int64  `json:"room,omitempty"`
	Content   string  `json:"content"`
	FileURL   string  `json:"fileUrl,omitempty"`
	Type      string  `json:"messageType"`
	Edited    bool    `json:"isEdited"`
	Deleted   bool    `json:"deleted"`
	ReadBy    []int64 `json:"readBy"`
	CreatedAt int64   `json:"createdAt"`
	UpdatedAt int64   `json:"updatedAt"`
}

// EventMessageDeletedData carries only the message id, never content.
type EventMessageDeletedData struct {
	MessageID int64 `json:"messageId"`
}

// EventMessageReadData notifies a sender who read their message.
type EventMessageReadData struct {
	MessageID int64 `json:"messageId"`
	ReaderID  int64 `json:"readerId"`
}

// EventChannelJoinedData confirms a channel subscription.
type EventChannelJoinedData struct {
	Channel string `json:"channel"`
}

// ConnectedData confirms a successful handshake.
type ConnectedData struct {
	ConnectionID string `json:"connectionId"`
	UserID       int64  `json:"userId"`
}

// Error describes a rejected operation.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"message"`
}
