package core

import "github.com/pulsechat/pulsechat-server/internal/store"

// EventKind is a notification the core emits to connections.
type EventKind int

const (
	// EventMessageReceived notifies subscribers about a new message.
	EventMessageReceived EventKind = iota
	// EventMessageEdited notifies subscribers that a message was edited.
	EventMessageEdited
	// EventMessageDeleted notifies subscribers that a message was soft-deleted.
	EventMessageDeleted
	// EventMessageRead notifies a sender that a reader marked their message read.
	EventMessageRead
	// EventChannelJoined confirms a channel subscription to the joining connection.
	EventChannelJoined
	// EventError notifies a connection about a rejected operation.
	EventError
)

// Event is sent to connections to describe what happened in the system.
type Event struct {
	Kind      EventKind
	Channel   string
	Message   *store.Message // set for received/edited
	MessageID int64          // set for deleted/read
	ReaderID  int64          // set for read
	Err       *CoreError     // set for error
}
