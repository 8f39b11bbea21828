package http

import (
	"github.com/pulsechat/pulsechat-server/internal/core"
	"github.com/pulsechat/pulsechat-server/internal/proto"
	"github.com/pulsechat/pulsechat-server/internal/store"
)

func messagePayload(msg *store.Message) proto.MessagePayload {
	readBy := msg.ReadBy
	if readBy == nil {
		readBy = []int64{}
	}
	return proto.MessagePayload{
		ID:        msg.ID,
		Sender:    msg.SenderID,
		Receiver:  msg.ReceiverID,
		Room:      msg.RoomID,
		Content:   msg.Content,
		FileURL:   msg.FileURL,
		Type:      string(msg.Type),
		Edited:    msg.Edited,
		Deleted:   msg.Deleted,
		ReadBy:    readBy,
		CreatedAt: msg.CreatedAt.Unix(),
		UpdatedAt: msg.UpdatedAt.Unix(),
	}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventMessageReceived:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventMessageReceived,
			Data:  messagePayload(event.Message),
		}
	case core.EventMessageEdited:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventMessageEdited,
			Data:  messagePayload(event.Message),
		}
	case core.EventMessageDeleted:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventMessageDeleted,
			Data:  proto.EventMessageDeletedData{MessageID: event.MessageID},
		}
	case core.EventMessageRead:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventMessageRead,
			Data:  proto.EventMessageReadData{MessageID: event.MessageID, ReaderID: event.ReaderID},
		}
	case core.EventChannelJoined:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventChannelJoined,
			Data:  proto.EventChannelJoinedData{Channel: event.Channel},
		}
	case core.EventError:
		if event.Err == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Err.Code, Msg: event.Err.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}

// errorEvent wraps a domain error for the initiating connection. Every
// rejected operation yields exactly one of these.
func errorEvent(err error) *core.Event {
	if coreErr, ok := err.(*core.CoreError); ok {
		return &core.Event{Kind: core.EventError, Err: coreErr}
	}
	return &core.Event{Kind: core.EventError, Err: &core.CoreError{Code: core.ErrCodeBadRequest, Message: err.Error()}}
}
