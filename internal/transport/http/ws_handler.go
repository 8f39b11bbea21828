package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/pulsechat/pulsechat-server/internal/auth"
	"github.com/pulsechat/pulsechat-server/internal/core"
	"github.com/pulsechat/pulsechat-server/internal/proto"
	"github.com/pulsechat/pulsechat-server/internal/store"
)

// WSHandler upgrades HTTP connections and bridges them to core.Connection.
type WSHandler struct {
	coordinator *core.Coordinator
	verifier    *auth.Verifier
	eventBuffer int
	log         *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(coordinator *core.Coordinator, verifier *auth.Verifier, eventBuffer int, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{
		coordinator: coordinator,
		verifier:    verifier,
		eventBuffer: eventBuffer,
		log:         logger,
	}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	// Authenticate before any connection state exists; a failed handshake
	// leaves nothing behind.
	identity, err := h.verifier.Authenticate(ctx, extractCredential(r))
	if err != nil {
		h.log.Debug().Err(err).Msg("ws authentication failed")
		stdhttp.Error(w, authFailureReason(err), stdhttp.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	client := core.NewConnection(identity.UserID, h.eventBuffer)
	h.coordinator.Connect(client)
	defer h.coordinator.Disconnect(client)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := wsjson.Write(ctx, conn, proto.Outbound{
		Type: proto.OutboundTypeConnected,
		Data: proto.ConnectedData{ConnectionID: client.ID, UserID: client.UserID},
	}); err != nil {
		h.log.Warn().Err(err).Str("connection_id", client.ID).Msg("write connected event")
		return
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

// readLoop processes inbound operations one at a time, in arrival order.
func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Connection) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}
		if err := h.dispatch(ctx, client, inbound); err != nil {
			h.log.Warn().Err(err).Str("connection_id", client.ID).Msg("failed to handle inbound")
			return err
		}
	}
}

// dispatch executes one inbound operation. Domain errors are surfaced to the
// connection as exactly one error event; only protocol-level failures (bad
// JSON) terminate the connection.
func (h *WSHandler) dispatch(ctx context.Context, client *core.Connection, inbound proto.Inbound) error {
	switch inbound.Type {
	case proto.InboundTypeJoinChannel:
		var data proto.JoinChannelData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return err
		}
		channel, err := h.coordinator.JoinRoom(ctx, client, data.Room)
		if err != nil {
			client.Push(errorEvent(err))
			return nil
		}
		client.Push(&core.Event{Kind: core.EventChannelJoined, Channel: channel})
	case proto.InboundTypeSendMessage:
		var data proto.SendMessageData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return err
		}
		target := core.SendTarget{Receiver: data.Receiver, Room: data.Room}
		if _, err := h.coordinator.Send(ctx, client, target, store.MessageType(data.Type), data.Content, data.FileRef); err != nil {
			client.Push(errorEvent(err))
		}
	case proto.InboundTypeEditMessage:
		var data proto.EditMessageData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return err
		}
		if _, err := h.coordinator.Edit(ctx, client, data.MessageID, data.Content); err != nil {
			client.Push(errorEvent(err))
		}
	case proto.InboundTypeDeleteMessage:
		var data proto.MessageRefData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return err
		}
		if err := h.coordinator.Delete(ctx, client, data.MessageID); err != nil {
			client.Push(errorEvent(err))
		}
	case proto.InboundTypeMarkRead:
		var data proto.MessageRefData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return err
		}
		if err := h.coordinator.MarkRead(ctx, client, data.MessageID); err != nil {
			client.Push(errorEvent(err))
		}
	default:
		client.Push(&core.Event{Kind: core.EventError, Err: &core.CoreError{
			Code:    core.ErrCodeBadRequest,
			Message: "unknown message type",
		}})
	}
	return nil
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Connection) error {
	for {
		select {
		case event, ok := <-client.Events:
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Error().Err(err).Str("connection_id", client.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// extractCredential pulls the access token from the Authorization header, the
// accessToken cookie, or the access_token query parameter, in that order.
func extractCredential(r *stdhttp.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
	}
	if cookie, err := r.Cookie("accessToken"); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return r.URL.Query().Get("access_token")
}

func authFailureReason(err error) string {
	switch {
	case errors.Is(err, auth.ErrMissingCredential):
		return "no token provided"
	case errors.Is(err, auth.ErrUnknownSubject):
		return "user not found"
	default:
		return "invalid token"
	}
}
