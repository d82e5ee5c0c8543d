/*
Package chat contains the presence and routing core of the chat server.

This file defines the wire protocol: every WebSocket text frame carries a JSON envelope
{"event": "<name>", "data": <payload>}, with the inbound and outbound event names and the
payload shapes below.
*/
package chat

import (
	"encoding/json"

	"growchat/internal/app/user"
)

// EventName identifies the kind of an envelope.
type EventName string

// Inbound events, sent by clients.
const (
	EventUserConnectedToRoom EventName = "user-connected-to-room"
	EventChatMessage         EventName = "chat-message"
	EventPrivateMessage      EventName = "private-message"
	EventCreateRoom          EventName = "create-room"
	EventRequestRoomList     EventName = "request-room-list"
	EventRequestUserList     EventName = "request-user-list"
	EventRequestRoomHistory  EventName = "request-room-history"
	EventSearchRoomHistory   EventName = "search-room-history"
)

// Outbound events, sent by the server.
const (
	EventConnectionEstablished  EventName = "connection-established"
	EventMessageReceived        EventName = "message-received"
	EventPrivateMessageReceived EventName = "private-message-received"
	EventRoomAdded              EventName = "room-added"
	EventRoomUserListUpdated    EventName = "room-user-list-updated"
	EventRoomUserList           EventName = "room-user-list"
	EventFullRoomList           EventName = "full-room-list"
	EventRoomHistory            EventName = "room-history"
	EventUserDisconnected       EventName = "user-disconnected"
	EventError                  EventName = "error"
)

// Envelope is the decoded form of an inbound frame. Data stays raw until the handler
// for Event binds it.
type Envelope struct {
	Event EventName       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// outboundEnvelope is the encoded form of every server frame.
type outboundEnvelope struct {
	Event EventName `json:"event"`
	Data  any       `json:"data"`
}

// UserConnectedToRoomPayload asks to register the connection's identity and move it into Room.
type UserConnectedToRoomPayload struct {
	User *user.Identity `json:"user"`
	Room string         `json:"room"`
}

// MessagePayload is a chat or private message. Clients fill User, Text and Recipient;
// the server stamps ID, From and Timestamp before relaying it.
type MessagePayload struct {
	ID        string         `json:"id,omitempty"`
	User      *user.Identity `json:"user,omitempty"`
	Text      string         `json:"text"`
	Recipient string         `json:"recipient"`
	From      string         `json:"from,omitempty"`
	Timestamp int64          `json:"timestamp,omitempty"`
}

// CreateRoomPayload names a room to add to the directory.
type CreateRoomPayload struct {
	Name string `json:"name"`
}

// SearchRoomHistoryPayload filters a room's history by message text.
type SearchRoomHistoryPayload struct {
	Room string `json:"room"`
	Text string `json:"text"`
}

// ConnectionEstablishedPayload tells a new connection its identifier.
type ConnectionEstablishedPayload struct {
	ID string `json:"id"`
}

// ErrorPayload reports a rejected request back to the connection that sent it.
type ErrorPayload struct {
	Code    int       `json:"code"`
	Message string    `json:"message"`
	Event   EventName `json:"event,omitempty"`
}

// encodeFrame renders one outbound frame.
func encodeFrame(event EventName, data any) ([]byte, error) {
	return json.Marshal(outboundEnvelope{Event: event, Data: data})
}
