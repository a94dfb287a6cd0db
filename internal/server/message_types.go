package server

// MessageType represents a WebSocket message type with type safety
type MessageType string

// WebSocket message type constants
const (
	// Client to server messages
	MessageTypeCreate      MessageType = "create"
	MessageTypeGet         MessageType = "get"
	MessageTypeUpdate      MessageType = "update"
	MessageTypeDelete      MessageType = "delete"
	MessageTypeSubscribe   MessageType = "subscribe"
	MessageTypeUnsubscribe MessageType = "unsubscribe"

	// Server to client replies, carrying the request's id
	MessageTypeRecord MessageType = "record"
	MessageTypeOK     MessageType = "ok"
	MessageTypeError  MessageType = "error"

	// Server to client pushes
	MessageTypeRecordChanged      MessageType = "record_changed"
	MessageTypeSubscriptionClosed MessageType = "subscription_closed"
)

// String returns the string representation of the message type
func (mt MessageType) String() string {
	return string(mt)
}
