package server

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/lox/chukrum/internal/multiplayer"
)

// Message represents the base WebSocket message structure
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	RequestID string          `json:"requestId,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(messageType MessageType, data any) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Message{
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: time.Now(),
	}, nil
}

// Client → Server Messages

type CreateData struct {
	Record *multiplayer.Record `json:"record"`
}

// IDData addresses a single record, for get, delete, subscribe and
// unsubscribe
type IDData struct {
	ID string `json:"id"`
}

type UpdateData struct {
	ID        string            `json:"id"`
	Patch     multiplayer.Patch `json:"patch"`
	IfVersion int64             `json:"ifVersion,omitempty"`
}

// Server → Client Messages

type RecordData struct {
	Record *multiplayer.Record `json:"record"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes carried by ErrorData
const (
	CodeInvalidMessage  = "invalid_message"
	CodeUnknownType     = "unknown_message_type"
	CodeNotFound        = "not_found"
	CodeVersionConflict = "version_conflict"
	CodeExists          = "exists"
	CodeStoreError      = "store_error"
)

// ErrorCode classifies a store error for the wire
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, multiplayer.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, multiplayer.ErrVersionConflict):
		return CodeVersionConflict
	case errors.Is(err, multiplayer.ErrExists):
		return CodeExists
	default:
		return CodeStoreError
	}
}
