package bridge

import (
	"encoding/json"
	"fmt"
)

// MessageType identifies the kind of an envelope exchanged with a display
// surface.
type MessageType string

const (
	// Inbound from the surface.

	MessageReady    MessageType = "ready"
	MessageUpdate   MessageType = "update"
	MessageResponse MessageType = "response"

	// Outbound to the surface.

	MessageInit        MessageType = "init"
	MessageGetFileData MessageType = "getFileData"
	MessageSaved       MessageType = "saved"
	MessageReverted    MessageType = "reverted"
)

// Envelope is the JSON message frame. RequestID is present only on
// request/response pairs; notifications omit it.
type Envelope struct {
	Type      MessageType     `json:"type"`
	RequestID uint64          `json:"requestId,omitempty"`
	Body      json.RawMessage `json:"body,omitempty"`
}

// EncodeEnvelope marshals an envelope with the given body value.
func EncodeEnvelope(msgType MessageType, requestID uint64, body any) ([]byte, error) {
	env := Envelope{Type: msgType, RequestID: requestID}
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s body: %w", msgType, err)
		}
		env.Body = raw
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", msgType, err)
	}
	return data, nil
}

// DecodeEnvelope unmarshals a raw frame into an envelope.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, ErrInvalidEnvelope
	}
	return env, nil
}

// InitBody is the payload of the init notification sent when a surface
// reports ready.
type InitBody struct {
	Untitled bool   `json:"untitled,omitempty"`
	Data     []byte `json:"data,omitempty"`
	Checksum uint64 `json:"checksum,omitempty"`
}

// EditStateBody is the payload of saved/reverted notifications.
type EditStateBody struct {
	Data      []byte `json:"data,omitempty"`
	EditCount int    `json:"editCount"`
}

// FileDataBody is the payload a surface returns in response to a
// getFileData request: the current serialized document bytes.
type FileDataBody struct {
	Data []byte `json:"data"`
}
