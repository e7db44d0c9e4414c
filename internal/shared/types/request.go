package types

import "encoding/json"

// FrameType discriminates sandboxed channel frames.
type FrameType string

const (
	FrameConnect   FrameType = "connect"
	FrameConnected FrameType = "connected"
	FrameMessage   FrameType = "message"
	FrameEvent     FrameType = "event"
	FrameRequest   FrameType = "request"
	FrameResponse  FrameType = "response"
)

// Frame is the envelope carried on the sandboxed channel.
type Frame struct {
	Type    FrameType       `json:"type"`
	ID      string          `json:"id,omitempty"`
	Name    string          `json:"name,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// CmdRequest is the body of a namespaced host request.
type CmdRequest struct {
	ID   string          `json:"id"`
	Args json.RawMessage `json:"args,omitempty"`
}
