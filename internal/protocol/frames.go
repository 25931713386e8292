package protocol

import (
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

// Frame kinds carried over the bidirectional channel.
const (
	// Inbound (server → client)
	FrameConnected       = "connected"
	FrameProcessingStart = "processing_start"
	FrameChunk           = "chunk"
	FrameComplete        = "complete"
	FrameError           = "error"

	// Outbound (client → server)
	FrameMessage = "message"
)

// CloseNormal is the close code used for intentional local teardown.
// Any other close code counts as an abnormal closure and triggers the
// transport's reconnection cycle.
const CloseNormal = websocket.CloseNormalClosure

// Frame is one JSON-encoded protocol frame. Chunk frames carry Content;
// outbound message frames and inbound error frames carry Message.
type Frame struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Message string `json:"message,omitempty"`
}

// Outbound builds the frame for a user-sent chat message.
func Outbound(text string) Frame {
	return Frame{Type: FrameMessage, Message: text}
}

// Decode parses an inbound frame. Chunk frames are the hot path during
// streaming, so decoding uses sonic rather than encoding/json.
func Decode(data []byte) (Frame, error) {
	var f Frame
	if err := sonic.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("malformed frame: %w", err)
	}
	if f.Type == "" {
		return Frame{}, fmt.Errorf("malformed frame: missing type")
	}
	return f, nil
}

// Encode serializes a frame for the wire.
func Encode(f Frame) ([]byte, error) {
	data, err := sonic.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return data, nil
}
