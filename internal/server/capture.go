package server

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/audiows/internal/logging"
)

// Capture directions.
const (
	DirectionInbound  = "client->server"
	DirectionOutbound = "server->client"
)

// FrameRecord is one captured frame, written as a single JSON line.
type FrameRecord struct {
	Timestamp  time.Time `json:"timestamp"`
	MessageNum int       `json:"message_num"`
	RemoteAddr string    `json:"remote_addr"`
	Direction  string    `json:"direction"`
	FrameType  string    `json:"frame_type"`
	PayloadLen int       `json:"payload_length"`
	Payload    string    `json:"payload,omitempty"`
	PayloadHex string    `json:"payload_hex,omitempty"`
}

// Capture appends every frame the server reads or writes to a JSONL file.
// A nil *Capture records nothing.
type Capture struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
	path string
}

// NewCapture creates capture-<start time>.jsonl in dir. dir must exist.
func NewCapture(dir string) (*Capture, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("capture directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("capture directory %s is not a directory", dir)
	}

	path := filepath.Join(dir, fmt.Sprintf("capture-%s.jsonl", time.Now().Format("20060102-150405")))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture file: %w", err)
	}

	return &Capture{file: f, enc: json.NewEncoder(f), path: path}, nil
}

// Path returns the capture file path.
func (c *Capture) Path() string {
	if c == nil {
		return ""
	}
	return c.path
}

// Record appends one frame. Write failures are logged, never returned:
// capture must not disturb the connection.
func (c *Capture) Record(remoteAddr string, messageNum int, direction string, messageType int, payload []byte) {
	if c == nil {
		return
	}

	rec := FrameRecord{
		Timestamp:  time.Now(),
		MessageNum: messageNum,
		RemoteAddr: remoteAddr,
		Direction:  direction,
		FrameType:  frameTypeName(messageType),
		PayloadLen: len(payload),
	}
	if messageType == websocket.TextMessage {
		rec.Payload = string(payload)
	} else {
		rec.PayloadHex = hex.EncodeToString(payload)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.file == nil {
		return
	}
	if err := c.enc.Encode(rec); err != nil {
		logging.Error("Failed to write to capture file",
			zap.String("filename", c.path),
			zap.Error(err),
		)
		return
	}

	logging.Debug("Saved frame to capture file",
		zap.String("filename", c.path),
		zap.Int("message_num", messageNum),
		zap.String("direction", direction),
	)
}

// Close closes the capture file. Safe on a nil Capture and idempotent.
func (c *Capture) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.file == nil {
		return nil
	}
	err := c.file.Close()
	c.file = nil
	return err
}

func frameTypeName(messageType int) string {
	switch messageType {
	case websocket.TextMessage:
		return "text"
	case websocket.BinaryMessage:
		return "binary"
	default:
		return fmt.Sprintf("opcode(%d)", messageType)
	}
}
