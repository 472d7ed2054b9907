package server

import (
	"errors"
	"fmt"
	"net"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/audiows/internal/logging"
	"github.com/muurk/audiows/internal/protocol"
)

// Time allowed to write a reply to the peer.
const writeWait = 10 * time.Second

// errInvalidUTF8 ends a connection whose text frame is not valid UTF-8.
var errInvalidUTF8 = errors.New("text frame is not valid UTF-8")

// handleConnection runs the read/reply loop for one upgraded connection until
// the peer closes, the transport fails, or a reply cannot be sent. Frames are
// handled strictly in order: each reply is written before the next read.
func (s *Server) handleConnection(conn *websocket.Conn, remoteAddr string) error {
	logging.LogConnection(remoteAddr, "websocket_upgraded")

	defer func() {
		_ = conn.Close()
		logging.LogConnection(remoteAddr, "connection_closed")
	}()

	if s.config.ReadLimit > 0 {
		conn.SetReadLimit(s.config.ReadLimit)
	}

	messageNum := 0

	for {
		if s.config.IdleTimeout > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(s.config.IdleTimeout)); err != nil {
				return fmt.Errorf("set read deadline: %w", err)
			}
		}

		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			if code, ok := closeStatus(err); ok {
				logging.Info("Connection closed by client",
					zap.String("remote_addr", remoteAddr),
					zap.Int("close_code", code),
				)
				return nil
			}
			if s.isClosing() && errors.Is(err, net.ErrClosed) {
				logging.Info("Connection closed by server shutdown",
					zap.String("remote_addr", remoteAddr),
				)
				return nil
			}
			return fmt.Errorf("receive: %w", err)
		}

		messageNum++
		logging.LogWebSocketMessage(remoteAddr, "received", messageType, payload)
		s.capture.Record(remoteAddr, messageNum, DirectionInbound, messageType, payload)

		if messageType != websocket.TextMessage {
			logging.Info("Ignoring non-text message",
				zap.String("remote_addr", remoteAddr),
				zap.Int("message_num", messageNum),
				zap.Int("length", len(payload)),
			)
			continue
		}

		if !utf8.Valid(payload) {
			msg := websocket.FormatCloseMessage(websocket.CloseInvalidFramePayloadData, "invalid UTF-8")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			return fmt.Errorf("receive: %w", errInvalidUTF8)
		}

		reply := s.process(remoteAddr, payload)
		if err := s.send(conn, remoteAddr, messageNum, reply); err != nil {
			return err
		}
	}
}

// process decodes one text frame and applies it to the shared state. It
// always yields exactly one reply.
func (s *Server) process(remoteAddr string, payload []byte) protocol.ServerMessage {
	msg, err := protocol.Decode(payload)
	if err != nil {
		logging.Warn("Failed to decode message",
			zap.String("remote_addr", remoteAddr),
			zap.Error(err),
		)
		return protocol.InvalidFormatError()
	}

	logging.Debug("Decoded client message",
		zap.String("remote_addr", remoteAddr),
		zap.Stringer("message", msg),
	)

	if err := protocol.Dispatch(msg, s.cell); err != nil {
		logging.Error("Failed to apply message",
			zap.String("remote_addr", remoteAddr),
			zap.Error(err),
		)
		return protocol.InvalidFormatError()
	}
	return protocol.ReceivedAck()
}

// send encodes reply and writes it as a text frame.
func (s *Server) send(conn *websocket.Conn, remoteAddr string, messageNum int, reply protocol.ServerMessage) error {
	data, err := protocol.Encode(reply)
	if err != nil {
		return fmt.Errorf("encode reply: %w", err)
	}

	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}

	logging.LogWebSocketMessage(remoteAddr, "sent", websocket.TextMessage, data)
	s.capture.Record(remoteAddr, messageNum, DirectionOutbound, websocket.TextMessage, data)
	return nil
}

// closeStatus reports the close code when err is the peer closing the
// connection, including an abrupt drop without a close frame.
func closeStatus(err error) (int, bool) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code, true
	}
	return 0, false
}
