package sink

import (
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// WebsocketSink adapts a websocket connection to the relay stream contract.
// Outbound frames go through a buffered channel drained by a single writer
// goroutine, so Send never touches the socket itself.
type WebsocketSink struct {
	id       string
	conn     *websocket.Conn
	log      *slog.Logger
	outbound chan []byte
	done     chan struct{}
	once     sync.Once
}

func NewWebsocketSink(log *slog.Logger, conn *websocket.Conn, bufferSize int, maxFrameSize int64) *WebsocketSink {
	s := &WebsocketSink{
		id:       uuid.NewString(),
		conn:     conn,
		log:      log,
		outbound: make(chan []byte, bufferSize),
		done:     make(chan struct{}),
	}
	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go s.writePump()
	return s
}

func (s *WebsocketSink) ID() string {
	return s.id
}

// Send queues payload as a JSON text frame. It fails once the sink is closed
// or when the queue stays full until ctx expires.
func (s *WebsocketSink) Send(ctx context.Context, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	select {
	case <-s.done:
		return errors.ErrConnectionClosed
	default:
	}
	select {
	case s.outbound <- data:
		return nil
	case <-s.done:
		return errors.ErrConnectionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive blocks for the next JSON frame. A frame that is not a JSON object
// yields ErrInvalidPayload; any transport error means the peer is gone.
func (s *WebsocketSink) Receive(ctx context.Context) (chat.InboundEvent, error) {
	stop := context.AfterFunc(ctx, func() {
		// Unblocks ReadMessage on shutdown.
		_ = s.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		kind, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("Websocket read failed", "connection_id", s.id, "error", err)
			}
			return chat.InboundEvent{}, fmt.Errorf("read frame: %v: %w", err, errors.ErrConnectionClosed)
		}
		if kind != websocket.TextMessage && kind != websocket.BinaryMessage {
			continue
		}
		var evt chat.InboundEvent
		if err = json.Unmarshal(data, &evt); err != nil {
			return chat.InboundEvent{}, fmt.Errorf("decode frame: %v: %w", err, errors.ErrInvalidPayload)
		}
		return evt, nil
	}
}

// Close sends a close frame with code and reason, then releases the socket.
// Only the first call has an effect.
func (s *WebsocketSink) Close(code int, reason string) error {
	var err error
	s.once.Do(func() {
		close(s.done)
		msg := websocket.FormatCloseMessage(code, reason)
		if writeErr := s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); writeErr != nil && writeErr != websocket.ErrCloseSent {
			s.log.Debug("Unable to send close frame", "connection_id", s.id, "error", writeErr)
		}
		err = s.conn.Close()
	})
	return err
}

func (s *WebsocketSink) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case data := <-s.outbound:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.log.Debug("Websocket write failed", "connection_id", s.id, "error", err)
				_ = s.Close(websocket.CloseGoingAway, "")
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				_ = s.Close(websocket.CloseGoingAway, "")
				return
			}
		}
	}
}
