package server

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/hexforge/hexforge/internal/config"
)

// wsSurface adapts one websocket connection to the bridge.Surface
// interface. Writes are serialized through a mutex; gorilla connections do
// not support concurrent writers.
type wsSurface struct {
	id           string
	conn         *websocket.Conn
	writeTimeout time.Duration
	writeMu      sync.Mutex
	closed       int32
}

func newWSSurface(conn *websocket.Conn, cfg config.Config) *wsSurface {
	if cfg.MaxMessageSize > 0 {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}
	return &wsSurface{
		id:           uuid.NewString(),
		conn:         conn,
		writeTimeout: cfg.WriteTimeout,
	}
}

func (s *wsSurface) ID() string {
	return s.id
}

func (s *wsSurface) Send(data []byte) error {
	if atomic.LoadInt32(&s.closed) == 1 {
		return errors.New("surface is closed")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.writeTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *wsSurface) Close(reason string) error {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil
	}

	s.writeMu.Lock()
	closeMessage := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	_ = s.conn.WriteControl(websocket.CloseMessage, closeMessage, time.Now().Add(time.Second))
	s.writeMu.Unlock()

	return s.conn.Close()
}
