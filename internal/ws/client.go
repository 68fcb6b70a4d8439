package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	errConnClosed     = errors.New("connection closed")
	errSendBufferFull = errors.New("send buffer full")
)

// clientConn owns the write side of a websocket. Writes go through a bounded
// queue drained by writePump, so a slow client never blocks its room.
type clientConn struct {
	id      string
	rawConn *websocket.Conn
	send    chan []byte
	done    chan struct{}
	once    sync.Once
	opts    Options
}

func newClientConn(id string, rawConn *websocket.Conn, opts Options) *clientConn {
	return &clientConn{
		id:      id,
		rawConn: rawConn,
		send:    make(chan []byte, opts.SendBuffer),
		done:    make(chan struct{}),
		opts:    opts,
	}
}

// Send queues msg without blocking. A full queue counts as a send failure.
func (c *clientConn) Send(msg []byte) error {
	select {
	case <-c.done:
		return errConnClosed
	default:
	}
	select {
	case c.send <- msg:
		return nil
	case <-c.done:
		return errConnClosed
	default:
		return errSendBufferFull
	}
}

// Close stops writePump, which closes the socket and unblocks the reader.
func (c *clientConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *clientConn) write(mt int, data []byte) error {
	_ = c.rawConn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
	return c.rawConn.WriteMessage(mt, data)
}

func (c *clientConn) writePump() {
	ticker := time.NewTicker(c.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.rawConn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg := <-c.send:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				zap.L().Debug("ws.write", zap.String("conn", c.id), zap.Error(err))
				c.Close()
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				zap.L().Debug("ws.ping", zap.String("conn", c.id), zap.Error(err))
				c.Close()
				return
			}
		}
	}
}
