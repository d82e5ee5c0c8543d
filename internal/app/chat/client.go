/*
Package chat contains the presence and routing core of the chat server.

This file defines the Client struct, representing an active WebSocket connection. It manages the
connection's lifecycle and its two message loops: ReadPump turns inbound frames into router events,
WritePump drains the outbound queue the router fills.
*/
package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"growchat/internal/pkg/errs"
	"growchat/internal/pkg/logx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a frame sent by the client.
	maxMessageSize = 8192

	// capacity of the outbound queue of one connection.
	sendQueueSize = 256
)

// ErrSendQueueFull is returned by Send when the outbound queue has no room left.
var ErrSendQueueFull = errors.New("client send queue full")

// ErrClientClosed is returned by Send after Close.
var ErrClientClosed = errors.New("client is closed")

// Client struct represents an active WebSocket connection.
type Client struct {
	// identifier assigned to the connection on upgrade.
	id string

	// underlying WebSocket connection object.
	conn *websocket.Conn

	// router receives every inbound event of this connection.
	router *Router

	// a buffered channel used to queue frames waiting to be sent to the client.
	send chan []byte

	// mu guards closed and the closing of send.
	mu     sync.Mutex
	closed bool

	// structured logger with connection context.
	logger zerolog.Logger
}

// NewClient constructs and returns a new Client instance.
func NewClient(id string, conn *websocket.Conn, router *Router) *Client {
	clientLogger := logx.Logger().With().
		Str("component", "client").
		Str("conn_id", id).
		Logger()

	return &Client{
		id:     id,
		conn:   conn,
		router: router,
		send:   make(chan []byte, sendQueueSize),
		logger: clientLogger,
	}
}

// ID returns the connection identifier.
func (c *Client) ID() string {
	return c.id
}

// Send queues frame for the write loop without blocking. A full queue drops the frame.
func (c *Client) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClientClosed
	}

	select {
	case c.send <- frame:
		return nil
	default:
		return fmt.Errorf("%w (%d queued)", ErrSendQueueFull, len(c.send))
	}
}

// Close closes the outbound queue; the write loop then sends a close frame and ends the connection.
// It is safe to call more than once.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.closed = true
	close(c.send)
}

// ReadPump handles reading messages from the WebSocket connection.
// It handles heartbeats (Pong), envelope parsing, and performs cleanup upon connection closure.
func (c *Client) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading message (Client close/going away)")
			}
			break
		}

		if err := c.processInboundFrame(frame); err != nil {
			c.logger.Debug().Err(err).Msg("Router stopped accepting events.")
			break
		}
	}
}

// cleanupOnDisconnect handles the necessary cleanup steps when the client's ReadPump terminates.
func (c *Client) cleanupOnDisconnect() {
	c.logger.Debug().Msg("Client connection cleanup starting.")

	c.router.Disconnect(c.id)

	if err := c.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		c.logger.Error().Err(err).Msg("Client connection close error")
	}
}

// processInboundFrame decodes one frame and hands it to the router.
// Undecodable frames are answered with an error event; only a closed router is returned as an error.
func (c *Client) processInboundFrame(frame []byte) error {
	var envelope Envelope

	if err := json.Unmarshal(frame, &envelope); err != nil || envelope.Event == "" {
		c.logger.Warn().Err(err).
			Int("frame_bytes", len(frame)).
			Msg("Client sent invalid envelope")

		return c.router.ReportError(c.id, errs.NewError(errs.ErrInvalidJSONFormat))
	}

	return c.router.Dispatch(c.id, envelope)
}

// WritePump handles writing frames from the Client.send channel to the WebSocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		// ensure the connection is closed on exit
		if err := c.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			c.logger.Error().Err(err).Msg("Client connection close error in WritePump")
		}
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if !c.writeQueuedFrame(frame, ok) {
				return
			}

		case <-ticker.C:
			if !c.writePingMessage() {
				return
			}
		}
	}
}

// writeQueuedFrame handles frames pulled from the send channel, writing them to the WebSocket.
// Returns true if the WritePump loop should continue, false if it should terminate.
func (c *Client) writeQueuedFrame(frame []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if !ok {
		if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
			c.logger.Debug().Err(err).Msg("Error writing close message")
		}
		return false
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		c.logger.Error().Err(err).Msg("Error writing message")
		return false
	}

	return true
}

// writePingMessage sends a periodic WebSocket Ping message to maintain the connection heartbeat.
// Returns false if the WritePump loop should terminate due to write failure.
func (c *Client) writePingMessage() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Error().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}
