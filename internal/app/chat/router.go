/*
Package chat contains the presence and routing core of the chat server.

This file defines the Router, the single owner of all presence state. One goroutine drains the
event queue and is the only code that touches the ConnectionRegistry, the RoomDirectory and the
Coordinator, so none of them carries a lock. Work that waits on a collaborator (message logging,
history queries) runs in its own goroutine; history results come back through the same queue.
*/
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"growchat/internal/app/history"
	"growchat/internal/pkg/errs"
	"growchat/internal/pkg/logx"
	"growchat/internal/pkg/randx"
	"growchat/internal/pkg/req"
)

const (
	// eventQueueSize is the capacity of the router's inbound event queue.
	eventQueueSize = 1024

	// MaxContentBytes is the maximum allowed size of a chat or private message text.
	MaxContentBytes = 5000

	// MaxRoomNameBytes is the maximum allowed size of a room name.
	MaxRoomNameBytes = 64

	// logMessageTimeout bounds a single archive write.
	logMessageTimeout = 5 * time.Second
)

// ErrRouterClosed is returned when an event is submitted after Shutdown.
var ErrRouterClosed = errors.New("chat router is shut down")

// Sink is the outbound side of one connection. Send must not block; Close ends the connection.
type Sink interface {
	Send(frame []byte) error
	Close()
}

// Stats is a snapshot of the router's state.
type Stats struct {
	Connections     int `json:"connections"`
	RegisteredUsers int `json:"registeredUsers"`
	KnownRooms      int `json:"knownRooms"`
	OccupiedRooms   int `json:"occupiedRooms"`
}

type connectEvent struct {
	connID string
	sink   Sink
}

type disconnectEvent struct {
	connID string
}

type inboundEvent struct {
	connID   string
	envelope Envelope
}

type errorEvent struct {
	connID string
	event  EventName
	err    *errs.CustomError
}

type historyEvent struct {
	connID  string
	filter  history.Filter
	records []history.Record
	err     error
}

type statsEvent struct {
	reply chan Stats
}

type handlerFunc func(connID string, data json.RawMessage) *errs.CustomError

// Router dispatches inbound events and fans outbound events out to connections.
type Router struct {
	// events is the queue drained by the run loop.
	events chan any

	// quit is closed by Shutdown; done is closed when the run loop has exited.
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	// ctx is canceled on Shutdown and scopes outstanding history queries.
	ctx    context.Context
	cancel context.CancelFunc

	// tasks tracks logging and history goroutines.
	tasks sync.WaitGroup

	registry  *ConnectionRegistry
	directory *RoomDirectory
	presence  *Coordinator

	// sinks holds the outbound side of every live connection.
	sinks map[string]Sink

	handlers map[EventName]handlerFunc

	messageLog history.Logger
	gateway    history.Gateway

	now    func() time.Time
	logger zerolog.Logger
}

// NewRouter creates a Router seeded with defaultRooms and starts its run loop.
// messageLog receives every chat message; gateway answers history requests. Either may be nil,
// in which case messages are not archived or history requests fail.
func NewRouter(messageLog history.Logger, gateway history.Gateway, defaultRooms []string) *Router {
	r := newRouter(messageLog, gateway, defaultRooms)

	go r.run()

	return r
}

func newRouter(messageLog history.Logger, gateway history.Gateway, defaultRooms []string) *Router {
	ctx, cancel := context.WithCancel(context.Background())

	registry := NewConnectionRegistry()
	directory := NewRoomDirectory(defaultRooms...)

	r := &Router{
		events:     make(chan any, eventQueueSize),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
		registry:   registry,
		directory:  directory,
		presence:   NewCoordinator(registry, directory),
		sinks:      make(map[string]Sink),
		messageLog: messageLog,
		gateway:    gateway,
		now:        time.Now,
		logger:     logx.Logger().With().Str("component", "router").Logger(),
	}

	r.handlers = map[EventName]handlerFunc{
		EventUserConnectedToRoom: r.handleUserConnectedToRoom,
		EventChatMessage:         r.handleChatMessage,
		EventPrivateMessage:      r.handlePrivateMessage,
		EventCreateRoom:          r.handleCreateRoom,
		EventRequestRoomList:     r.handleRequestRoomList,
		EventRequestUserList:     r.handleRequestUserList,
		EventRequestRoomHistory:  r.handleRequestRoomHistory,
		EventSearchRoomHistory:   r.handleSearchRoomHistory,
	}

	return r
}

// Connect registers a new connection and its outbound sink.
func (r *Router) Connect(connID string, sink Sink) error {
	return r.enqueue(connectEvent{connID: connID, sink: sink})
}

// Dispatch submits an inbound envelope received on connID.
func (r *Router) Dispatch(connID string, envelope Envelope) error {
	return r.enqueue(inboundEvent{connID: connID, envelope: envelope})
}

// Disconnect removes connID from every structure and notifies the other connections.
func (r *Router) Disconnect(connID string) {
	if err := r.enqueue(disconnectEvent{connID: connID}); err != nil {
		r.logger.Debug().Str("conn_id", connID).Msg("Disconnect after shutdown ignored.")
	}
}

// ReportError sends err to connID as an error event, in order with its other events.
func (r *Router) ReportError(connID string, err *errs.CustomError) error {
	return r.enqueue(errorEvent{connID: connID, err: err})
}

// Stats returns a snapshot of the router's state.
func (r *Router) Stats(ctx context.Context) (Stats, error) {
	reply := make(chan Stats, 1)

	if err := r.enqueueContext(ctx, statsEvent{reply: reply}); err != nil {
		return Stats{}, err
	}

	select {
	case stats := <-reply:
		return stats, nil
	case <-r.done:
		return Stats{}, ErrRouterClosed
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	}
}

// Shutdown stops the run loop, closes every connection, cancels outstanding history
// queries and waits for background work to finish. It is safe to call more than once.
func (r *Router) Shutdown() {
	r.stopOnce.Do(func() {
		r.logger.Info().Msg("Shutting down router...")

		close(r.quit)
		r.cancel()
		<-r.done
		r.tasks.Wait()

		r.logger.Info().Msg("Router shutdown complete.")
	})
}

func (r *Router) enqueue(ev any) error {
	return r.enqueueContext(context.Background(), ev)
}

// enqueueContext waits for queue space until ctx ends or the router shuts down.
func (r *Router) enqueueContext(ctx context.Context, ev any) error {
	select {
	case <-r.quit:
		return ErrRouterClosed
	default:
	}

	select {
	case r.events <- ev:
		return nil
	case <-r.quit:
		return ErrRouterClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the router's event loop.
func (r *Router) run() {
	defer close(r.done)

	r.logger.Info().Msg("Router loop started.")

	for {
		select {
		case <-r.quit:
			r.closeAll()
			r.logger.Info().Msg("Router loop stopped.")
			return

		case ev := <-r.events:
			r.handle(ev)
		}
	}
}

// handle applies one event. A panicking handler is logged and the loop keeps running.
func (r *Router) handle(ev any) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().Interface("panic", rec).Msg("Recovered from panic while handling event.")
		}
	}()

	switch ev := ev.(type) {
	case connectEvent:
		r.handleConnect(ev)
	case disconnectEvent:
		r.handleDisconnect(ev.connID)
	case inboundEvent:
		r.handleInbound(ev.connID, ev.envelope)
	case errorEvent:
		r.sendError(ev.connID, ev.event, ev.err)
	case historyEvent:
		r.deliverHistory(ev)
	case statsEvent:
		ev.reply <- r.stats()
	default:
		r.logger.Warn().Type("event_type", ev).Msg("Dropping unknown router event.")
	}
}

func (r *Router) handleConnect(ev connectEvent) {
	if _, exists := r.sinks[ev.connID]; exists {
		r.logger.Warn().Str("conn_id", ev.connID).Msg("Connection id already in use. Closing new connection.")
		ev.sink.Close()
		return
	}

	r.sinks[ev.connID] = ev.sink
	r.presence.OnConnect(ev.connID)

	r.logger.Info().
		Str("conn_id", ev.connID).
		Int("total_connections", len(r.sinks)).
		Msg("Connection opened.")

	r.send(ev.connID, EventConnectionEstablished, ConnectionEstablishedPayload{ID: ev.connID})
}

func (r *Router) handleDisconnect(connID string) {
	sink, hadSink := r.sinks[connID]
	if hadSink {
		delete(r.sinks, connID)
		sink.Close()
	}

	left, known := r.presence.OnDisconnect(connID)
	if !hadSink && !known {
		return
	}

	r.logger.Info().
		Str("conn_id", connID).
		Strs("left_rooms", left).
		Int("total_connections", len(r.sinks)).
		Msg("Connection closed.")

	r.toAll("", EventUserDisconnected, connID)

	for _, room := range left {
		r.toRoom(room, "", EventRoomUserListUpdated, r.presence.Roster(room))
	}
}

func (r *Router) handleInbound(connID string, envelope Envelope) {
	if _, ok := r.presence.Connection(connID); !ok {
		r.logger.Warn().Str("conn_id", connID).Str("event", string(envelope.Event)).Msg("Event from unknown connection dropped.")
		return
	}

	handler, ok := r.handlers[envelope.Event]
	if !ok {
		r.sendError(connID, envelope.Event, errs.NewError(errs.ErrUnsupportedEvent, envelope.Event))
		return
	}

	if err := handler(connID, envelope.Data); err != nil {
		r.sendError(connID, envelope.Event, err)
	}
}

func (r *Router) handleUserConnectedToRoom(connID string, data json.RawMessage) *errs.CustomError {
	var payload UserConnectedToRoomPayload
	if err := req.BindPayload(data, &payload); err != nil {
		return err
	}

	if payload.User == nil || payload.User.IsZero() {
		return errs.NewError(errs.ErrInvalidParams)
	}

	if err := validateRoomName(payload.Room); err != nil {
		return err
	}

	changed := r.presence.OnUserConnectedToRoom(connID, payload.User, payload.Room)

	r.logger.Debug().
		Str("conn_id", connID).
		Str("room", payload.Room).
		Strs("changed_rooms", changed).
		Msg("Connection moved to room.")

	for _, room := range changed {
		r.toRoom(room, connID, EventRoomUserListUpdated, r.presence.Roster(room))
	}

	return nil
}

func (r *Router) handleChatMessage(connID string, data json.RawMessage) *errs.CustomError {
	var message MessagePayload
	if err := req.BindPayload(data, &message); err != nil {
		return err
	}

	if err := validateRoomName(message.Recipient); err != nil {
		return err
	}

	if err := r.stampMessage(connID, &message); err != nil {
		return err
	}

	r.toRoom(message.Recipient, connID, EventMessageReceived, message)

	r.logMessage(history.NewRecord(message.User.Name, message.Text, message.Recipient, r.now()))

	return nil
}

func (r *Router) handlePrivateMessage(connID string, data json.RawMessage) *errs.CustomError {
	var message MessagePayload
	if err := req.BindPayload(data, &message); err != nil {
		return err
	}

	if message.Text == "" || message.Recipient == "" || message.Recipient == connID {
		return errs.NewError(errs.ErrInvalidParams)
	}

	if _, ok := r.sinks[message.Recipient]; !ok {
		return errs.NewError(errs.ErrRecipientNotFound)
	}

	if err := r.stampMessage(connID, &message); err != nil {
		return err
	}

	r.send(message.Recipient, EventPrivateMessageReceived, message)

	return nil
}

// stampMessage validates a client message and fills the server-assigned fields.
// A registered connection always speaks with its registered identity.
func (r *Router) stampMessage(connID string, message *MessagePayload) *errs.CustomError {
	if len(message.Text) > MaxContentBytes {
		return errs.NewError(errs.ErrMessageContentTooLong, MaxContentBytes)
	}

	if identity, ok := r.registry.Lookup(connID); ok {
		message.User = &identity
	} else if message.User == nil || message.User.IsZero() {
		return errs.NewError(errs.ErrInvalidParams)
	}

	message.ID = randx.MessageID()
	message.From = connID
	message.Timestamp = r.now().UnixMilli()

	return nil
}

func (r *Router) handleCreateRoom(connID string, data json.RawMessage) *errs.CustomError {
	var payload CreateRoomPayload
	if err := req.BindPayload(data, &payload); err != nil {
		return err
	}

	if err := validateRoomName(payload.Name); err != nil {
		return err
	}

	r.directory.CreateRoom(payload.Name)

	r.logger.Info().Str("room", payload.Name).Str("conn_id", connID).Msg("Room created.")

	r.toAll(connID, EventRoomAdded, payload.Name)

	return nil
}

func (r *Router) handleRequestRoomList(connID string, _ json.RawMessage) *errs.CustomError {
	r.send(connID, EventFullRoomList, r.directory.ListRooms())
	return nil
}

func (r *Router) handleRequestUserList(connID string, data json.RawMessage) *errs.CustomError {
	room, err := bindRoomName(data)
	if err != nil {
		return err
	}

	r.send(connID, EventRoomUserList, r.presence.Roster(room))
	return nil
}

func (r *Router) handleRequestRoomHistory(connID string, data json.RawMessage) *errs.CustomError {
	room, err := bindRoomName(data)
	if err != nil {
		return err
	}

	return r.queryHistory(connID, history.Filter{Room: room})
}

func (r *Router) handleSearchRoomHistory(connID string, data json.RawMessage) *errs.CustomError {
	var payload SearchRoomHistoryPayload
	if err := req.BindPayload(data, &payload); err != nil {
		return err
	}

	if err := validateRoomName(payload.Room); err != nil {
		return err
	}

	if payload.Text == "" {
		return errs.NewError(errs.ErrInvalidParams)
	}

	return r.queryHistory(connID, history.Filter{Room: payload.Room, Text: payload.Text})
}

// queryHistory runs filter against the gateway in the background. The result is posted back
// to the queue and delivered to connID if it is still connected.
func (r *Router) queryHistory(connID string, filter history.Filter) *errs.CustomError {
	if r.gateway == nil {
		return errs.NewError(errs.ErrHistoryUnavailable)
	}

	r.tasks.Add(1)

	go func() {
		defer r.tasks.Done()

		records, err := r.gateway.Query(r.ctx, filter)

		if enqueueErr := r.enqueue(historyEvent{connID: connID, filter: filter, records: records, err: err}); enqueueErr != nil {
			r.logger.Debug().Str("conn_id", connID).Msg("History result discarded after shutdown.")
		}
	}()

	return nil
}

func (r *Router) deliverHistory(ev historyEvent) {
	if _, ok := r.sinks[ev.connID]; !ok {
		r.logger.Debug().Str("conn_id", ev.connID).Msg("History requester is gone. Result dropped.")
		return
	}

	event := EventRequestRoomHistory
	if ev.filter.IsSearch() {
		event = EventSearchRoomHistory
	}

	if ev.err != nil {
		r.logger.Error().Err(ev.err).
			Str("conn_id", ev.connID).
			Str("room", ev.filter.Room).
			Msg("History query failed.")
		r.sendError(ev.connID, event, errs.NewError(errs.ErrHistoryUnavailable))
		return
	}

	records := ev.records
	if records == nil {
		records = []history.Record{}
	}

	r.send(ev.connID, EventRoomHistory, records)
}

// logMessage archives record in the background. Failures are logged and never retried.
func (r *Router) logMessage(record history.Record) {
	if r.messageLog == nil {
		return
	}

	r.tasks.Add(1)

	go func() {
		defer r.tasks.Done()

		ctx, cancel := context.WithTimeout(context.Background(), logMessageTimeout)
		defer cancel()

		if err := r.messageLog.LogMessage(ctx, record); err != nil {
			r.logger.Error().Err(err).
				Str("room", record.Room).
				Str("username", record.Username).
				Msg("Failed to log chat message.")
		}
	}()
}

func (r *Router) stats() Stats {
	return Stats{
		Connections:     len(r.sinks),
		RegisteredUsers: r.registry.Len(),
		KnownRooms:      r.directory.Len(),
		OccupiedRooms:   r.directory.OccupiedRooms(),
	}
}

// send delivers one event to a single connection.
func (r *Router) send(connID string, event EventName, data any) {
	sink, ok := r.sinks[connID]
	if !ok {
		return
	}

	frame, err := encodeFrame(event, data)
	if err != nil {
		r.logger.Error().Err(err).Str("event", string(event)).Msg("Failed to encode outbound event.")
		return
	}

	r.deliver(connID, sink, frame)
}

// toRoom delivers one event to every member of room except the connection except.
func (r *Router) toRoom(room, except string, event EventName, data any) {
	members := r.directory.MembersOf(room)
	if len(members) == 0 {
		return
	}

	frame, err := encodeFrame(event, data)
	if err != nil {
		r.logger.Error().Err(err).Str("event", string(event)).Msg("Failed to encode outbound event.")
		return
	}

	for _, connID := range members {
		if connID == except {
			continue
		}
		if sink, ok := r.sinks[connID]; ok {
			r.deliver(connID, sink, frame)
		}
	}
}

// toAll delivers one event to every connection except the connection except.
func (r *Router) toAll(except string, event EventName, data any) {
	frame, err := encodeFrame(event, data)
	if err != nil {
		r.logger.Error().Err(err).Str("event", string(event)).Msg("Failed to encode outbound event.")
		return
	}

	for connID, sink := range r.sinks {
		if connID == except {
			continue
		}
		r.deliver(connID, sink, frame)
	}
}

func (r *Router) deliver(connID string, sink Sink, frame []byte) {
	if err := sink.Send(frame); err != nil {
		r.logger.Warn().Err(err).Str("conn_id", connID).Msg("Dropping outbound frame.")
	}
}

func (r *Router) sendError(connID string, event EventName, err *errs.CustomError) {
	if err == nil {
		return
	}

	r.logger.Debug().
		Str("conn_id", connID).
		Str("event", string(event)).
		Int("code", err.Code).
		Msg("Rejecting client request.")

	r.send(connID, EventError, ErrorPayload{Code: err.Code, Message: err.Message, Event: event})
}

func (r *Router) closeAll() {
	for connID, sink := range r.sinks {
		sink.Close()
		delete(r.sinks, connID)
	}
}

// bindRoomName decodes a payload that is a bare room-name string.
func bindRoomName(data json.RawMessage) (string, *errs.CustomError) {
	var room string
	if err := req.BindPayload(data, &room); err != nil {
		return "", err
	}

	if err := validateRoomName(room); err != nil {
		return "", err
	}

	return room, nil
}

func validateRoomName(name string) *errs.CustomError {
	if name == "" || len(name) > MaxRoomNameBytes || !utf8.ValidString(name) {
		return errs.NewError(errs.ErrInvalidParams)
	}
	return nil
}

