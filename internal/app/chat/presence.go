package chat

import "growchat/internal/app/user"

// PresenceState is the lifecycle stage of a connection.
type PresenceState int

const (
	StateUnregistered PresenceState = iota
	StateRegistered
	StateInRoom
	StateDisconnected
)

func (s PresenceState) String() string {
	switch s {
	case StateUnregistered:
		return "unregistered"
	case StateRegistered:
		return "registered"
	case StateInRoom:
		return "in_room"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Connection is the coordinator's record of one live transport session.
type Connection struct {
	ID          string
	Identity    *user.Identity
	CurrentRoom string
	State       PresenceState

	// rooms lists every room the connection is a member of, in join order.
	// Apart from CurrentRoom it can only hold the connection's self-scoped room.
	rooms []string
}

// Rooms returns the rooms the connection is currently a member of.
func (c *Connection) Rooms() []string {
	return append([]string(nil), c.rooms...)
}

func (c *Connection) removeRoom(name string) {
	for i, room := range c.rooms {
		if room == name {
			c.rooms = append(c.rooms[:i], c.rooms[i+1:]...)
			return
		}
	}
}

func (c *Connection) hasRoom(name string) bool {
	for _, room := range c.rooms {
		if room == name {
			return true
		}
	}
	return false
}

// Coordinator enforces the single-active-room rule and keeps the registry and the
// directory consistent as connections join, switch rooms and disconnect.
type Coordinator struct {
	registry    *ConnectionRegistry
	directory   *RoomDirectory
	connections map[string]*Connection
}

// NewCoordinator creates a coordinator driving registry and directory.
func NewCoordinator(registry *ConnectionRegistry, directory *RoomDirectory) *Coordinator {
	return &Coordinator{
		registry:    registry,
		directory:   directory,
		connections: make(map[string]*Connection),
	}
}

// OnConnect creates a bare, unregistered connection record. A known id is left untouched.
func (c *Coordinator) OnConnect(connID string) *Connection {
	if conn, ok := c.connections[connID]; ok {
		return conn
	}

	conn := &Connection{ID: connID, State: StateUnregistered}
	c.connections[connID] = conn
	return conn
}

// OnUserConnectedToRoom registers identity for connID and moves the connection into target.
//
// It returns the rooms whose roster changed: every room the connection left, in the order it
// had joined them, followed by target. The connection's self-scoped room (a room named after
// its own id) is never left. A nil identity, an empty target or an unknown connection makes
// the call a no-op that returns nil.
func (c *Coordinator) OnUserConnectedToRoom(connID string, identity *user.Identity, target string) []string {
	conn, ok := c.connections[connID]
	if !ok || identity == nil || target == "" {
		return nil
	}

	c.registry.Register(connID, *identity)
	if registered, found := c.registry.Lookup(connID); found {
		conn.Identity = &registered
	}

	c.directory.Join(connID, target)
	if !conn.hasRoom(target) {
		conn.rooms = append(conn.rooms, target)
	}

	changed := make([]string, 0, len(conn.rooms))
	for _, room := range conn.Rooms() {
		if room == target || room == connID {
			continue
		}

		c.directory.Leave(connID, room)
		conn.removeRoom(room)
		changed = append(changed, room)
	}

	conn.CurrentRoom = target
	conn.State = StateInRoom

	return append(changed, target)
}

// OnDisconnect removes connID from the registry, from every room it belongs to, and from the
// coordinator. It returns the rooms the connection was swept out of, and false when the
// connection was unknown.
func (c *Coordinator) OnDisconnect(connID string) ([]string, bool) {
	conn, ok := c.connections[connID]
	if !ok {
		return nil, false
	}

	c.registry.Unregister(connID)

	left := conn.Rooms()
	for _, room := range left {
		c.directory.Leave(connID, room)
	}

	conn.rooms = nil
	conn.CurrentRoom = ""
	conn.State = StateDisconnected
	delete(c.connections, connID)

	return left, true
}

// Connection returns the live record for connID.
func (c *Coordinator) Connection(connID string) (*Connection, bool) {
	conn, ok := c.connections[connID]
	return conn, ok
}

// Roster resolves the members of room into their registered identities.
func (c *Coordinator) Roster(room string) []user.Identity {
	return c.registry.ListForRoom(c.directory.MembersOf(room))
}

// Len returns the number of live connections.
func (c *Coordinator) Len() int {
	return len(c.connections)
}
