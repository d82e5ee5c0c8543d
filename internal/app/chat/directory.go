package chat

// RoomDirectory tracks the known room names and each room's member connections.
//
// The name list is append-only and keeps duplicates: creating an existing room lists it twice,
// and rooms are never removed, even when empty. Member sets are created lazily on first join
// and are independent of the name list. Like the registry, the directory belongs to the
// Router's run loop.
type RoomDirectory struct {
	names   []string
	members map[string]*memberSet
}

// memberSet is a set of connection ids that remembers join order.
type memberSet struct {
	order []string
	index map[string]struct{}
}

func newMemberSet() *memberSet {
	return &memberSet{index: make(map[string]struct{})}
}

func (s *memberSet) add(connID string) {
	if _, ok := s.index[connID]; ok {
		return
	}
	s.index[connID] = struct{}{}
	s.order = append(s.order, connID)
}

func (s *memberSet) remove(connID string) bool {
	if _, ok := s.index[connID]; !ok {
		return false
	}
	delete(s.index, connID)

	for i, id := range s.order {
		if id == connID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// NewRoomDirectory creates a directory whose name list starts with initial, in order.
func NewRoomDirectory(initial ...string) *RoomDirectory {
	return &RoomDirectory{
		names:   append([]string(nil), initial...),
		members: make(map[string]*memberSet),
	}
}

// CreateRoom appends name to the known-room list. Duplicates are kept.
func (d *RoomDirectory) CreateRoom(name string) {
	d.names = append(d.names, name)
}

// ListRooms returns the known room names in insertion order, duplicates included.
func (d *RoomDirectory) ListRooms() []string {
	return append(make([]string, 0, len(d.names)), d.names...)
}

// Join adds connID to the members of room name.
func (d *RoomDirectory) Join(connID, name string) {
	set, ok := d.members[name]
	if !ok {
		set = newMemberSet()
		d.members[name] = set
	}
	set.add(connID)
}

// Leave removes connID from room name. It reports whether connID was a member.
func (d *RoomDirectory) Leave(connID, name string) bool {
	set, ok := d.members[name]
	if !ok {
		return false
	}
	return set.remove(connID)
}

// MembersOf returns the members of room name in join order; empty for unknown or empty rooms.
func (d *RoomDirectory) MembersOf(name string) []string {
	set, ok := d.members[name]
	if !ok {
		return []string{}
	}
	return append(make([]string, 0, len(set.order)), set.order...)
}

// IsMember reports whether connID belongs to room name.
func (d *RoomDirectory) IsMember(connID, name string) bool {
	set, ok := d.members[name]
	if !ok {
		return false
	}
	_, member := set.index[connID]
	return member
}

// OccupiedRooms counts rooms that currently have at least one member.
func (d *RoomDirectory) OccupiedRooms() int {
	count := 0
	for _, set := range d.members {
		if len(set.order) > 0 {
			count++
		}
	}
	return count
}

// Len returns the length of the known-room list, duplicates included.
func (d *RoomDirectory) Len() int {
	return len(d.names)
}
