package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoomDirectory_CreateRoomKeepsDuplicates(t *testing.T) {
	directory := NewRoomDirectory()

	directory.CreateRoom("Global")
	directory.CreateRoom("Global")

	assert.Equal(t, []string{"Global", "Global"}, directory.ListRooms())
	assert.Equal(t, 2, directory.Len())
}

func TestRoomDirectory_ListRoomsKeepsInsertionOrder(t *testing.T) {
	directory := NewRoomDirectory("Global")
	directory.CreateRoom("lobby")
	directory.CreateRoom("arena")

	rooms := directory.ListRooms()
	assert.Equal(t, []string{"Global", "lobby", "arena"}, rooms)

	rooms[0] = "changed"
	assert.Equal(t, "Global", directory.ListRooms()[0], "ListRooms must return a copy")
}

func TestRoomDirectory_CreateRoomDoesNotCreateMembers(t *testing.T) {
	directory := NewRoomDirectory()
	directory.CreateRoom("lobby")

	assert.Empty(t, directory.MembersOf("lobby"))
	assert.Zero(t, directory.OccupiedRooms())
}

func TestRoomDirectory_JoinAndLeave(t *testing.T) {
	directory := NewRoomDirectory()

	directory.Join("a", "lobby")
	directory.Join("b", "lobby")
	directory.Join("a", "lobby")

	assert.Equal(t, []string{"a", "b"}, directory.MembersOf("lobby"))
	assert.True(t, directory.IsMember("a", "lobby"))
	assert.Equal(t, 1, directory.OccupiedRooms())

	assert.True(t, directory.Leave("a", "lobby"))
	assert.False(t, directory.Leave("a", "lobby"))
	assert.False(t, directory.Leave("a", "unknown"))

	assert.Equal(t, []string{"b"}, directory.MembersOf("lobby"))
	assert.False(t, directory.IsMember("a", "lobby"))
}

func TestRoomDirectory_JoinIsIndependentOfNameList(t *testing.T) {
	directory := NewRoomDirectory("Global")

	directory.Join("a", "secret")

	assert.Equal(t, []string{"Global"}, directory.ListRooms())
	assert.Equal(t, []string{"a"}, directory.MembersOf("secret"))
}

func TestRoomDirectory_EmptyRoomIsNotRemoved(t *testing.T) {
	directory := NewRoomDirectory("Global")

	directory.Join("a", "Global")
	directory.Leave("a", "Global")

	assert.Equal(t, []string{"Global"}, directory.ListRooms())
	assert.Empty(t, directory.MembersOf("Global"))
	assert.Zero(t, directory.OccupiedRooms())
}

func TestRoomDirectory_MembersOfUnknownRoom(t *testing.T) {
	directory := NewRoomDirectory()

	members := directory.MembersOf("nowhere")

	assert.NotNil(t, members)
	assert.Empty(t, members)
}
