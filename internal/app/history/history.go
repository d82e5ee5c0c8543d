/*
Package history defines the boundary between the chat core and the message archive.

Chat messages are written to the archive fire-and-forget through a Logger, and read back
through a Gateway, which answers either "everything logged in a room" or "messages in a room
whose text matches a pattern". Gateways are stateless adapters: a direct store query, an
external query process, or a Redis cache in front of either.
*/
package history

import (
	"context"
	"errors"
	"time"
)

// TimestampLayout renders logged message times as YYYY-MM-DD h:mm:ss (12-hour clock, no zone).
const TimestampLayout = "2006-01-02 3:04:05"

// ErrRoomRequired is returned by gateways when a query has no room.
var ErrRoomRequired = errors.New("history query requires a room")

// Record is one logged chat message as stored in and returned from the archive.
type Record struct {
	ID          int64  `json:"id,omitempty" db:"id"`
	Username    string `json:"username" db:"username"`
	MessageText string `json:"messageText" db:"message_text"`
	Room        string `json:"room" db:"room"`
	Timestamp   string `json:"timestamp" db:"sent_at"`
}

// NewRecord builds the archive record for a message sent by username to room at the given time.
func NewRecord(username, text, room string, at time.Time) Record {
	return Record{
		Username:    username,
		MessageText: text,
		Room:        room,
		Timestamp:   FormatTimestamp(at),
	}
}

// FormatTimestamp renders t in the archive's display format using the server's local time.
func FormatTimestamp(t time.Time) string {
	return t.Local().Format(TimestampLayout)
}

// Filter selects archive records. An empty Text selects the whole room.
type Filter struct {
	Room string
	Text string
}

// IsSearch reports whether the filter narrows the room by message text.
func (f Filter) IsSearch() bool {
	return f.Text != ""
}

// Args renders the filter as positional arguments: [room] or [room, text].
func (f Filter) Args() []string {
	if f.IsSearch() {
		return []string{f.Room, f.Text}
	}
	return []string{f.Room}
}

// Validate checks that the filter names a room.
func (f Filter) Validate() error {
	if f.Room == "" {
		return ErrRoomRequired
	}
	return nil
}

// Gateway answers read-only history queries.
type Gateway interface {
	Query(ctx context.Context, filter Filter) ([]Record, error)
}

// Logger appends chat messages to the archive.
type Logger interface {
	LogMessage(ctx context.Context, record Record) error
}
