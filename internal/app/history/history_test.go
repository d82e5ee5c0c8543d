package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatTimestamp_TwelveHourClock(t *testing.T) {
	tests := []struct {
		at   time.Time
		want string
	}{
		{at: time.Date(2024, 3, 9, 14, 5, 7, 0, time.Local), want: "2024-03-09 2:05:07"},
		{at: time.Date(2024, 12, 31, 0, 0, 0, 0, time.Local), want: "2024-12-31 12:00:00"},
		{at: time.Date(2024, 1, 1, 9, 59, 59, 0, time.Local), want: "2024-01-01 9:59:59"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatTimestamp(tt.at))
	}
}

func TestNewRecord(t *testing.T) {
	at := time.Date(2024, 3, 9, 14, 5, 7, 0, time.Local)

	rec := NewRecord("ana", "hi", "lobby", at)

	assert.Equal(t, Record{
		Username:    "ana",
		MessageText: "hi",
		Room:        "lobby",
		Timestamp:   "2024-03-09 2:05:07",
	}, rec)
}

func TestFilter(t *testing.T) {
	room := Filter{Room: "lobby"}
	assert.False(t, room.IsSearch())
	assert.Equal(t, []string{"lobby"}, room.Args())
	assert.NoError(t, room.Validate())

	search := Filter{Room: "lobby", Text: "hel+o"}
	assert.True(t, search.IsSearch())
	assert.Equal(t, []string{"lobby", "hel+o"}, search.Args())

	assert.ErrorIs(t, Filter{Text: "x"}.Validate(), ErrRoomRequired)
}
