package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"growchat/internal/app/history"
	"growchat/internal/pkg/logx"
)

const (
	insertMessageSQL = `INSERT INTO chat_messages (username, message_text, room, sent_at)
VALUES ($1, $2, $3, $4)`

	listRoomMessagesSQL = `SELECT id, username, message_text, room, sent_at
FROM chat_messages
WHERE room = $1
ORDER BY created_at, id`

	searchRoomMessagesSQL = `SELECT id, username, message_text, room, sent_at
FROM chat_messages
WHERE room = $1 AND message_text ~ $2
ORDER BY created_at, id`
)

// DBTX is the subset of pgx shared by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// MessageStore archives chat messages in PostgreSQL. It is both the message logger and
// the default history gateway.
type MessageStore struct {
	db     DBTX
	logger zerolog.Logger
}

// NewMessageStore creates a store on top of a pool, connection or transaction.
func NewMessageStore(db DBTX) *MessageStore {
	return &MessageStore{
		db:     db,
		logger: logx.Logger().With().Str("component", "message_store").Logger(),
	}
}

// LogMessage appends record to the archive.
func (s *MessageStore) LogMessage(ctx context.Context, record history.Record) error {
	if _, err := s.db.Exec(ctx, insertMessageSQL,
		record.Username,
		record.MessageText,
		record.Room,
		record.Timestamp,
	); err != nil {
		return fmt.Errorf("insert chat message for room %q: %w", record.Room, err)
	}

	return nil
}

// Query returns the room's messages in logging order, narrowed to those whose text matches
// filter.Text as a POSIX regular expression when it is set.
func (s *MessageStore) Query(ctx context.Context, filter history.Filter) ([]history.Record, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	var (
		rows pgx.Rows
		err  error
	)

	if filter.IsSearch() {
		rows, err = s.db.Query(ctx, searchRoomMessagesSQL, filter.Room, filter.Text)
	} else {
		rows, err = s.db.Query(ctx, listRoomMessagesSQL, filter.Room)
	}
	if err != nil {
		return nil, s.queryError(filter, err)
	}

	records, err := pgx.CollectRows(rows, pgx.RowToStructByName[history.Record])
	if err != nil {
		return nil, s.queryError(filter, err)
	}

	if records == nil {
		records = []history.Record{}
	}

	s.logger.Debug().
		Str("room", filter.Room).
		Bool("search", filter.IsSearch()).
		Int("results", len(records)).
		Msg("History query completed.")

	return records, nil
}

func (s *MessageStore) queryError(filter history.Filter, err error) error {
	if isInvalidRegex(err) {
		return fmt.Errorf("%w %q: %w", ErrInvalidPattern, filter.Text, err)
	}
	return fmt.Errorf("query history for room %q: %w", filter.Room, err)
}
