/*
Command roomhistory answers a single history query against the message store.

	roomhistory <room>         every message logged in room, oldest first
	roomhistory <room> <text>  messages in room whose text matches the regular expression text

Each matching message is printed to stdout as one JSON object per line, which is the contract
the chat server's process gateway reads when HISTORY_COMMAND points at this binary. Logs go to
stderr so they never mix with results.
*/
package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"growchat/internal/app/db"
	"growchat/internal/app/history"
	"growchat/internal/configs"
	"growchat/internal/pkg/logx"
)

// errNoRoom is reported when the command is run without a room.
var errNoRoom = errors.New("no room defined")

func main() {
	err := newRootCmd().Execute()

	switch {
	case err == nil:
	case errors.Is(err, errNoRoom):
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	default:
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var flagDSN string

	cmd := &cobra.Command{
		Use:           "roomhistory <room> [text]",
		Short:         "Print the logged messages of a room as JSON lines",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if _, ok := parseArgs(args); !ok {
				return errNoRoom
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, _ := parseArgs(args)
			return run(cmd, filter, flagDSN)
		},
	}

	cmd.Flags().StringVar(&flagDSN, "database-url", "", "PostgreSQL DSN (defaults to DATABASE_URL)")

	return cmd
}

func run(cmd *cobra.Command, filter history.Filter, dsn string) error {
	cfg, err := configs.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logx.InitGlobalLoggerWithWriter(os.Stderr, cfg.IsDevelopment())

	if dsn == "" {
		dsn = cfg.DatabaseDSN
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, dsn)
	if err != nil {
		return err
	}
	defer pool.Close()

	records, err := db.NewMessageStore(pool).Query(ctx, filter)
	if err != nil {
		logx.Error(err, "History query failed", "room", filter.Room, "search", filter.IsSearch())
		return err
	}

	return writeRecords(cmd.OutOrStdout(), records)
}

// parseArgs turns the positional arguments into a filter. Arguments past the search text are ignored.
func parseArgs(args []string) (history.Filter, bool) {
	switch {
	case len(args) == 0 || args[0] == "":
		return history.Filter{}, false
	case len(args) == 1:
		return history.Filter{Room: args[0]}, true
	default:
		return history.Filter{Room: args[0], Text: args[1]}, true
	}
}

// writeRecords prints one JSON object per line.
func writeRecords(out io.Writer, records []history.Record) error {
	w := bufio.NewWriter(out)
	encoder := json.NewEncoder(w)

	for _, record := range records {
		if err := encoder.Encode(record); err != nil {
			return fmt.Errorf("encode record %d: %w", record.ID, err)
		}
	}

	return w.Flush()
}
