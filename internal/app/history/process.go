package history

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"

	"growchat/internal/pkg/logx"
)

// maxRecordLine bounds a single JSON record emitted by the history command.
const maxRecordLine = 1 << 20

// ProcessGateway answers queries by running an external command with the filter as
// positional arguments and reading one JSON record per line from its stdout.
type ProcessGateway struct {
	command string
	args    []string
	logger  zerolog.Logger
}

// NewProcessGateway creates a gateway for the given command line (program followed by fixed arguments).
func NewProcessGateway(commandLine []string) (*ProcessGateway, error) {
	if len(commandLine) == 0 || commandLine[0] == "" {
		return nil, errors.New("history command is empty")
	}

	return &ProcessGateway{
		command: commandLine[0],
		args:    append([]string(nil), commandLine[1:]...),
		logger:  logx.Logger().With().Str("component", "history_process").Logger(),
	}, nil
}

// Query runs the command for filter. A non-zero exit status or undecodable output fails the query.
func (g *ProcessGateway) Query(ctx context.Context, filter Filter) ([]Record, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	args := append(append([]string(nil), g.args...), filter.Args()...)
	cmd := exec.CommandContext(ctx, g.command, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("history command %s failed: %w: %s", g.command, err, strings.TrimSpace(stderr.String()))
	}

	records, err := decodeLines(out)
	if err != nil {
		return nil, fmt.Errorf("history command %s produced invalid output: %w", g.command, err)
	}

	g.logger.Debug().
		Str("room", filter.Room).
		Bool("search", filter.IsSearch()).
		Int("results", len(records)).
		Msg("History command completed.")

	return records, nil
}

// decodeLines parses newline-delimited JSON records, skipping blank lines.
func decodeLines(out []byte) ([]Record, error) {
	records := []Record{}

	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), maxRecordLine)

	line := 0
	for scanner.Scan() {
		line++

		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		var record Record
		if err := json.Unmarshal(raw, &record); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, record)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return records, nil
}
