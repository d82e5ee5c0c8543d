package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHelperProcess is not a real test. It stands in for the external history command
// when re-executed by helperGateway.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	args := os.Args
	for i, arg := range args {
		if arg == "--" {
			args = args[i+1:]
			break
		}
	}

	switch os.Getenv("HISTORY_HELPER_MODE") {
	case "records":
		for i, text := range []string{"first", "second"} {
			rec := Record{ID: int64(i + 1), Username: "ana", MessageText: text, Room: args[0], Timestamp: "2024-03-09 2:05:07"}
			if len(args) > 1 {
				rec.MessageText = text + " " + args[1]
			}
			data, _ := json.Marshal(rec)
			fmt.Println(string(data))
			fmt.Println()
		}
	case "empty":
	case "fail":
		fmt.Fprintln(os.Stderr, "connection refused")
		os.Exit(3)
	case "garbage":
		fmt.Println("no room defined")
	}

	os.Exit(0)
}

func helperGateway(t *testing.T, mode string) *ProcessGateway {
	t.Helper()

	t.Setenv("GO_WANT_HELPER_PROCESS", "1")
	t.Setenv("HISTORY_HELPER_MODE", mode)

	gw, err := NewProcessGateway([]string{os.Args[0], "-test.run=TestHelperProcess", "--"})
	require.NoError(t, err)
	return gw
}

func TestProcessGateway_RoomQuery(t *testing.T) {
	gw := helperGateway(t, "records")

	records, err := gw.Query(context.Background(), Filter{Room: "lobby"})
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, "lobby", records[0].Room)
	assert.Equal(t, "first", records[0].MessageText)
	assert.Equal(t, int64(2), records[1].ID)
}

func TestProcessGateway_SearchPassesText(t *testing.T) {
	gw := helperGateway(t, "records")

	records, err := gw.Query(context.Background(), Filter{Room: "lobby", Text: "needle"})
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, "first needle", records[0].MessageText)
}

func TestProcessGateway_EmptyResult(t *testing.T) {
	gw := helperGateway(t, "empty")

	records, err := gw.Query(context.Background(), Filter{Room: "lobby"})
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestProcessGateway_Failures(t *testing.T) {
	for _, mode := range []string{"fail", "garbage"} {
		t.Run(mode, func(t *testing.T) {
			gw := helperGateway(t, mode)

			records, err := gw.Query(context.Background(), Filter{Room: "lobby"})
			assert.Error(t, err)
			assert.Nil(t, records)
		})
	}
}

func TestProcessGateway_FailureIncludesStderr(t *testing.T) {
	gw := helperGateway(t, "fail")

	_, err := gw.Query(context.Background(), Filter{Room: "lobby"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestProcessGateway_RequiresRoom(t *testing.T) {
	gw := helperGateway(t, "records")

	_, err := gw.Query(context.Background(), Filter{})
	assert.ErrorIs(t, err, ErrRoomRequired)
}

func TestNewProcessGateway_Empty(t *testing.T) {
	_, err := NewProcessGateway(nil)
	assert.Error(t, err)

	_, err = NewProcessGateway([]string{""})
	assert.Error(t, err)
}

func TestDecodeLines(t *testing.T) {
	records, err := decodeLines([]byte("{\"username\":\"a\",\"room\":\"r\",\"_id\":{\"$oid\":\"x\"}}\n\n  \n{\"username\":\"b\",\"room\":\"r\"}\n"))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "b", records[1].Username)

	_, err = decodeLines([]byte("{\"username\":\"a\"}\nnot json\n"))
	assert.ErrorContains(t, err, "line 2")
}
