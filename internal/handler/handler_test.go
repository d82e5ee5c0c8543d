package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"growchat/internal/app/chat"
	"growchat/internal/app/history"
	"growchat/internal/configs"
	"growchat/internal/pkg/errs"
	"growchat/internal/pkg/limiter"
	"growchat/internal/pkg/resp"
)

// emptyArchive is a history backend with no records.
type emptyArchive struct{}

func (emptyArchive) Query(ctx context.Context, filter history.Filter) ([]history.Record, error) {
	return nil, nil
}

type frame struct {
	Event chat.EventName  `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T, cfg *configs.AppConfig) *httptest.Server {
	t.Helper()

	if cfg.IndexPath == "" {
		cfg.IndexPath = filepath.Join(t.TempDir(), "index.html")
		require.NoError(t, os.WriteFile(cfg.IndexPath, []byte("<h1>Grow Chat</h1>"), 0o644))
	}

	return newTestServerWithLimiter(t, cfg, limiter.NewIPRateLimiter(rate.Limit(ConnectRate), ConnectBurst))
}

func newTestServerWithLimiter(t *testing.T, cfg *configs.AppConfig, connectLimiter *limiter.IPRateLimiter) *httptest.Server {
	t.Helper()

	router := chat.NewRouter(nil, emptyArchive{}, []string{"Global"})

	srv := httptest.NewServer(Router(&AppDeps{Router: router, Config: cfg, ConnectLimiter: connectLimiter}))
	t.Cleanup(func() {
		srv.Close()
		router.Shutdown()
		connectLimiter.Stop()
	})

	return srv
}

func devConfig() *configs.AppConfig {
	return &configs.AppConfig{Environment: "development"}
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

// dial opens a WebSocket connection and returns it with the id the server assigned.
func dial(t *testing.T, srv *httptest.Server) (*websocket.Conn, string) {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	var established chat.ConnectionEstablishedPayload
	require.NoError(t, json.Unmarshal(readUntil(t, conn, chat.EventConnectionEstablished, nil), &established))
	require.NotEmpty(t, established.ID)

	return conn, established.ID
}

func send(t *testing.T, conn *websocket.Conn, event chat.EventName, data any) {
	t.Helper()

	require.NoError(t, conn.WriteJSON(map[string]any{"event": event, "data": data}))
}

// readUntil reads frames until one named event arrives, appending every skipped frame to skipped.
func readUntil(t *testing.T, conn *websocket.Conn, event chat.EventName, skipped *[]frame) json.RawMessage {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))

	for {
		var f frame
		require.NoError(t, conn.ReadJSON(&f), "waiting for %s", event)

		if f.Event == event {
			return f.Data
		}
		if skipped != nil {
			*skipped = append(*skipped, f)
		}
	}
}

// joinRoom moves conn into room and waits until the server has applied the move.
func joinRoom(t *testing.T, conn *websocket.Conn, name, room string) {
	t.Helper()

	send(t, conn, chat.EventUserConnectedToRoom, map[string]any{"user": map[string]string{"name": name}, "room": room})
	send(t, conn, chat.EventRequestUserList, room)
	readUntil(t, conn, chat.EventRoomUserList, nil)
}

func TestWebSocket_LobbyChat(t *testing.T) {
	srv := newTestServer(t, devConfig())

	alice, _ := dial(t, srv)
	bob, bobID := dial(t, srv)

	joinRoom(t, alice, "alice", "lobby")
	joinRoom(t, bob, "bob", "lobby")

	send(t, bob, chat.EventChatMessage, map[string]any{"user": map[string]string{"name": "bob"}, "text": "hi", "recipient": "lobby"})

	var message chat.MessagePayload
	require.NoError(t, json.Unmarshal(readUntil(t, alice, chat.EventMessageReceived, nil), &message))
	assert.Equal(t, "hi", message.Text)
	assert.Equal(t, "lobby", message.Recipient)
	assert.Equal(t, bobID, message.From)
	assert.Equal(t, "bob", message.User.Name)

	var skipped []frame
	send(t, bob, chat.EventRequestRoomList, nil)
	rooms := readUntil(t, bob, chat.EventFullRoomList, &skipped)
	assert.JSONEq(t, `["Global"]`, string(rooms))

	for _, f := range skipped {
		assert.NotEqual(t, chat.EventMessageReceived, f.Event, "sender must not receive its own message")
	}
}

func TestWebSocket_EmptyRoomHistory(t *testing.T) {
	srv := newTestServer(t, devConfig())
	conn, _ := dial(t, srv)

	send(t, conn, chat.EventRequestRoomHistory, "lobby")

	assert.JSONEq(t, `[]`, string(readUntil(t, conn, chat.EventRoomHistory, nil)))
}

func TestWebSocket_PrivateMessageByConnectionID(t *testing.T) {
	srv := newTestServer(t, devConfig())

	alice, _ := dial(t, srv)
	bob, bobID := dial(t, srv)
	joinRoom(t, alice, "alice", "lobby")

	send(t, alice, chat.EventPrivateMessage, map[string]any{"text": "psst", "recipient": bobID})

	var message chat.MessagePayload
	require.NoError(t, json.Unmarshal(readUntil(t, bob, chat.EventPrivateMessageReceived, nil), &message))
	assert.Equal(t, "psst", message.Text)
	assert.Equal(t, "alice", message.User.Name)
}

func TestWebSocket_DisconnectIsBroadcast(t *testing.T) {
	srv := newTestServer(t, devConfig())

	alice, aliceID := dial(t, srv)
	bob, _ := dial(t, srv)
	joinRoom(t, alice, "alice", "lobby")
	joinRoom(t, bob, "bob", "lobby")

	require.NoError(t, alice.Close())

	assert.JSONEq(t, `"`+aliceID+`"`, string(readUntil(t, bob, chat.EventUserDisconnected, nil)))

	var roster []map[string]any
	require.NoError(t, json.Unmarshal(readUntil(t, bob, chat.EventRoomUserListUpdated, nil), &roster))
	require.Len(t, roster, 1)
	assert.Equal(t, "bob", roster[0]["name"])
}

func TestWebSocket_MalformedFrames(t *testing.T) {
	srv := newTestServer(t, devConfig())
	conn, _ := dial(t, srv)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))

	var payload chat.ErrorPayload
	require.NoError(t, json.Unmarshal(readUntil(t, conn, chat.EventError, nil), &payload))
	assert.Equal(t, errs.ErrInvalidJSONFormat, payload.Code)

	send(t, conn, chat.EventUserConnectedToRoom, map[string]any{"room": "lobby"})

	require.NoError(t, json.Unmarshal(readUntil(t, conn, chat.EventError, nil), &payload))
	assert.Equal(t, errs.ErrInvalidParams, payload.Code)
	assert.Equal(t, chat.EventUserConnectedToRoom, payload.Event)

	// The connection stays usable after rejected requests.
	send(t, conn, chat.EventRequestRoomList, nil)
	readUntil(t, conn, chat.EventFullRoomList, nil)
}

func TestWebSocket_OriginCheckInProduction(t *testing.T) {
	srv := newTestServer(t, &configs.AppConfig{
		Environment:    "production",
		AllowedOrigins: []string{"https://chat.example.com"},
	})

	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	_, res, err := websocket.DefaultDialer.Dial(wsURL(srv), header)
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	header = http.Header{"Origin": []string{"https://chat.example.com"}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), header)
	require.NoError(t, err)
	conn.Close()

	header = http.Header{"Origin": []string{srv.URL}}
	conn, _, err = websocket.DefaultDialer.Dial(wsURL(srv), header)
	require.NoError(t, err, "same-origin pages may always connect")
	conn.Close()
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, devConfig())
	dial(t, srv)

	res, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer res.Body.Close()

	require.Equal(t, http.StatusOK, res.StatusCode)

	var body struct {
		resp.JSONResponse
		Data struct {
			Status      string `json:"status"`
			Connections int    `json:"connections"`
			KnownRooms  int    `json:"knownRooms"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, 0, body.Code)
	assert.Equal(t, "ok", body.Data.Status)
	assert.Equal(t, 1, body.Data.Connections)
	assert.Equal(t, 1, body.Data.KnownRooms)
}

func TestWebSocket_UpgradeRateLimit(t *testing.T) {
	srv := newTestServerWithLimiter(t, devConfig(), limiter.NewIPRateLimiter(rate.Every(time.Hour), 1))

	dial(t, srv)

	_, res, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, http.StatusTooManyRequests, res.StatusCode)

	var body resp.JSONResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, errs.ErrRateLimitExceeded, body.Code)
}

func TestHealth_RouterStopped(t *testing.T) {
	router := chat.NewRouter(nil, emptyArchive{}, nil)
	router.Shutdown()

	rec := httptest.NewRecorder()
	HandleHealth(router)(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body struct {
		resp.JSONResponse
		Data healthPayload `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, errs.ErrUnknown, body.Code)
	assert.Equal(t, "unavailable", body.Data.Status)
}

func TestIndexAndRedirect(t *testing.T) {
	srv := newTestServer(t, devConfig())

	res, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, res.Header.Get("Content-Type"), "text/html")

	noFollow := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	for _, path := range []string{"/anything", "/rooms/lobby/history"} {
		res, err := noFollow.Get(srv.URL + path)
		require.NoError(t, err)
		res.Body.Close()

		assert.Equal(t, http.StatusFound, res.StatusCode, path)
		assert.Equal(t, "/", res.Header.Get("Location"), path)
	}
}

func TestIsSameOrigin(t *testing.T) {
	assert.True(t, isSameOrigin("http://localhost:8080", "localhost:8080"))
	assert.False(t, isSameOrigin("http://localhost:9090", "localhost:8080"))
	assert.False(t, isSameOrigin("", "localhost:8080"))
	assert.False(t, isSameOrigin("::bad", "localhost:8080"))
}
