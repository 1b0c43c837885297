package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/mossy-p/skillswap-signaling/config"
	"github.com/mossy-p/skillswap-signaling/internal/middleware"
	"github.com/mossy-p/skillswap-signaling/internal/models"
	"github.com/mossy-p/skillswap-signaling/internal/signaling"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func testConfig() *config.Config {
	return &config.Config{
		Port:           "0",
		Environment:    "test",
		AllowedOrigins: []string{"http://localhost:3000"},
		JWTSecret:      testSecret,
		RequireAuth:    true,
		ServiceUserID:  "api",
		WebSocket: config.WebSocketConfig{
			MaxMessageSize: 64 * 1024,
			SendBuffer:     16,
		},
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *signaling.Hub) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := signaling.NewHub(signaling.WithSendBuffer(16))
	srv := httptest.NewServer(NewRouter(testConfig(), hub, HubPublisher{Hub: hub}))
	t.Cleanup(func() {
		srv.Close()
		hub.Close()
	})
	return srv, hub
}

func token(t *testing.T, userID string) string {
	t.Helper()

	tok, err := middleware.IssueToken(testSecret, userID, time.Hour)
	require.NoError(t, err)
	return tok
}

func dial(t *testing.T, srv *httptest.Server, userID string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token(t, userID)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, env models.Envelope) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(env))
}

func read(t *testing.T, conn *websocket.Conn) models.Envelope {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env models.Envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func expectSilence(t *testing.T, conn *websocket.Conn) {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	var env models.Envelope
	err := conn.ReadJSON(&env)
	assert.Error(t, err, "unexpected %s event", env.Type)
}

func identify(t *testing.T, conn *websocket.Conn, userID string) {
	t.Helper()

	send(t, conn, models.Envelope{Type: models.EventIdentify, UserID: userID})
	env := read(t, conn)
	require.Equal(t, models.EventIdentified, env.Type)
	require.Equal(t, userID, env.UserID)
}

func waitForMembers(t *testing.T, hub *signaling.Hub, room string, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.MemberCount(room) == n }, 2*time.Second, 10*time.Millisecond)
}

func TestSignalingRequiresToken(t *testing.T) {
	srv, _ := newTestServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestTwoPartyCallOverWebSocket(t *testing.T) {
	srv, hub := newTestServer(t)

	a := dial(t, srv, "3")
	b := dial(t, srv, "7")
	identify(t, a, "3")
	identify(t, b, "7")

	send(t, a, models.Envelope{Type: models.EventJoinRoom, Kind: models.RoomKindCall, Room: "call_3_7"})
	assert.Equal(t, models.EventWaitingForPeer, read(t, a).Type)
	assert.Equal(t, 1, hub.MemberCount("call_3_7"))

	// b lets the server derive the room name from the peer id
	send(t, b, models.Envelope{Type: models.EventJoinRoom, Kind: models.RoomKindCall, PeerID: "3"})
	assert.Equal(t, models.EventBothReady, read(t, a).Type)
	assert.Equal(t, models.EventBothReady, read(t, b).Type)
	assert.Equal(t, 2, hub.MemberCount("call_3_7"))

	// a nudge after quorum must not produce a second both-ready ahead of the offer
	send(t, a, models.Envelope{Type: models.EventReadyNudge, Room: "call_3_7"})

	offer := json.RawMessage(`{"type":"offer","sdp":"v=0\r\n"}`)
	send(t, a, models.Envelope{Type: models.EventOffer, Room: "call_3_7", Payload: offer})
	got := read(t, b)
	assert.Equal(t, models.EventOffer, got.Type)
	assert.JSONEq(t, string(offer), string(got.Payload))

	answer := json.RawMessage(`{"type":"answer","sdp":"v=0\r\n"}`)
	send(t, b, models.Envelope{Type: models.EventAnswer, Room: "call_3_7", Payload: answer})
	got = read(t, a)
	assert.Equal(t, models.EventAnswer, got.Type)
	assert.JSONEq(t, string(answer), string(got.Payload))

	send(t, b, models.Envelope{Type: models.EventICECandidate, Room: "call_3_7", Payload: json.RawMessage(`{"candidate":"c1"}`)})
	assert.Equal(t, models.EventICECandidate, read(t, a).Type)
	expectSilence(t, b)

	require.NoError(t, a.Close())
	waitForMembers(t, hub, "call_3_7", 1)
	require.NoError(t, b.Close())
	waitForMembers(t, hub, "call_3_7", 0)

	_, ok := hub.Room("call_3_7")
	assert.False(t, ok)
}

func TestWhiteboardClearOverWebSocket(t *testing.T) {
	srv, _ := newTestServer(t)

	a := dial(t, srv, "1")
	b := dial(t, srv, "2")
	identify(t, a, "1")
	identify(t, b, "2")

	send(t, a, models.Envelope{Type: models.EventJoinRoom, Kind: models.RoomKindWhiteboard, Room: "wb_1_2"})
	read(t, a)
	send(t, b, models.Envelope{Type: models.EventJoinRoom, Kind: models.RoomKindWhiteboard, Room: "wb_1_2"})
	read(t, a)
	read(t, b)

	send(t, a, models.Envelope{Type: models.EventWhiteboardClear, Room: "wb_1_2"})
	got := read(t, b)
	assert.Equal(t, models.EventWhiteboardClear, got.Type)
	assert.Empty(t, got.Payload)
	expectSilence(t, a)
}

func TestErrorsGoToSender(t *testing.T) {
	srv, _ := newTestServer(t)

	a := dial(t, srv, "1")

	send(t, a, models.Envelope{Type: models.EventJoinRoom, Room: "call_1_2"})
	got := read(t, a)
	assert.Equal(t, models.EventError, got.Type)
	assert.Equal(t, models.ErrCodeNotIdentified, got.Code)

	send(t, a, models.Envelope{Type: models.EventIdentify, UserID: "2"})
	got = read(t, a)
	assert.Equal(t, models.ErrCodeIdentityMismatch, got.Code)

	identify(t, a, "1")

	send(t, a, models.Envelope{Type: "dance"})
	got = read(t, a)
	assert.Equal(t, models.ErrCodeUnknownEvent, got.Code)

	send(t, a, models.Envelope{Type: models.EventJoinRoom, Room: "wb_1_2"})
	got = read(t, a)
	assert.Equal(t, models.ErrCodeInvalidRoom, got.Code)

	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte("{not json")))
	got = read(t, a)
	assert.Equal(t, models.ErrCodeBadMessage, got.Code)
}

func TestThirdPartyIsRejected(t *testing.T) {
	srv, hub := newTestServer(t)

	conns := make([]*websocket.Conn, 0, 3)
	for _, id := range []string{"1", "2", "3"} {
		c := dial(t, srv, id)
		identify(t, c, id)
		conns = append(conns, c)
	}

	send(t, conns[0], models.Envelope{Type: models.EventJoinRoom, Room: "call_1_2"})
	read(t, conns[0])
	send(t, conns[1], models.Envelope{Type: models.EventJoinRoom, Room: "call_1_2"})
	read(t, conns[0])
	read(t, conns[1])

	send(t, conns[2], models.Envelope{Type: models.EventJoinRoom, Room: "call_1_2"})
	got := read(t, conns[2])
	assert.Equal(t, models.EventError, got.Type)
	assert.Equal(t, models.ErrCodeRoomFull, got.Code)
	assert.Equal(t, 2, hub.MemberCount("call_1_2"))
	expectSilence(t, conns[0])
}

func TestChatOverWebSocket(t *testing.T) {
	srv, hub := newTestServer(t)

	a := dial(t, srv, "1")
	b := dial(t, srv, "2")
	identify(t, a, "1")
	identify(t, b, "2")

	send(t, a, models.Envelope{Type: models.EventJoinRoom, Room: models.ConversationRoom("12")})
	send(t, b, models.Envelope{Type: models.EventJoinRoom, Room: models.ConversationRoom("12")})
	waitForMembers(t, hub, models.ConversationRoom("12"), 2)
	send(t, b, models.Envelope{Type: models.EventChatMessage, Room: models.ConversationRoom("12"), Content: "hi"})

	for _, conn := range []*websocket.Conn{a, b} {
		got := read(t, conn)
		require.Equal(t, models.EventNewMessage, got.Type)
		var msg models.ChatMessage
		require.NoError(t, json.Unmarshal(got.Payload, &msg))
		assert.Equal(t, "2", msg.SenderID)
		assert.Equal(t, "hi", msg.Content)
	}
}
