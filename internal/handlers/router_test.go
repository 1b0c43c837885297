package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mossy-p/skillswap-signaling/internal/models"
	"github.com/mossy-p/skillswap-signaling/internal/signaling"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, string, []byte) error {
	return errors.New("redis is down")
}

func newTestRouter(t *testing.T, pub Publisher) (*gin.Engine, *signaling.Hub) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := signaling.NewHub()
	t.Cleanup(hub.Close)
	if pub == nil {
		pub = HubPublisher{Hub: hub}
	}
	return NewRouter(testConfig(), hub, pub), hub
}

func doJSON(r http.Handler, method, target, bearer string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	w := doJSON(r, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	r, hub := newTestRouter(t, nil)
	_, err := hub.Connect("")
	require.NoError(t, err)

	w := doJSON(r, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "skillswap_signaling_ws_connections")
}

func TestOriginFilter(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodOptions, "/api/rooms", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRoomsEndpoints(t *testing.T) {
	r, hub := newTestRouter(t, nil)
	bearer := token(t, "1")

	w := doJSON(r, http.MethodGet, "/api/rooms", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	c, err := hub.Connect("")
	require.NoError(t, err)
	require.NoError(t, hub.Identify(c.ID, "1"))
	require.NoError(t, hub.Join(c.ID, models.RoomKindCall, "call_1_2"))

	w = doJSON(r, http.MethodGet, "/api/rooms", bearer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Rooms []signaling.RoomInfo `json:"rooms"`
		Count int                  `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Count)
	assert.Equal(t, "call_1_2", list.Rooms[0].Name)

	w = doJSON(r, http.MethodGet, "/api/rooms/call_1_2", bearer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var info signaling.RoomInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, models.RoomKindCall, info.Kind)
	assert.Equal(t, 1, info.Members)
	assert.False(t, info.Ready)

	w = doJSON(r, http.MethodGet, "/api/rooms/call_8_9", bearer, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPushNotification(t *testing.T) {
	r, hub := newTestRouter(t, nil)
	bearer := token(t, "api")

	c, err := hub.Connect("")
	require.NoError(t, err)
	require.NoError(t, hub.Identify(c.ID, "5"))
	<-c.Messages()

	w := doJSON(r, http.MethodPost, "/api/notifications/5", bearer, NotificationRequest{
		Type:    "application",
		Title:   "New Application",
		Message: "Sam applied to your listing",
		Link:    "/marketplace/3",
	})
	require.Equal(t, http.StatusAccepted, w.Code)

	var env models.Envelope
	require.NoError(t, json.Unmarshal(<-c.Messages(), &env))
	assert.Equal(t, models.EventNewNotification, env.Type)
	var n models.Notification
	require.NoError(t, json.Unmarshal(env.Payload, &n))
	assert.Equal(t, "New Application", n.Title)
	assert.Equal(t, "/marketplace/3", n.Link)
	assert.NotEmpty(t, n.ID)

	w = doJSON(r, http.MethodPost, "/api/notifications/5", bearer, map[string]string{"message": "no title"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPost, "/api/notifications/5", "", NotificationRequest{Type: "x", Title: "y"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPushNotificationAuthorization(t *testing.T) {
	r, hub := newTestRouter(t, nil)

	c, err := hub.Connect("")
	require.NoError(t, err)
	require.NoError(t, hub.Identify(c.ID, "5"))
	<-c.Messages()

	w := doJSON(r, http.MethodPost, "/api/notifications/5", token(t, "7"), NotificationRequest{Type: "x", Title: "spoofed"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, drainMessages(c))

	w = doJSON(r, http.MethodPost, "/api/notifications/5", token(t, "5"), NotificationRequest{Type: "x", Title: "reminder"})
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Len(t, drainMessages(c), 1)
}

func drainMessages(c *signaling.Conn) [][]byte {
	var out [][]byte
	for {
		select {
		case data := <-c.Messages():
			out = append(out, data)
		default:
			return out
		}
	}
}

func TestPushNotificationPublishFailure(t *testing.T) {
	r, _ := newTestRouter(t, failingPublisher{})

	w := doJSON(r, http.MethodPost, "/api/notifications/5", token(t, "api"), NotificationRequest{Type: "x", Title: "y"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestIssueDevToken(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	w := doJSON(r, http.MethodPost, "/api/auth/token", "", TokenRequest{UserID: "11"})
	require.Equal(t, http.StatusOK, w.Code)
	var resp TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "11", resp.UserID)

	w = doJSON(r, http.MethodGet, "/api/rooms", resp.Token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodPost, "/api/auth/token", "", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDevTokenNotMountedInProduction(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig()
	cfg.Environment = "production"
	hub := signaling.NewHub()
	defer hub.Close()

	r := NewRouter(cfg, hub, HubPublisher{Hub: hub})
	gin.SetMode(gin.TestMode)

	w := doJSON(r, http.MethodPost, "/api/auth/token", "", TokenRequest{UserID: "11"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}
