package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jay7-tech/memo-go/core"
	"github.com/jay7-tech/memo-go/engine"
	"github.com/jay7-tech/memo-go/query"
	"github.com/jay7-tech/memo-go/rules"
	"github.com/jay7-tech/memo-go/scene"
)

func newTestServer(t *testing.T) (*Server, *Hub, *engine.Loop) {
	t.Helper()

	mem, err := scene.NewMemory(scene.DefaultConfig(), nil)
	require.NoError(t, err)
	ruleEngine, err := rules.NewEngine(rules.DefaultConfig(), nil)
	require.NoError(t, err)

	hub := NewHub(nil)
	go hub.Run()

	dispatcher, err := engine.NewDispatcher(nil, 0, nil, hub)
	require.NoError(t, err)
	t.Cleanup(dispatcher.Close)

	loop, err := engine.NewLoop(engine.DefaultConfig(), mem, ruleEngine, query.NewResolver(nil), dispatcher, nil)
	require.NoError(t, err)

	srv, err := New(DefaultConfig(), loop, hub, nil)
	require.NoError(t, err)
	return srv, hub, loop
}

func TestStateEndpoint(t *testing.T) {
	srv, _, loop := newTestServer(t)
	loop.ProcessFrame(context.Background(), core.Frame{
		Detections: []core.Detection{{
			Label: "bottle",
			Box:   core.BoundingBox{X: 10, Y: 10, W: 50, H: 50},
		}},
		Timestamp: time.Now(),
		Width:     640,
	})

	rec := httptest.NewRecorder()
	srv.handleState(rec, httptest.NewRequest(http.MethodGet, "/state", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp stateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Objects, 1)
	assert.Equal(t, "bottle", resp.Objects[0].Label)
	assert.Equal(t, "on the left", resp.Objects[0].Position)
	assert.False(t, resp.Human.Present)
	assert.Equal(t, "unknown", resp.Human.Pose)
}

func TestStateEndpointRejectsPost(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.handleState(rec, httptest.NewRequest(http.MethodPost, "/state", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestWebsocketReceivesEvents(t *testing.T) {
	srv, hub, _ := newTestServer(t)

	ts := httptest.NewServer(http.HandlerFunc(srv.handleWS))
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Registration runs through the hub goroutine; wait for it.
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		time.Second, 10*time.Millisecond)

	hub.Publish(core.Speak("Say cheese!", time.Now()))

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev wireEvent
	require.NoError(t, json.Unmarshal(payload, &ev))
	assert.Equal(t, "speak", ev.Kind)
	assert.Equal(t, "Say cheese!", ev.Text)
	assert.NotEmpty(t, ev.ID)
}

func TestWebsocketUtteranceResolvesAgainstScene(t *testing.T) {
	srv, hub, loop := newTestServer(t)
	loop.ProcessFrame(context.Background(), core.Frame{
		Detections: []core.Detection{{
			Label: "bottle",
			Box:   core.BoundingBox{X: 10, Y: 10, W: 50, H: 50},
		}},
		Timestamp: time.Now(),
		Width:     640,
	})

	ts := httptest.NewServer(http.HandlerFunc(srv.handleWS))
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("where is my bottle")))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev wireEvent
	require.NoError(t, json.Unmarshal(payload, &ev))
	assert.Equal(t, "speak", ev.Kind)
	assert.Equal(t, "I see the bottle. It's on the left.", ev.Text)
}
