package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AaronLay10/protoflow/internal/events"
	"github.com/AaronLay10/protoflow/internal/player"
)

// clearTLSEnv prevents TLS initialization from trying to load nonexistent certs.
func clearTLSEnv(t *testing.T) {
	t.Setenv("PROTOFLOW_TLS_CERT", "")
	t.Setenv("PROTOFLOW_TLS_KEY", "")
	SetTLSConfigForTest(nil)
}

// waitFor polls a condition until it returns true or timeout expires.
func waitFor(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Errorf("timeout waiting for: %s", msg)
}

func dial(t *testing.T, h http.HandlerFunc) (*websocket.Conn, func()) {
	t.Helper()
	server := httptest.NewServer(h)
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		server.Close()
		t.Fatalf("failed to connect: %v", err)
	}
	return conn, func() {
		conn.Close()
		server.Close()
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) events.Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read message: %v", err)
	}
	var e events.Event
	if err := json.Unmarshal(msg, &e); err != nil {
		t.Fatalf("failed to unmarshal event: %v", err)
	}
	return e
}

func TestWebSocketSendsBacklogThenLiveEvents(t *testing.T) {
	clearTLSEnv(t)
	events.Clear()

	for i := 0; i < 5; i++ {
		events.Emit("info", "keyframe.entered", "", map[string]interface{}{"i": i})
	}

	conn, done := dial(t, wsEventsHandler)
	defer done()

	for i := 0; i < 5; i++ {
		if e := readEvent(t, conn); e.Name != "keyframe.entered" {
			t.Errorf("backlog %d: expected 'keyframe.entered', got '%s'", i, e.Name)
		}
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		events.Emit("info", "variable.changed", "", map[string]interface{}{"variable_id": "count"})
	}()

	e := readEvent(t, conn)
	if e.Name != "variable.changed" {
		t.Errorf("expected 'variable.changed', got '%s'", e.Name)
	}
	if e.Fields["variable_id"] != "count" {
		t.Errorf("expected variable_id 'count', got '%v'", e.Fields["variable_id"])
	}
}

func TestWebSocketDisconnectCleansUp(t *testing.T) {
	clearTLSEnv(t)
	events.Clear()
	events.CloseAllSubscribers()

	conn, done := dial(t, wsEventsHandler)
	defer done()

	go func() {
		time.Sleep(20 * time.Millisecond)
		events.Emit("info", "keyframe.entered", "", nil)
	}()
	readEvent(t, conn)

	conn.Close()
	waitFor(t, 5*time.Second, func() bool {
		return events.SubscriberCount() == 0
	}, "subscriber count to return to 0 after close")
}

func TestWebSocketMultipleClients(t *testing.T) {
	clearTLSEnv(t)
	events.Clear()
	events.CloseAllSubscribers()

	server := httptest.NewServer(http.HandlerFunc(wsEventsHandler))
	defer server.Close()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	var conns []*websocket.Conn
	for i := 0; i < 2; i++ {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			t.Fatalf("client%d failed to connect: %v", i+1, err)
		}
		defer conn.Close()
		conns = append(conns, conn)
	}
	waitFor(t, 2*time.Second, func() bool { return events.SubscriberCount() >= 2 }, "both subscribers")

	events.Emit("info", "transition.completed", "", map[string]interface{}{"transition_id": "t-1"})

	for i, conn := range conns {
		if e := readEvent(t, conn); e.Name != "transition.completed" {
			t.Errorf("client%d: expected 'transition.completed', got '%s'", i+1, e.Name)
		}
	}
}

func TestWebSocketFramesStream(t *testing.T) {
	clearTLSEnv(t)
	s, _ := newTestServer(t)

	conn, done := dial(t, s.wsFramesHandler)
	defer done()

	readFrame := func() player.Frame {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("failed to read frame: %v", err)
		}
		var f player.Frame
		if err := json.Unmarshal(msg, &f); err != nil {
			t.Fatalf("failed to unmarshal frame: %v", err)
		}
		return f
	}

	first := readFrame()
	if first.ActiveKeyframeID != "kf-a" {
		t.Errorf("expected current frame on kf-a, got %q", first.ActiveKeyframeID)
	}

	waitFor(t, 2*time.Second, func() bool { return s.frames.count() == 1 }, "frame subscriber")
	s.player.Tick()

	next := readFrame()
	if next.Seq <= first.Seq {
		t.Errorf("expected a newer frame, got seq %d after %d", next.Seq, first.Seq)
	}
}
