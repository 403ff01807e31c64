package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sweeney/aqualight/internal/logic"
	"github.com/sweeney/aqualight/internal/protocol"
	"github.com/sweeney/aqualight/internal/settings"
	"github.com/sweeney/aqualight/internal/status"
)

type testRig struct {
	ts      *httptest.Server
	srv     *Server
	tracker *status.Tracker
	codec   *settings.Codec
	events  chan protocol.Event
}

func newTestServer(t *testing.T) *testRig {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := status.Config{
		PollMs:      1000,
		HeartbeatMs: 900000,
		Broker:      "tcp://192.168.1.200:1883",
		HTTPAddr:    ":80",
		DataDir:     "/var/lib/aqualight",
		RestartMode: "process",
	}
	tr := status.NewTracker(start, cfg)
	codec := settings.NewCodec(settings.NewMemStorage())
	events := make(chan protocol.Event, 8)
	srv := New(":0", tr, codec.Raw, events)
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return &testRig{ts: ts, srv: srv, tracker: tr, codec: codec, events: events}
}

func testEngine() *logic.Engine {
	var e logic.Engine
	e.SetActiveCount(2)
	e.Frequency = 1000
	e.Generator = logic.GeneratorPCA9685
	e.Channels[0] = logic.Channel{Name: "white", Color: "#FFFFFF", Mode: logic.ModeScheduled, Value: 50, Power: 40}
	e.Channels[1] = logic.Channel{Name: "blue", Color: "#0000FF", Mode: logic.ModeMoonlight, Value: 10, Power: 20}
	return &e
}

func TestJSONEndpoint(t *testing.T) {
	r := newTestServer(t)
	r.tracker.Update(testEngine(), time.Date(2026, 1, 1, 9, 30, 0, 0, time.UTC), 3)
	r.tracker.SetMQTTConnected(true)

	resp, err := http.Get(r.ts.URL + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}

	if len(sj.Status.Channels) != 2 {
		t.Fatalf("channels: got %d, want 2", len(sj.Status.Channels))
	}
	if sj.Status.Channels[1].Mode != "MOONLIGHT" {
		t.Errorf("channel 1 mode: got %q", sj.Status.Channels[1].Mode)
	}
	if sj.Status.PowerW != 22 {
		t.Errorf("PowerW: got %v, want 22", sj.Status.PowerW)
	}
	if sj.Status.PWM.Generator != "PCA9685" || sj.Status.PWM.Pushes != 3 {
		t.Errorf("PWM: %+v", sj.Status.PWM)
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if sj.Status.Config.Broker != "tcp://192.168.1.200:1883" {
		t.Errorf("Config.Broker: got %q", sj.Status.Config.Broker)
	}
}

func TestJSONNetworkInfo(t *testing.T) {
	r := newTestServer(t)
	r.tracker.SetNetwork(&status.NetworkInfo{
		Type:   "wifi",
		IP:     "192.168.1.42",
		Status: "connected",
		SSID:   "MyNet",
	})

	resp, err := http.Get(r.ts.URL + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	defer resp.Body.Close()

	var sj status.StatusJSON
	json.NewDecoder(resp.Body).Decode(&sj)

	if sj.Status.Network == nil {
		t.Fatal("expected Network in JSON")
	}
	if sj.Status.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q, want 192.168.1.42", sj.Status.Network.IP)
	}
}

func TestHTMLEndpointRoot(t *testing.T) {
	r := newTestServer(t)
	r.tracker.Update(testEngine(), time.Time{}, 0)

	resp, err := http.Get(r.ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type: got %q, want text/html", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{"white", "MOONLIGHT", "50.0%", "22.0 W", "never"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestHTMLEndpointIndexHTML(t *testing.T) {
	r := newTestServer(t)

	resp, err := http.Get(r.ts.URL + "/index.html")
	if err != nil {
		t.Fatalf("GET /index.html: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	r := newTestServer(t)

	resp, err := http.Get(r.ts.URL + "/nonexistent")
	if err != nil {
		t.Fatalf("GET /nonexistent: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestSettingsEndpoint(t *testing.T) {
	r := newTestServer(t)

	resp, err := http.Get(r.ts.URL + "/settings")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != 404 {
		t.Errorf("before save: got %d, want 404", resp.StatusCode)
	}

	if err := r.codec.Save(settings.Defaults()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	want, _ := r.codec.Raw()

	for _, path := range []string{"/settings", "/configFile.json"} {
		resp, err := http.Get(r.ts.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != 200 {
			t.Errorf("%s: status %d", path, resp.StatusCode)
		}
		if string(body) != string(want) {
			t.Errorf("%s: body differs from stored document", path)
		}
	}
}

func TestSettingsEndpointErrors(t *testing.T) {
	tr := status.NewTracker(time.Now(), status.Config{})
	srv := New(":0", tr, func() ([]byte, error) { return nil, errors.New("disk on fire") }, nil)
	ts := httptest.NewServer(srv.httpServer.Handler)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/settings")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != 500 {
		t.Errorf("status: got %d, want 500", resp.StatusCode)
	}

	resp, err = http.Post(ts.URL+"/settings", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("POST: got %d, want 405", resp.StatusCode)
	}

	// No event channel: no websocket route.
	resp, err = http.Get(ts.URL + "/ws")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != 404 {
		t.Errorf("/ws without events: got %d, want 404", resp.StatusCode)
	}
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	return resp, string(body)
}

func TestControlPageServed(t *testing.T) {
	r := newTestServer(t)

	tests := []struct {
		path        string
		contentType string
		contains    []string
	}{
		{"/control/", "text/html", []string{`src="script.js"`, `href="style.css"`, "tab_schedule"}},
		{"/control/script.js", "javascript", []string{"'/ws'", "saveSchedule", "factoryReset"}},
		{"/control/style.css", "text/css", []string{".tab"}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, body := get(t, r.ts.URL+tt.path)
			if resp.StatusCode != 200 {
				t.Fatalf("status: got %d, want 200", resp.StatusCode)
			}
			if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, tt.contentType) {
				t.Errorf("Content-Type: got %q, want %s", ct, tt.contentType)
			}
			for _, want := range tt.contains {
				if !strings.Contains(body, want) {
					t.Errorf("body missing %q", want)
				}
			}
		})
	}

	_, page := get(t, r.ts.URL+"/")
	if !strings.Contains(page, `href="/control/"`) {
		t.Error("status page does not link the control page")
	}
}

func TestControlScriptMessageIDs(t *testing.T) {
	r := newTestServer(t)
	_, script := get(t, r.ts.URL+"/control/script.js")

	ids := []struct {
		name string
		id   int
	}{
		{"requestManual", protocol.IDRequestManual},
		{"manualView", protocol.IDManualView},
		{"updateManual", protocol.IDUpdateManual},
		{"requestSchedule", protocol.IDRequestSchedule},
		{"scheduleView", protocol.IDScheduleView},
		{"saveSchedule", protocol.IDSaveSchedule},
		{"requestSettings", protocol.IDRequestSettings},
		{"settingsView", protocol.IDSettingsView},
		{"saveSettings", protocol.IDSaveSettings},
		{"restart", protocol.IDRestart},
		{"factoryReset", protocol.IDFactoryReset},
	}
	for _, tt := range ids {
		if want := fmt.Sprintf("%s: %d", tt.name, tt.id); !strings.Contains(script, want) {
			t.Errorf("script missing %q", want)
		}
	}
}

func TestControlPageNeedsWebsocket(t *testing.T) {
	tr := status.NewTracker(time.Now(), status.Config{})
	srv := New(":0", tr, func() ([]byte, error) { return nil, settings.ErrNotFound }, nil)
	ts := httptest.NewServer(srv.httpServer.Handler)
	defer ts.Close()

	if resp, _ := get(t, ts.URL+"/control/"); resp.StatusCode != 404 {
		t.Errorf("/control/ without events: got %d, want 404", resp.StatusCode)
	}
}

func dial(t *testing.T, r *testRig) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(r.ts.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func nextEvent(t *testing.T, events <-chan protocol.Event) protocol.Event {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return protocol.Event{}
}

func TestWebsocketForwardsMessagesAndReplies(t *testing.T) {
	r := newTestServer(t)
	ws := dial(t, r)

	connect := nextEvent(t, r.events)
	if connect.Kind != protocol.EventConnect || !strings.HasPrefix(connect.Conn, "ws-") {
		t.Fatalf("expected connect event, got %+v", connect)
	}

	if err := ws.WriteMessage(websocket.TextMessage, []byte(`{"id":0}`)); err != nil {
		t.Fatal(err)
	}
	msg := nextEvent(t, r.events)
	if msg.Kind != protocol.EventMessage || msg.Conn != connect.Conn || string(msg.Payload) != `{"id":0}` {
		t.Fatalf("unexpected message event: %+v", msg)
	}

	if err := msg.Reply([]byte(`{"id":1,"channels":[]}`)); err != nil {
		t.Fatalf("Reply: %v", err)
	}
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read reply: %v", err)
	}
	if string(data) != `{"id":1,"channels":[]}` {
		t.Errorf("reply: got %s", data)
	}

	ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if ev := nextEvent(t, r.events); ev.Kind != protocol.EventDisconnect || ev.Conn != connect.Conn {
		t.Errorf("expected disconnect for %s, got %+v", connect.Conn, ev)
	}
}

func TestWebsocketConnectionsAreDistinct(t *testing.T) {
	r := newTestServer(t)
	dial(t, r)
	a := nextEvent(t, r.events)
	dial(t, r)
	b := nextEvent(t, r.events)
	if a.Conn == b.Conn {
		t.Errorf("connections share id %s", a.Conn)
	}
}

func TestShutdownClosesWebsockets(t *testing.T) {
	r := newTestServer(t)
	ws := dial(t, r)
	nextEvent(t, r.events)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := ws.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Errorf("expected going-away close, got %v", err)
	}
}
