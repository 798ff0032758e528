package api

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/mqtt-device-gateway/internal/device"
)

// dialWS connects to the server's WebSocket endpoint.
func dialWS(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(url, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readWS(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	//nolint:errcheck // Test deadline
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	return msg
}

func subscribe(t *testing.T, conn *websocket.Conn, channels ...string) {
	t.Helper()
	err := conn.WriteJSON(WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "sub-1",
		Payload: WSSubscribePayload{Channels: channels},
	})
	if err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if msg := readWS(t, conn); msg.Type != WSTypeResponse || msg.ID != "sub-1" {
		t.Fatalf("subscribe response = %+v", msg)
	}
}

// waitForClients polls until the hub has registered n clients.
func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("ClientCount() = %d, want %d", hub.ClientCount(), n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWebSocket_StateStream(t *testing.T) {
	srv, ts := testServer(t, nil)
	conn := dialWS(t, ts.URL)
	waitForClients(t, srv.hub, 1)
	subscribe(t, conn, ChannelState)

	desc := device.Descriptor{ID: "sw1", Name: "Hall light", Family: device.FamilySwitch}
	report := device.Report{{Driver: device.DriverStatus, Value: 100, UOM: 78}}

	// A transition on a channel the client did not subscribe to is not delivered.
	if err := srv.hub.ReportEvent(context.Background(), desc, device.Event{DeviceID: "sw1", Kind: device.EventOn}); err != nil {
		t.Fatalf("ReportEvent() error = %v", err)
	}
	if err := srv.hub.ReportState(context.Background(), desc, report); err != nil {
		t.Fatalf("ReportState() error = %v", err)
	}

	msg := readWS(t, conn)
	if msg.Type != WSTypeEvent || msg.EventType != ChannelState {
		t.Fatalf("message = %+v, want %s event", msg, ChannelState)
	}

	raw, _ := json.Marshal(msg.Payload)
	var state struct {
		DeviceID string        `json:"device_id"`
		Fields   device.Report `json:"fields"`
	}
	if err := json.Unmarshal(raw, &state); err != nil {
		t.Fatalf("decoding payload: %v", err)
	}
	if state.DeviceID != "sw1" || state.Fields.Value(device.DriverStatus) != 100 {
		t.Errorf("payload = %+v", state)
	}
}

func TestWebSocket_WildcardReceivesEvents(t *testing.T) {
	srv, ts := testServer(t, nil)
	conn := dialWS(t, ts.URL)
	waitForClients(t, srv.hub, 1)
	subscribe(t, conn, "*")

	desc := device.Descriptor{ID: "door", Family: device.FamilyFlag}
	//nolint:errcheck // Hub never fails
	srv.hub.ReportEvent(context.Background(), desc, device.Event{DeviceID: "door", Kind: device.EventOff})

	msg := readWS(t, conn)
	if msg.EventType != ChannelEvent {
		t.Fatalf("event_type = %q, want %s", msg.EventType, ChannelEvent)
	}
	payload, _ := msg.Payload.(map[string]any)
	if payload["device_id"] != "door" || payload["event"] != "DOF" {
		t.Errorf("payload = %v", payload)
	}
}

func TestWebSocket_PingAndErrors(t *testing.T) {
	srv, ts := testServer(t, nil)
	conn := dialWS(t, ts.URL)
	waitForClients(t, srv.hub, 1)

	if err := conn.WriteJSON(WSMessage{Type: WSTypePing, ID: "p1"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if msg := readWS(t, conn); msg.Type != WSTypePong || msg.ID != "p1" {
		t.Errorf("ping reply = %+v, want pong p1", msg)
	}

	if err := conn.WriteJSON(WSMessage{Type: "dance", ID: "x"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if msg := readWS(t, conn); msg.Type != WSTypeError {
		t.Errorf("unknown type reply = %+v, want error", msg)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	if msg := readWS(t, conn); msg.Type != WSTypeError {
		t.Errorf("invalid JSON reply = %+v, want error", msg)
	}
}

func TestWebSocket_DisconnectUnregisters(t *testing.T) {
	srv, ts := testServer(t, nil)
	conn := dialWS(t, ts.URL)
	waitForClients(t, srv.hub, 1)

	conn.Close()
	waitForClients(t, srv.hub, 0)
}
