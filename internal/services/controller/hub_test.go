package controller

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type command struct {
	deviceID string
	event    string
	data     string
}

func startHub(t *testing.T) (string, *Hub, chan command) {
	t.Helper()
	cmds := make(chan command, 4)
	hub := NewHub(func(deviceID, event string, data json.RawMessage) {
		cmds <- command{deviceID, event, string(data)}
	}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http"), hub, cmds
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Count() != n {
		if time.Now().After(deadline) {
			t.Fatalf("clients: got %d, want %d", hub.Count(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return m
}

func TestHub_FiltersByDevice(t *testing.T) {
	url, hub, _ := startHub(t)
	esp1 := dial(t, url+"?device_id=esp-1")
	esp2 := dial(t, url+"?device_id=esp-2")
	all := dial(t, url)
	waitClients(t, hub, 3)

	hub.Broadcast("esp-2", EventSensorData, map[string]any{"deviceId": "esp-2", "h_soil": 300})
	hub.Broadcast("esp-1", EventSensorData, map[string]any{"deviceId": "esp-1", "h_soil": 700})

	m := readMessage(t, esp1)
	if m.Event != EventSensorData || !strings.Contains(string(m.Data), `"esp-1"`) {
		t.Errorf("esp-1 got %s %s", m.Event, m.Data)
	}
	m = readMessage(t, esp2)
	if !strings.Contains(string(m.Data), `"esp-2"`) {
		t.Errorf("esp-2 got %s", m.Data)
	}
	first, second := readMessage(t, all), readMessage(t, all)
	if !strings.Contains(string(first.Data), "esp-2") || !strings.Contains(string(second.Data), "esp-1") {
		t.Errorf("unfiltered client got %s then %s", first.Data, second.Data)
	}
}

func TestHub_BroadcastToAll(t *testing.T) {
	url, hub, _ := startHub(t)
	esp1 := dial(t, url+"?device_id=esp-1")
	waitClients(t, hub, 1)

	hub.Broadcast("", EventSensorData, map[string]string{"error": InvalidDataError})
	m := readMessage(t, esp1)
	if !strings.Contains(string(m.Data), InvalidDataError) {
		t.Errorf("got %s", m.Data)
	}
}

func TestHub_ForwardsCommands(t *testing.T) {
	url, hub, cmds := startHub(t)
	conn := dial(t, url+"?device_id=esp-1")
	waitClients(t, hub, 1)

	if err := conn.WriteJSON(map[string]any{"event": "calibrate", "data": map[string]string{"deviceId": "esp-1"}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := conn.WriteJSON(map[string]any{"event": "unknown"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := conn.WriteJSON(map[string]any{"event": "reset"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	for _, want := range []command{
		{"esp-1", EventCalibrate, `{"deviceId":"esp-1"}`},
		{"esp-1", EventReset, ""},
	} {
		select {
		case got := <-cmds:
			if got != want {
				t.Errorf("got %+v, want %+v", got, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("command %s not forwarded", want.event)
		}
	}
}

func TestHub_UnregistersOnClose(t *testing.T) {
	url, hub, _ := startHub(t)
	conn := dial(t, url)
	waitClients(t, hub, 1)
	conn.Close()
	waitClients(t, hub, 0)
}
