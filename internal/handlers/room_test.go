package handlers_test

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/SteamVC/pairing-relay/internal/handlers"
)

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil, handlers.WebSocketOptions{})

	resp, err := http.Get(s.ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Status    string `json:"status"`
		Timestamp string `json:"timestamp"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.StatusCode != http.StatusOK || body.Status != "ok" {
		t.Fatalf("health=%d %+v", resp.StatusCode, body)
	}
	if _, err := time.Parse(time.RFC3339, body.Timestamp); err != nil {
		t.Fatalf("timestamp %q: %v", body.Timestamp, err)
	}
}

func TestStats_ReportsIdentityAndRooms(t *testing.T) {
	s := newTestServer(t, nil, handlers.WebSocketOptions{})
	pairRoom(t, s)
	s.createRoom(t)

	resp, err := http.Get(s.ts.URL + "/stats")
	if err != nil {
		t.Fatalf("GET /stats: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Server      string  `json:"server"`
		InstanceID  string  `json:"instanceId"`
		Environment string  `json:"environment"`
		Uptime      float64 `json:"uptime"`
		Memory      struct {
			SysMB float64 `json:"sysMB"`
		} `json:"memory"`
		Rooms struct {
			TotalRooms      int `json:"totalRooms"`
			PairedRooms     int `json:"pairedRooms"`
			LiveConnections int `json:"liveConnections"`
		} `json:"rooms"`
		Relay struct {
			Connections int64 `json:"connections"`
		} `json:"relay"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Server != "pairing-relay" || body.InstanceID != "inst-test" || body.Environment != "test" {
		t.Fatalf("identity=%+v", body)
	}
	if body.Uptime < 0 || body.Memory.SysMB <= 0 {
		t.Fatalf("uptime=%v sysMB=%v", body.Uptime, body.Memory.SysMB)
	}
	if body.Rooms.TotalRooms != 2 || body.Rooms.PairedRooms != 1 || body.Rooms.LiveConnections != 2 {
		t.Fatalf("rooms=%+v, want 2 total / 1 paired / 2 connections", body.Rooms)
	}
	if body.Relay.Connections != 2 {
		t.Fatalf("relay.connections=%d, want 2", body.Relay.Connections)
	}
}

func TestGetRoom_NotFoundAndInvalid(t *testing.T) {
	s := newTestServer(t, nil, handlers.WebSocketOptions{})

	if _, status := s.roomStatus(t, "ZZZZZZZZ"); status != http.StatusNotFound {
		t.Fatalf("unknown room status=%d, want 404", status)
	}
	if _, status := s.roomStatus(t, "nope"); status != http.StatusBadRequest {
		t.Fatalf("invalid code status=%d, want 400", status)
	}
}

func TestDeleteRoom_NotifiesBoundClients(t *testing.T) {
	s := newTestServer(t, nil, handlers.WebSocketOptions{})
	code, web, android := pairRoom(t, s)

	req, err := http.NewRequest(http.MethodDelete, s.ts.URL+"/room/"+code, nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE /room: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("DELETE status=%d, want 200", resp.StatusCode)
	}

	for name, c := range map[string]*testClient{"web": web, "android": android} {
		m := c.read()
		if m.Type != "status" || m.Message != "Room closed" || m.Paired == nil || *m.Paired {
			t.Fatalf("%s notice=%+v, want Room closed", name, m)
		}
	}
	if _, status := s.roomStatus(t, code); status != http.StatusNotFound {
		t.Fatalf("deleted room status=%d, want 404", status)
	}

	// 削除後は相手がいないので転送できない
	web.send(map[string]any{"type": "offer", "payload": "X"})
	if m := web.read(); m.Type != "error" || m.Error != "Peer not connected" {
		t.Fatalf("offer after delete=%+v", m)
	}

	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("second DELETE: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second DELETE status=%d, want 404", resp.StatusCode)
	}
}

func TestCreateRoom_CORSPreflight(t *testing.T) {
	s := newTestServer(t, nil, handlers.WebSocketOptions{})

	req, err := http.NewRequest(http.MethodOptions, s.ts.URL+"/create-room", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS: %v", err)
	}
	resp.Body.Close()

	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("Access-Control-Allow-Origin=%q", got)
	}
}
