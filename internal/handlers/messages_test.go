package handlers

import (
	"errors"
	"net/http/httptest"
	"testing"
)

func TestParseMessage(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    MessageType
		wantErr bool
	}{
		{"join", `{"type":"join","roomCode":"ABCD2345","deviceType":"web"}`, TypeJoin, false},
		{"offer keeps payload", `{"type":"offer","payload":{"sdp":"v=0"}}`, TypeOffer, false},
		{"unknown type still parses", `{"type":"dance"}`, MessageType("dance"), false},
		{"not json", `{nope`, "", true},
		{"missing type", `{"roomCode":"ABCD2345"}`, "", true},
	}
	for _, tt := range tests {
		msg, err := parseMessage([]byte(tt.in))
		if tt.wantErr {
			if !errors.Is(err, errMalformedMessage) {
				t.Fatalf("%s: err=%v, want errMalformedMessage", tt.name, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if msg.Type != tt.want {
			t.Fatalf("%s: type=%q, want %q", tt.name, msg.Type, tt.want)
		}
	}

	msg, _ := parseMessage([]byte(`{"type":"offer","payload":{"sdp":"v=0"}}`))
	if string(msg.Payload) != `{"sdp":"v=0"}` {
		t.Fatalf("payload=%s", msg.Payload)
	}
}

func TestMessageType_Negotiation(t *testing.T) {
	for _, mt := range []MessageType{TypeOffer, TypeAnswer, TypeICECandidate} {
		if !mt.negotiation() {
			t.Fatalf("%q should be forwarded", mt)
		}
	}
	for _, mt := range []MessageType{TypeJoin, TypePing, TypePong, TypeStatus, TypeError} {
		if mt.negotiation() {
			t.Fatalf("%q should not be forwarded", mt)
		}
	}
}

func TestCheckOrigin(t *testing.T) {
	tests := []struct {
		allowed []string
		origin  string
		want    bool
	}{
		{[]string{"http://localhost:3000"}, "", true},
		{[]string{"http://localhost:3000"}, "http://localhost:3000", true},
		{[]string{"http://localhost:3000"}, "https://evil.example", false},
		{[]string{"*"}, "https://anything.example", true},
		{nil, "https://anything.example", false},
	}
	for _, tt := range tests {
		check := checkOrigin(tt.allowed)
		r := httptest.NewRequest("GET", "/ws", nil)
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		if got := check(r); got != tt.want {
			t.Fatalf("checkOrigin(%v)(%q)=%v, want %v", tt.allowed, tt.origin, got, tt.want)
		}
	}
}
