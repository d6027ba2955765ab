package session

import (
	"testing"

	"github.com/gorilla/websocket"
)

func TestHub_Broadcast(t *testing.T) {
	hub := NewHub(testLogger())
	a := hub.Subscribe()
	b := hub.Subscribe()

	hub.BroadcastOutput("ls\r\n")
	hub.BroadcastEvent([]byte(`{"type":"state"}`))

	for name, sub := range map[string]*Subscriber{"a": a, "b": b} {
		msgs := drain(sub)
		if len(msgs) != 2 {
			t.Fatalf("%s: got %d messages, want 2", name, len(msgs))
		}
		if msgs[0].Kind != websocket.BinaryMessage || string(msgs[0].Data) != "ls\r\n" {
			t.Errorf("%s: first message %+v", name, msgs[0])
		}
		if msgs[1].Kind != websocket.TextMessage {
			t.Errorf("%s: second message kind %d", name, msgs[1].Kind)
		}
	}
}

func TestHub_Unsubscribe(t *testing.T) {
	hub := NewHub(testLogger())
	sub := hub.Subscribe()
	if hub.Count() != 1 {
		t.Fatalf("Count = %d", hub.Count())
	}

	hub.Unsubscribe(sub)
	hub.Unsubscribe(sub)
	if hub.Count() != 0 {
		t.Errorf("Count after unsubscribe = %d", hub.Count())
	}
	if _, ok := <-sub.C; ok {
		t.Error("channel should be closed")
	}

	hub.BroadcastOutput("x")
}

func TestHub_drops_slow_subscriber(t *testing.T) {
	hub := NewHub(testLogger())
	slow := hub.Subscribe()

	for i := 0; i < subscriberBuffer+1; i++ {
		hub.BroadcastOutput("x")
	}

	if hub.Count() != 0 {
		t.Errorf("slow subscriber should be dropped, Count = %d", hub.Count())
	}
	if got := len(drain(slow)); got != subscriberBuffer {
		t.Errorf("slow subscriber kept %d messages, want %d", got, subscriberBuffer)
	}
}

func TestHub_Close(t *testing.T) {
	hub := NewHub(testLogger())
	sub := hub.Subscribe()
	hub.Close()

	if _, ok := <-sub.C; ok {
		t.Error("channel should be closed")
	}

	late := hub.Subscribe()
	if _, ok := <-late.C; ok {
		t.Error("subscribing to a closed hub should return a closed channel")
	}
	if hub.Count() != 0 {
		t.Errorf("Count = %d", hub.Count())
	}
}
