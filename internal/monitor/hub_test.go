package monitor

import (
	"encoding/json"
	"testing"
	"time"
)

func TestHubBroadcastsToRegisteredClients(t *testing.T) {
	h := NewHub()
	go h.Run()
	defer h.Stop()

	client := make(chan []byte, 4)
	h.Register(client)

	h.Publish(Frame{Type: "input", User: "viewer1", Port: 0, Raw: "a", Result: "Valid", Outcome: "Completed"})

	select {
	case data := <-client:
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if f.User != "viewer1" || f.Raw != "a" {
			t.Fatalf("frame = %+v, want user viewer1 raw a", f)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for broadcast frame")
	}
}

func TestHubUnregisterStopsDelivery(t *testing.T) {
	h := NewHub()
	go h.Run()
	defer h.Stop()

	client := make(chan []byte, 4)
	h.Register(client)
	h.Unregister(client)

	// The channel is closed on unregister.
	select {
	case _, ok := <-client:
		if ok {
			t.Fatal("expected channel to be closed after Unregister")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for channel close")
	}

	h.Publish(Frame{Type: "input", User: "viewer1"})
	// Nothing to assert beyond "this does not panic or block": the
	// unregistered client is gone from the hub's client set.
}

func TestHubClientCount(t *testing.T) {
	h := NewHub()
	go h.Run()
	defer h.Stop()

	a := make(chan []byte, 1)
	b := make(chan []byte, 1)
	h.Register(a)
	h.Register(b)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if h.ClientCount() == 2 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if got := h.ClientCount(); got != 2 {
		t.Fatalf("ClientCount = %d, want 2", got)
	}

	h.Unregister(a)
	deadline = time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if h.ClientCount() == 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if got := h.ClientCount(); got != 1 {
		t.Fatalf("ClientCount = %d, want 1 after unregister", got)
	}
}
