package transport

import "testing"

func TestDispatcherInvokesInRegistrationOrder(t *testing.T) {
	d := NewDispatcher()
	var order []string
	d.OnMessageReceived(func(ev MessageReceived) { order = append(order, "first:"+ev.Text) })
	d.OnMessageReceived(func(ev MessageReceived) { order = append(order, "second:"+ev.Text) })
	d.OnMessageReceived(func(ev MessageReceived) { order = append(order, "third:"+ev.Text) })

	d.DispatchMessageReceived(MessageReceived{User: "viewer1", Text: "a"})

	want := []string{"first:a", "second:a", "third:a"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestDispatcherUnsubscribeDuringDispatchIsDeferred(t *testing.T) {
	d := NewDispatcher()
	var calls []string
	var secondID SubscriptionID

	d.OnMessageReceived(func(ev MessageReceived) {
		calls = append(calls, "first")
		d.UnsubscribeMessageReceived(secondID)
	})
	secondID = d.OnMessageReceived(func(ev MessageReceived) {
		calls = append(calls, "second")
	})
	d.OnMessageReceived(func(ev MessageReceived) {
		calls = append(calls, "third")
	})

	d.DispatchMessageReceived(MessageReceived{User: "viewer1", Text: "a"})
	if len(calls) != 3 {
		t.Fatalf("calls = %v, want all three handlers invoked during the dispatch that removed one", calls)
	}

	calls = nil
	d.DispatchMessageReceived(MessageReceived{User: "viewer1", Text: "b"})
	want := []string{"first", "third"}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v (second handler removed)", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("calls = %v, want %v", calls, want)
		}
	}
}

func TestDispatcherUnsubscribeOutsideDispatchIsImmediate(t *testing.T) {
	d := NewDispatcher()
	var calls int
	id := d.OnConnected(func() { calls++ })
	d.UnsubscribeConnected(id)

	d.DispatchConnected()
	if calls != 0 {
		t.Fatalf("calls = %d, want 0 after unsubscribing before any dispatch", calls)
	}
}

func TestDispatcherSeparateEventKindsAreIndependent(t *testing.T) {
	d := NewDispatcher()
	var msgs, whispers int
	d.OnMessageReceived(func(MessageReceived) { msgs++ })
	d.OnWhisperReceived(func(WhisperReceived) { whispers++ })

	d.DispatchMessageReceived(MessageReceived{User: "a", Text: "hi"})
	if msgs != 1 || whispers != 0 {
		t.Fatalf("msgs=%d whispers=%d, want 1/0", msgs, whispers)
	}

	d.DispatchWhisperReceived(WhisperReceived{User: "a", Text: "hi"})
	if msgs != 1 || whispers != 1 {
		t.Fatalf("msgs=%d whispers=%d, want 1/1", msgs, whispers)
	}
}
