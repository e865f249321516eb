package transport

import "sync"

// SubscriptionID identifies a registered handler for later Unsubscribe.
type SubscriptionID int

// subscriberList is a typed, registration-ordered set of handlers.
// Unsubscribing a handler while a Dispatch is in progress is deferred
// until that dispatch finishes, per spec.md §9's design note on avoiding
// iterator invalidation during multicast delivery.
type subscriberList[T any] struct {
	mu     sync.Mutex
	next   SubscriptionID
	subs   map[SubscriptionID]func(T)
	order  []SubscriptionID
	active bool
	remove []SubscriptionID
}

func newSubscriberList[T any]() *subscriberList[T] {
	return &subscriberList[T]{subs: make(map[SubscriptionID]func(T))}
}

func (l *subscriberList[T]) Subscribe(fn func(T)) SubscriptionID {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.next
	l.next++
	l.subs[id] = fn
	l.order = append(l.order, id)
	return id
}

func (l *subscriberList[T]) Unsubscribe(id SubscriptionID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.active {
		l.remove = append(l.remove, id)
		return
	}
	l.removeLocked(id)
}

func (l *subscriberList[T]) removeLocked(id SubscriptionID) {
	delete(l.subs, id)
	for i, o := range l.order {
		if o == id {
			l.order = append(l.order[:i], l.order[i+1:]...)
			return
		}
	}
}

func (l *subscriberList[T]) Dispatch(v T) {
	l.mu.Lock()
	l.active = true
	order := append([]SubscriptionID(nil), l.order...)
	snapshot := make(map[SubscriptionID]func(T), len(l.subs))
	for id, fn := range l.subs {
		snapshot[id] = fn
	}
	l.mu.Unlock()

	for _, id := range order {
		if fn, ok := snapshot[id]; ok {
			fn(v)
		}
	}

	l.mu.Lock()
	l.active = false
	for _, id := range l.remove {
		l.removeLocked(id)
	}
	l.remove = nil
	l.mu.Unlock()
}

// Dispatcher multiplexes the transport's typed events to subscribers in
// registration order. Whoever owns the real chat-library connection
// calls the Dispatch* methods as raw events arrive.
type Dispatcher struct {
	connected     *subscriberList[struct{}]
	disconnected  *subscriberList[error]
	reconnected   *subscriberList[struct{}]
	joinedChannel *subscriberList[string]
	message       *subscriberList[MessageReceived]
	whisper       *subscriberList[WhisperReceived]
	host          *subscriberList[HostReceived]
	sub           *subscriberList[Subscription]
	resub         *subscriberList[Resubscription]
}

// NewDispatcher builds an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		connected:     newSubscriberList[struct{}](),
		disconnected:  newSubscriberList[error](),
		reconnected:   newSubscriberList[struct{}](),
		joinedChannel: newSubscriberList[string](),
		message:       newSubscriberList[MessageReceived](),
		whisper:       newSubscriberList[WhisperReceived](),
		host:          newSubscriberList[HostReceived](),
		sub:           newSubscriberList[Subscription](),
		resub:         newSubscriberList[Resubscription](),
	}
}

func (d *Dispatcher) OnConnected(fn func()) SubscriptionID {
	return d.connected.Subscribe(func(struct{}) { fn() })
}
func (d *Dispatcher) UnsubscribeConnected(id SubscriptionID) { d.connected.Unsubscribe(id) }
func (d *Dispatcher) DispatchConnected()                     { d.connected.Dispatch(struct{}{}) }

func (d *Dispatcher) OnDisconnected(fn func(error)) SubscriptionID {
	return d.disconnected.Subscribe(fn)
}
func (d *Dispatcher) UnsubscribeDisconnected(id SubscriptionID) { d.disconnected.Unsubscribe(id) }
func (d *Dispatcher) DispatchDisconnected(err error)            { d.disconnected.Dispatch(err) }

func (d *Dispatcher) OnReconnected(fn func()) SubscriptionID {
	return d.reconnected.Subscribe(func(struct{}) { fn() })
}
func (d *Dispatcher) UnsubscribeReconnected(id SubscriptionID) { d.reconnected.Unsubscribe(id) }
func (d *Dispatcher) DispatchReconnected()                     { d.reconnected.Dispatch(struct{}{}) }

func (d *Dispatcher) OnJoinedChannel(fn func(channel string)) SubscriptionID {
	return d.joinedChannel.Subscribe(fn)
}
func (d *Dispatcher) UnsubscribeJoinedChannel(id SubscriptionID) { d.joinedChannel.Unsubscribe(id) }
func (d *Dispatcher) DispatchJoinedChannel(channel string)       { d.joinedChannel.Dispatch(channel) }

func (d *Dispatcher) OnMessageReceived(fn func(MessageReceived)) SubscriptionID {
	return d.message.Subscribe(fn)
}
func (d *Dispatcher) UnsubscribeMessageReceived(id SubscriptionID) { d.message.Unsubscribe(id) }
func (d *Dispatcher) DispatchMessageReceived(ev MessageReceived)   { d.message.Dispatch(ev) }

func (d *Dispatcher) OnWhisperReceived(fn func(WhisperReceived)) SubscriptionID {
	return d.whisper.Subscribe(fn)
}
func (d *Dispatcher) UnsubscribeWhisperReceived(id SubscriptionID) { d.whisper.Unsubscribe(id) }
func (d *Dispatcher) DispatchWhisperReceived(ev WhisperReceived)   { d.whisper.Dispatch(ev) }

func (d *Dispatcher) OnHostReceived(fn func(HostReceived)) SubscriptionID {
	return d.host.Subscribe(fn)
}
func (d *Dispatcher) UnsubscribeHostReceived(id SubscriptionID) { d.host.Unsubscribe(id) }
func (d *Dispatcher) DispatchHostReceived(ev HostReceived)      { d.host.Dispatch(ev) }

func (d *Dispatcher) OnSubscription(fn func(Subscription)) SubscriptionID {
	return d.sub.Subscribe(fn)
}
func (d *Dispatcher) UnsubscribeSubscription(id SubscriptionID) { d.sub.Unsubscribe(id) }
func (d *Dispatcher) DispatchSubscription(ev Subscription)      { d.sub.Dispatch(ev) }

func (d *Dispatcher) OnResubscription(fn func(Resubscription)) SubscriptionID {
	return d.resub.Subscribe(fn)
}
func (d *Dispatcher) UnsubscribeResubscription(id SubscriptionID) { d.resub.Unsubscribe(id) }
func (d *Dispatcher) DispatchResubscription(ev Resubscription)    { d.resub.Dispatch(ev) }
