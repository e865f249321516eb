package transport

// Client is the narrow boundary this bot needs from a chat library:
// connect, send a message, and close the connection. Connection
// lifecycle events (Connected, Disconnected, Reconnected) and inbound
// traffic (MessageReceived, WhisperReceived, ...) arrive out of band
// through a Dispatcher the Client feeds as it reads from the wire.
type Client interface {
	Connect() error
	SendMessage(channel, text string) error
	Close() error
}
