package relay

import "github.com/wtask/relay/internal/relay/message"

// MessageHistory - interface to access ordered history of relayed messages
type MessageHistory interface {
	// Push - push new message into history
	Push(message.Message)
	// Tail - get a number of latest messages from history in chronological order
	Tail(n int) []message.Message
}
