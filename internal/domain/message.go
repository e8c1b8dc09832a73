package domain

import "time"

// InboundMessage is a single message delivery from the messaging provider.
// The provider redelivers on timeout, so the same MessageID can arrive more
// than once; everything downstream treats the struct as immutable.
type InboundMessage struct {
	Channel    string    // originating channel name ("whatsapp")
	SenderID   string    // stable external identity (E.164 phone number)
	MessageID  string    // provider-unique message identifier
	Body       string
	ReceivedAt time.Time
}

// OutboundMessage is a reply to be delivered back through a channel.
type OutboundMessage struct {
	Channel  string
	SenderID string
	Body     string
}
