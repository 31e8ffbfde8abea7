package whatsapp

import "context"

// Envelope is the WhatsApp Business webhook payload.
type Envelope struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry groups the changes for one business account.
type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

// Change is one notification about a phone number.
type Change struct {
	Field string      `json:"field"`
	Value ChangeValue `json:"value"`
}

// ChangeValue carries inbound messages and outbound delivery statuses.
type ChangeValue struct {
	MessagingProduct string           `json:"messaging_product"`
	Metadata         Metadata         `json:"metadata"`
	Contacts         []Contact        `json:"contacts,omitempty"`
	Messages         []InboundMessage `json:"messages,omitempty"`
	Statuses         []StatusUpdate   `json:"statuses,omitempty"`
}

// Metadata identifies the receiving business number.
type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

// Contact is the sender profile attached to inbound messages.
type Contact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

// InboundMessage is a message a recipient sent to the business number.
type InboundMessage struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text,omitempty"`
}

// StatusUpdate reports the delivery state of a message we sent.
type StatusUpdate struct {
	ID          string        `json:"id"`
	Status      string        `json:"status"` // sent, delivered, read, failed
	Timestamp   string        `json:"timestamp"`
	RecipientID string        `json:"recipient_id"`
	Errors      []StatusError `json:"errors,omitempty"`
}

// StatusError explains a failed status.
type StatusError struct {
	Code  int    `json:"code"`
	Title string `json:"title"`
}

// EventKind labels an Event.
type EventKind string

const (
	EventMessage EventKind = "message"
	EventStatus  EventKind = "status"
)

// Event is a single message or status extracted from an Envelope. Exactly
// one of Message and Status is set, matching Kind.
type Event struct {
	Kind          EventKind
	PhoneNumberID string
	Message       *InboundMessage
	Status        *StatusUpdate
}

// EventSink receives events in payload order. It runs on the request
// goroutine and should return quickly.
type EventSink func(ctx context.Context, ev Event)

// Events flattens env into message events followed by status events for
// each change, in payload order.
func (env Envelope) Events() []Event {
	var events []Event
	for _, entry := range env.Entry {
		for _, change := range entry.Changes {
			phoneID := change.Value.Metadata.PhoneNumberID
			for i := range change.Value.Messages {
				events = append(events, Event{Kind: EventMessage, PhoneNumberID: phoneID, Message: &change.Value.Messages[i]})
			}
			for i := range change.Value.Statuses {
				events = append(events, Event{Kind: EventStatus, PhoneNumberID: phoneID, Status: &change.Value.Statuses[i]})
			}
		}
	}
	return events
}
