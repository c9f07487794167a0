// Package bot defines the platform-neutral conversation model: inbound
// event variants, outbound reply payloads, per-source topic tracking and
// the dispatcher that walks topic handlers in order. Chat-platform types
// never cross into this package; the adapter in internal/line converts
// both ways.
package bot

// TextInput is an inbound text message from a conversation source.
type TextInput struct {
	SourceID   string
	ReplyToken string
	Text       string
}

// LocationInput is a native "share location" event.
type LocationInput struct {
	SourceID   string
	ReplyToken string
	Longitude  float64
	Latitude   float64
	Title      string
	Address    string
}

// ImageInput is an inbound photo; the payload stays on the platform side
// and is fetched by ID when a topic actually wants it.
type ImageInput struct {
	SourceID   string
	ReplyToken string
	MessageID  string
}

// QuickReplyKind selects the action behind a quick-reply button.
type QuickReplyKind int

const (
	QuickReplyMessage QuickReplyKind = iota
	QuickReplyLocation
	QuickReplyCamera
	QuickReplyCameraRoll
)

// QuickReply is one suggestion button attached to a text message.
type QuickReply struct {
	Kind  QuickReplyKind
	Label string
	Text  string
}

// Message is one outbound message payload.
type Message interface {
	isMessage()
}

// TextMessage is plain text with optional quick-reply buttons.
type TextMessage struct {
	Text         string
	QuickReplies []QuickReply
}

// LocationMessage pins a coordinate on the recipient's map.
type LocationMessage struct {
	Title     string
	Address   string
	Latitude  float64
	Longitude float64
}

// CarouselColumn is one card of a carousel.
type CarouselColumn struct {
	Title   string
	Text    string
	Actions []QuickReply
}

// CarouselMessage is a swipeable card list, used for route selection.
type CarouselMessage struct {
	AltText string
	Columns []CarouselColumn
}

func (TextMessage) isMessage()     {}
func (LocationMessage) isMessage() {}
func (CarouselMessage) isMessage() {}

// Reply is the outbound payload produced by a topic handler. A nil *Reply
// from a handler means "not mine", letting the dispatcher fall through.
type Reply struct {
	Messages []Message
}

// NewReply wraps messages into a reply.
func NewReply(messages ...Message) *Reply {
	return &Reply{Messages: messages}
}

// Text is shorthand for a single plain text reply.
func Text(text string) *Reply {
	return NewReply(TextMessage{Text: text})
}

// TextWithQuickReplies is shorthand for a text reply carrying buttons.
func TextWithQuickReplies(text string, items ...QuickReply) *Reply {
	return NewReply(TextMessage{Text: text, QuickReplies: items})
}

// MessageButton builds a quick reply that sends back fixed text.
func MessageButton(label, text string) QuickReply {
	return QuickReply{Kind: QuickReplyMessage, Label: label, Text: text}
}

// LocationButton builds a quick reply that opens the location picker.
func LocationButton(label string) QuickReply {
	return QuickReply{Kind: QuickReplyLocation, Label: label}
}

// Replier delivers a reply back to the chat platform.
type Replier interface {
	Reply(replyToken string, messages []Message) error
}
