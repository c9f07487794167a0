package bot

import (
	"sync"

	"go.uber.org/zap"
)

// TextHandler handles inbound text for one topic. A nil reply means the
// handler did not claim the message.
type TextHandler interface {
	HandleText(ev TextInput) *Reply
}

// LocationHandler handles native location shares.
type LocationHandler interface {
	HandleLocation(ev LocationInput) *Reply
}

// ImageHandler handles inbound photos.
type ImageHandler interface {
	HandleImage(ev ImageInput) *Reply
}

// Dispatcher routes inbound events through registered topic handlers in
// order; the first handler to claim an event wins. Unclaimed text falls
// back to the greeting/echo behavior. Events for the same source are
// serialized with a per-source lock because the HTTP layer may deliver
// webhook requests concurrently and topic sessions are mutable state.
type Dispatcher struct {
	topics    *TopicStore
	texts     []TextHandler
	locations []LocationHandler
	images    []ImageHandler
	logger    *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewDispatcher creates a dispatcher over the given topic registry.
func NewDispatcher(topics *TopicStore, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		topics: topics,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}
}

// OnText appends text handlers; order defines precedence.
func (d *Dispatcher) OnText(handlers ...TextHandler) {
	d.texts = append(d.texts, handlers...)
}

// OnLocation appends location handlers.
func (d *Dispatcher) OnLocation(handlers ...LocationHandler) {
	d.locations = append(d.locations, handlers...)
}

// OnImage appends image handlers.
func (d *Dispatcher) OnImage(handlers ...ImageHandler) {
	d.images = append(d.images, handlers...)
}

func (d *Dispatcher) sourceLock(sourceID string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	lock, ok := d.locks[sourceID]
	if !ok {
		lock = &sync.Mutex{}
		d.locks[sourceID] = lock
	}
	return lock
}

// DispatchText routes a text event and always produces a reply: either a
// topic's answer, the greeting with shortcut buttons (no active topic), or
// an echo that also clears a stale topic.
func (d *Dispatcher) DispatchText(ev TextInput) *Reply {
	lock := d.sourceLock(ev.SourceID)
	lock.Lock()
	defer lock.Unlock()

	d.logger.Debug("inbound text", zap.String("source", ev.SourceID), zap.String("text", ev.Text))

	for _, h := range d.texts {
		if reply := h.HandleText(ev); reply != nil {
			return reply
		}
	}

	topic := d.topics.Get(ev.SourceID)
	d.topics.Clear(ev.SourceID)
	if topic == "" {
		return d.greeting()
	}
	return Text(ev.Text)
}

// DispatchLocation routes a location share; nil when no topic wants it.
func (d *Dispatcher) DispatchLocation(ev LocationInput) *Reply {
	lock := d.sourceLock(ev.SourceID)
	lock.Lock()
	defer lock.Unlock()

	for _, h := range d.locations {
		if reply := h.HandleLocation(ev); reply != nil {
			return reply
		}
	}
	return nil
}

// DispatchImage routes a photo; nil when no topic wants it.
func (d *Dispatcher) DispatchImage(ev ImageInput) *Reply {
	lock := d.sourceLock(ev.SourceID)
	lock.Lock()
	defer lock.Unlock()

	for _, h := range d.images {
		if reply := h.HandleImage(ev); reply != nil {
			return reply
		}
	}
	return nil
}

func (d *Dispatcher) greeting() *Reply {
	return TextWithQuickReplies("你好，我是「小鐵」，需要協助嗎？",
		MessageButton("查雨量", "查雨量"),
		MessageButton("里程轉座標", "里程轉座標"),
		MessageButton("座標轉里程", "座標轉里程"),
		MessageButton("CCTV", "CCTV"),
		MessageButton("回報事件", "回報事件"),
	)
}
