// Package events provides the in-process bus that carries user-facing
// notices and booking domain events to front ends.
package events

import (
	"sync"
	"time"
)

// Type identifies an event kind.
type Type string

const (
	TypeNotice             Type = "notice"
	TypeAppointmentCreated Type = "appointment.created"
	TypeDocumentsFailed    Type = "documents.failed"
	TypePaymentSucceeded   Type = "payment.succeeded"
	TypePaymentFailed      Type = "payment.failed"
	TypeSessionCleared     Type = "session.cleared"
	TypeBlocksChanged      Type = "blocks.changed"
)

// Level is the severity of a notice.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is a transient message for the user.
type Notice struct {
	Level   Level
	Message string
}

// Event is a lightweight domain event.
type Event struct {
	Type          Type
	Notice        Notice
	AppointmentID int64
	CreatedAt     time.Time
}

// Handler reacts to an event.
type Handler func(event Event)

// Bus provides in-process pub/sub for events.
type Bus struct {
	subscribers map[Type][]Handler
	mu          sync.RWMutex
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[Type][]Handler)}
}

// Subscribe registers a handler for an event type.
func (b *Bus) Subscribe(t Type, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[t] = append(b.subscribers[t], handler)
}

// Publish notifies subscribers of the event type. A nil bus drops events.
func (b *Bus) Publish(event Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	handlers := append([]Handler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	// Handlers run synchronously; caller decides concurrency model.
	for _, handler := range handlers {
		handler(event)
	}
}

// Notify publishes a notice.
func (b *Bus) Notify(level Level, message string) {
	b.Publish(Event{Type: TypeNotice, Notice: Notice{Level: level, Message: message}})
}

// Error publishes an error notice.
func (b *Bus) Error(message string) { b.Notify(LevelError, message) }

// Success publishes a success notice.
func (b *Bus) Success(message string) { b.Notify(LevelSuccess, message) }

// Warn publishes a warning notice.
func (b *Bus) Warn(message string) { b.Notify(LevelWarning, message) }

// Collector records notices, used by front ends that render them after
// each input.
type Collector struct {
	mu      sync.Mutex
	notices []Notice
}

// NewCollector subscribes a collector to bus notices.
func NewCollector(b *Bus) *Collector {
	c := &Collector{}
	b.Subscribe(TypeNotice, func(e Event) {
		c.mu.Lock()
		c.notices = append(c.notices, e.Notice)
		c.mu.Unlock()
	})
	return c
}

// Drain returns and clears collected notices.
func (c *Collector) Drain() []Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.notices
	c.notices = nil
	return out
}
