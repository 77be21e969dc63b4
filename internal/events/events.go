package events

import (
	"context"
	"sync"
	"time"

	"habitrefund/internal/models"
)

// EventType represents the type of event.
type EventType string

const (
	// EventSessionEstablished is emitted when a session token is persisted
	EventSessionEstablished EventType = "session.established"
	// EventSessionEnded is emitted on logout
	EventSessionEnded EventType = "session.ended"
	// EventPaymentCompleted is emitted when a deposit is executed
	EventPaymentCompleted EventType = "payment.completed"
	// EventPaymentFailed is emitted when a payment attempt ends in failure
	EventPaymentFailed EventType = "payment.failed"
	// EventProofSubmitted is emitted when the backend accepts a proof
	EventProofSubmitted EventType = "proof.submitted"
)

// Event represents an event in the system.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Data      interface{}
}

// SessionData contains data for session events.
type SessionData struct {
	// Path is "toss" for a native exchange and "stub" for the fallback.
	Path string
}

// PaymentData contains data for payment events.
type PaymentData struct {
	ChallengeID string
	PaymentID   string
	Mode        models.PaymentMode
	Amount      int64
	Reason      string
}

// ProofData contains data for proof events.
type ProofData struct {
	ChallengeID string
	ProofType   models.ProofType
}

// Handler is a function that handles events.
type Handler func(ctx context.Context, event Event) error

// Manager manages event handlers and event publishing.
type Manager struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	enabled  bool
	onError  func(Event, error)
}

// NewManager creates a new event manager.
func NewManager(enabled bool) *Manager {
	return &Manager{
		handlers: make(map[EventType][]Handler),
		enabled:  enabled,
	}
}

// OnError registers a callback for handler failures.
func (m *Manager) OnError(fn func(Event, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onError = fn
}

// Subscribe subscribes a handler to a specific event type.
func (m *Manager) Subscribe(eventType EventType, handler Handler) {
	if m == nil || !m.enabled {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.handlers[eventType] = append(m.handlers[eventType], handler)
}

// Publish publishes an event to all subscribed handlers. Handlers run on
// their own goroutines and never block the publishing flow.
func (m *Manager) Publish(ctx context.Context, eventType EventType, data interface{}) {
	if m == nil || !m.enabled {
		return
	}

	m.mu.RLock()
	handlers := m.handlers[eventType]
	onError := m.onError
	m.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	event := Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}

	// detach from the request context so handlers outlive the flow
	ctx = context.WithoutCancel(ctx)

	for _, handler := range handlers {
		go func(h Handler) {
			if err := h(ctx, event); err != nil && onError != nil {
				onError(event, err)
			}
		}(handler)
	}
}

// PublishSessionEstablished publishes a session established event.
func (m *Manager) PublishSessionEstablished(ctx context.Context, path string) {
	m.Publish(ctx, EventSessionEstablished, SessionData{Path: path})
}

// PublishSessionEnded publishes a session ended event.
func (m *Manager) PublishSessionEnded(ctx context.Context) {
	m.Publish(ctx, EventSessionEnded, SessionData{})
}

// PublishPaymentCompleted publishes a payment completed event.
func (m *Manager) PublishPaymentCompleted(ctx context.Context, data PaymentData) {
	m.Publish(ctx, EventPaymentCompleted, data)
}

// PublishPaymentFailed publishes a payment failed event.
func (m *Manager) PublishPaymentFailed(ctx context.Context, data PaymentData) {
	m.Publish(ctx, EventPaymentFailed, data)
}

// PublishProofSubmitted publishes a proof submitted event.
func (m *Manager) PublishProofSubmitted(ctx context.Context, challengeID string, proofType models.ProofType) {
	m.Publish(ctx, EventProofSubmitted, ProofData{ChallengeID: challengeID, ProofType: proofType})
}

// Shutdown shuts down the event manager.
func (m *Manager) Shutdown() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.enabled = false
	m.handlers = make(map[EventType][]Handler)
}
