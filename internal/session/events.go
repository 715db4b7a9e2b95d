// Package session owns the trading session lifecycle: the state machine,
// the periodic update scheduler and the event stream consumed by UI layers.
package session

import (
	"github.com/asaskevich/EventBus"
)

// Event topics published by the controller and scheduler.
const (
	TopicSessionStarted    = "session:started"
	TopicSessionPaused     = "session:paused"
	TopicSessionResumed    = "session:resumed"
	TopicSessionStopped    = "session:stopped"
	TopicPositionsRevalued = "positions:revalued"
	TopicTradeExecuted     = "trade:executed"
	TopicSignalGenerated   = "signal:generated"
	TopicNotification      = "notification"
)

// Events wraps an in-process event bus. Each controller owns its own bus
// so multiple sessions and tests run independently.
type Events struct {
	bus EventBus.Bus
}

// NewEvents creates an event stream.
func NewEvents() *Events {
	return &Events{bus: EventBus.New()}
}

// Publish emits an event on a topic.
func (e *Events) Publish(topic string, payload interface{}) {
	e.bus.Publish(topic, payload)
}

// Subscribe registers a handler for a topic. Handlers run synchronously in
// publish order, which keeps tick-side effects deterministic.
func (e *Events) Subscribe(topic string, handler interface{}) error {
	return e.bus.Subscribe(topic, handler)
}

// SubscribeAsync registers a handler that runs on its own goroutine.
func (e *Events) SubscribeAsync(topic string, handler interface{}) error {
	return e.bus.SubscribeAsync(topic, handler, false)
}

// Unsubscribe removes a handler from a topic.
func (e *Events) Unsubscribe(topic string, handler interface{}) error {
	return e.bus.Unsubscribe(topic, handler)
}
