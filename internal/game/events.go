package game

import (
	"sync"
	"time"

	"github.com/lox/chukrum/internal/deck"
)

// EventType represents a game event type with type safety
type EventType string

// EventType constants for round events. Events only carry public
// information: positions and face-up cards, never hidden faces.
const (
	EventTypeRoundStarted  EventType = "round_started"
	EventTypeCardDrawn     EventType = "card_drawn"
	EventTypeCardDiscarded EventType = "card_discarded"
	EventTypeCardSwapped   EventType = "card_swapped"
	EventTypeCardPeeked    EventType = "card_peeked"
	EventTypeCrossSwapped  EventType = "cross_swapped"
	EventTypeMatched       EventType = "matched"
	EventTypeMatchFailed   EventType = "match_failed"
	EventTypeChukrumCalled EventType = "chukrum_called"
	EventTypeScrambled     EventType = "scrambled"
	EventTypeTurnEnded     EventType = "turn_ended"
	EventTypeRoundEnded    EventType = "round_ended"
)

// String returns the string representation of the event type
func (et EventType) String() string {
	return string(et)
}

// GameEvent represents anything that happens during a round
type GameEvent interface {
	EventType() EventType
	Timestamp() time.Time
}

type baseEvent struct {
	RoundID string
	Seat    Seat
	At      time.Time
}

func (e baseEvent) Timestamp() time.Time { return e.At }

// RoundStartedEvent is published after the deal
type RoundStartedEvent struct {
	baseEvent
	First      Seat
	HandSize   int
	DiscardTop deck.Card
}

// CardDrawnEvent is published when Seat draws. The face stays hidden.
type CardDrawnEvent struct {
	baseEvent
	DeckLeft int
}

// CardDiscardedEvent is published whenever a card lands face up on the pile
type CardDiscardedEvent struct {
	baseEvent
	Card deck.Card
}

// CardSwappedEvent is published when Seat swaps the drawn card into Pos
type CardSwappedEvent struct {
	baseEvent
	Pos int
}

// CardPeekedEvent records which position was looked at, not what was seen
type CardPeekedEvent struct {
	baseEvent
	Side Side
	Pos  int
}

// CrossSwappedEvent is published when a Queen or King exchanges cards
type CrossSwappedEvent struct {
	baseEvent
	Own      int
	Opponent int
}

// MatchedEvent is published on a successful match-discard
type MatchedEvent struct {
	baseEvent
	Pos  int
	Card deck.Card
}

// MatchFailedEvent is published on a wrong match-discard
type MatchFailedEvent struct {
	baseEvent
	Pos     int
	Penalty bool
}

// ChukrumCalledEvent is published when Seat calls Chukrum
type ChukrumCalledEvent struct {
	baseEvent
}

// ScrambledEvent is published when Seat reorders the opponent's hand
type ScrambledEvent struct {
	baseEvent
}

// TurnEndedEvent is published after every completed turn
type TurnEndedEvent struct {
	baseEvent
	Next       Seat
	TurnNumber int
}

// RoundEndedEvent carries the final outcome
type RoundEndedEvent struct {
	baseEvent
	Outcome Outcome
	Hands   [2][]deck.Card
}

func (RoundStartedEvent) EventType() EventType  { return EventTypeRoundStarted }
func (CardDrawnEvent) EventType() EventType     { return EventTypeCardDrawn }
func (CardDiscardedEvent) EventType() EventType { return EventTypeCardDiscarded }
func (CardSwappedEvent) EventType() EventType   { return EventTypeCardSwapped }
func (CardPeekedEvent) EventType() EventType    { return EventTypeCardPeeked }
func (CrossSwappedEvent) EventType() EventType  { return EventTypeCrossSwapped }
func (MatchedEvent) EventType() EventType       { return EventTypeMatched }
func (MatchFailedEvent) EventType() EventType   { return EventTypeMatchFailed }
func (ChukrumCalledEvent) EventType() EventType { return EventTypeChukrumCalled }
func (ScrambledEvent) EventType() EventType     { return EventTypeScrambled }
func (TurnEndedEvent) EventType() EventType     { return EventTypeTurnEnded }
func (RoundEndedEvent) EventType() EventType    { return EventTypeRoundEnded }

// EventSubscriber can subscribe to game events
type EventSubscriber interface {
	OnEvent(event GameEvent)
}

// EventBus manages event publishing and subscription
type EventBus interface {
	Subscribe(subscriber EventSubscriber)
	Unsubscribe(subscriber EventSubscriber)
	Publish(event GameEvent)
}

// SimpleEventBus is a basic in-memory event bus implementation
type SimpleEventBus struct {
	mu          sync.RWMutex
	subscribers []EventSubscriber
}

// NewEventBus creates a new event bus
func NewEventBus() EventBus {
	return &SimpleEventBus{}
}

// Subscribe adds a subscriber to receive events
func (bus *SimpleEventBus) Subscribe(subscriber EventSubscriber) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.subscribers = append(bus.subscribers, subscriber)
}

// Unsubscribe removes a subscriber from receiving events
func (bus *SimpleEventBus) Unsubscribe(subscriber EventSubscriber) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	for i, sub := range bus.subscribers {
		if sub == subscriber {
			bus.subscribers = append(bus.subscribers[:i], bus.subscribers[i+1:]...)
			break
		}
	}
}

// Publish delivers an event to all subscribers synchronously
func (bus *SimpleEventBus) Publish(event GameEvent) {
	bus.mu.RLock()
	subs := append([]EventSubscriber(nil), bus.subscribers...)
	bus.mu.RUnlock()
	for _, subscriber := range subs {
		subscriber.OnEvent(event)
	}
}

// EventRecorder collects events; useful for logs and tests
type EventRecorder struct {
	mu     sync.Mutex
	events []GameEvent
}

func (r *EventRecorder) OnEvent(event GameEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns a copy of everything recorded so far
func (r *EventRecorder) Events() []GameEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]GameEvent(nil), r.events...)
}

// Types returns the recorded event types in order
func (r *EventRecorder) Types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]EventType, len(r.events))
	for i, e := range r.events {
		types[i] = e.EventType()
	}
	return types
}
