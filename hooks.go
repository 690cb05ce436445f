package tn3270

import (
	"sync"

	"github.com/moodclient/tn3270/screen"
	"github.com/moodclient/tn3270/telnet"
)

// EventHook is a type for function pointers that are registered to receive events
type EventHook[T any] func(terminal *Terminal, data T)

// EventPublisher is a type used to register and fire arbitrary events
type EventPublisher[U any] struct {
	lock sync.Mutex

	registeredHooks []EventHook[U]
}

// NewPublisher creates a new EventPublisher for a particular EventHook. A slice of
// hooks can be passed in- in which case the hooks will be registered to receive events
// from the publisher.  Otherwise, nil can be passed in.
func NewPublisher[U any, T ~func(terminal *Terminal, data U)](hooks []T) *EventPublisher[U] {
	var convertedHooks []EventHook[U]

	for _, hook := range hooks {
		convertedHooks = append(convertedHooks, EventHook[U](hook))
	}

	return &EventPublisher[U]{
		registeredHooks: convertedHooks,
	}
}

// Register registers a single EventHook to receive events from this publisher.
func (e *EventPublisher[U]) Register(hook EventHook[U]) {
	e.lock.Lock()
	defer e.lock.Unlock()

	e.registeredHooks = append(e.registeredHooks, hook)
}

// Fire calls the event for all EventHook instances registered to this publisher with
// the provided parameters
func (e *EventPublisher[U]) Fire(terminal *Terminal, eventData U) {
	e.lock.Lock()
	defer e.lock.Unlock()

	for _, hook := range e.registeredHooks {
		hook(terminal, eventData)
	}
}

// Record is a single datastream record as it crossed the wire, with IAC doubling and the
// IAC EOR terminator removed
type Record struct {
	// HasHeader is false in basic TN3270 sessions, which do not use the TN3270E header
	HasHeader bool
	Header    Header
	Data      []byte
}

// NegotiationEvent is published each time option negotiation changes state
type NegotiationEvent struct {
	Previous NegotiationState
	State    NegotiationState
	// Command is the host command that caused the change
	Command telnet.Command
}

// TelnetCommandEvent is published for each telnet command sent or received
type TelnetCommandEvent struct {
	Command  telnet.Command
	Outbound bool
}

// ErrorHandler is an event hook type that receives errors
type ErrorHandler func(t *Terminal, err error)

// RecordHandler is an event hook type that receives datastream records
type RecordHandler func(t *Terminal, record Record)

// ScreenUpdateHandler is an event hook type that receives screen changes
type ScreenUpdateHandler func(t *Terminal, event screen.UpdateEvent)

// NegotiationHandler is an event hook type that receives negotiation state changes
type NegotiationHandler func(t *Terminal, event NegotiationEvent)

// TelnetCommandHandler is an event hook type that receives telnet commands
type TelnetCommandHandler func(t *Terminal, event TelnetCommandEvent)

// EventHooks is used to pass in a set of pre-registered event hooks to a Terminal
// when calling NewTerminal.  See TerminalConfig for more info.
type EventHooks struct {
	EncounteredError []ErrorHandler
	InboundRecord    []RecordHandler
	OutboundRecord   []RecordHandler
	ScreenUpdate     []ScreenUpdateHandler
	Negotiation      []NegotiationHandler
	TelnetCommand    []TelnetCommandHandler
}
