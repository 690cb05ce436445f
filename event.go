package tn3270

import (
	"sync"

	"github.com/moodclient/tn3270/screen"
)

type eventType byte

const (
	eventUnknown eventType = iota
	eventError
	eventInboundRecord
	eventOutboundRecord
	eventScreenUpdate
	eventNegotiation
	eventTelnetCommand
)

type eventsTransport struct {
	eventType    eventType
	err          error
	record       Record
	screenUpdate screen.UpdateEvent
	negotiation  NegotiationEvent
	command      TelnetCommandEvent
}

// terminalEventPump delivers events to hooks on its own goroutine, in the order they were
// raised, so that slow hooks do not hold up the printer loop or the screen. The queue is
// unbounded: screen updates are raised with the screen locked, and a hook that reads the
// screen must never leave the screen waiting on the queue.
type terminalEventPump struct {
	lock    sync.Mutex
	queue   []eventsTransport
	wake    chan struct{}
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

func newEventPump() *terminalEventPump {
	return &terminalEventPump{
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

func (p *terminalEventPump) processEvent(terminal *Terminal, event eventsTransport) {
	switch event.eventType {
	case eventError:
		terminal.encounteredErrorHooks.Fire(terminal, event.err)
	case eventInboundRecord:
		terminal.inboundRecordHooks.Fire(terminal, event.record)
	case eventOutboundRecord:
		terminal.outboundRecordHooks.Fire(terminal, event.record)
	case eventScreenUpdate:
		terminal.screenUpdateHooks.Fire(terminal, event.screenUpdate)
	case eventNegotiation:
		terminal.negotiationHooks.Fire(terminal, event.negotiation)
	case eventTelnetCommand:
		terminal.telnetCommandHooks.Fire(terminal, event.command)
	default:
		panic("invalid event")
	}
}

// take empties the queue
func (p *terminalEventPump) take() []eventsTransport {
	p.lock.Lock()
	defer p.lock.Unlock()

	events := p.queue
	p.queue = nil
	return events
}

// deliver processes everything queued so far and reports whether there was anything
func (p *terminalEventPump) deliver(terminal *Terminal) bool {
	events := p.take()
	for _, ev := range events {
		p.processEvent(terminal, ev)
	}

	return len(events) > 0
}

// loopCleanup delivers whatever was queued before the pump stopped
func (p *terminalEventPump) loopCleanup(terminal *Terminal) {
	defer close(p.stopped)

	for p.deliver(terminal) {
	}
}

func (p *terminalEventPump) TerminalLoop(terminal *Terminal) {
	defer p.loopCleanup(terminal)

	for {
		if p.deliver(terminal) {
			continue
		}

		select {
		case <-p.wake:
		case <-p.done:
			return
		}
	}
}

// Stop ends the loop and waits for queued events to be delivered
func (p *terminalEventPump) Stop() {
	p.once.Do(func() {
		close(p.done)
	})

	<-p.stopped
}

// send queues an event without blocking. Events raised after the pump stops are dropped.
func (p *terminalEventPump) send(event eventsTransport) {
	select {
	case <-p.done:
		return
	default:
	}

	p.lock.Lock()
	p.queue = append(p.queue, event)
	p.lock.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *terminalEventPump) EncounteredError(err error) {
	p.send(eventsTransport{eventType: eventError, err: err})
}

func (p *terminalEventPump) InboundRecord(record Record) {
	p.send(eventsTransport{eventType: eventInboundRecord, record: record})
}

func (p *terminalEventPump) OutboundRecord(record Record) {
	p.send(eventsTransport{eventType: eventOutboundRecord, record: record})
}

func (p *terminalEventPump) ScreenUpdate(event screen.UpdateEvent) {
	p.send(eventsTransport{eventType: eventScreenUpdate, screenUpdate: event})
}

func (p *terminalEventPump) Negotiation(event NegotiationEvent) {
	p.send(eventsTransport{eventType: eventNegotiation, negotiation: event})
}

func (p *terminalEventPump) TelnetCommand(command TelnetCommandEvent) {
	p.send(eventsTransport{eventType: eventTelnetCommand, command: command})
}
