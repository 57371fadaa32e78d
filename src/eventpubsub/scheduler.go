package eventpubsub

import (
	"fmt"
	"sort"

	"github.com/asaskevich/EventBus"
	log "github.com/sirupsen/logrus"

	"github.com/quantsim/quantsim/src/eventmodels"
)

// DispatchError carries the event whose handler failed. The scheduler
// stops at the first failure; replay is deterministic, so retrying
// without fixing the input stream is pointless.
type DispatchError struct {
	Event eventmodels.TimedEvent
	Err   error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch %s @ %s: %v", e.Event.EventType(), e.Event.EventTime(), e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

type Handler func(event eventmodels.TimedEvent) error

type queuedEvent struct {
	event eventmodels.TimedEvent
	seq   uint64
}

// Scheduler delivers events to registered handlers in strict
// (timestamp, category precedence, publish sequence) order. Dispatch
// is single-threaded and cooperative: a handler runs to completion
// before the next event is popped, and a publish made from inside a
// handler is queued rather than dispatched on the caller's stack.
type Scheduler struct {
	bus      EventBus.Bus
	handlers map[eventmodels.EventType][]Handler
	pending  []queuedEvent
	seq      uint64
	failure  *DispatchError
}

func NewScheduler() *Scheduler {
	s := &Scheduler{
		bus:      EventBus.New(),
		handlers: make(map[eventmodels.EventType][]Handler),
	}

	for _, topic := range topics {
		t := topic
		if err := s.bus.Subscribe(string(t), func(event eventmodels.TimedEvent) {
			s.dispatch(t, event)
		}); err != nil {
			log.Fatalf("NewScheduler: failed to subscribe to %s: %v", t, err)
		}
	}

	return s
}

func (s *Scheduler) Subscribe(eventType eventmodels.EventType, handler Handler) {
	s.handlers[eventType] = append(s.handlers[eventType], handler)
}

// Publish queues an event. Events published with equal timestamps are
// dispatched in category order (bar, signal, order, fill) and, within
// a category, in publish order.
func (s *Scheduler) Publish(event eventmodels.TimedEvent) {
	q := queuedEvent{event: event, seq: s.seq}
	s.seq++

	idx := sort.Search(len(s.pending), func(i int) bool {
		return s.less(q, s.pending[i])
	})

	s.pending = append(s.pending, queuedEvent{})
	copy(s.pending[idx+1:], s.pending[idx:])
	s.pending[idx] = q
}

func (s *Scheduler) less(a, b queuedEvent) bool {
	if !a.event.EventTime().Equal(b.event.EventTime()) {
		return a.event.EventTime().Before(b.event.EventTime())
	}

	pa, pb := a.event.EventType().Precedence(), b.event.EventType().Precedence()
	if pa != pb {
		return pa < pb
	}

	return a.seq < b.seq
}

// Drain dispatches queued events until the queue is empty or a
// handler fails. Handlers may publish further events while draining.
func (s *Scheduler) Drain() error {
	for len(s.pending) > 0 {
		if s.failure != nil {
			break
		}

		next := s.pending[0]
		s.pending = s.pending[1:]

		s.bus.Publish(string(next.event.EventType()), next.event)
	}

	if s.failure != nil {
		failure := s.failure
		s.failure = nil
		s.pending = nil
		return failure
	}

	return nil
}

func (s *Scheduler) QueueLen() int {
	return len(s.pending)
}

func (s *Scheduler) dispatch(eventType eventmodels.EventType, event eventmodels.TimedEvent) {
	if s.failure != nil {
		return
	}

	for _, handler := range s.handlers[eventType] {
		if err := handler(event); err != nil {
			s.failure = &DispatchError{Event: event, Err: err}
			return
		}
	}
}
