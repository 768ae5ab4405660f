// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package event

import (
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EventQueueSize is the buffer of each subscriber channel
const EventQueueSize = 32

type EventType string

type EventSubscriberId uint64

type EventHandlerFunc func(Event)

type Event struct {
	Timestamp time.Time
	Data      any
	Type      EventType
}

func NewEvent(eventType EventType, eventData any) Event {
	return Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      eventData,
	}
}

type subscription struct {
	id EventSubscriberId
	ch chan Event
}

// EventBus fans out ledger, governance and anchoring events. Publishers
// emit after releasing their own locks. Delivery never blocks: a
// subscriber with a full buffer misses the event.
type EventBus struct {
	mu       sync.RWMutex
	subs     map[EventType][]*subscription
	lastId   EventSubscriberId
	stopped  bool
	handlers sync.WaitGroup
	metrics  *eventMetrics
	logger   *slog.Logger
}

func NewEventBus(
	promRegistry prometheus.Registerer,
	logger *slog.Logger,
) *EventBus {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	e := &EventBus{
		subs:   make(map[EventType][]*subscription),
		logger: logger.With("component", "event"),
	}
	if promRegistry != nil {
		e.metrics = newEventMetrics(promRegistry)
	}
	return e
}

// Subscribe returns a channel receiving events of one type. The channel
// is closed by Unsubscribe or Stop. Subscribing to a stopped bus returns
// a closed channel.
func (e *EventBus) Subscribe(
	eventType EventType,
) (EventSubscriberId, <-chan Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastId++
	sub := &subscription{
		id: e.lastId,
		ch: make(chan Event, EventQueueSize),
	}
	if e.stopped {
		close(sub.ch)
		return sub.id, sub.ch
	}
	e.subs[eventType] = append(e.subs[eventType], sub)
	if e.metrics != nil {
		e.metrics.subscribers.WithLabelValues(string(eventType)).Inc()
	}
	return sub.id, sub.ch
}

// SubscribeFunc runs handlerFunc for each event on its own goroutine,
// which Stop waits for
func (e *EventBus) SubscribeFunc(
	eventType EventType,
	handlerFunc EventHandlerFunc,
) EventSubscriberId {
	subId, evtCh := e.Subscribe(eventType)
	e.handlers.Add(1)
	go func() {
		defer e.handlers.Done()
		for evt := range evtCh {
			handlerFunc(evt)
		}
	}()
	return subId
}

func (e *EventBus) Unsubscribe(eventType EventType, subId EventSubscriberId) {
	e.mu.Lock()
	defer e.mu.Unlock()
	subs := e.subs[eventType]
	idx := slices.IndexFunc(subs, func(s *subscription) bool {
		return s.id == subId
	})
	if idx < 0 {
		return
	}
	close(subs[idx].ch)
	e.subs[eventType] = slices.Delete(subs, idx, idx+1)
	if len(e.subs[eventType]) == 0 {
		delete(e.subs, eventType)
	}
	if e.metrics != nil {
		e.metrics.subscribers.WithLabelValues(string(eventType)).Dec()
	}
}

// Publish delivers evt to every subscriber of eventType that has room
// for it. Channels are only closed under the write lock, so sending
// under the read lock is safe.
func (e *EventBus) Publish(eventType EventType, evt Event) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.stopped {
		return
	}
	for _, sub := range e.subs[eventType] {
		select {
		case sub.ch <- evt:
		default:
			e.logger.Debug(
				"subscriber buffer full, dropping event",
				"type", eventType,
				"subscriber", sub.id,
			)
			if e.metrics != nil {
				e.metrics.dropped.WithLabelValues(string(eventType)).Inc()
			}
		}
	}
	if e.metrics != nil {
		e.metrics.eventsTotal.WithLabelValues(string(eventType)).Inc()
	}
}

// Emit wraps data in an Event stamped now and publishes it
func (e *EventBus) Emit(eventType EventType, data any) {
	e.Publish(eventType, NewEvent(eventType, data))
}

// Stop closes every subscriber channel and waits for SubscribeFunc
// handlers to drain. Later publishes are ignored. Stop may be called
// more than once.
func (e *EventBus) Stop() {
	e.mu.Lock()
	if !e.stopped {
		e.stopped = true
		for _, subs := range e.subs {
			for _, sub := range subs {
				close(sub.ch)
			}
		}
		clear(e.subs)
		if e.metrics != nil {
			e.metrics.subscribers.Reset()
		}
	}
	e.mu.Unlock()
	e.handlers.Wait()
}
