// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package pipeline

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/teradata-labs/heddle/pkg/session"
)

// Event is a message published on the bus.
type Event struct {
	Topic   string
	Payload any
}

// Handler consumes events for one topic. Handlers run synchronously on the
// publisher's goroutine, in subscription order.
type Handler func(ctx context.Context, event Event)

// Bus is a minimal in-process topic bus. A panicking handler is logged and
// isolated; the remaining handlers for the event still run.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	logger   *zap.Logger
}

// NewBus creates an empty bus. A nil logger disables panic logging.
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		handlers: make(map[string][]Handler),
		logger:   logger,
	}
}

// Subscribe registers a handler for a topic. Subscribing during a Publish
// does not affect the in-flight delivery.
func (b *Bus) Subscribe(topic string, handler Handler) {
	if handler == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], handler)
}

// Publish delivers the event to every handler subscribed to its topic and
// returns once all of them have run.
func (b *Bus) Publish(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Topic]))
	copy(handlers, b.handlers[event.Topic])
	b.mu.RUnlock()

	for _, handler := range handlers {
		b.dispatch(ctx, event, handler)
	}
}

func (b *Bus) dispatch(ctx context.Context, event Event, handler Handler) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				zap.String("topic", event.Topic),
				zap.String("session_id", session.SessionIDFromContext(ctx)),
				zap.String("task_id", session.TaskIDFromContext(ctx)),
				zap.Any("panic", r),
				zap.Stack("stack"))
		}
	}()
	handler(ctx, event)
}
