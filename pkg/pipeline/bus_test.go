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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBusDeliversInSubscriptionOrder(t *testing.T) {
	bus := NewBus(nil)

	var got []string
	bus.Subscribe("greetings", func(_ context.Context, e Event) {
		got = append(got, "first:"+e.Payload.(string))
	})
	bus.Subscribe("greetings", func(_ context.Context, e Event) {
		got = append(got, "second:"+e.Payload.(string))
	})

	bus.Publish(context.Background(), Event{Topic: "greetings", Payload: "hello"})

	assert.Equal(t, []string{"first:hello", "second:hello"}, got)
}

func TestBusScopesByTopic(t *testing.T) {
	bus := NewBus(nil)

	var calls int
	bus.Subscribe("wanted", func(context.Context, Event) { calls++ })

	bus.Publish(context.Background(), Event{Topic: "other", Payload: 1})
	assert.Zero(t, calls)

	bus.Publish(context.Background(), Event{Topic: "wanted", Payload: 1})
	assert.Equal(t, 1, calls)
}

func TestBusIsolatesPanickingHandler(t *testing.T) {
	bus := NewBus(nil)

	var survived bool
	bus.Subscribe("jobs", func(context.Context, Event) { panic("broken sink") })
	bus.Subscribe("jobs", func(context.Context, Event) { survived = true })

	assert.NotPanics(t, func() {
		bus.Publish(context.Background(), Event{Topic: "jobs"})
	})
	assert.True(t, survived, "handlers after the panicking one still run")
}

func TestBusIgnoresNilHandler(t *testing.T) {
	bus := NewBus(nil)
	bus.Subscribe("jobs", nil)

	assert.NotPanics(t, func() {
		bus.Publish(context.Background(), Event{Topic: "jobs"})
	})
}

func TestBusPublishWithoutSubscribers(t *testing.T) {
	bus := NewBus(nil)

	assert.NotPanics(t, func() {
		bus.Publish(context.Background(), Event{Topic: "nobody-home", Payload: 42})
	})
}

func TestBusConcurrentSubscribeAndPublish(t *testing.T) {
	bus := NewBus(nil)

	var mu sync.Mutex
	delivered := 0
	bus.Subscribe("load", func(context.Context, Event) {
		mu.Lock()
		delivered++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				bus.Publish(context.Background(), Event{Topic: "load"})
			}
		}()
	}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Subscribe("late", func(context.Context, Event) {})
		}()
	}
	wg.Wait()

	assert.Equal(t, 80, delivered)
}
