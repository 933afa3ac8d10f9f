package event_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vimaru/luyenthi/internal/event"
)

type testEvent struct {
	name string
}

func (e testEvent) Name() string { return e.name }

func TestBus(t *testing.T) {
	t.Parallel()

	t.Run("all subscribers receive the event", func(t *testing.T) {
		t.Parallel()

		b := event.NewBus()

		var (
			mu    sync.Mutex
			calls []string
		)
		record := func(tag string) event.Handler {
			return func(ctx context.Context, e event.Event) error {
				mu.Lock()
				calls = append(calls, tag)
				mu.Unlock()
				return nil
			}
		}

		b.Subscribe("thing.happened", record("h1"))
		b.Subscribe("thing.happened", record("h2"))
		b.Subscribe("other.happened", record("h3"))

		b.Publish(context.Background(), testEvent{name: "thing.happened"})
		b.Stop()

		mu.Lock()
		defer mu.Unlock()
		assert.ElementsMatch(t, []string{"h1", "h2"}, calls)
	})

	t.Run("no subscribers is a no-op", func(t *testing.T) {
		t.Parallel()

		b := event.NewBus()
		b.Publish(context.Background(), testEvent{name: "nobody.cares"})
		b.Stop()
	})

	t.Run("panicking handler does not break the bus", func(t *testing.T) {
		t.Parallel()

		b := event.NewBus()

		done := make(chan struct{})
		b.Subscribe("boom", func(ctx context.Context, e event.Event) error {
			panic("handler bug")
		})
		b.Subscribe("boom", func(ctx context.Context, e event.Event) error {
			close(done)
			return nil
		})

		b.Publish(context.Background(), testEvent{name: "boom"})
		b.Stop()

		select {
		case <-done:
		default:
			t.Fatal("second handler never ran")
		}
	})

	t.Run("pool size bounds in-flight handlers", func(t *testing.T) {
		t.Parallel()

		b := event.NewBus(event.WithPoolSize(2))

		var (
			mu      sync.Mutex
			running int
			peak    int
		)
		b.Subscribe("work", func(ctx context.Context, e event.Event) error {
			mu.Lock()
			running++
			if running > peak {
				peak = running
			}
			mu.Unlock()

			time.Sleep(20 * time.Millisecond)

			mu.Lock()
			running--
			mu.Unlock()
			return nil
		})

		for i := 0; i < 5; i++ {
			b.Publish(context.Background(), testEvent{name: "work"})
		}

		b.Stop()

		mu.Lock()
		defer mu.Unlock()
		assert.LessOrEqual(t, peak, 2)
	})
}
