package event_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/victornm/quizforge/internal/event"
)

func TestBus_PublishSubscribe(t *testing.T) {
	type (
		inputs struct {
			published   []event.Event
			subscribers []subscriber
		}

		outputs struct {
			received map[string][]event.Event
		}
	)

	tests := map[string]struct {
		arrange func() inputs
		assert  func(t *testing.T, out outputs)
	}{
		"a single subscriber should receive correct event": {
			arrange: func() inputs {
				return inputs{
					published: []event.Event{
						eventWithName("quiz.generated"),
						eventWithName("session.graded"),
					},
					subscribers: []subscriber{
						{
							name:        "s1",
							subscribeTo: []string{"quiz.generated"},
						},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				assert.ElementsMatch(t, []event.Event{eventWithName("quiz.generated")}, out.received["s1"])
			},
		},

		"a single subscriber should receive all dispatched event": {
			arrange: func() inputs {
				return inputs{
					published: []event.Event{
						eventWithName("quiz.generated"),
						eventWithName("quiz.generated"),
					},
					subscribers: []subscriber{
						{
							name:        "s1",
							subscribeTo: []string{"quiz.generated"},
						},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				assert.ElementsMatch(t, []event.Event{eventWithName("quiz.generated"), eventWithName("quiz.generated")}, out.received["s1"])
			},
		},

		"an event should be dispatched to all subscribers": {
			arrange: func() inputs {
				return inputs{
					published: []event.Event{
						eventWithName("quiz.generated"),
					},
					subscribers: []subscriber{
						{
							name:        "s1",
							subscribeTo: []string{"quiz.generated"},
						},
						{
							name:        "s2",
							subscribeTo: []string{"quiz.generated"},
						},
						{
							name:        "s3",
							subscribeTo: []string{"quiz.generated"},
						},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				assert.ElementsMatch(t, []event.Event{eventWithName("quiz.generated")}, out.received["s1"])
				assert.ElementsMatch(t, []event.Event{eventWithName("quiz.generated")}, out.received["s2"])
				assert.ElementsMatch(t, []event.Event{eventWithName("quiz.generated")}, out.received["s3"])
			},
		},

		"multiple events should be dispatched correctly multiple subscribers": {
			arrange: func() inputs {
				return inputs{
					published: []event.Event{
						eventWithName("quiz.generated"),
						eventWithName("session.graded"),
						eventWithName("quiz.generated"),
						eventWithName("e3"),
					},
					subscribers: []subscriber{
						{
							name:        "s1",
							subscribeTo: []string{"quiz.generated"},
						},
						{
							name:        "s2",
							subscribeTo: []string{"quiz.generated", "session.graded"},
						},
						{
							name:        "s3",
							subscribeTo: []string{"e3", "session.graded"},
						},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				assert.ElementsMatch(t, []event.Event{eventWithName("quiz.generated"), eventWithName("quiz.generated")}, out.received["s1"])
				assert.ElementsMatch(t, []event.Event{eventWithName("quiz.generated"), eventWithName("quiz.generated"), eventWithName("session.graded")}, out.received["s2"])
				assert.ElementsMatch(t, []event.Event{eventWithName("session.graded"), eventWithName("e3")}, out.received["s3"])
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			in := tt.arrange()
			mu := sync.Mutex{}
			out := outputs{received: make(map[string][]event.Event)}

			b := event.NewBus(event.WithPoolSize(2))
			for _, s := range in.subscribers {
				for _, e := range s.subscribeTo {
					b.Subscribe(e, func(ctx context.Context, e event.Event) error {
						mu.Lock()
						out.received[s.name] = append(out.received[s.name], e)
						mu.Unlock()
						return nil
					})
				}
			}

			for _, e := range in.published {
				b.Publish(context.Background(), e)
			}
			b.Stop()

			tt.assert(t, out)
		})
	}
}

func TestBus_HandlerFailuresAreIsolated(t *testing.T) {
	b := event.NewBus(event.WithHandlerTimeout(time.Second))

	var (
		mu       sync.Mutex
		received []string
	)
	b.Subscribe("quiz.generated", func(context.Context, event.Event) error {
		panic("boom")
	})
	b.Subscribe("quiz.generated", func(context.Context, event.Event) error {
		return errors.New("failed")
	})
	b.Subscribe("quiz.generated", func(_ context.Context, e event.Event) error {
		mu.Lock()
		received = append(received, e.Name())
		mu.Unlock()
		return nil
	})

	b.Publish(context.Background(), eventWithName("quiz.generated"))
	b.Stop()

	assert.Equal(t, []string{"quiz.generated"}, received)
}

func TestBus_HandlerOutlivesPublisherContext(t *testing.T) {
	b := event.NewBus()

	var handlerErr error
	b.Subscribe("quiz.generated", func(ctx context.Context, _ event.Event) error {
		handlerErr = ctx.Err()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b.Publish(ctx, eventWithName("quiz.generated"))
	b.Stop()

	assert.NoError(t, handlerErr)
}

type eventWithName string

func (e eventWithName) Name() string {
	return string(e)
}

type subscriber struct {
	name        string
	subscribeTo []string
}
