package kafka

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-shop-orders/internal/events"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type fakeWriter struct {
	mu     sync.Mutex
	fails  int
	got    []kafka.Message
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fails > 0 {
		w.fails--
		return errors.New("broker unavailable")
	}
	w.got = append(w.got, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func TestProducerFlushesOnClose(t *testing.T) {
	w := &fakeWriter{fails: 1}
	p := newProducer(w, events.TopicOrderPlaced, 8, quietLogger())
	p.Start(context.Background())

	p.Publish([]byte("o-1"), []byte("a"))
	p.Publish([]byte("o-2"), []byte("b"))
	p.Close()
	p.Close()
	p.WaitClosed()

	require.Len(t, w.got, 2)
	assert.Equal(t, "o-1", string(w.got[0].Key))
	assert.True(t, w.closed)
}

type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.msgs) > 0 {
		m := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func runConsumer(t *testing.T, r *fakeReader, want int, h Handler) map[int64]int {
	t.Helper()
	c := newConsumer(r, 1, quietLogger())
	c.backoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu    sync.Mutex
		calls = map[int64]int{}
	)
	go func() {
		// stop once every message is committed
		for {
			r.mu.Lock()
			n := len(r.committed)
			r.mu.Unlock()
			if n >= want {
				cancel()
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()

	err := c.Start(ctx, func(ctx context.Context, m kafka.Message) error {
		mu.Lock()
		calls[m.Offset]++
		mu.Unlock()
		return h(ctx, m)
	})
	require.NoError(t, err)
	return calls
}

func TestConsumerRetriesFailedMessageBeforeCommit(t *testing.T) {
	r := &fakeReader{msgs: []kafka.Message{{Offset: 1}, {Offset: 2}, {Offset: 3}}}
	var failures int
	calls := runConsumer(t, r, 3, func(_ context.Context, m kafka.Message) error {
		if m.Offset == 2 && failures < 2 {
			failures++
			return errors.New("redis timeout")
		}
		return nil
	})

	assert.Equal(t, 3, calls[2])
	r.mu.Lock()
	defer r.mu.Unlock()
	assert.Equal(t, []int64{1, 2, 3}, r.committed)
}

func TestConsumerSkipsPermanentFailures(t *testing.T) {
	r := &fakeReader{msgs: []kafka.Message{{Offset: 1}, {Offset: 2}}}
	calls := runConsumer(t, r, 2, func(_ context.Context, m kafka.Message) error {
		if m.Offset == 1 {
			return Permanent(errors.New("bad json"))
		}
		return nil
	})

	assert.Equal(t, 1, calls[1])
	r.mu.Lock()
	defer r.mu.Unlock()
	assert.Equal(t, []int64{1, 2}, r.committed)
}

func TestConsumerLeavesFailingMessageUncommittedOnShutdown(t *testing.T) {
	r := &fakeReader{msgs: []kafka.Message{{Offset: 7}}}
	c := newConsumer(r, 1, quietLogger())
	c.backoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	require.NoError(t, c.Start(ctx, func(context.Context, kafka.Message) error {
		attempts++
		if attempts == 3 {
			cancel()
		}
		return errors.New("db down")
	}))

	assert.Empty(t, r.committed)
}

func TestPublishAfterCloseIsDropped(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, events.TopicOrderPlaced, 1, quietLogger())
	p.Start(context.Background())
	p.Close()

	assert.NotPanics(t, func() { p.Publish([]byte("late"), []byte("x")) })
	p.WaitClosed()
	assert.Empty(t, w.got)
}

func TestEnvelopeMessageRoundTrip(t *testing.T) {
	env, err := events.New(events.EventStockLow, "stock-watcher", "o-9", "", events.StockLowPayload{ProductID: "p", Available: 2, Threshold: 5})
	require.NoError(t, err)

	value, headers, err := EnvelopeMessage(env)
	require.NoError(t, err)
	require.Len(t, headers, 2)
	assert.Equal(t, events.EventStockLow, string(headers[0].Value))
	assert.Equal(t, "1", string(headers[1].Value))

	got, err := UnmarshalEnvelope(value)
	require.NoError(t, err)
	p, err := UnwrapPayload[events.StockLowPayload](got.Payload)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Available)
	assert.WithinDuration(t, env.OccurredAt, got.OccurredAt, time.Millisecond)
}
