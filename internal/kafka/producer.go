package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// writer is the subset of *kafka.Writer the producer uses.
type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer buffers messages and writes them from a single goroutine.
type Producer struct {
	w        writer
	topic    string
	log      logrus.FieldLogger
	inbox   chan kafka.Message
	closeCh chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewProducer(brokers []string, topic string, buf int, log logrus.FieldLogger) *Producer {
	return newProducer(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}, topic, buf, log)
}

func newProducer(w writer, topic string, buf int, log logrus.FieldLogger) *Producer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Producer{
		w:       w,
		topic:   topic,
		log:     log.WithField("topic", topic),
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
	}
}

// Start runs the write loop until Close is called. Messages still queued at
// that point are flushed before the writer closes.
func (p *Producer) Start(ctx context.Context) {
	go func() {
		defer close(p.closeCh)
		for m := range p.inbox {
			p.write(ctx, m)
		}
		if err := p.w.Close(); err != nil {
			p.log.WithError(err).Warn("kafka writer close")
		}
	}()
}

func (p *Producer) write(ctx context.Context, m kafka.Message) {
	wctx := context.WithoutCancel(ctx)
	for attempt := 1; ; attempt++ {
		err := p.w.WriteMessages(wctx, m)
		if err == nil {
			return
		}
		if attempt == 3 {
			p.log.WithError(err).WithField("key", string(m.Key)).Error("kafka publish dropped")
			return
		}
		p.log.WithError(err).WithField("attempt", attempt).Warn("kafka publish retry")
		time.Sleep(time.Duration(attempt) * 200 * time.Millisecond)
	}
}

// Publish queues a message. After Close the message is dropped and logged.
func (p *Producer) Publish(key, value []byte, headers ...kafka.Header) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.log.WithField("key", string(key)).Error("kafka publish after close dropped")
		return
	}
	p.inbox <- kafka.Message{
		Key:     key,
		Value:   value,
		Time:    time.Now(),
		Headers: headers,
	}
}

// Close stops accepting messages. Safe to call more than once and
// concurrently with Publish.
func (p *Producer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.inbox)
	}
}

// WaitClosed blocks until the queue is flushed and the writer closed.
func (p *Producer) WaitClosed() { <-p.closeCh }
