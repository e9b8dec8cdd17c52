// Package lookupevents publishes one Kafka message per finished lookup. Events
// carry the outcome and sector only, never coordinates or address text.
package lookupevents

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/statsector/internal/core/model"
	"github.com/mohammed-shakir/statsector/internal/core/observability"
)

type Event struct {
	SectorID string    `json:"sector_id,omitempty"`
	Source   string    `json:"source"`
	Outcome  string    `json:"outcome"`
	TS       time.Time `json:"ts"`
}

// Publisher queues events and hands them to an async producer from a single
// goroutine. A full queue drops the event rather than block the request.
type Publisher struct {
	topic   string
	events  chan Event
	prod    sarama.AsyncProducer
	logger  *slog.Logger
	now     func() time.Time
	stopped chan struct{}
	errDone chan struct{}

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

func NewConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Producer.Return.Errors = true
	cfg.Producer.Return.Successes = false
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	return cfg
}

// Dial connects an async producer to brokers and wraps it.
func Dial(brokers []string, topic string, queueSize int, logger *slog.Logger) (*Publisher, error) {
	prod, err := sarama.NewAsyncProducer(brokers, NewConfig())
	if err != nil {
		return nil, fmt.Errorf("lookupevents: create async producer: %w", err)
	}
	return New(prod, topic, queueSize, logger), nil
}

// New takes ownership of prod; Close closes it.
func New(prod sarama.AsyncProducer, topic string, queueSize int, logger *slog.Logger) *Publisher {
	if queueSize <= 0 {
		queueSize = 1024
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	p := &Publisher{
		topic:   topic,
		events:  make(chan Event, queueSize),
		prod:    prod,
		logger:  logger,
		now:     time.Now,
		stopped: make(chan struct{}),
		errDone: make(chan struct{}),
	}

	go func() {
		defer close(p.stopped)
		for ev := range p.events {
			b, err := json.Marshal(ev)
			if err != nil {
				p.logger.Error("lookupevents: marshal", "err", err)
				continue
			}
			p.prod.Input() <- &sarama.ProducerMessage{
				Topic: p.topic,
				Key:   sarama.StringEncoder(ev.SectorID),
				Value: sarama.ByteEncoder(b),
			}
		}
	}()

	go func() {
		defer close(p.errDone)
		for err := range p.prod.Errors() {
			if err != nil {
				observability.IncLookupEventDropped()
				p.logger.Warn("lookupevents: producer error", "err", err.Err)
			}
		}
	}()

	return p
}

// Record implements lookup.Recorder.
func (p *Publisher) Record(_ context.Context, source model.Mode, r model.LookupResult) {
	ev := Event{
		SectorID: r.SectorID,
		Source:   string(source),
		Outcome:  r.Status.String(),
		TS:       p.now().UTC(),
	}
	if r.Err != nil {
		ev.Outcome = string(r.Err.Kind)
	}
	p.Publish(ev)
}

func (p *Publisher) Publish(ev Event) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.events <- ev:
	default:
		observability.IncLookupEventDropped()
	}
}

// Close drains queued events into the producer and closes it.
func (p *Publisher) Close() error {
	var err error
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.events)
		p.mu.Unlock()
		<-p.stopped

		if cerr := p.prod.Close(); cerr != nil {
			err = fmt.Errorf("lookupevents: close producer: %w", cerr)
		}
		<-p.errDone
	})
	return err
}
