package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/segmentio/kafka-go"

	"github.com/phillip/levy-collector-go/metrics"
	"github.com/phillip/levy-collector-go/store"
)

type KafkaConfig struct {
	Enabled bool
	Topic   string
	Brokers []string
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

const publisherQueueSize = 256

var errQueueFull = errors.New("kafka publish queue full")

// Publisher forwards feed events to Kafka from a single background loop,
// keyed by transaction id.
type Publisher struct {
	cfg     KafkaConfig
	log     *slog.Logger
	metrics *metrics.Metrics
	writer  messageWriter
	queue   chan kafka.Message

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewPublisher returns nil when publishing is disabled. A nil *Publisher
// accepts and drops every event.
func NewPublisher(cfg KafkaConfig, m *metrics.Metrics, log *slog.Logger) (*Publisher, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, fmt.Errorf("kafka topic must not be empty")
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one kafka broker is required")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
	return newPublisher(cfg, w, m, log), nil
}

func newPublisher(cfg KafkaConfig, w messageWriter, m *metrics.Metrics, log *slog.Logger) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{
		cfg:     cfg,
		log:     log.With("component", "kafka_publisher"),
		metrics: m,
		writer:  w,
		queue:   make(chan kafka.Message, publisherQueueSize),
	}
}

func (p *Publisher) Start(ctx context.Context) {
	if p == nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.wg.Add(1)
	go p.run(runCtx)
	p.log.Info("kafka publisher started", "topic", p.cfg.Topic)
}

// Publish enqueues ev. It never blocks; a full queue drops the event.
func (p *Publisher) Publish(ev store.ChangeEvent) error {
	if p == nil {
		return nil
	}
	value, err := json.Marshal(ev)
	if err != nil {
		p.metrics.KafkaPublish(false)
		return err
	}
	select {
	case p.queue <- kafka.Message{Key: []byte(ev.Record.ID), Value: value}:
		return nil
	default:
		p.metrics.KafkaPublish(false)
		p.log.Warn("kafka queue full, event dropped", "id", ev.Record.ID)
		return errQueueFull
	}
}

func (p *Publisher) run(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			p.drain()
			return
		case msg := <-p.queue:
			p.deliver(ctx, msg)
		}
	}
}

func (p *Publisher) drain() {
	for {
		select {
		case msg := <-p.queue:
			p.deliver(context.Background(), msg)
		default:
			return
		}
	}
}

func (p *Publisher) deliver(ctx context.Context, msg kafka.Message) {
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.metrics.KafkaPublish(false)
		p.log.Error("kafka publish failed", "id", string(msg.Key), "err", err)
		return
	}
	p.metrics.KafkaPublish(true)
}

// Stop drains the queue and closes the writer.
func (p *Publisher) Stop() error {
	if p == nil {
		return nil
	}
	var err error
	p.stopOnce.Do(func() {
		if p.cancel != nil {
			p.cancel()
		}
		p.wg.Wait()
		err = p.writer.Close()
		p.log.Info("kafka publisher stopped")
	})
	return err
}
