package realtime

import (
	"context"
	"log/slog"
	"time"

	"github.com/phillip/levy-collector-go/metrics"
	"github.com/phillip/levy-collector-go/store"
)

// Feed is the change-feed half of a store backend.
type Feed interface {
	Watch(ctx context.Context) (<-chan store.ChangeEvent, error)
}

// Pump moves events from a Feed to the hub and the Kafka publisher,
// resubscribing when the feed drops.
type Pump struct {
	Feed      Feed
	Hub       *Hub
	Publisher *Publisher
	Metrics   *metrics.Metrics
	Log       *slog.Logger
	Retry     time.Duration
}

func (p *Pump) Run(ctx context.Context) {
	log := p.Log
	if log == nil {
		log = slog.Default()
	}
	retry := p.Retry
	if retry <= 0 {
		retry = 2 * time.Second
	}

	for ctx.Err() == nil {
		events, err := p.Feed.Watch(ctx)
		if err != nil {
			log.Error("change feed subscribe failed", "err", err, "retry_in", retry)
		} else {
			log.Info("change feed subscribed")
			for ev := range events {
				p.forward(ev)
			}
			if ctx.Err() == nil {
				log.Warn("change feed closed, resubscribing", "retry_in", retry)
			}
		}

		select {
		case <-ctx.Done():
		case <-time.After(retry):
		}
	}
}

func (p *Pump) forward(ev store.ChangeEvent) {
	p.Metrics.FeedEvent(string(ev.Type))
	if p.Hub != nil {
		p.Hub.Broadcast(ev)
	}
	// failures are logged and counted by the publisher
	_ = p.Publisher.Publish(ev)
}
