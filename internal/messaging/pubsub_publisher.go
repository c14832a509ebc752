// Package messaging forwards user list events to Google Cloud Pub/Sub.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"cloud.google.com/go/pubsub/v2"
	"github.com/illmade-knight/random-user/app"
	"github.com/rs/zerolog"
)

// EventPublisher publishes app.Events as JSON messages on one topic. The
// event type is copied into the "type" attribute so subscribers can filter.
type EventPublisher struct {
	publisher *pubsub.Publisher
	logger    zerolog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewEventPublisher creates a publisher for topicID.
func NewEventPublisher(client *pubsub.Client, topicID string, logger zerolog.Logger) *EventPublisher {
	return &EventPublisher{
		publisher: client.Publisher(topicID),
		logger:    logger.With().Str("component", "event-publisher").Str("topic", topicID).Logger(),
	}
}

// Publish sends one event and waits for the server acknowledgement.
func (p *EventPublisher) Publish(ctx context.Context, ev app.Event) error {
	msg, err := toMessage(ev)
	if err != nil {
		return err
	}
	result := p.publisher.Publish(ctx, msg)
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", ev.Type, err)
	}
	return nil
}

// Forward returns a subscriber suitable for app.App.Subscribe. It does not
// block the caller; publish failures are logged. Cancelling ctx does not
// abandon events already handed to the publisher, so Stop can still flush
// them. Events that arrive after Stop are dropped.
func (p *EventPublisher) Forward(ctx context.Context) func(app.Event) {
	ctx = context.WithoutCancel(ctx)
	return func(ev app.Event) {
		msg, err := toMessage(ev)
		if err != nil {
			p.logger.Error().Err(err).Msg("Failed to encode event")
			return
		}

		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			p.logger.Debug().Str("event_type", string(ev.Type)).Msg("Dropping event after stop")
			return
		}
		p.wg.Add(1)
		result := p.publisher.Publish(ctx, msg)
		p.mu.Unlock()

		go func() {
			defer p.wg.Done()
			if _, err := result.Get(ctx); err != nil {
				p.logger.Error().Err(err).Str("event_type", string(ev.Type)).Msg("Failed to publish event")
			}
		}()
	}
}

// Stop refuses further events, waits for forwarded ones to settle and
// flushes the publisher. It is safe to call more than once.
func (p *EventPublisher) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.wg.Wait()
	p.publisher.Stop()
}

func toMessage(ev app.Event) (*pubsub.Message, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s event: %w", ev.Type, err)
	}
	return &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"type": string(ev.Type)},
	}, nil
}
