package nats

import (
	"context"
	"fmt"

	"github.com/abgdnv/productroom/pkg/messaging"
	"github.com/nats-io/nats.go/jetstream"
)

// streamPublisher is the part of jetstream.JetStream the publisher needs.
type streamPublisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

type NatsPublisher struct {
	js streamPublisher
}

func NewNatsPublisher(js jetstream.JetStream) *NatsPublisher {
	return &NatsPublisher{js: js}
}

func (p *NatsPublisher) Publish(ctx context.Context, event messaging.Event) error {
	data, err := event.Payload()
	if err != nil {
		return fmt.Errorf("failed to get event payload: %w", err)
	}
	if _, err = p.js.Publish(ctx, event.Subject(), data); err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.Subject(), err)
	}
	return nil
}
