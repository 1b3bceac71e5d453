// Package subscriber consumes product events so that processes sharing one
// database see each other's changes in their live view.
package subscriber

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/abgdnv/productroom/pkg/config"
	applog "github.com/abgdnv/productroom/pkg/logger"
	"github.com/abgdnv/productroom/pkg/messaging"
	"github.com/abgdnv/productroom/pkg/messaging/events"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"golang.org/x/sync/errgroup"
)

// RefreshFunc reloads the live product view.
type RefreshFunc func(ctx context.Context) error

// message is the part of jetstream.Msg the handler needs.
type message interface {
	Subject() string
	Data() []byte
	Ack() error
	Term() error
}

// Start creates the consumer on stream and runs the configured number of workers until ctx is done.
func Start(ctx context.Context, js jetstream.JetStream, stream string, subscriberCfg config.SubscriberConfig, refresh RefreshFunc, logger *slog.Logger) error {
	cfg := jetstream.ConsumerConfig{
		FilterSubject: subscriberCfg.Subject,
		Durable:       subscriberCfg.Consumer,
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverNewPolicy,
	}
	if cfg.Durable == "" {
		cfg.InactiveThreshold = time.Minute
	}
	consumer, err := js.CreateOrUpdateConsumer(ctx, stream, cfg)
	if err != nil {
		return fmt.Errorf("failed to create consumer on stream %s: %w", stream, err)
	}
	logger = applog.Component(logger, "subscriber")
	logger.InfoContext(ctx, "Consuming product events", "stream", stream, "subject", subscriberCfg.Subject, "workers", subscriberCfg.Workers)

	g, gCtx := errgroup.WithContext(ctx)
	for range subscriberCfg.Workers {
		g.Go(func() error {
			return runWorker(gCtx, consumer, subscriberCfg, refresh, logger)
		})
	}
	return g.Wait()
}

func runWorker(ctx context.Context, consumer jetstream.Consumer, cfg config.SubscriberConfig, refresh RefreshFunc, logger *slog.Logger) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch, err := consumer.Fetch(cfg.Batch, jetstream.FetchMaxWait(cfg.Timeout))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) {
				continue
			}
			logger.ErrorContext(ctx, "Failed to fetch product events", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(cfg.Interval):
			}
			continue
		}
		for msg := range batch.Messages() {
			handleMessage(ctx, msg, refresh, logger)
		}
		if err := batch.Error(); err != nil && !errors.Is(err, nats.ErrTimeout) {
			logger.WarnContext(ctx, "Product event batch ended with error", "error", err)
		}
	}
}

// handleMessage decodes one product event, refreshes the live view and acks it.
// Messages that cannot be decoded are terminated so they are not redelivered.
func handleMessage(ctx context.Context, msg message, refresh RefreshFunc, logger *slog.Logger) {
	if msg == nil {
		logger.ErrorContext(ctx, "Received nil message")
		return
	}
	if err := decode(msg, logger); err != nil {
		logger.ErrorContext(ctx, "Failed to decode product event", "error", err, "subject", msg.Subject())
		if err := msg.Term(); err != nil {
			logger.ErrorContext(ctx, "Failed to terminate message", "error", err)
		}
		return
	}
	if err := refresh(ctx); err != nil {
		// redelivered after AckWait
		logger.ErrorContext(ctx, "Failed to refresh live view", "error", err)
		return
	}
	if err := msg.Ack(); err != nil {
		logger.ErrorContext(ctx, "Failed to ack message", "error", err)
	}
}

func decode(msg message, logger *slog.Logger) error {
	switch msg.Subject() {
	case messaging.ProductsAddedSubject:
		var event events.ProductAddedEvent
		if err := json.Unmarshal(msg.Data(), &event); err != nil {
			return err
		}
		logger.Debug("Received product added event",
			slog.Int64("id", event.ID),
			slog.String("product_name", event.ProductName),
			slog.Int("quantity", int(event.Quantity)),
			slog.String("created_at", event.CreatedAt.Format(time.RFC3339)))
	case messaging.ProductsDeletedSubject:
		var event events.ProductsDeletedEvent
		if err := json.Unmarshal(msg.Data(), &event); err != nil {
			return err
		}
		logger.Debug("Received products deleted event",
			slog.String("product_name", event.ProductName),
			slog.Int64("count", event.Count),
			slog.String("deleted_at", event.DeletedAt.Format(time.RFC3339)))
	default:
		return fmt.Errorf("unknown subject %q", msg.Subject())
	}
	return nil
}
