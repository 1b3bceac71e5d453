package messaging

import (
	"context"
	"errors"
	"time"

	"github.com/abgdnv/productroom/pkg/config"
	"github.com/sony/gobreaker/v2"
)

// BreakerPublisher wraps a Publisher in a circuit breaker so an unreachable
// broker fails fast instead of stalling every caller.
type BreakerPublisher struct {
	next    Publisher
	breaker *gobreaker.CircuitBreaker[any]
}

// NewBreakerPublisher creates a BreakerPublisher around next.
func NewBreakerPublisher(next Publisher, cfg config.CircuitBreakerConfig) *BreakerPublisher {
	st := gobreaker.Settings{
		Name:        "products-publisher-cb",
		MaxRequests: 3,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > cfg.ConsecutiveFailures ||
				(counts.TotalSuccesses+counts.TotalFailures > cfg.ConsecutiveFailures &&
					float64(counts.TotalFailures)/float64(counts.TotalSuccesses+counts.TotalFailures)*100 > float64(cfg.ErrorRatePercent))
		},
		IsSuccessful: func(err error) bool {
			// a cancelled caller says nothing about the broker
			return err == nil || errors.Is(err, context.Canceled)
		},
	}
	if st.Timeout <= 0 {
		st.Timeout = 5 * time.Second
	}
	return &BreakerPublisher{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[any](st),
	}
}

// Publish forwards the event unless the breaker is open, in which case it
// returns gobreaker.ErrOpenState immediately.
func (p *BreakerPublisher) Publish(ctx context.Context, event Event) error {
	_, err := p.breaker.Execute(func() (any, error) {
		return nil, p.next.Publish(ctx, event)
	})
	return err
}

// State reports the breaker state.
func (p *BreakerPublisher) State() gobreaker.State {
	return p.breaker.State()
}
