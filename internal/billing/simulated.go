package billing

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultSuccessRate = 0.9
	DefaultDelay       = 3 * time.Second
)

// DeclinedReason is reported for simulated failures.
const DeclinedReason = "Payment failed. Please try again."

// SimulatedGateway approves a configurable fraction of payments after a delay.
type SimulatedGateway struct {
	successRate float64
	delay       time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

type SimulatedOption func(*SimulatedGateway)

// WithSuccessRate sets the probability in [0, 1] that a charge succeeds.
func WithSuccessRate(rate float64) SimulatedOption {
	return func(g *SimulatedGateway) { g.successRate = rate }
}

// WithDelay sets how long each charge takes.
func WithDelay(d time.Duration) SimulatedOption {
	return func(g *SimulatedGateway) { g.delay = d }
}

// WithRand replaces the random source, making outcomes reproducible.
func WithRand(r *rand.Rand) SimulatedOption {
	return func(g *SimulatedGateway) { g.rng = r }
}

func NewSimulatedGateway(opts ...SimulatedOption) *SimulatedGateway {
	g := &SimulatedGateway{
		successRate: DefaultSuccessRate,
		delay:       DefaultDelay,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Charge waits for the configured delay, then succeeds with the configured
// probability. Cancelling ctx during the wait aborts the charge.
func (g *SimulatedGateway) Charge(ctx context.Context, req ChargeRequest) (*PaymentResult, error) {
	if req.Amount < 0 {
		return nil, ErrInvalidAmount
	}

	if g.delay > 0 {
		timer := time.NewTimer(g.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	roll := g.rng.Float64()
	g.mu.Unlock()

	if roll >= g.successRate {
		return &PaymentResult{Success: false, Reason: DeclinedReason}, nil
	}

	return &PaymentResult{
		Success:   true,
		PaymentID: "pay_" + uuid.New().String(),
	}, nil
}
