package vision

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"labtable/internal/port"
)

// Provider is a recognizer with the name it is configured and logged under.
type Provider struct {
	Name       string
	Recognizer port.VisionRecognizer
}

// Chain asks its providers in order and returns the first answer. A provider
// that reports a rate limit sits out until its retry time has passed.
type Chain struct {
	providers []Provider
	now       func() time.Time
	logger    *zap.Logger

	mu    sync.Mutex
	bench []time.Time // per provider; zero when available
}

var _ port.VisionRecognizer = (*Chain)(nil)

// NewChain builds a Chain over providers, first to last.
func NewChain(providers ...Provider) *Chain {
	return &Chain{
		providers: providers,
		now:       time.Now,
		logger:    zap.L().With(zap.String("component", "vision.chain")),
		bench:     make([]time.Time, len(providers)),
	}
}

func (c *Chain) Recognize(ctx context.Context, input port.RecognizeInput) (*port.RecognizeOutput, error) {
	if len(c.providers) == 0 {
		return nil, errors.New("vision: no providers configured")
	}
	var (
		failures              []error
		soonest               time.Time
		throttled, considered int
	)
	for i, p := range c.providers {
		// One deadline covers the whole chain.
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("vision: %w", err)
		}
		if until, benched := c.benchedUntil(i); benched {
			c.logger.Debug("provider sitting out", zap.String("provider", p.Name), zap.Time("until", until))
			soonest = earliest(soonest, until)
			continue
		}

		considered++
		out, err := p.Recognizer.Recognize(ctx, input)
		if err == nil {
			return out, nil
		}
		c.logger.Warn("provider failed", zap.String("provider", p.Name), zap.Error(err))
		failures = append(failures, fmt.Errorf("%s: %w", p.Name, err))

		var rl *RateLimitError
		if errors.As(err, &rl) {
			until := c.now().Add(rl.RetryAfter)
			c.setBench(i, until)
			soonest = earliest(soonest, until)
			throttled++
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("vision: %w", err)
	}

	if throttled == considered {
		wait := soonest.Sub(c.now())
		if wait < time.Second {
			wait = time.Second
		}
		return nil, NewRateLimitError("all", errors.New("every vision provider is rate limited"), int(wait.Round(time.Second)/time.Second))
	}
	return nil, fmt.Errorf("vision: no provider answered: %w", errors.Join(failures...))
}

func (c *Chain) benchedUntil(i int) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	until := c.bench[i]
	return until, !until.IsZero() && c.now().Before(until)
}

func (c *Chain) setBench(i int, until time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bench[i] = until
}

func earliest(a, b time.Time) time.Time {
	if a.IsZero() || b.Before(a) {
		return b
	}
	return a
}
