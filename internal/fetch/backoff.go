package fetch

import (
	"crypto/rand"
	"math"
	"math/big"
	"time"

	"github.com/legal-llama/corpus-pipeline/internal/corpus"
)

// ExponentialBackoff computes jittered retry delays. The delay is additive to
// rate limiter pacing; throttling responses get a doubled wait so the
// upstream sees real back-pressure, not just jitter.
type ExponentialBackoff struct {
	baseDelay time.Duration
	maxDelay  time.Duration
}

// NewExponentialBackoff builds a policy with sane defaults.
func NewExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		baseDelay: 250 * time.Millisecond,
		maxDelay:  5 * time.Second,
	}
}

// Delay returns the wait duration before the next attempt.
func (p *ExponentialBackoff) Delay(attempt int, kind corpus.ErrorKind) time.Duration {
	delay := float64(p.baseDelay) * math.Pow(2, float64(attempt))
	if kind == corpus.KindRateLimit {
		delay *= 2
	}
	if delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}
	jitter := p.randomJitter(time.Duration(delay) / 2)
	return time.Duration(delay/2) + jitter
}

func (p *ExponentialBackoff) randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	bound := big.NewInt(int64(limit))
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}
