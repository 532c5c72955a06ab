package backoff

import (
	"math/rand"
	"time"
)

// JitterType selects how computed intervals are randomized.
type JitterType int

const (
	// NoJitter leaves intervals unchanged.
	NoJitter JitterType = iota
	// FullJitter picks a random interval in [0, computed).
	FullJitter
	// EqualJitter keeps half the computed interval and randomizes the rest.
	EqualJitter
)

// WithJitter wraps a retry policy so that computed intervals are randomized.
// Jitter spreads retries from concurrent clients that failed at the same
// moment.
func WithJitter(policy RetryPolicy, jitter JitterType) RetryPolicy {
	return &jitterPolicy{policy: policy, jitter: jitter}
}

type jitterPolicy struct {
	policy RetryPolicy
	jitter JitterType
}

func (p *jitterPolicy) ComputeNextInterval(retryCount int, elapsedTime time.Duration, err error) (time.Duration, error) {
	interval, computeErr := p.policy.ComputeNextInterval(retryCount, elapsedTime, err)
	if computeErr != nil {
		return 0, computeErr
	}
	return applyJitter(interval, p.jitter), nil
}

func applyJitter(interval time.Duration, jitter JitterType) time.Duration {
	if interval <= 0 {
		return interval
	}
	switch jitter {
	case FullJitter:
		return time.Duration(rand.Int63n(int64(interval)))
	case EqualJitter:
		half := interval / 2
		return half + time.Duration(rand.Int63n(int64(half)+1))
	default:
		return interval
	}
}
