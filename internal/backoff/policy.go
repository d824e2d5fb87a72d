// Package backoff computes exponential reconnect delays with jitter.
package backoff

import (
	"math"
	"math/rand"
	"time"
)

// Policy defines the parameters for exponential backoff.
type Policy struct {
	Initial time.Duration
	Max     time.Duration
	Factor  float64
	// Jitter is the random fraction (0.0 to 1.0) added on top of the base delay.
	Jitter float64
}

// Reconnect is the policy used for WhatsApp reconnects: 1s doubling to 60s, 10% jitter.
func Reconnect() Policy {
	return Policy{
		Initial: time.Second,
		Max:     60 * time.Second,
		Factor:  2,
		Jitter:  0.1,
	}
}

// Delay returns the wait before the given attempt (attempts start at 1).
func (p Policy) Delay(attempt int) time.Duration {
	return p.DelayWithRand(attempt, rand.Float64()) // #nosec G404 -- jitter does not need crypto randomness
}

// DelayWithRand is Delay with a caller-supplied random value in [0, 1).
// The result is min(Max, base + base*Jitter*r), base = Initial * Factor^(attempt-1).
func (p Policy) DelayWithRand(attempt int, r float64) time.Duration {
	exp := math.Max(float64(attempt-1), 0)
	base := float64(p.Initial) * math.Pow(p.Factor, exp)
	total := math.Min(float64(p.Max), base+base*p.Jitter*r)
	return time.Duration(total).Round(time.Millisecond)
}
