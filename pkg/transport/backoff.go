package transport

import (
	"math"
	"math/rand"
	"time"
)

// redial backoff parameters. This backoff applies to the push redial only;
// the poll fallback never backs off, it retries on its fixed tick.
const (
	redialInitialDelay = 1 * time.Second
	redialMaxDelay     = 30 * time.Second
	redialFactor       = 2.0
	redialJitter       = 0.2
)

// redialDelay computes the exponential backoff with jitter for a redial
// attempt. Attempts start at 1.
func redialDelay(attempt int) time.Duration {
	exp := math.Max(float64(attempt-1), 0)
	base := float64(redialInitialDelay) * math.Pow(redialFactor, exp)
	base += base * redialJitter * rand.Float64() // #nosec G404 -- jitter does not require cryptographic randomness
	if base > float64(redialMaxDelay) {
		base = float64(redialMaxDelay)
	}
	return time.Duration(base)
}
