package utils

import (
	"math/rand"
	"time"
)

// Jitter returns a random duration in [min, max]. Randomized pacing between
// outbound requests keeps the crawl traffic pattern irregular.
func Jitter(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)+1))
}

// JitterMs is Jitter over millisecond bounds, matching how pacing knobs are
// configured.
func JitterMs(minMs, maxMs int) time.Duration {
	return Jitter(time.Duration(minMs)*time.Millisecond, time.Duration(maxMs)*time.Millisecond)
}
