package statedb

import (
	"io"
	"time"

	"github.com/sony/gobreaker/v2"
)

// NewCircuitBreakerConfig returns a function that creates circuit breakers
// for Config.NewCircuitBreaker.
//
// The breaker wraps Connect (dial + handshake). Once it trips, Connect fails
// fast with gobreaker.ErrOpenState until timeout elapses.
func NewCircuitBreakerConfig(maxRequests uint32, interval, timeout time.Duration) func(string) *gobreaker.CircuitBreaker[io.ReadWriteCloser] {
	return func(serverAddr string) *gobreaker.CircuitBreaker[io.ReadWriteCloser] {
		settings := gobreaker.Settings{
			Name:        serverAddr,
			MaxRequests: maxRequests,
			Interval:    interval,
			Timeout:     timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && failureRatio >= 0.6
			},
		}
		return gobreaker.NewCircuitBreaker[io.ReadWriteCloser](settings)
	}
}
