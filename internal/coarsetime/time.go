// Package coarsetime provides a clock refreshed at a fixed interval, for hot
// paths that stamp every message and can live with a 50ms resolution.
//
// The refresh goroutine starts on the first call to Now.
package coarsetime

import (
	"sync"
	"sync/atomic"
	"time"
)

const Resolution = 50 * time.Millisecond

var (
	now   atomic.Int64
	start sync.Once
)

func run() {
	now.Store(time.Now().UnixNano())

	ticker := time.NewTicker(Resolution)
	go func() {
		for t := range ticker.C {
			now.Store(t.UnixNano())
		}
	}()
}

// Now returns the current time, at most Resolution old.
func Now() time.Time {
	start.Do(run)
	return time.Unix(0, now.Load())
}
