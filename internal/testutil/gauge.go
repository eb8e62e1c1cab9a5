// Package testutil holds shared test harnesses: an in-flight gauge for
// concurrency-cap assertions and a scripted asset server for exercising
// fetch failure policy.
package testutil

import "sync"

// InFlightGauge tracks the number of concurrently active operations and
// the high-water mark, for asserting that a concurrency cap held.
type InFlightGauge struct {
	mu      sync.Mutex
	current int
	max     int
}

// Enter marks one operation active.
func (g *InFlightGauge) Enter() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.current++
	if g.current > g.max {
		g.max = g.current
	}
}

// Exit marks one operation finished.
func (g *InFlightGauge) Exit() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.current--
}

// Max returns the high-water mark of simultaneously active operations.
func (g *InFlightGauge) Max() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.max
}
