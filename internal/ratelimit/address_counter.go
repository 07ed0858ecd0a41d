package ratelimit

import "sync"

// AddressCounter bounds the number of concurrently open connections per
// source address. Addresses are dropped from the map when their count
// reaches zero.
type AddressCounter struct {
	max int

	mu     sync.Mutex
	counts map[string]int
}

// NewAddressCounter returns a counter admitting at most max connections per
// address. max <= 0 admits everything (but still counts).
func NewAddressCounter(max int) *AddressCounter {
	return &AddressCounter{
		max:    max,
		counts: make(map[string]int),
	}
}

// Acquire counts a new connection from addr and reports whether it is within
// the ceiling. The increment is kept even when ok is false; the returned
// release func must be called once the connection ends either way. Extra
// calls to release are no-ops.
func (c *AddressCounter) Acquire(addr string) (release func(), ok bool) {
	c.mu.Lock()
	c.counts[addr]++
	n := c.counts[addr]
	c.mu.Unlock()

	var once sync.Once
	release = func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.counts[addr]--
			if c.counts[addr] <= 0 {
				delete(c.counts, addr)
			}
		})
	}
	return release, c.max <= 0 || n <= c.max
}

// Count returns the number of open connections from addr.
func (c *AddressCounter) Count(addr string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[addr]
}

// Len returns the number of distinct addresses currently holding connections.
func (c *AddressCounter) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.counts)
}
