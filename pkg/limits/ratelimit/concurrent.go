package ratelimit

import (
	"sync/atomic"
)

// ConcurrentLimiter limits the number of simultaneous in-flight executions
// against one provider. It is a counting semaphore built on atomics.
type ConcurrentLimiter struct {
	limit   int64
	current int64
}

// NewConcurrentLimiter creates a limiter admitting at most limit holders.
func NewConcurrentLimiter(limit int) *ConcurrentLimiter {
	return &ConcurrentLimiter{limit: int64(limit)}
}

// Acquire takes a slot. It reports false when the limit is reached; on true
// the caller must call Release when done.
func (cl *ConcurrentLimiter) Acquire() bool {
	current := atomic.AddInt64(&cl.current, 1)
	if current > cl.limit {
		atomic.AddInt64(&cl.current, -1)
		return false
	}
	return true
}

// Release returns a slot taken by Acquire.
func (cl *ConcurrentLimiter) Release() {
	if atomic.AddInt64(&cl.current, -1) < 0 {
		atomic.StoreInt64(&cl.current, 0)
	}
}

// Current returns the number of held slots.
func (cl *ConcurrentLimiter) Current() int64 {
	return atomic.LoadInt64(&cl.current)
}

// Limit returns the configured ceiling.
func (cl *ConcurrentLimiter) Limit() int64 {
	return cl.limit
}
