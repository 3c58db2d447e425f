//go:build !deadlock

// Package syncutil wraps the sync mutexes so that builds tagged "deadlock"
// can swap in go-deadlock's detecting implementations.
package syncutil

import "sync"

// DeadlockEnabled reports whether deadlock detection is compiled in.
const DeadlockEnabled = false

type Mutex struct {
	sync.Mutex
}

type RWMutex struct {
	sync.RWMutex
}
