package engine

import "sync"

// scanLocks serializes writes to a single scan's findings so that the
// merge loop and analyst updates never interleave read-modify-write
// sequences on the same scan.
type scanLocks struct {
	locks sync.Map // scanID -> *sync.Mutex
}

func (l *scanLocks) lock(scanID string) *sync.Mutex {
	mu, _ := l.locks.LoadOrStore(scanID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (l *scanLocks) forget(scanID string) {
	l.locks.Delete(scanID)
}

// WithScanLock runs fn while holding the scan's write lock.
func (e *Engine) WithScanLock(scanID string, fn func() error) error {
	mu := e.locks.lock(scanID)
	mu.Lock()
	defer mu.Unlock()
	return fn()
}

// ForgetScanLock drops the per-scan mutex. Only call it once the scan row
// itself is gone: dropping the entry earlier would let two callers
// LoadOrStore distinct mutexes and run unserialized. A scan that still
// exists keeps its lock for the rest of the process lifetime.
func (e *Engine) ForgetScanLock(scanID string) {
	e.locks.forget(scanID)
}
