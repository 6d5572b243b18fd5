package cache

import (
	"context"
	"sync"
	"time"

	"github.com/bicicare/invoicebridge/internal/domain/integration"
)

// lease represents a held order lock with expiration
type lease struct {
	expiresAt time.Time
}

// InMemoryOrderLock implements OrderLock with an in-process map.
// It only serialises saga runs within a single instance.
type InMemoryOrderLock struct {
	mu        sync.Mutex
	leases    map[string]lease
	now       func() time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryOrderLock creates a new in-memory lock and starts a background
// goroutine that drops expired leases.
func NewInMemoryOrderLock() *InMemoryOrderLock {
	l := &InMemoryOrderLock{
		leases:   make(map[string]lease),
		now:      time.Now,
		stopChan: make(chan struct{}),
	}

	l.wg.Add(1)
	go l.cleanupLoop()

	return l
}

// Acquire takes the lock for orderRef. It returns false if another holder has
// an unexpired lease.
func (l *InMemoryOrderLock) Acquire(_ context.Context, orderRef string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if existing, ok := l.leases[orderRef]; ok && now.Before(existing.expiresAt) {
		return false, nil
	}
	l.leases[orderRef] = lease{expiresAt: now.Add(ttl)}
	return true, nil
}

// Release drops the lock for orderRef. Releasing an unheld lock is a no-op.
func (l *InMemoryOrderLock) Release(_ context.Context, orderRef string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.leases, orderRef)
	return nil
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (l *InMemoryOrderLock) Close() error {
	l.closeOnce.Do(func() {
		close(l.stopChan)
		l.wg.Wait()
	})
	return nil
}

func (l *InMemoryOrderLock) cleanupLoop() {
	defer l.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopChan:
			return
		case <-ticker.C:
			l.cleanup()
		}
	}
}

func (l *InMemoryOrderLock) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for ref, e := range l.leases {
		if !now.Before(e.expiresAt) {
			delete(l.leases, ref)
		}
	}
}

// Size returns the number of held leases (for testing/monitoring)
func (l *InMemoryOrderLock) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.leases)
}

var _ integration.OrderLock = (*InMemoryOrderLock)(nil)
