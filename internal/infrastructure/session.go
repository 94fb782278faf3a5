package infrastructure

import (
	"sync"
	"time"
)

// DeliveryTracker remembers recently seen update ids so a redelivered update is handled once
// per process. It holds no tenant data.
type DeliveryTracker struct {
	mu   sync.Mutex
	seen map[int]time.Time
	ttl  time.Duration
	now  func() time.Time
}

func NewDeliveryTracker(ttl time.Duration) *DeliveryTracker {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &DeliveryTracker{
		seen: make(map[int]time.Time),
		ttl:  ttl,
		now:  time.Now,
	}
}

// FirstDelivery records updateID and reports whether it was not seen within the TTL.
// Update id 0 is never tracked.
func (d *DeliveryTracker) FirstDelivery(updateID int) bool {
	if updateID == 0 {
		return true
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if at, ok := d.seen[updateID]; ok && now.Sub(at) < d.ttl {
		return false
	}
	d.seen[updateID] = now

	if len(d.seen) > 1024 {
		for id, at := range d.seen {
			if now.Sub(at) >= d.ttl {
				delete(d.seen, id)
			}
		}
	}
	return true
}

// Forget lets a failed delivery be retried by the platform.
func (d *DeliveryTracker) Forget(updateID int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, updateID)
}
