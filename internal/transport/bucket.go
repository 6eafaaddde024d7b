package transport

import (
	"math"
	"sync"
	"time"
)

// BucketLimits are the sizing parameters applied to a bucket at access
// time, taken from the rate-limit configuration current at that moment.
type BucketLimits struct {
	// Size is the bucket capacity in request units.
	Size float64

	// LeakRate is how many units flow back per second.
	LeakRate float64
}

// RateBucket tracks remaining request units for one server+credential pair.
// The bucket refills lazily on access rather than on a timer: every
// operation first leaks elapsed*rate back in, clamped to [0, size].
type RateBucket struct {
	mu        sync.Mutex
	remaining float64
	lastCost  float64
	updatedAt time.Time
}

// NewRateBucket returns a bucket filled to size.
func NewRateBucket(size float64, now time.Time) *RateBucket {
	return &RateBucket{remaining: size, updatedAt: now}
}

// refillLocked leaks elapsed units back into the bucket. Caller holds mu.
func (b *RateBucket) refillLocked(now time.Time, lim BucketLimits) {
	if now.After(b.updatedAt) {
		b.remaining += now.Sub(b.updatedAt).Seconds() * lim.LeakRate
		b.updatedAt = now
	}
	b.clampLocked(lim)
}

func (b *RateBucket) clampLocked(lim BucketLimits) {
	if b.remaining > lim.Size {
		b.remaining = lim.Size
	}
	if b.remaining < 0 {
		b.remaining = 0
	}
}

// Wait refills the bucket and returns the pause required before a request
// costing cost may proceed while keeping minRemaining in reserve. Zero
// means the request may proceed immediately.
func (b *RateBucket) Wait(now time.Time, lim BucketLimits, cost, minRemaining float64) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked(now, lim)

	deficit := minRemaining + cost - b.remaining
	if deficit <= 0 || lim.LeakRate <= 0 {
		return 0
	}
	return time.Duration(math.Ceil(deficit/lim.LeakRate)) * time.Second
}

// Charge refills the bucket and deducts cost from it.
func (b *RateBucket) Charge(now time.Time, lim BucketLimits, cost float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked(now, lim)
	b.remaining -= cost
	b.lastCost = cost
	b.clampLocked(lim)
}

// ObserveRemaining overwrites local accounting with the server-reported
// value. The server is authoritative; the value is never added to what the
// bucket already tracked.
func (b *RateBucket) ObserveRemaining(remaining float64, lim BucketLimits) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.remaining = remaining
	b.clampLocked(lim)
}

// ReconcileCost settles the difference between the pre-charged and the
// server-reported cost: excess is refunded, shortfall is consumed.
func (b *RateBucket) ReconcileCost(precharged, actual float64, lim BucketLimits) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.remaining += precharged - actual
	b.lastCost = actual
	b.clampLocked(lim)
}

// Refund returns a pre-charge to the bucket after a dispatch that never
// produced a response.
func (b *RateBucket) Refund(cost float64, lim BucketLimits) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.remaining += cost
	b.clampLocked(lim)
}

// Level refills the bucket and reports its remaining units.
func (b *RateBucket) Level(now time.Time, lim BucketLimits) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked(now, lim)
	return b.remaining
}

// BucketSnapshot is a point-in-time view of one bucket, as last accounted.
type BucketSnapshot struct {
	Remaining float64   `json:"remaining"`
	LastCost  float64   `json:"last_cost"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (b *RateBucket) snapshot() BucketSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BucketSnapshot{Remaining: b.remaining, LastCost: b.lastCost, UpdatedAt: b.updatedAt}
}

// BucketStore hands out rate buckets by key. Implementations must be safe
// for concurrent use.
type BucketStore interface {
	// Bucket returns the bucket for key, creating it filled to size on
	// first access.
	Bucket(key string, size float64) *RateBucket

	// Reset discards the bucket for key; the next access starts full.
	Reset(key string)

	// ResetAll discards every bucket.
	ResetAll()

	// Snapshot reports the last-accounted state of every bucket.
	Snapshot() map[string]BucketSnapshot
}

// MemoryBucketStore is an in-process BucketStore.
type MemoryBucketStore struct {
	mu      sync.Mutex
	now     func() time.Time
	buckets map[string]*RateBucket
}

// NewMemoryBucketStore creates an empty in-process store.
func NewMemoryBucketStore() *MemoryBucketStore {
	return &MemoryBucketStore{
		now:     time.Now,
		buckets: make(map[string]*RateBucket),
	}
}

// Bucket implements BucketStore.
func (s *MemoryBucketStore) Bucket(key string, size float64) *RateBucket {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buckets[key]
	if !ok {
		b = NewRateBucket(size, s.now())
		s.buckets[key] = b
	}
	return b
}

// Reset implements BucketStore.
func (s *MemoryBucketStore) Reset(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.buckets, key)
}

// ResetAll implements BucketStore.
func (s *MemoryBucketStore) ResetAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buckets = make(map[string]*RateBucket)
}

// Snapshot implements BucketStore.
func (s *MemoryBucketStore) Snapshot() map[string]BucketSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]BucketSnapshot, len(s.buckets))
	for key, b := range s.buckets {
		out[key] = b.snapshot()
	}
	return out
}

var _ BucketStore = (*MemoryBucketStore)(nil)

// defaultBucketStore is shared by every client that does not inject its
// own store, mirroring Canvas's server-side accounting being shared per
// credential regardless of how many clients a process creates.
var defaultBucketStore = NewMemoryBucketStore()

// DefaultBucketStore returns the process-wide shared store.
func DefaultBucketStore() BucketStore {
	return defaultBucketStore
}
