package transport

import "time"

// Cache event names reported through Recorder.CacheEvent.
const (
	CacheEventHit   = "hit"
	CacheEventMiss  = "miss"
	CacheEventStore = "store"
	CacheEventPurge = "purge"
)

// Recorder receives pipeline events for metrics collection. Stages report
// through it instead of depending on a metrics backend directly.
// Implementations must be safe for concurrent use.
type Recorder interface {
	// RequestDone is called once per physical attempt with its outcome.
	// status is zero when the attempt failed without a response.
	RequestDone(method string, status int, elapsed time.Duration)

	// RetryScheduled is called before each retry sleep with the reason the
	// previous attempt was deemed retryable.
	RetryScheduled(reason string)

	// RateLimitWait is called when the bucket imposes a pause before
	// dispatch.
	RateLimitWait(bucket string, wait time.Duration)

	// BucketLevel reports the bucket's remaining units after accounting.
	BucketLevel(bucket string, remaining float64)

	// CacheEvent is called with one of the CacheEvent* names.
	CacheEvent(event string)
}

// NopRecorder discards all events. It is the default when no metrics
// backend is installed.
type NopRecorder struct{}

func (NopRecorder) RequestDone(string, int, time.Duration) {}
func (NopRecorder) RetryScheduled(string)                  {}
func (NopRecorder) RateLimitWait(string, time.Duration)    {}
func (NopRecorder) BucketLevel(string, float64)            {}
func (NopRecorder) CacheEvent(string)                      {}

var _ Recorder = NopRecorder{}
