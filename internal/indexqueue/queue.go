// Package indexqueue implements the single shared, thread-safe structure
// coordinating the producer (caller) goroutine and the worker goroutine
// a push spawns: pending requests in, produced results out.
package indexqueue

import (
	"sync"

	"github.com/otcheredev/dicom-catalog-indexer/internal/models"
)

// Stop is the sentinel PopIndexingRequest returns when there is nothing
// left to pop right now: either the queue is genuinely empty, or
// cancellation discarded whatever was still pending.
const Stop = -1

// Queue is the producer/worker rendezvous point. All state is protected
// by a single mutex; every operation is O(1) and non-blocking on I/O.
type Queue struct {
	mu sync.Mutex

	pendingRequests []models.IndexingRequest
	producedResults []models.IndexingResult

	modifiedTimes map[string]int64

	indexing      bool
	stopRequested bool
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{
		modifiedTimes: make(map[string]int64),
	}
}

// PushIndexingRequest enqueues one request for the worker to process.
func (q *Queue) PushIndexingRequest(r models.IndexingRequest) {
	q.mu.Lock()
	q.pendingRequests = append(q.pendingRequests, r)
	q.mu.Unlock()
}

// PopIndexingRequest returns the next pending request and the number of
// requests still pending after it, or Stop if nothing is available right
// now — either the queue is empty, or stopRequested is set (in which
// case any still-pending requests are discarded, not merely skipped: a
// cancelled run never processes queued-but-unstarted work).
func (q *Queue) PopIndexingRequest() (models.IndexingRequest, int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopRequested {
		q.pendingRequests = nil
		return models.IndexingRequest{}, Stop
	}
	if len(q.pendingRequests) == 0 {
		return models.IndexingRequest{}, Stop
	}

	r := q.pendingRequests[0]
	q.pendingRequests = q.pendingRequests[1:]
	return r, len(q.pendingRequests)
}

// FinishIfIdle is called by the worker right after PopIndexingRequest
// returns Stop, to decide whether the run actually ends here. A request
// can race the drain: a concurrent PushIndexingRequest may complete
// after this worker's last pop found the queue empty but before this
// call clears the indexing flag. Re-checking pendingRequests under the
// same lock used by PopIndexingRequest closes that window — if anything
// is now pending, the run keeps going instead of going idle, which
// would otherwise orphan that request behind a flag no one is watching
// (the pusher's own worker attempt sees indexing already true and
// assumes the active run will pick its request up).
//
// Returns true once the run is actually over (stopRequested is cleared
// and indexing is set false); false means the caller should loop back
// to PopIndexingRequest instead of exiting.
func (q *Queue) FinishIfIdle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopRequested {
		q.pendingRequests = nil
		q.stopRequested = false
		q.indexing = false
		return true
	}
	if len(q.pendingRequests) > 0 {
		return false
	}
	q.indexing = false
	return true
}

// PushIndexingResult enqueues one parsed (or failed) result.
func (q *Queue) PushIndexingResult(r models.IndexingResult) {
	q.mu.Lock()
	q.producedResults = append(q.producedResults, r)
	q.mu.Unlock()
}

// PopAllIndexingResults atomically drains and returns every produced
// result, preserving push order.
func (q *Queue) PopAllIndexingResults() []models.IndexingResult {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.producedResults
	q.producedResults = nil
	return out
}

// SetStopRequested sets the cooperative-cancel flag. Monotonic-to-true
// within a run: once set, it stays set until FinishIfIdle (or
// ResetForNewRun) clears it.
func (q *Queue) SetStopRequested(b bool) {
	q.mu.Lock()
	q.stopRequested = q.stopRequested || b
	q.mu.Unlock()
}

// IsStopRequested reports the current cooperative-cancel flag.
func (q *Queue) IsStopRequested() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stopRequested
}

// ResetForNewRun clears stopRequested. Exposed for tests and for any
// caller that needs to reset the flag outside the normal
// PopIndexingRequest/FinishIfIdle life cycle.
func (q *Queue) ResetForNewRun() {
	q.mu.Lock()
	q.stopRequested = false
	q.mu.Unlock()
}

// SetIndexing atomically test-and-sets the indexing flag, returning the
// previous value so the caller can tell whether it is the first to enter
// indexing mode.
func (q *Queue) SetIndexing(b bool) (previous bool) {
	q.mu.Lock()
	previous = q.indexing
	q.indexing = b
	q.mu.Unlock()
	return previous
}

// SetModifiedTimeForFilepath records the mtime the worker observed for
// path in the shared snapshot map.
func (q *Queue) SetModifiedTimeForFilepath(path string, mtime int64) {
	q.mu.Lock()
	q.modifiedTimes[path] = mtime
	q.mu.Unlock()
}

// ModifiedTimeForFilepath returns the recorded mtime for path and
// whether one was present.
func (q *Queue) ModifiedTimeForFilepath(path string) (int64, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	mtime, ok := q.modifiedTimes[path]
	return mtime, ok
}

// SeedModifiedTimes copies snapshot into the queue's modified-time
// index, replacing whatever was there, under the queue's lock.
func (q *Queue) SeedModifiedTimes(snapshot map[string]int64) {
	q.mu.Lock()
	q.modifiedTimes = make(map[string]int64, len(snapshot))
	for k, v := range snapshot {
		q.modifiedTimes[k] = v
	}
	q.mu.Unlock()
}

// CopyModifiedTimes copies the queue's modified-time index out, under
// the queue's lock.
func (q *Queue) CopyModifiedTimes() map[string]int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make(map[string]int64, len(q.modifiedTimes))
	for k, v := range q.modifiedTimes {
		out[k] = v
	}
	return out
}
