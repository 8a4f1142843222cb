package indexqueue

import (
	"testing"

	"github.com/otcheredev/dicom-catalog-indexer/internal/models"
)

func TestPopIndexingRequestFIFO(t *testing.T) {
	q := New()
	q.PushIndexingRequest(models.IndexingRequest{FilePath: "a.dcm"})
	q.PushIndexingRequest(models.IndexingRequest{FilePath: "b.dcm"})

	r1, remaining1 := q.PopIndexingRequest()
	if r1.FilePath != "a.dcm" || remaining1 != 1 {
		t.Fatalf("expected a.dcm with 1 remaining, got %q/%d", r1.FilePath, remaining1)
	}

	r2, remaining2 := q.PopIndexingRequest()
	if r2.FilePath != "b.dcm" || remaining2 != 0 {
		t.Fatalf("expected b.dcm with 0 remaining, got %q/%d", r2.FilePath, remaining2)
	}
}

func TestPopIndexingRequestReturnsStopSentinelOnEmptyStopped(t *testing.T) {
	q := New()
	q.SetStopRequested(true)

	_, remaining := q.PopIndexingRequest()
	if remaining != Stop {
		t.Fatalf("expected Stop sentinel, got %d", remaining)
	}
}

func TestPopIndexingRequestReturnsStopSentinelOnEmptyWithoutCancellation(t *testing.T) {
	q := New()

	_, remaining := q.PopIndexingRequest()
	if remaining != Stop {
		t.Fatalf("expected Stop sentinel on a plain empty queue, got %d", remaining)
	}
}

func TestPopIndexingRequestDiscardsPendingWhenStopRequested(t *testing.T) {
	q := New()
	q.PushIndexingRequest(models.IndexingRequest{FilePath: "a.dcm"})
	q.SetStopRequested(true)

	_, remaining := q.PopIndexingRequest()
	if remaining != Stop {
		t.Fatalf("expected Stop sentinel, got %d", remaining)
	}
	if _, remaining := q.PopIndexingRequest(); remaining != Stop {
		t.Fatalf("expected queued-but-unstarted request to stay discarded, got %d", remaining)
	}
}

func TestFinishIfIdleEndsTheRunWhenTrulyEmpty(t *testing.T) {
	q := New()
	q.SetIndexing(true)

	if !q.FinishIfIdle() {
		t.Fatal("expected FinishIfIdle to end the run on an empty queue")
	}
	if previous := q.SetIndexing(true); previous {
		t.Fatal("expected the indexing flag to be cleared by FinishIfIdle")
	}
}

func TestFinishIfIdleKeepsRunningWhenARequestRacedTheDrain(t *testing.T) {
	q := New()
	q.SetIndexing(true)

	// Simulates a concurrent PushIndexingRequest landing after the
	// worker's last PopIndexingRequest found the queue empty.
	q.PushIndexingRequest(models.IndexingRequest{FilePath: "raced-in.dcm"})

	if q.FinishIfIdle() {
		t.Fatal("expected FinishIfIdle to refuse to end the run while a request is pending")
	}
	if previous := q.SetIndexing(true); !previous {
		t.Fatal("expected the indexing flag to remain set")
	}

	req, remaining := q.PopIndexingRequest()
	if req.FilePath != "raced-in.dcm" || remaining != 0 {
		t.Fatalf("expected the raced-in request to still be processed, got %q/%d", req.FilePath, remaining)
	}
}

func TestFinishIfIdleDiscardsPendingOnStopRequested(t *testing.T) {
	q := New()
	q.SetIndexing(true)
	q.PushIndexingRequest(models.IndexingRequest{FilePath: "a.dcm"})
	q.SetStopRequested(true)

	if !q.FinishIfIdle() {
		t.Fatal("expected cancellation to end the run even with requests still pending")
	}
	if q.IsStopRequested() {
		t.Fatal("expected FinishIfIdle to clear stopRequested")
	}
	if _, remaining := q.PopIndexingRequest(); remaining != Stop {
		t.Fatal("expected the discarded request to no longer be in the queue")
	}
}

func TestSetIndexingTestAndSet(t *testing.T) {
	q := New()

	if previous := q.SetIndexing(true); previous {
		t.Fatal("expected first SetIndexing(true) to report previous=false")
	}
	if previous := q.SetIndexing(true); !previous {
		t.Fatal("expected second concurrent SetIndexing(true) to report previous=true")
	}
	q.SetIndexing(false)
	if previous := q.SetIndexing(true); previous {
		t.Fatal("expected SetIndexing(true) after reset to report previous=false")
	}
}

func TestPopAllIndexingResultsDrainsInOrder(t *testing.T) {
	q := New()
	q.PushIndexingResult(models.IndexingResult{FilePath: "a.dcm"})
	q.PushIndexingResult(models.IndexingResult{FilePath: "b.dcm"})

	results := q.PopAllIndexingResults()
	if len(results) != 2 || results[0].FilePath != "a.dcm" || results[1].FilePath != "b.dcm" {
		t.Fatalf("unexpected drained results: %+v", results)
	}

	if more := q.PopAllIndexingResults(); len(more) != 0 {
		t.Fatalf("expected empty drain after first, got %+v", more)
	}
}

func TestResetForNewRunClearsStopRequested(t *testing.T) {
	q := New()
	q.SetStopRequested(true)
	q.ResetForNewRun()

	if q.IsStopRequested() {
		t.Fatal("expected stopRequested to be cleared by ResetForNewRun")
	}
}
