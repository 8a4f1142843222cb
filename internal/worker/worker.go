// Package worker implements the indexing worker run, of which at most
// one is active at a time: it drains requests from the queue, parses
// files via dicomparse, and pushes results back for the producer to commit.
package worker

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/otcheredev/dicom-catalog-indexer/internal/dicomparse"
	"github.com/otcheredev/dicom-catalog-indexer/internal/events"
	"github.com/otcheredev/dicom-catalog-indexer/internal/indexqueue"
	"github.com/otcheredev/dicom-catalog-indexer/internal/metrics"
	"github.com/otcheredev/dicom-catalog-indexer/internal/models"
	"github.com/rs/zerolog"
)

// Worker runs the indexing loop against one Queue, emitting progress
// events to the supplied channel.
type Worker struct {
	queue       *indexqueue.Queue
	events      chan<- events.Event
	log         zerolog.Logger
	lastPercent int
}

// New constructs a Worker bound to queue, emitting progress onto eventsCh.
func New(queue *indexqueue.Queue, eventsCh chan<- events.Event, log zerolog.Logger) *Worker {
	return &Worker{queue: queue, events: eventsCh, log: log, lastPercent: -1}
}

// Start runs one indexing pass and reports whether this call was the
// one that actually ran it: if another run is already active, Start
// returns false immediately, ensuring at most one worker run at a time.
// Intended to be launched in its own goroutine by the coordinator on
// every push.
//
// The pass keeps draining until the queue reports Stop AND
// FinishIfIdle confirms nothing raced in behind the last pop — a
// request pushed while this run was already active always gets
// processed by this same run, never orphaned behind the indexing flag.
func (w *Worker) Start() bool {
	if already := w.queue.SetIndexing(true); already {
		return false
	}

	started := time.Now()
	completedRequests := 0

	for {
		req, remaining := w.queue.PopIndexingRequest()
		if remaining == indexqueue.Stop {
			if w.queue.FinishIfIdle() {
				break
			}
			continue
		}

		files := w.expandRequest(req)
		total := len(files)

		for i, path := range files {
			fraction := float64(completedRequests) + float64(i)/float64(maxOne(total))
			percent := int(100 * fraction / float64(completedRequests+remaining+1))
			w.emitProgress(percent)
			w.emitFilePath(path)

			w.processFile(path, req.StoreFile())

			if w.queue.IsStopRequested() {
				break
			}
		}

		completedRequests++
	}

	w.log.Debug().Dur("elapsed", time.Since(started)).Msg("indexing worker run finished")
	return true
}

// expandRequest turns a directory request into a flat file list, in
// directory-traversal order. A plain single-file request is
// returned as a one-element slice. When req.IncludeHidden is false, any
// dot-prefixed directory is pruned and any dot-prefixed file is skipped.
func (w *Worker) expandRequest(req models.IndexingRequest) []string {
	info, err := os.Stat(req.FilePath)
	if err != nil {
		w.log.Warn().Err(err).Str("path", req.FilePath).Msg("cannot stat indexing request path")
		return nil
	}

	if !info.IsDir() {
		return []string{req.FilePath}
	}

	var files []string
	_ = filepath.WalkDir(req.FilePath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if isHidden(d.Name()) && !req.IncludeHidden {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		files = append(files, path)
		return nil
	})
	return files
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}

// processFile parses one file, skipping it if its recorded mtime is
// already >= the file's current mtime (already indexed, unchanged). A
// parse failure still pushes a result, with Err set, so the coordinator
// can count and report it; the file itself is not otherwise recorded.
func (w *Worker) processFile(path string, storeFile bool) {
	info, err := os.Stat(path)
	if err != nil {
		w.log.Warn().Err(err).Str("path", path).Msg("cannot stat file during indexing")
		return
	}
	mtime := info.ModTime().UnixNano()

	prev, alreadyPresent := w.queue.ModifiedTimeForFilepath(path)
	if alreadyPresent && prev >= mtime {
		w.log.Debug().Str("path", path).Msg("skipping unchanged file")
		metrics.FilesSkippedUnchanged.Inc()
		return
	}

	w.queue.SetModifiedTimeForFilepath(path, mtime)

	parsed, err := dicomparse.ParseFile(path)
	if err != nil {
		w.log.Warn().Err(err).Str("path", path).Msg("failed to parse DICOM file, skipping")
		w.queue.PushIndexingResult(models.IndexingResult{FilePath: path, Err: err})
		return
	}

	result := models.IndexingResult{
		FilePath:                 path,
		SOPInstanceUID:           parsed.Tags["0008,0018"],
		SeriesInstanceUID:        parsed.Tags["0020,000e"],
		StudyInstanceUID:         parsed.Tags["0020,000d"],
		PatientID:                parsed.Tags["0010,0020"],
		PatientName:              parsed.Tags["0010,0010"],
		Tags:                     parsed.Tags,
		ModifiedTime:             parsed.ModifiedTime,
		OverwriteExistingDataset: alreadyPresent,
		StoreFile:                storeFile,
	}

	w.queue.PushIndexingResult(result)
}

// emitProgress sends a Progress event only when percent differs from
// the last one actually sent, matching the events.Progress contract.
func (w *Worker) emitProgress(percent int) {
	if percent == w.lastPercent {
		return
	}
	w.lastPercent = percent
	select {
	case w.events <- events.Event{Kind: events.Progress, Percent: percent}:
	default:
	}
}

func (w *Worker) emitFilePath(path string) {
	select {
	case w.events <- events.Event{Kind: events.IndexingFilePath, FilePath: path}:
	default:
	}
}

func maxOne(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}
