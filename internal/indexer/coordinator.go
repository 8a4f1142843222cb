// Package indexer implements the Indexer Coordinator (C7): the public,
// UI-agnostic API a caller uses to submit indexing work, and the glue
// that starts the worker, drains its results, commits them through the
// catalog writer, and runs the displayed-field update.
package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/otcheredev/dicom-catalog-indexer/internal/dicomparse"
	"github.com/otcheredev/dicom-catalog-indexer/internal/events"
	"github.com/otcheredev/dicom-catalog-indexer/internal/indexqueue"
	"github.com/otcheredev/dicom-catalog-indexer/internal/metrics"
	"github.com/otcheredev/dicom-catalog-indexer/internal/models"
	"github.com/otcheredev/dicom-catalog-indexer/internal/worker"
	"github.com/rs/zerolog"
)

// catalogStore is the subset of *catalog.Store the coordinator depends
// on, narrowed to a consumer-side interface so tests can substitute a
// fake without a live database.
type catalogStore interface {
	Insert(ctx context.Context, results []models.IndexingResult) ([]string, events.Deltas, error)
	Counts(ctx context.Context) (patients, studies, series, instances int64, err error)
	AllFilesModifiedTimes(ctx context.Context) (map[string]int64, error)
}

// fieldsUpdater is the subset of *catalog.DisplayFieldsUpdater the
// coordinator depends on.
type fieldsUpdater interface {
	UpdateForInstances(ctx context.Context, sopInstanceUIDs []string) error
}

// runLogWriter is the subset of *repository.RunLogRepository the
// coordinator depends on.
type runLogWriter interface {
	Create(ctx context.Context, l *models.IndexingRunLog) error
}

// Coordinator is the single entry point producers use to submit
// indexing work. Every push spawns a goroutine that tries to start the
// worker; the queue's atomic indexing flag ensures only one actually
// runs at a time, so concurrent producer calls are serialized for free.
type Coordinator struct {
	queue     *indexqueue.Queue
	store     catalogStore
	fieldsUpd fieldsUpdater
	runLogs   runLogWriter
	events    chan events.Event
	complete  chan events.Deltas
	log       zerolog.Logger
}

// New constructs a Coordinator and seeds its queue's modified-time
// index from whatever is already in the catalog, so a restart doesn't
// re-index every previously-indexed file as changed.
func New(store catalogStore, fieldsUpd fieldsUpdater, runLogs runLogWriter, log zerolog.Logger) *Coordinator {
	c := &Coordinator{
		queue:     indexqueue.New(),
		store:     store,
		fieldsUpd: fieldsUpd,
		runLogs:   runLogs,
		events:    make(chan events.Event, 64),
		complete:  make(chan events.Deltas, 1),
		log:       log,
	}

	snapshot, err := store.AllFilesModifiedTimes(context.Background())
	if err != nil {
		log.Warn().Err(err).Msg("failed to seed modified-time index from catalog, starting empty")
	} else {
		c.queue.SeedModifiedTimes(snapshot)
	}

	return c
}

// Counts returns the current number of rows at each catalog level.
func (c *Coordinator) Counts(ctx context.Context) (patients, studies, series, instances int64, err error) {
	return c.store.Counts(ctx)
}

// Events exposes the coordinator's progress/file-path/completion signal
// channel for callers that want to observe indexing as it happens.
func (c *Coordinator) Events() <-chan events.Event {
	return c.events
}

// AddFile submits a single file for indexing. destinationDir non-empty
// means the file is copied into the managed storage layout; empty means
// the catalog row points at filePath directly.
func (c *Coordinator) AddFile(filePath, destinationDir string) {
	c.push(models.IndexingRequest{FilePath: filePath, DestinationDir: destinationDir})
}

// AddDirectory submits a directory for recursive indexing. If the
// directory contains a DICOMDIR manifest, the request is delegated to
// AddDicomdir instead. includeHidden controls whether dot-prefixed
// entries are walked.
func (c *Coordinator) AddDirectory(dirPath, destinationDir string, includeHidden bool) (bool, error) {
	manifest := filepath.Join(dirPath, "DICOMDIR")
	if fileExists(manifest) {
		return c.AddDicomdir(manifest, destinationDir)
	}
	c.push(models.IndexingRequest{FilePath: dirPath, DestinationDir: destinationDir, IncludeHidden: includeHidden})
	return true, nil
}

// AddListOfFiles submits an explicit list of files for indexing.
func (c *Coordinator) AddListOfFiles(paths []string, destinationDir string) {
	for _, p := range paths {
		c.push(models.IndexingRequest{FilePath: p, DestinationDir: destinationDir})
	}
}

// AddDicomdir parses the DICOMDIR at dicomdirPath, resolves every File
// record to an absolute path, and submits the resulting list. Returns
// false if any record in the manifest was skipped for a missing
// required UID; such records (and their children) are skipped while
// siblings still proceed.
func (c *Coordinator) AddDicomdir(dicomdirPath, destinationDir string) (bool, error) {
	result, err := dicomparse.WalkDicomdir(dicomdirPath)
	if err != nil {
		return false, fmt.Errorf("failed to parse DICOMDIR %s: %w", dicomdirPath, err)
	}
	for _, invalid := range result.InvalidRecords {
		c.log.Warn().Str("record", invalid.RecordType).Str("reason", invalid.Reason).Msg("skipping invalid DICOMDIR record")
	}

	paths := make([]string, 0, len(result.Files))
	for _, f := range result.Files {
		paths = append(paths, f.AbsolutePath)
	}
	c.AddListOfFiles(paths, destinationDir)

	return result.AllValid, nil
}

// WaitForImportFinished blocks until an IndexingComplete signal or
// timeout elapses, whichever comes first, returning true if completion
// was observed before the timeout. One completion signal is buffered, so
// a completion that no earlier call consumed is returned at once.
func (c *Coordinator) WaitForImportFinished(timeout time.Duration) bool {
	select {
	case <-c.complete:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Cancel requests cooperative cancellation of the current run. Already
// pushed results are still drained and committed; queued-but-unstarted
// requests are discarded. Idempotent.
func (c *Coordinator) Cancel() {
	c.queue.SetStopRequested(true)
}

// push enqueues req and attempts to start the worker. If a run is
// already active, the attempt is a cheap no-op (the queue's atomic
// indexing flag rejects it) and the request is picked up by the run
// already in progress.
func (c *Coordinator) push(req models.IndexingRequest) {
	c.queue.PushIndexingRequest(req)
	go c.runPass()
}

// runPass starts the worker and, only if this call was the one that
// actually ran it, commits the resulting batch and reports completion.
func (c *Coordinator) runPass() {
	w := worker.New(c.queue, c.events, c.log)
	if !w.Start() {
		return
	}

	ctx := context.Background()
	deltas, err := c.commitBatch(ctx)
	if err != nil {
		c.log.Error().Err(err).Msg("failed to commit indexing batch")
		deltas = events.Deltas{}
	}

	c.events <- events.Event{Kind: events.IndexingComplete, Deltas: deltas}
	select {
	case c.complete <- deltas:
	default:
	}
}

// commitBatch drains every result produced since the last commit,
// writes them through the catalog store in one transaction, and runs
// the displayed-field update for every touched instance.
func (c *Coordinator) commitBatch(ctx context.Context) (events.Deltas, error) {
	started := time.Now()
	results := c.queue.PopAllIndexingResults()

	runLog := &models.IndexingRunLog{StartedAt: started, FilesRequested: len(results)}
	for _, r := range results {
		if r.Err != nil {
			runLog.ParseErrors++
			metrics.ParseErrors.Inc()
		}
	}

	insertStarted := time.Now()
	touched, deltas, err := c.store.Insert(ctx, results)
	metrics.BatchInsertDuration.Observe(time.Since(insertStarted).Seconds())

	runLog.CompletedAt = time.Now()
	runLog.PatientsAdded = deltas.Patients
	runLog.StudiesAdded = deltas.Studies
	runLog.SeriesAdded = deltas.Series
	runLog.InstancesAdded = deltas.Instances

	if err != nil {
		runLog.Failed = true
		runLog.ErrorMessage = err.Error()
		if logErr := c.runLogs.Create(ctx, runLog); logErr != nil {
			c.log.Error().Err(logErr).Msg("failed to persist indexing run log")
		}
		return events.Deltas{}, err
	}
	metrics.FilesIndexed.Add(float64(len(touched)))

	fieldsStarted := time.Now()
	if err := c.fieldsUpd.UpdateForInstances(ctx, touched); err != nil {
		c.log.Error().Err(err).Msg("failed to update displayed fields for batch")
	}
	metrics.DisplayFieldsUpdateDuration.Observe(time.Since(fieldsStarted).Seconds())

	if logErr := c.runLogs.Create(ctx, runLog); logErr != nil {
		c.log.Error().Err(logErr).Msg("failed to persist indexing run log")
	}

	return deltas, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
