package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/otcheredev/dicom-catalog-indexer/internal/events"
	"github.com/otcheredev/dicom-catalog-indexer/internal/models"
	"github.com/rs/zerolog"
)

type fakeStore struct {
	deltas        events.Deltas
	insertErr     error
	modifiedTimes map[string]int64
	insertedFor   []models.IndexingResult
}

func (f *fakeStore) Insert(ctx context.Context, results []models.IndexingResult) ([]string, events.Deltas, error) {
	f.insertedFor = results
	if f.insertErr != nil {
		return nil, events.Deltas{}, f.insertErr
	}
	var touched []string
	for _, r := range results {
		if r.Err == nil {
			touched = append(touched, r.SOPInstanceUID)
		}
	}
	return touched, f.deltas, nil
}

func (f *fakeStore) Counts(ctx context.Context) (patients, studies, series, instances int64, err error) {
	return 0, 0, 0, 0, nil
}

func (f *fakeStore) AllFilesModifiedTimes(ctx context.Context) (map[string]int64, error) {
	return f.modifiedTimes, nil
}

type fakeFieldsUpdater struct {
	called bool
	got    []string
	err    error
}

func (f *fakeFieldsUpdater) UpdateForInstances(ctx context.Context, sopInstanceUIDs []string) error {
	f.called = true
	f.got = sopInstanceUIDs
	return f.err
}

type fakeRunLogWriter struct {
	logs []*models.IndexingRunLog
}

func (f *fakeRunLogWriter) Create(ctx context.Context, l *models.IndexingRunLog) error {
	f.logs = append(f.logs, l)
	return nil
}

func newTestCoordinator(store *fakeStore, fields *fakeFieldsUpdater, runLogs *fakeRunLogWriter) *Coordinator {
	return New(store, fields, runLogs, zerolog.Nop())
}

func TestNewSeedsQueueModifiedTimesFromStore(t *testing.T) {
	store := &fakeStore{modifiedTimes: map[string]int64{"/a/x.dcm": 42}}
	c := newTestCoordinator(store, &fakeFieldsUpdater{}, &fakeRunLogWriter{})

	mtime, ok := c.queue.ModifiedTimeForFilepath("/a/x.dcm")
	if !ok || mtime != 42 {
		t.Fatalf("expected seeded mtime 42, got %d/%v", mtime, ok)
	}
}

func TestCommitBatchCountsParseErrorsAndExcludesThemFromFieldsUpdate(t *testing.T) {
	store := &fakeStore{deltas: events.Deltas{Instances: 1}}
	fields := &fakeFieldsUpdater{}
	runLogs := &fakeRunLogWriter{}
	c := newTestCoordinator(store, fields, runLogs)

	c.queue.PushIndexingResult(models.IndexingResult{FilePath: "/a/bad.dcm", Err: errors.New("malformed dataset")})
	c.queue.PushIndexingResult(models.IndexingResult{FilePath: "/a/good.dcm", SOPInstanceUID: "1.2.3.sop"})

	deltas, err := c.commitBatch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deltas.Instances != 1 {
		t.Fatalf("expected deltas.Instances == 1, got %d", deltas.Instances)
	}
	if !fields.called || len(fields.got) != 1 || fields.got[0] != "1.2.3.sop" {
		t.Fatalf("expected fields update called with only the successful SOPInstanceUID, got %v", fields.got)
	}
	if len(runLogs.logs) != 1 {
		t.Fatalf("expected exactly one run log persisted, got %d", len(runLogs.logs))
	}
	if runLogs.logs[0].ParseErrors != 1 {
		t.Fatalf("expected run log to record 1 parse error, got %d", runLogs.logs[0].ParseErrors)
	}
	if runLogs.logs[0].FilesRequested != 2 {
		t.Fatalf("expected run log to record 2 files requested, got %d", runLogs.logs[0].FilesRequested)
	}
}

func TestCommitBatchReturnsZeroDeltasAndSkipsFieldsUpdateOnInsertError(t *testing.T) {
	store := &fakeStore{insertErr: errors.New("transaction failed")}
	fields := &fakeFieldsUpdater{}
	runLogs := &fakeRunLogWriter{}
	c := newTestCoordinator(store, fields, runLogs)

	c.queue.PushIndexingResult(models.IndexingResult{FilePath: "/a/x.dcm", SOPInstanceUID: "1.2.3.sop"})

	deltas, err := c.commitBatch(context.Background())
	if err == nil {
		t.Fatal("expected an error from a failed insert transaction")
	}
	if deltas != (events.Deltas{}) {
		t.Fatalf("expected zero deltas on transaction failure, got %+v", deltas)
	}
	if fields.called {
		t.Fatal("expected displayed-field update to be skipped when the insert transaction fails")
	}
	if len(runLogs.logs) != 1 || !runLogs.logs[0].Failed {
		t.Fatalf("expected one run log marked failed, got %+v", runLogs.logs)
	}
}

func TestCommitBatchPersistsDeltasOnSuccess(t *testing.T) {
	store := &fakeStore{deltas: events.Deltas{Patients: 1, Studies: 1, Series: 1, Instances: 1}}
	c := newTestCoordinator(store, &fakeFieldsUpdater{}, &fakeRunLogWriter{})

	c.queue.PushIndexingResult(models.IndexingResult{FilePath: "/a/x.dcm", SOPInstanceUID: "1.2.3.sop"})

	deltas, err := c.commitBatch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deltas.Patients != 1 || deltas.Studies != 1 || deltas.Series != 1 || deltas.Instances != 1 {
		t.Fatalf("expected all deltas == 1, got %+v", deltas)
	}
}

func TestAddFileDerivesStoreFileFromDestinationDir(t *testing.T) {
	c := newTestCoordinator(&fakeStore{}, &fakeFieldsUpdater{}, &fakeRunLogWriter{})
	c.queue.SetIndexing(true) // blocks the spawned worker so the request stays queued

	c.AddFile("/a/x.dcm", "/managed/storage")

	req, remaining := c.queue.PopIndexingRequest()
	if remaining != 0 {
		t.Fatalf("expected exactly one queued request, remaining=%d", remaining)
	}
	if req.FilePath != "/a/x.dcm" || req.DestinationDir != "/managed/storage" || !req.StoreFile() {
		t.Fatalf("unexpected request: %+v", req)
	}
}

func TestAddFileWithEmptyDestinationDirDoesNotStoreFile(t *testing.T) {
	c := newTestCoordinator(&fakeStore{}, &fakeFieldsUpdater{}, &fakeRunLogWriter{})
	c.queue.SetIndexing(true)

	c.AddFile("/a/x.dcm", "")

	req, _ := c.queue.PopIndexingRequest()
	if req.StoreFile() {
		t.Fatal("expected StoreFile() to be false when destinationDir is empty")
	}
}

func TestAddDirectoryThreadsIncludeHiddenAndDestinationDir(t *testing.T) {
	dir := t.TempDir()
	c := newTestCoordinator(&fakeStore{}, &fakeFieldsUpdater{}, &fakeRunLogWriter{})
	c.queue.SetIndexing(true)

	ok, err := c.AddDirectory(dir, "/managed", true)
	if err != nil || !ok {
		t.Fatalf("unexpected result: ok=%v err=%v", ok, err)
	}

	req, _ := c.queue.PopIndexingRequest()
	if req.FilePath != dir || req.DestinationDir != "/managed" || !req.IncludeHidden {
		t.Fatalf("unexpected request: %+v", req)
	}
}

func TestAddDirectoryDelegatesToDicomdirWhenManifestPresent(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "DICOMDIR"), []byte("not a real dicomdir"), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	c := newTestCoordinator(&fakeStore{}, &fakeFieldsUpdater{}, &fakeRunLogWriter{})

	_, err := c.AddDirectory(dir, "", false)
	if err == nil {
		t.Fatal("expected AddDirectory to delegate to AddDicomdir and surface its parse error")
	}
}

func TestAddFileCompletesWithoutPreBlockingTheQueue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.dcm")
	if err := os.WriteFile(path, []byte("not a real dicom file"), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	store := &fakeStore{deltas: events.Deltas{}}
	c := newTestCoordinator(store, &fakeFieldsUpdater{}, &fakeRunLogWriter{})

	c.AddFile(path, "")

	if !c.WaitForImportFinished(2 * time.Second) {
		t.Fatal("expected the real AddFile -> worker -> commitBatch path to complete within the timeout")
	}
	if len(store.insertedFor) != 1 || store.insertedFor[0].Err == nil {
		t.Fatalf("expected the unparseable fixture's failed result to reach the store, got %+v", store.insertedFor)
	}
}

func TestAddListOfFilesThreadsDestinationDirToEveryRequest(t *testing.T) {
	c := newTestCoordinator(&fakeStore{}, &fakeFieldsUpdater{}, &fakeRunLogWriter{})
	c.queue.SetIndexing(true)

	c.AddListOfFiles([]string{"/a/x.dcm", "/a/y.dcm"}, "/managed")

	first, remaining := c.queue.PopIndexingRequest()
	if remaining != 1 || !first.StoreFile() {
		t.Fatalf("unexpected first request: %+v, remaining=%d", first, remaining)
	}
	second, remaining := c.queue.PopIndexingRequest()
	if remaining != 0 || !second.StoreFile() {
		t.Fatalf("unexpected second request: %+v, remaining=%d", second, remaining)
	}
}
