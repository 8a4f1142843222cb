package models

// IndexingRequest is one unit of work pushed onto the indexing queue: a
// single file, or a directory the worker expands recursively. DICOMDIR
// manifests are expanded into individual file requests by the
// coordinator before they ever reach the queue. DestinationDir and
// IncludeHidden are set per request, not process-wide: DestinationDir
// non-empty means every file produced by this request should be copied
// into the managed storage layout; IncludeHidden controls whether a
// directory walk descends into/includes dot-prefixed entries.
type IndexingRequest struct {
	FilePath       string
	DestinationDir string
	IncludeHidden  bool
}

// StoreFile reports whether files produced by this request should be
// copied into the managed storage layout.
func (r IndexingRequest) StoreFile() bool {
	return r.DestinationDir != ""
}

// IndexingResult is the outcome of parsing one file, ready for the
// catalog writer to persist. A non-nil Err means the file was skipped;
// the worker still enqueues it so the coordinator can count/report it.
type IndexingResult struct {
	FilePath          string
	SOPInstanceUID    string
	SeriesInstanceUID string
	StudyInstanceUID  string
	PatientID         string
	PatientName       string
	// Tags holds every tag value read from the dataset, keyed "gggg,eeee".
	// Tags absent from the file are absent here too; the catalog writer
	// fills in required tags with an empty string when it caches them.
	Tags map[string]string
	// ModifiedTime is the source file's mtime (unix nanoseconds) at the
	// moment it was parsed, used for the skip-if-unchanged check.
	ModifiedTime int64
	// OverwriteExistingDataset is true when this path was already
	// present in the modified-time snapshot before this run, meaning the
	// catalog writer should replace the existing Instance row rather
	// than insert a new one.
	OverwriteExistingDataset bool
	// StoreFile carries the owning request's copy-into-storage decision
	// through to the catalog writer.
	StoreFile bool
	Err       error
}
