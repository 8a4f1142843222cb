// Package events carries the coordinator's progress signals from the
// worker goroutine to the caller over a single-producer/single-consumer
// channel, replacing the signal/slot wiring of the original GUI toolkit.
package events

// Kind identifies which signal an Event carries.
type Kind int

const (
	// Progress reports overall completion percent (0-100) for the
	// batch currently being processed, emitted only when the integer
	// (truncated) value changes from the last emission.
	Progress Kind = iota
	// IndexingFilePath reports the path of the file currently being
	// parsed by the worker.
	IndexingFilePath
	// IndexingComplete marks the end of one drain-and-commit cycle with
	// the delta counts added to the catalog.
	IndexingComplete
)

// Deltas summarizes how many new catalog rows a batch produced.
type Deltas struct {
	Patients  int
	Studies   int
	Series    int
	Instances int
}

// Event is a single signal emitted on the coordinator's event channel.
// Only the field matching Kind is meaningful.
type Event struct {
	Kind     Kind
	Percent  int
	FilePath string
	Deltas   Deltas
}
