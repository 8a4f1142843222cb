package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// IndexingRunLog is a durable audit row for one indexing batch: the set
// of results drained from the queue and committed (or rolled back) in a
// single catalog transaction.
type IndexingRunLog struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	StartedAt        time.Time `gorm:"index" json:"started_at"`
	CompletedAt      time.Time `json:"completed_at"`
	FilesRequested   int       `json:"files_requested"`
	PatientsAdded    int       `json:"patients_added"`
	StudiesAdded     int       `json:"studies_added"`
	SeriesAdded      int       `json:"series_added"`
	InstancesAdded   int       `json:"instances_added"`
	ParseErrors      int       `json:"parse_errors"`
	SkippedUnchanged int       `json:"skipped_unchanged"`
	Canceled         bool      `json:"canceled"`
	Failed           bool      `gorm:"index" json:"failed"`
	ErrorMessage     string    `gorm:"type:text" json:"error_message,omitempty"`
}

// TableName overrides the table name
func (IndexingRunLog) TableName() string {
	return "indexing_run_logs"
}

// BeforeCreate hook
func (l *IndexingRunLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
