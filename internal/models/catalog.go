package models

import "time"

// Patient is the root of the catalog hierarchy, keyed by a composite
// patient identifier (PatientID, falling back to StudyInstanceUID for
// anonymized datasets that carry no patient ID at all).
type Patient struct {
	PatientsUID string `gorm:"column:patients_uid;primaryKey;type:varchar(128)" json:"patients_uid"`
	PatientID   string `gorm:"type:varchar(64);index" json:"patient_id"`
	PatientName string `gorm:"type:varchar(255)" json:"patient_name"`
	InsertedAt  time.Time
}

func (Patient) TableName() string { return "patients" }

// Study belongs to exactly one Patient.
type Study struct {
	StudyInstanceUID string `gorm:"column:study_instance_uid;primaryKey;type:varchar(128)" json:"study_instance_uid"`
	PatientsUID      string `gorm:"column:patients_uid;index;type:varchar(128)" json:"patients_uid"`
	InsertedAt       time.Time
}

func (Study) TableName() string { return "studies" }

// Series belongs to exactly one Study.
type Series struct {
	SeriesInstanceUID string `gorm:"column:series_instance_uid;primaryKey;type:varchar(128)" json:"series_instance_uid"`
	StudyInstanceUID  string `gorm:"column:study_instance_uid;index;type:varchar(128)" json:"study_instance_uid"`
	InsertedAt        time.Time
}

func (Series) TableName() string { return "series" }

// Instance belongs to exactly one Series. SourcePath is the path the
// worker originally read the file from, keyed against the queue's
// modified-time index so re-indexing can cheaply skip unchanged files;
// Filename is where the file actually lives for retrieval, which is a
// copy under the managed storage layout when the catalog stores files,
// or equal to SourcePath otherwise.
type Instance struct {
	SOPInstanceUID    string `gorm:"column:sop_instance_uid;primaryKey;type:varchar(128)" json:"sop_instance_uid"`
	SeriesInstanceUID string `gorm:"column:series_instance_uid;index;type:varchar(128)" json:"series_instance_uid"`
	SourcePath        string `gorm:"column:source_path;type:text;index" json:"source_path"`
	Filename          string `gorm:"type:text" json:"filename"`
	ModifiedTime      int64  `json:"modified_time"` // unix nanoseconds, source file mtime at index time
	InsertedAt        time.Time
}

func (Instance) TableName() string { return "instances" }

// CachedTag stores a single (SOPInstanceUID, tagKey) -> value entry.
// Absent tags are stored with an empty Value, never omitted, per the
// invariant that every required tag is present for every indexed instance.
type CachedTag struct {
	SOPInstanceUID string `gorm:"column:sop_instance_uid;primaryKey;type:varchar(128)" json:"sop_instance_uid"`
	TagKey         string `gorm:"column:tag_key;primaryKey;type:varchar(16)" json:"tag_key"` // "gggg,eeee"
	Value          string `gorm:"type:text" json:"value"`
}

func (CachedTag) TableName() string { return "cached_tags" }

// DisplayedFieldLevel identifies which tier of the catalog hierarchy a
// DisplayedField row belongs to.
type DisplayedFieldLevel string

const (
	DisplayedFieldLevelPatient DisplayedFieldLevel = "patient"
	DisplayedFieldLevelStudy   DisplayedFieldLevel = "study"
	DisplayedFieldLevelSeries  DisplayedFieldLevel = "series"
)

// DisplayedField is the concrete storage for the three parallel
// field-name -> value maps the rule pipeline projects and merges.
type DisplayedField struct {
	Level     DisplayedFieldLevel `gorm:"primaryKey;type:varchar(16)" json:"level"`
	OwnerUID  string              `gorm:"column:owner_uid;primaryKey;type:varchar(128)" json:"owner_uid"`
	FieldName string              `gorm:"column:field_name;primaryKey;type:varchar(64)" json:"field_name"`
	Value     string              `gorm:"type:text" json:"value"`
}

func (DisplayedField) TableName() string { return "displayed_fields" }
