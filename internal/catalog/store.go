// Package catalog implements the Catalog Writer (C5): the single
// transactional boundary that turns a batch of IndexingResults into
// Patient/Study/Series/Instance rows, copies files into the managed
// storage layout, and caches every precached/rule-required tag.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/otcheredev/dicom-catalog-indexer/internal/database"
	"github.com/otcheredev/dicom-catalog-indexer/internal/events"
	"github.com/otcheredev/dicom-catalog-indexer/internal/models"
	"github.com/otcheredev/dicom-catalog-indexer/internal/tagcache"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// ErrUnresolvablePatientKey is returned per-result when neither
// PatientID nor StudyInstanceUID is present, so no composite patient key
// can be derived even after the anonymized-dataset fallback.
var ErrUnresolvablePatientKey = errors.New("catalog: no resolvable patient key for result")

// Store writes indexing results into the catalog and copies referenced
// files into the managed storage layout.
type Store struct {
	tags        *tagcache.Store
	storageRoot string
	precache    []string
	log         zerolog.Logger
}

// New constructs a Store. storageRoot is the managed directory files are
// copied under; precacheTags is the complete set of tag keys cached for
// every instance. Store adds no rule-required tags of its own, so the
// caller passes the union of the pipeline's required tags and any extra
// tags to precache.
func New(tags *tagcache.Store, storageRoot string, precacheTags []string, log zerolog.Logger) *Store {
	return &Store{tags: tags, storageRoot: storageRoot, precache: precacheTags, log: log}
}

// AllFilesModifiedTimes returns every indexed file's recorded mtime,
// seeding the queue's ModifiedTimeIndex on coordinator startup.
func (s *Store) AllFilesModifiedTimes(ctx context.Context) (map[string]int64, error) {
	var rows []models.Instance
	if err := database.DB.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load instance modified times: %w", err)
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.SourcePath] = r.ModifiedTime
	}
	return out, nil
}

// Counts returns the current number of rows at each catalog level, used
// by the coordinator to compute deltas across a batch.
func (s *Store) Counts(ctx context.Context) (patients, studies, series, instances int64, err error) {
	db := database.DB.WithContext(ctx)
	if err = db.Model(&models.Patient{}).Count(&patients).Error; err != nil {
		return
	}
	if err = db.Model(&models.Study{}).Count(&studies).Error; err != nil {
		return
	}
	if err = db.Model(&models.Series{}).Count(&series).Error; err != nil {
		return
	}
	if err = db.Model(&models.Instance{}).Count(&instances).Error; err != nil {
		return
	}
	return
}

// Insert atomically writes every result in the batch: either all results
// insert/update or none do. Each result's own StoreFile flag (set by the
// request that produced it) controls whether its file is copied into the
// managed storage layout. Per-result errors (a failed file copy, an
// unresolvable patient key) skip only that result and do not abort the
// batch; a transaction-level failure aborts and rolls back everything.
//
// Returns the touched SOPInstanceUIDs (for the subsequent displayed
// field update) and the set of newly-created entity counts.
func (s *Store) Insert(ctx context.Context, results []models.IndexingResult) ([]string, events.Deltas, error) {
	seen := map[string]bool{}
	var touched []string
	var deltas events.Deltas

	err := database.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, r := range results {
			if r.Err != nil {
				continue
			}
			if r.SOPInstanceUID == "" || seen[r.SOPInstanceUID] {
				continue
			}
			seen[r.SOPInstanceUID] = true

			patientUID, patientName, err := resolvePatientKey(r)
			if err != nil {
				s.log.Warn().Err(err).Str("file", r.FilePath).Msg("skipping result with unresolvable patient key")
				continue
			}

			addedPatient, err := upsertPatient(tx, patientUID, r.PatientID, patientName)
			if err != nil {
				return err
			}
			if addedPatient {
				deltas.Patients++
			}

			if r.StudyInstanceUID == "" || r.SeriesInstanceUID == "" {
				s.log.Warn().Str("file", r.FilePath).Msg("skipping result missing study or series UID")
				continue
			}

			addedStudy, err := upsertStudy(tx, r.StudyInstanceUID, patientUID)
			if err != nil {
				return err
			}
			if addedStudy {
				deltas.Studies++
			}

			addedSeries, err := upsertSeries(tx, r.SeriesInstanceUID, r.StudyInstanceUID)
			if err != nil {
				return err
			}
			if addedSeries {
				deltas.Series++
			}

			finalPath := r.FilePath
			if r.StoreFile {
				copied, err := s.copyIntoStorage(r.StudyInstanceUID, r.SeriesInstanceUID, r.SOPInstanceUID, r.FilePath)
				if err != nil {
					s.log.Warn().Err(err).Str("file", r.FilePath).Msg("failed to copy file into storage, skipping result")
					continue
				}
				finalPath = copied
			}

			addedInstance, err := upsertInstance(tx, r.SOPInstanceUID, r.SeriesInstanceUID, r.FilePath, finalPath, r.ModifiedTime, r.OverwriteExistingDataset)
			if err != nil {
				return err
			}
			if addedInstance {
				deltas.Instances++
			}

			if err := s.tags.PutTagsForInstance(ctx, tx, r.SOPInstanceUID, cachedTagSet(r.Tags, s.precache)); err != nil {
				return err
			}

			touched = append(touched, r.SOPInstanceUID)
		}
		return nil
	})
	if err != nil {
		return nil, events.Deltas{}, fmt.Errorf("catalog transaction failed: %w", err)
	}

	return touched, deltas, nil
}

// resolvePatientKey derives the composite patient key, falling back to
// the study UID (and, for the name, the resolved patient key) when the
// dataset is anonymized and carries no PatientID — a behavior recovered
// from the original indexer rather than stated in the distilled spec.
func resolvePatientKey(r models.IndexingResult) (uid, name string, err error) {
	uid = r.PatientID
	name = r.PatientName

	if uid == "" {
		uid = r.StudyInstanceUID
	}
	if uid == "" {
		return "", "", ErrUnresolvablePatientKey
	}
	if name == "" {
		name = uid
	}
	return uid, name, nil
}

// cachedTagSet builds the tag-key -> value map written for one instance:
// every key of the rule-required/precache set, valued from what the
// parser found and present (possibly empty) even when the file lacks it.
// Parsed tags outside that set are not included.
func cachedTagSet(parsed map[string]string, required []string) map[string]string {
	out := make(map[string]string, len(required))
	for _, k := range required {
		out[k] = parsed[k] // zero value "" when absent, never omitted
	}
	return out
}

func upsertPatient(tx *gorm.DB, uid, patientID, name string) (added bool, err error) {
	var existing models.Patient
	err = tx.Where("patients_uid = ?", uid).First(&existing).Error
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("failed to look up patient %s: %w", uid, err)
	}
	p := models.Patient{PatientsUID: uid, PatientID: patientID, PatientName: name}
	if err := tx.Create(&p).Error; err != nil {
		return false, fmt.Errorf("failed to insert patient %s: %w", uid, err)
	}
	return true, nil
}

func upsertStudy(tx *gorm.DB, studyUID, patientUID string) (added bool, err error) {
	var existing models.Study
	err = tx.Where("study_instance_uid = ?", studyUID).First(&existing).Error
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("failed to look up study %s: %w", studyUID, err)
	}
	st := models.Study{StudyInstanceUID: studyUID, PatientsUID: patientUID}
	if err := tx.Create(&st).Error; err != nil {
		return false, fmt.Errorf("failed to insert study %s: %w", studyUID, err)
	}
	return true, nil
}

func upsertSeries(tx *gorm.DB, seriesUID, studyUID string) (added bool, err error) {
	var existing models.Series
	err = tx.Where("series_instance_uid = ?", seriesUID).First(&existing).Error
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("failed to look up series %s: %w", seriesUID, err)
	}
	se := models.Series{SeriesInstanceUID: seriesUID, StudyInstanceUID: studyUID}
	if err := tx.Create(&se).Error; err != nil {
		return false, fmt.Errorf("failed to insert series %s: %w", seriesUID, err)
	}
	return true, nil
}

func upsertInstance(tx *gorm.DB, sopUID, seriesUID, sourcePath, filename string, mtime int64, overwrite bool) (added bool, err error) {
	var existing models.Instance
	err = tx.Where("sop_instance_uid = ?", sopUID).First(&existing).Error
	switch {
	case err == nil:
		if !overwrite {
			return false, nil
		}
		existing.SourcePath = sourcePath
		existing.Filename = filename
		existing.ModifiedTime = mtime
		if err := tx.Save(&existing).Error; err != nil {
			return false, fmt.Errorf("failed to update instance %s: %w", sopUID, err)
		}
		return false, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		in := models.Instance{SOPInstanceUID: sopUID, SeriesInstanceUID: seriesUID, SourcePath: sourcePath, Filename: filename, ModifiedTime: mtime}
		if err := tx.Create(&in).Error; err != nil {
			return false, fmt.Errorf("failed to insert instance %s: %w", sopUID, err)
		}
		return true, nil
	default:
		return false, fmt.Errorf("failed to look up instance %s: %w", sopUID, err)
	}
}

// copyIntoStorage copies src into <storageRoot>/dicom/<studyUID>/<seriesUID>/<sopUID>
// unless it is already there, returning the final path.
func (s *Store) copyIntoStorage(studyUID, seriesUID, sopUID, src string) (string, error) {
	destDir := filepath.Join(s.storageRoot, "dicom", studyUID, seriesUID)
	dest := filepath.Join(destDir, sopUID)

	if absSrc, err := filepath.Abs(src); err == nil {
		if absDest, err := filepath.Abs(dest); err == nil && absSrc == absDest {
			return dest, nil
		}
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create storage directory: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("failed to open source file: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("failed to create destination file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return "", fmt.Errorf("failed to copy file: %w", err)
	}

	return dest, nil
}
