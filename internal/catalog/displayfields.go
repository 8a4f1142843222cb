package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/otcheredev/dicom-catalog-indexer/internal/database"
	"github.com/otcheredev/dicom-catalog-indexer/internal/models"
	"github.com/otcheredev/dicom-catalog-indexer/internal/rules"
	"gorm.io/gorm"
)

// DisplayFieldsUpdater runs the rule pipeline over newly touched
// instances and persists the resulting patient/study/series displayed
// fields, after the insert transaction for the batch has committed.
type DisplayFieldsUpdater struct {
	store    *Store
	pipeline *rules.Pipeline
}

// NewDisplayFieldsUpdater constructs an updater bound to store (for tag
// lookups) and pipeline (for projection/merge).
func NewDisplayFieldsUpdater(store *Store, pipeline *rules.Pipeline) *DisplayFieldsUpdater {
	return &DisplayFieldsUpdater{store: store, pipeline: pipeline}
}

// UpdateForInstances runs updateDisplayFieldsForInstance (rules §4.6)
// for every touched SOPInstanceUID and persists the merged result. Each
// instance is resolved to its series/study/patient ahead of the merge so
// the running current* maps are looked up per owner rather than reset
// per instance, matching the original generator's batch-wide
// accumulation.
func (u *DisplayFieldsUpdater) UpdateForInstances(ctx context.Context, sopInstanceUIDs []string) error {
	if len(sopInstanceUIDs) == 0 {
		return nil
	}

	seriesFields := map[string]rules.FieldMap{}
	studyFields := map[string]rules.FieldMap{}
	patientFields := map[string]rules.FieldMap{}
	patientOrdinal := map[string]int{}

	for _, sopUID := range sopInstanceUIDs {
		var inst models.Instance
		if err := database.DB.WithContext(ctx).Where("sop_instance_uid = ?", sopUID).First(&inst).Error; err != nil {
			return fmt.Errorf("failed to look up instance %s for displayed-field update: %w", sopUID, err)
		}
		var series models.Series
		if err := database.DB.WithContext(ctx).Where("series_instance_uid = ?", inst.SeriesInstanceUID).First(&series).Error; err != nil {
			return fmt.Errorf("failed to look up series %s for displayed-field update: %w", inst.SeriesInstanceUID, err)
		}
		var study models.Study
		if err := database.DB.WithContext(ctx).Where("study_instance_uid = ?", series.StudyInstanceUID).First(&study).Error; err != nil {
			return fmt.Errorf("failed to look up study %s for displayed-field update: %w", series.StudyInstanceUID, err)
		}

		tags, err := u.store.tags.GetTagsForInstance(ctx, sopUID)
		if err != nil {
			return err
		}

		currentSeries, err := u.loadOrInit(ctx, seriesFields, models.DisplayedFieldLevelSeries, series.SeriesInstanceUID)
		if err != nil {
			return err
		}
		currentStudy, err := u.loadOrInit(ctx, studyFields, models.DisplayedFieldLevelStudy, study.StudyInstanceUID)
		if err != nil {
			return err
		}
		currentPatient, err := u.loadOrInit(ctx, patientFields, models.DisplayedFieldLevelPatient, study.PatientsUID)
		if err != nil {
			return err
		}

		if _, ok := patientOrdinal[study.PatientsUID]; !ok {
			patientOrdinal[study.PatientsUID] = len(patientOrdinal)
		}
		currentPatient["PatientIndex"] = fmt.Sprintf("%d", patientOrdinal[study.PatientsUID])
		currentStudy["PatientIndex"] = currentPatient["PatientIndex"]

		u.pipeline.UpdateDisplayFieldsForInstance(tags, currentSeries, currentStudy, currentPatient)

		seriesFields[series.SeriesInstanceUID] = currentSeries
		studyFields[study.StudyInstanceUID] = currentStudy
		patientFields[study.PatientsUID] = currentPatient
	}

	return database.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := persistLevel(tx, models.DisplayedFieldLevelSeries, seriesFields); err != nil {
			return err
		}
		if err := persistLevel(tx, models.DisplayedFieldLevelStudy, studyFields); err != nil {
			return err
		}
		if err := persistLevel(tx, models.DisplayedFieldLevelPatient, patientFields); err != nil {
			return err
		}
		return nil
	})
}

// loadOrInit returns the running in-batch field map for key, or, the
// first time key is seen this batch, seeds it from whatever displayed
// fields were already persisted for that owner from prior batches.
func (u *DisplayFieldsUpdater) loadOrInit(ctx context.Context, m map[string]rules.FieldMap, level models.DisplayedFieldLevel, key string) (rules.FieldMap, error) {
	if fm, ok := m[key]; ok {
		return fm, nil
	}

	var rows []models.DisplayedField
	if err := database.DB.WithContext(ctx).
		Where("level = ? AND owner_uid = ?", level, key).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load existing displayed fields for %s/%s: %w", level, key, err)
	}

	fm := make(rules.FieldMap, len(rows))
	for _, r := range rows {
		fm[r.FieldName] = r.Value
	}
	return fm, nil
}

func persistLevel(tx *gorm.DB, level models.DisplayedFieldLevel, byOwner map[string]rules.FieldMap) error {
	for ownerUID, fields := range byOwner {
		for fieldName, value := range fields {
			var existing models.DisplayedField
			err := tx.Where("level = ? AND owner_uid = ? AND field_name = ?", level, ownerUID, fieldName).
				First(&existing).Error
			switch {
			case err == nil:
				existing.Value = value
				if err := tx.Save(&existing).Error; err != nil {
					return fmt.Errorf("failed to update displayed field %s/%s/%s: %w", level, ownerUID, fieldName, err)
				}
			case errors.Is(err, gorm.ErrRecordNotFound):
				row := models.DisplayedField{Level: level, OwnerUID: ownerUID, FieldName: fieldName, Value: value}
				if err := tx.Create(&row).Error; err != nil {
					return fmt.Errorf("failed to insert displayed field %s/%s/%s: %w", level, ownerUID, fieldName, err)
				}
			default:
				return fmt.Errorf("failed to look up displayed field %s/%s/%s: %w", level, ownerUID, fieldName, err)
			}
		}
	}
	return nil
}
