package rules

// emptySeriesDescription is the placeholder the default rule stores
// when a series carries no SeriesDescription at all.
const emptySeriesDescription = "Unnamed Series"

// DefaultRule projects the common patient/study/series identification
// fields every instance is expected to carry, and is always the first
// rule in the pipeline so later rules (e.g. Radiotherapy) can override
// its projections.
type DefaultRule struct{}

// NewDefaultRule constructs the default displayed-field rule.
func NewDefaultRule() *DefaultRule { return &DefaultRule{} }

func (r *DefaultRule) Name() string { return "Default" }

func (r *DefaultRule) RequiredTags() []string {
	return []string{
		"0008,0018", // SOPInstanceUID

		"0010,0020", // PatientID
		"0010,0010", // PatientName
		"0010,0030", // PatientBirthDate
		"0010,0032", // PatientBirthTime
		"0010,0040", // PatientSex
		"0010,1010", // PatientAge
		"0010,4000", // PatientComments

		"0020,000d", // StudyInstanceUID
		"0020,0010", // StudyID
		"0008,0020", // StudyDate
		"0008,0030", // StudyTime
		"0008,0050", // AccessionNumber
		"0008,0061", // ModalitiesInStudy
		"0008,0080", // InstitutionName
		"0008,1050", // PerformingPhysicianName
		"0008,0090", // ReferringPhysicianName
		"0008,1030", // StudyDescription

		"0020,000e", // SeriesInstanceUID
		"0008,0021", // SeriesDate
		"0008,0031", // SeriesTime
		"0008,103e", // SeriesDescription
		"0008,0060", // Modality
		"0018,0015", // BodyPartExamined
		"0020,0052", // FrameOfReferenceUID
		"0018,0010", // ContrastBolusAgent
		"0018,0020", // ScanningSequence
		"0020,0011", // SeriesNumber
		"0020,0012", // AcquisitionNumber
		"0018,0086", // EchoNumbers
		"0020,0100", // TemporalPositionIdentifier
	}
}

func (r *DefaultRule) RegisterEmptyFieldNames(series, study, patient EmptyFieldRegistry) {
	series.register("SeriesDescription", emptySeriesDescription)
}

func (r *DefaultRule) GetDisplayFieldsForInstance(tags map[string]string) (series, study, patient FieldMap) {
	patient = FieldMap{
		"PatientName": tags["0010,0010"],
		"PatientID":   tags["0010,0020"],
	}

	study = FieldMap{
		"StudyInstanceUID":   tags["0020,000d"],
		"StudyDescription":   tags["0008,1030"],
		"StudyDate":          tags["0008,0020"],
		"ModalitiesInStudy":  tags["0008,0061"],
		"InstitutionName":    tags["0008,0080"],
		"ReferringPhysician": tags["0008,0090"],
	}

	series = FieldMap{
		"SeriesInstanceUID": tags["0020,000e"],
		"StudyInstanceUID":  tags["0020,000d"],
		"SeriesNumber":      tags["0020,0011"],
		"SeriesDescription": tags["0008,103e"],
		"Modality":          tags["0008,0060"],
	}

	return series, study, patient
}

func (r *DefaultRule) MergeDisplayFieldsForInstance(
	initialSeries, initialStudy, initialPatient FieldMap,
	newSeries, newStudy, newPatient FieldMap,
	mergedSeries, mergedStudy, mergedPatient FieldMap,
	emptySeries, emptyStudy, emptyPatient EmptyFieldRegistry,
) {
	MergeExpectSameValue("PatientIndex", initialPatient, newPatient, mergedPatient, emptyPatient)
	MergeExpectSameValue("PatientName", initialPatient, newPatient, mergedPatient, emptyPatient)
	MergeExpectSameValue("PatientID", initialPatient, newPatient, mergedPatient, emptyPatient)

	MergeExpectSameValue("StudyInstanceUID", initialStudy, newStudy, mergedStudy, emptyStudy)
	MergeExpectSameValue("PatientIndex", initialStudy, newStudy, mergedStudy, emptyStudy)
	MergeConcatenate("StudyDescription", initialStudy, newStudy, mergedStudy, emptyStudy)
	MergeExpectSameValue("StudyDate", initialStudy, newStudy, mergedStudy, emptyStudy)
	MergeConcatenate("ModalitiesInStudy", initialStudy, newStudy, mergedStudy, emptyStudy)
	MergeExpectSameValue("InstitutionName", initialStudy, newStudy, mergedStudy, emptyStudy)
	MergeConcatenate("ReferringPhysician", initialStudy, newStudy, mergedStudy, emptyStudy)

	MergeExpectSameValue("SeriesInstanceUID", initialSeries, newSeries, mergedSeries, emptySeries)
	MergeExpectSameValue("StudyInstanceUID", initialSeries, newSeries, mergedSeries, emptySeries)
	MergeExpectSameValue("SeriesNumber", initialSeries, newSeries, mergedSeries, emptySeries)
	MergeConcatenate("SeriesDescription", initialSeries, newSeries, mergedSeries, emptySeries)
	MergeExpectSameValue("Modality", initialSeries, newSeries, mergedSeries, emptySeries)
}
