package rules

const (
	emptySeriesDescriptionRTPlan   = "Unnamed RT Plan"
	emptySeriesDescriptionRTStruct = "Unnamed RT Structure Set"
	emptySeriesDescriptionRTImage  = "Unnamed RT Image"
)

// RadiotherapySeriesDescriptionRule overrides SeriesDescription for
// RTPLAN/RTSTRUCT/RTIMAGE series by preferring the modality-specific name
// tag, then the label tag, then a modality-specific placeholder. It must
// run after DefaultRule in the pipeline so its projection is the one
// that survives the pipeline's last-writer-wins combination.
type RadiotherapySeriesDescriptionRule struct{}

// NewRadiotherapySeriesDescriptionRule constructs the RT override rule.
func NewRadiotherapySeriesDescriptionRule() *RadiotherapySeriesDescriptionRule {
	return &RadiotherapySeriesDescriptionRule{}
}

func (r *RadiotherapySeriesDescriptionRule) Name() string { return "RadiotherapySeriesDescription" }

func (r *RadiotherapySeriesDescriptionRule) RequiredTags() []string {
	return []string{
		"0008,0060", // Modality

		"300a,0003", // RTPlanName
		"300a,0002", // RTPlanLabel

		"3006,0004", // StructureSetName
		"3006,0002", // StructureSetLabel

		"3002,0003", // RTImageName
		"3002,0002", // RTImageLabel
	}
}

func (r *RadiotherapySeriesDescriptionRule) RegisterEmptyFieldNames(series, study, patient EmptyFieldRegistry) {
	series.register("SeriesDescription", emptySeriesDescriptionRTPlan)
	series.register("SeriesDescription", emptySeriesDescriptionRTStruct)
	series.register("SeriesDescription", emptySeriesDescriptionRTImage)
}

func (r *RadiotherapySeriesDescriptionRule) GetDisplayFieldsForInstance(tags map[string]string) (series, study, patient FieldMap) {
	modality := tags["0008,0060"]

	switch modality {
	case "RTPLAN":
		series = FieldMap{"SeriesDescription": firstNonEmpty(
			tags["300a,0003"], tags["300a,0002"], emptySeriesDescriptionRTPlan)}
	case "RTSTRUCT":
		series = FieldMap{"SeriesDescription": firstNonEmpty(
			tags["3006,0004"], tags["3006,0002"], emptySeriesDescriptionRTStruct)}
	case "RTIMAGE":
		series = FieldMap{"SeriesDescription": firstNonEmpty(
			tags["3002,0003"], tags["3002,0002"], emptySeriesDescriptionRTImage)}
	}

	return series, nil, nil
}

func (r *RadiotherapySeriesDescriptionRule) MergeDisplayFieldsForInstance(
	initialSeries, initialStudy, initialPatient FieldMap,
	newSeries, newStudy, newPatient FieldMap,
	mergedSeries, mergedStudy, mergedPatient FieldMap,
	emptySeries, emptyStudy, emptyPatient EmptyFieldRegistry,
) {
	// The projected SeriesDescription override already flows into
	// DefaultRule's concatenate merge for this field; nothing more to
	// combine here.
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
