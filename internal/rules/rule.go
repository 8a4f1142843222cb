// Package rules implements the pluggable displayed-field rule pipeline:
// each Rule declares the tags it needs, projects them into per-level
// displayed-field maps for one instance, and merges those projections
// into the running patient/study/series displayed-field state.
package rules

import (
	"strings"

	"github.com/rs/zerolog/log"
)

// FieldMap is a field-name -> value map for one catalog level. A field
// that was never set by any rule this pass is simply absent from the
// map, which callers must distinguish from a field explicitly set to
// the empty string — see IsFieldEmpty.
type FieldMap map[string]string

// Rule is a capability object, not a class hierarchy: each rule
// contributes required tags, empty-value placeholders, a projection
// from cached tags to displayed fields for one instance, and a merge
// step combining that projection into the fields already accumulated
// for the instance's patient/study/series.
type Rule interface {
	// Name identifies the rule for logging and the empty-field registry.
	Name() string

	// RequiredTags lists the "gggg,eeee" tag keys this rule reads. The
	// pipeline unions every rule's required tags into the precache set.
	RequiredTags() []string

	// RegisterEmptyFieldNames lets a rule declare, per level, additional
	// literal values that should be treated as "empty" for a field name
	// it projects (e.g. "Unnamed Series"), beyond absence/"" which are
	// always empty.
	RegisterEmptyFieldNames(series, study, patient EmptyFieldRegistry)

	// GetDisplayFieldsForInstance projects cachedTags (this instance's
	// tag-key -> value map) into per-level displayed fields. Rules later
	// in the pipeline see only cachedTags, not earlier rules' output —
	// their output is combined by the pipeline, last-writer-wins.
	GetDisplayFieldsForInstance(cachedTags map[string]string) (series, study, patient FieldMap)

	// MergeDisplayFieldsForInstance combines this instance's projected
	// fields (new) with whatever has already been accumulated for its
	// patient/study/series in this batch (initial), writing the result
	// into merged. empty holds the per-field placeholder sets from
	// RegisterEmptyFieldNames, across all rules, for the relevant level.
	MergeDisplayFieldsForInstance(
		initialSeries, initialStudy, initialPatient FieldMap,
		newSeries, newStudy, newPatient FieldMap,
		mergedSeries, mergedStudy, mergedPatient FieldMap,
		emptySeries, emptyStudy, emptyPatient EmptyFieldRegistry,
	)
}

// EmptyFieldRegistry is a per-field multi-mapping of field name to
// placeholder strings that should be treated as "empty" for that field,
// in addition to absence and the empty string.
type EmptyFieldRegistry map[string][]string

func (r EmptyFieldRegistry) register(field, placeholder string) {
	r[field] = append(r[field], placeholder)
}

// IsFieldEmpty reports whether field's value in fields counts as empty:
// never set, set to "", or equal to one of empty's registered
// placeholders for that field name.
func IsFieldEmpty(fields FieldMap, empty EmptyFieldRegistry, field string) bool {
	v, ok := fields[field]
	if !ok || v == "" {
		return true
	}
	for _, placeholder := range empty[field] {
		if v == placeholder {
			return true
		}
	}
	return false
}

// MergeExpectSameValue implements the "expect same value" merge policy:
// if the initial value is empty, take the new value; otherwise keep the
// initial value. If both are non-empty and differ, the initial value
// wins (first-wins within a batch), matching the original generator's
// behavior of not erroring on a same-field mismatch — but the
// disagreement itself is logged, since it usually means two instances
// in the same series/study/patient carry inconsistent metadata. If both
// sides are empty, the field is left unset in merged rather than
// written as "".
func MergeExpectSameValue(field string, initial, new, merged FieldMap, empty EmptyFieldRegistry) {
	initialEmpty := IsFieldEmpty(initial, empty, field)
	newEmpty := IsFieldEmpty(new, empty, field)

	if !initialEmpty && !newEmpty && initial[field] != new[field] {
		log.Warn().
			Str("field", field).
			Str("kept", initial[field]).
			Str("discarded", new[field]).
			Msg("displayed field disagreement across instances, keeping first-seen value")
	}

	switch {
	case !initialEmpty:
		merged[field] = initial[field]
	case !newEmpty:
		merged[field] = new[field]
	}
}

// MergeConcatenate implements the "concatenate" merge policy: builds a
// comma-separated list of distinct non-empty values seen across the
// batch for field, preserving first-seen order.
func MergeConcatenate(field string, initial, new, merged FieldMap, empty EmptyFieldRegistry) {
	initialEmpty := IsFieldEmpty(initial, empty, field)
	newEmpty := IsFieldEmpty(new, empty, field)

	switch {
	case initialEmpty && newEmpty:
		return
	case initialEmpty:
		merged[field] = new[field]
	case newEmpty:
		merged[field] = initial[field]
	default:
		existing := initial[field]
		addition := new[field]
		if containsValue(existing, addition) {
			merged[field] = existing
			return
		}
		merged[field] = existing + ", " + addition
	}
}

func containsValue(csv, value string) bool {
	for _, part := range strings.Split(csv, ", ") {
		if part == value {
			return true
		}
	}
	return false
}
