package rules

// Pipeline holds an ordered, owned list of rules. Pipeline order matters:
// a later rule's projected entry replaces an earlier rule's entry for the
// same field, and in the merge phase a later rule's writes overwrite an
// earlier rule's merged output. DefaultRule is installed before the
// Radiotherapy rule so the latter's SeriesDescription override survives.
type Pipeline struct {
	ruleList     []Rule
	emptySeries  EmptyFieldRegistry
	emptyStudy   EmptyFieldRegistry
	emptyPatient EmptyFieldRegistry
}

// NewPipeline constructs the pipeline with the standard rule set,
// populating the empty-field registry once at construction time.
func NewPipeline() *Pipeline {
	p := &Pipeline{
		ruleList:     []Rule{NewDefaultRule(), NewRadiotherapySeriesDescriptionRule()},
		emptySeries:  EmptyFieldRegistry{},
		emptyStudy:   EmptyFieldRegistry{},
		emptyPatient: EmptyFieldRegistry{},
	}
	for _, rule := range p.ruleList {
		rule.RegisterEmptyFieldNames(p.emptySeries, p.emptyStudy, p.emptyPatient)
	}
	return p
}

// RequiredTags returns the union of every rule's required tags, which
// forms the precache set the catalog writer caches for each instance.
func (p *Pipeline) RequiredTags() []string {
	seen := map[string]bool{}
	var out []string
	for _, rule := range p.ruleList {
		for _, t := range rule.RequiredTags() {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out
}

// UpdateDisplayFieldsForInstance runs the projection/merge algorithm for
// one instance's cached tags against the running current* field maps,
// mutating them in place with the merged result.
func (p *Pipeline) UpdateDisplayFieldsForInstance(
	cachedTags map[string]string,
	currentSeries, currentStudy, currentPatient FieldMap,
) {
	newSeries := FieldMap{}
	newStudy := FieldMap{}
	newPatient := FieldMap{}

	// Phase A: projection. Rules share the same new* maps, so a later
	// rule may override an earlier rule's entry for the same field.
	for _, rule := range p.ruleList {
		s, st, pa := rule.GetDisplayFieldsForInstance(cachedTags)
		copyInto(newSeries, s)
		copyInto(newStudy, st)
		copyInto(newPatient, pa)
	}

	initialSeries := cloneFieldMap(currentSeries)
	initialStudy := cloneFieldMap(currentStudy)
	initialPatient := cloneFieldMap(currentPatient)

	// Phase B: merge. Each rule observes the same initial*/new* snapshot
	// but writes into current*, so a later rule may overwrite an earlier
	// rule's merged output for the same field.
	for _, rule := range p.ruleList {
		rule.MergeDisplayFieldsForInstance(
			initialSeries, initialStudy, initialPatient,
			newSeries, newStudy, newPatient,
			currentSeries, currentStudy, currentPatient,
			p.emptySeries, p.emptyStudy, p.emptyPatient,
		)
	}
}

func copyInto(dst, src FieldMap) {
	for k, v := range src {
		dst[k] = v
	}
}

func cloneFieldMap(m FieldMap) FieldMap {
	out := make(FieldMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
