package rules

import "testing"

func TestRadiotherapyRuleOverridesSeriesDescriptionForMatchingModality(t *testing.T) {
	rule := NewRadiotherapySeriesDescriptionRule()

	series, _, _ := rule.GetDisplayFieldsForInstance(map[string]string{
		"0008,0060": "RTPLAN",
		"300a,0003": "Boost Plan",
	})

	if series["SeriesDescription"] != "Boost Plan" {
		t.Fatalf("expected RT plan name to be used, got %q", series["SeriesDescription"])
	}
}

func TestRadiotherapyRuleFallsBackToPlaceholderWhenNameAndLabelMissing(t *testing.T) {
	rule := NewRadiotherapySeriesDescriptionRule()

	series, _, _ := rule.GetDisplayFieldsForInstance(map[string]string{
		"0008,0060": "RTSTRUCT",
	})

	if series["SeriesDescription"] != emptySeriesDescriptionRTStruct {
		t.Fatalf("expected RT structure set placeholder, got %q", series["SeriesDescription"])
	}
}

func TestRadiotherapyRuleDoesNotFireForNonRTModality(t *testing.T) {
	rule := NewRadiotherapySeriesDescriptionRule()

	series, _, _ := rule.GetDisplayFieldsForInstance(map[string]string{
		"0008,0060": "CT",
	})

	if _, ok := series["SeriesDescription"]; ok {
		t.Fatalf("expected no override for a non-RT modality, got %q", series["SeriesDescription"])
	}
}

func TestRadiotherapyRulePrefersLabelOverPlaceholder(t *testing.T) {
	rule := NewRadiotherapySeriesDescriptionRule()

	series, _, _ := rule.GetDisplayFieldsForInstance(map[string]string{
		"0008,0060": "RTIMAGE",
		"3002,0002": "Portal Image Label",
	})

	if series["SeriesDescription"] != "Portal Image Label" {
		t.Fatalf("expected RT image label fallback, got %q", series["SeriesDescription"])
	}
}
