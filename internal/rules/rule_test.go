package rules

import "testing"

func TestMergeExpectSameValueKeepsInitial(t *testing.T) {
	empty := EmptyFieldRegistry{}
	initial := FieldMap{"PatientName": "Doe^Jane"}
	new := FieldMap{"PatientName": "Doe^Other"}
	merged := FieldMap{}

	MergeExpectSameValue("PatientName", initial, new, merged, empty)

	if merged["PatientName"] != "Doe^Jane" {
		t.Fatalf("expected initial value to win, got %q", merged["PatientName"])
	}
}

func TestMergeExpectSameValueTakesNewWhenInitialEmpty(t *testing.T) {
	empty := EmptyFieldRegistry{}
	initial := FieldMap{}
	new := FieldMap{"PatientName": "Doe^Jane"}
	merged := FieldMap{}

	MergeExpectSameValue("PatientName", initial, new, merged, empty)

	if merged["PatientName"] != "Doe^Jane" {
		t.Fatalf("expected new value to fill in, got %q", merged["PatientName"])
	}
}

func TestMergeExpectSameValueLeavesFieldUnsetWhenBothEmpty(t *testing.T) {
	empty := EmptyFieldRegistry{}
	merged := FieldMap{}

	MergeExpectSameValue("PatientName", FieldMap{}, FieldMap{}, merged, empty)

	if _, ok := merged["PatientName"]; ok {
		t.Fatalf("expected field to stay unset, got %q", merged["PatientName"])
	}
}

func TestMergeConcatenateDedupsAcrossThreeInstances(t *testing.T) {
	empty := EmptyFieldRegistry{}
	merged := FieldMap{}

	MergeConcatenate("ModalitiesInStudy", FieldMap{}, FieldMap{"ModalitiesInStudy": "CT"}, merged, empty)
	merged2 := FieldMap{}
	MergeConcatenate("ModalitiesInStudy", merged, FieldMap{"ModalitiesInStudy": "MR"}, merged2, empty)
	merged3 := FieldMap{}
	MergeConcatenate("ModalitiesInStudy", merged2, FieldMap{"ModalitiesInStudy": "CT"}, merged3, empty)

	if merged3["ModalitiesInStudy"] != "CT, MR" {
		t.Fatalf("expected deduped concatenation \"CT, MR\", got %q", merged3["ModalitiesInStudy"])
	}
}

func TestIsFieldEmptyRecognizesRegisteredPlaceholder(t *testing.T) {
	empty := EmptyFieldRegistry{}
	empty.register("SeriesDescription", "Unnamed Series")

	fields := FieldMap{"SeriesDescription": "Unnamed Series"}

	if !IsFieldEmpty(fields, empty, "SeriesDescription") {
		t.Fatal("expected registered placeholder to count as empty")
	}
}

func TestIsFieldEmptyAbsentField(t *testing.T) {
	empty := EmptyFieldRegistry{}
	if !IsFieldEmpty(FieldMap{}, empty, "SeriesDescription") {
		t.Fatal("expected absent field to count as empty")
	}
}
