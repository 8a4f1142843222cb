package dicomparse

import (
	"testing"

	"github.com/suyashkumar/dicom"
)

func newWalker(t *testing.T, parentDir string) *dicomdirWalker {
	t.Helper()
	return &dicomdirWalker{parentDir: parentDir, result: &WalkDicomdirResult{AllValid: true}}
}

func TestFindStringReturnsMatchingTagValue(t *testing.T) {
	ds := []*dicom.Element{
		mustElement(t, 0x0010, 0x0010, "Doe^Jane"),
		mustElement(t, 0x0020, 0x000d, "1.2.3.study"),
	}
	if got := findString(ds, "0020,000d"); got != "1.2.3.study" {
		t.Fatalf("expected study UID, got %q", got)
	}
}

func TestFindStringReturnsEmptyWhenAbsent(t *testing.T) {
	ds := []*dicom.Element{mustElement(t, 0x0010, 0x0010, "Doe^Jane")}
	if got := findString(ds, "0020,000d"); got != "" {
		t.Fatalf("expected empty string for missing tag, got %q", got)
	}
}

func TestProcessRecordValidPatientStudySeriesImageChain(t *testing.T) {
	w := newWalker(t, "/data/dicom")

	w.processRecord("PATIENT", []*dicom.Element{mustElement(t, 0x0010, 0x0010, "Doe^Jane")})
	w.processRecord("STUDY", []*dicom.Element{mustElement(t, 0x0020, 0x000d, "1.2.3.study")})
	w.processRecord("SERIES", []*dicom.Element{mustElement(t, 0x0020, 0x000e, "1.2.3.series")})
	w.processRecord("IMAGE", []*dicom.Element{
		mustElement(t, 0x0004, 0x1511, "1.2.3.sop"),
		mustElement(t, 0x0004, 0x1500, "DICOM\\IMG001"),
	})

	if !w.result.AllValid {
		t.Fatalf("expected a fully valid chain, got invalid records: %+v", w.result.InvalidRecords)
	}
	if len(w.result.Files) != 1 {
		t.Fatalf("expected one resolved file, got %d", len(w.result.Files))
	}
	if got := w.result.Files[0].AbsolutePath; got != "/data/dicom/DICOM/IMG001" {
		t.Fatalf("expected normalized joined path, got %q", got)
	}
}

func TestProcessRecordSkipsSeriesMissingUIDButSiblingStillProceeds(t *testing.T) {
	w := newWalker(t, "/data/dicom")

	w.processRecord("PATIENT", []*dicom.Element{mustElement(t, 0x0010, 0x0010, "Doe^Jane")})
	w.processRecord("STUDY", []*dicom.Element{mustElement(t, 0x0020, 0x000d, "1.2.3.study")})

	// Bad series: missing SeriesInstanceUID.
	w.processRecord("SERIES", []*dicom.Element{})
	w.processRecord("IMAGE", []*dicom.Element{
		mustElement(t, 0x0004, 0x1511, "1.2.3.sop.bad"),
		mustElement(t, 0x0004, 0x1500, "DICOM\\BAD001"),
	})

	// Sibling series under the same study: valid.
	w.processRecord("SERIES", []*dicom.Element{mustElement(t, 0x0020, 0x000e, "1.2.3.series.good")})
	w.processRecord("IMAGE", []*dicom.Element{
		mustElement(t, 0x0004, 0x1511, "1.2.3.sop.good"),
		mustElement(t, 0x0004, 0x1500, "DICOM\\GOOD001"),
	})

	if w.result.AllValid {
		t.Fatal("expected AllValid=false after one invalid series")
	}
	if len(w.result.Files) != 1 {
		t.Fatalf("expected only the good sibling's file to be resolved, got %+v", w.result.Files)
	}
	if got := w.result.Files[0].AbsolutePath; got != "/data/dicom/DICOM/GOOD001" {
		t.Fatalf("expected the sibling's file, got %q", got)
	}

	foundSeriesInvalid := false
	for _, inv := range w.result.InvalidRecords {
		if inv.RecordType == "SERIES" {
			foundSeriesInvalid = true
		}
	}
	if !foundSeriesInvalid {
		t.Fatal("expected an invalid SERIES record to be reported")
	}
}

func TestProcessRecordSkipsImageWhenParentSeriesInvalid(t *testing.T) {
	w := newWalker(t, "/data/dicom")
	w.currentPatientOK = true
	w.currentStudyOK = true
	w.currentSeriesOK = false

	w.processRecord("IMAGE", []*dicom.Element{
		mustElement(t, 0x0004, 0x1511, "1.2.3.sop"),
		mustElement(t, 0x0004, 0x1500, "DICOM\\IMG001"),
	})

	if len(w.result.Files) != 0 {
		t.Fatalf("expected no file resolved under an invalid series, got %+v", w.result.Files)
	}
}
