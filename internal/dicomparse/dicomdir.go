package dicomparse

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// DicomdirFile is one File record resolved from a DICOMDIR manifest: an
// absolute path to a referenced DICOM instance, already validated to
// carry the UIDs its parent Patient/Study/Series records require.
type DicomdirFile struct {
	AbsolutePath string
}

// DicomdirInvalidRecord describes one DICOMDIR record (and its subtree)
// that was skipped because a required tag was missing.
type DicomdirInvalidRecord struct {
	RecordType string // "PATIENT", "STUDY", "SERIES", or "IMAGE"
	Reason     string
}

// WalkDicomdirResult is the outcome of walking one DICOMDIR manifest.
type WalkDicomdirResult struct {
	Files          []DicomdirFile
	InvalidRecords []DicomdirInvalidRecord
	// AllValid is false if any record in the tree was skipped for a
	// missing required UID.
	AllValid bool
}

// directoryRecordSequenceTag is the well-known DICOMDIR tag holding the
// patient/study/series/file record tree as a sequence of items.
var directoryRecordSequenceTag = tag.Tag{Group: 0x0004, Element: 0x1220}

// WalkDicomdir parses a DICOMDIR file and resolves every File record to
// an absolute path, normalizing ReferencedFileID separators and joining
// them onto the manifest's parent directory. Records missing a required
// UID are skipped along with their children; siblings still proceed.
func WalkDicomdir(dicomdirPath string) (*WalkDicomdirResult, error) {
	info, err := os.Stat(dicomdirPath)
	if err != nil {
		return nil, &ParseError{FilePath: dicomdirPath, Cause: err}
	}

	f, err := os.Open(dicomdirPath)
	if err != nil {
		return nil, &ParseError{FilePath: dicomdirPath, Cause: err}
	}
	defer f.Close()

	dataset, err := dicom.Parse(f, info.Size(), nil, dicom.SkipPixelData())
	if err != nil {
		return nil, &ParseError{FilePath: dicomdirPath, Cause: err}
	}

	parentDir := filepath.Dir(dicomdirPath)

	seqElem, err := dataset.FindElementByTag(directoryRecordSequenceTag)
	if err != nil {
		return nil, &ParseError{FilePath: dicomdirPath, Cause: fmt.Errorf("no DirectoryRecordSequence: %w", err)}
	}

	items, ok := seqElem.Value.GetValue().([]*dicom.SequenceItemValue)
	if !ok {
		return nil, &ParseError{FilePath: dicomdirPath, Cause: fmt.Errorf("DirectoryRecordSequence has unexpected type")}
	}

	result := &WalkDicomdirResult{AllValid: true}
	w := &dicomdirWalker{parentDir: parentDir, result: result}
	w.walkFlatRecords(items)
	return result, nil
}

// dicomdirWalker groups records by RecordType, since suyashkumar/dicom
// exposes the directory record sequence as a flat list of items rather
// than a nested tree; DICOMDIR's implicit nesting is recovered by record
// type order (PATIENT, then its STUDY children, then SERIES, then
// IMAGE), matching the on-disk record order CTK and DCMTK both rely on.
type dicomdirWalker struct {
	parentDir        string
	result           *WalkDicomdirResult
	currentPatientOK bool
	currentStudyOK   bool
	currentSeriesOK  bool
}

func (w *dicomdirWalker) walkFlatRecords(items []*dicom.SequenceItemValue) {
	for _, item := range items {
		ds := item.GetValue().([]*dicom.Element)
		recordType := findString(ds, "0004,1430") // DirectoryRecordType
		w.processRecord(recordType, ds)
	}
}

// processRecord applies one flat DICOMDIR record to the walker's
// current-ancestor-valid state. Split out from walkFlatRecords so the
// record-grouping logic can be exercised directly against a plain
// []*dicom.Element fixture, without needing a real DirectoryRecordSequence.
func (w *dicomdirWalker) processRecord(recordType string, ds []*dicom.Element) {
	switch recordType {
	case "PATIENT":
		patientName := findString(ds, "0010,0010")
		w.currentPatientOK = patientName != ""
		if !w.currentPatientOK {
			w.invalid("PATIENT", "missing PatientName")
		}
	case "STUDY":
		studyUID := findString(ds, "0020,000d")
		w.currentStudyOK = w.currentPatientOK && studyUID != ""
		if !w.currentStudyOK {
			w.invalid("STUDY", "missing StudyInstanceUID or invalid parent")
		}
	case "SERIES":
		seriesUID := findString(ds, "0020,000e")
		w.currentSeriesOK = w.currentStudyOK && seriesUID != ""
		if !w.currentSeriesOK {
			w.invalid("SERIES", "missing SeriesInstanceUID or invalid parent")
		}
	case "IMAGE":
		sopUID := findString(ds, "0004,1511")     // ReferencedSOPInstanceUIDInFile
		refFileID := findString(ds, "0004,1500") // ReferencedFileID
		if !w.currentSeriesOK || sopUID == "" || refFileID == "" {
			w.invalid("IMAGE", "missing ReferencedSOPInstanceUIDInFile/ReferencedFileID or invalid parent")
			return
		}
		rel := strings.ReplaceAll(refFileID, "\\", "/")
		w.result.Files = append(w.result.Files, DicomdirFile{
			AbsolutePath: filepath.Join(w.parentDir, filepath.FromSlash(rel)),
		})
	}
}

func (w *dicomdirWalker) invalid(recordType, reason string) {
	w.result.AllValid = false
	w.result.InvalidRecords = append(w.result.InvalidRecords, DicomdirInvalidRecord{
		RecordType: recordType,
		Reason:     reason,
	})
}

func findString(elements []*dicom.Element, tagKey string) string {
	for _, elem := range elements {
		if elem == nil {
			continue
		}
		if TagKey(elem.Tag) == tagKey {
			return stringValue(elem)
		}
	}
	return ""
}
