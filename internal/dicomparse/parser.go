// Package dicomparse reads DICOM datasets off disk and flattens them into
// the tag-key/value maps the rest of the indexing pipeline operates on.
package dicomparse

import (
	"fmt"
	"os"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// TagKey is the "gggg,eeee" lowercase hex format the catalog uses for
// every tag key, in CachedTag rows and in rule required-tag lists.
func TagKey(t tag.Tag) string {
	return fmt.Sprintf("%04x,%04x", t.Group, t.Element)
}

// ParseError wraps a failure to parse a file, matching the file-skip,
// log-and-continue error case for malformed DICOM files.
type ParseError struct {
	FilePath string
	Cause    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.FilePath, e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// ParsedFile is a flattened view of one DICOM dataset: every element
// present, keyed by its "gggg,eeee" tag key, alongside the file's mtime.
type ParsedFile struct {
	FilePath     string
	Tags         map[string]string
	ModifiedTime int64
}

// ParseFile opens and parses a single DICOM file, skipping pixel data
// since the indexer only needs header/metadata tags.
func ParseFile(path string) (*ParsedFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &ParseError{FilePath: path, Cause: err}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &ParseError{FilePath: path, Cause: err}
	}
	defer f.Close()

	dataset, err := dicom.Parse(f, info.Size(), nil, dicom.SkipPixelData())
	if err != nil {
		return nil, &ParseError{FilePath: path, Cause: err}
	}

	return &ParsedFile{
		FilePath:     path,
		Tags:         flatten(dataset),
		ModifiedTime: info.ModTime().UnixNano(),
	}, nil
}

// flatten reduces a parsed dataset to a tag-key/value map. Multi-valued
// elements are joined the way DICOM string lists print (backslash
// separated), matching the wire representation rules assume when they
// compare or concatenate field values.
func flatten(ds dicom.Dataset) map[string]string {
	out := make(map[string]string, len(ds.Elements))
	for _, elem := range ds.Elements {
		if elem == nil {
			continue
		}
		out[TagKey(elem.Tag)] = stringValue(elem)
	}
	return out
}

func stringValue(elem *dicom.Element) string {
	v := elem.Value.GetValue()
	switch t := v.(type) {
	case []string:
		s := ""
		for i, part := range t {
			if i > 0 {
				s += "\\"
			}
			s += part
		}
		return s
	case string:
		return t
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}
