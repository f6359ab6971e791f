package parser

import "fmt"

// ParseError reports a document that could not be normalized. Document is the
// path (or label) of the offending input; Line is the decoder position when known.
type ParseError struct {
	Document string
	Line     int
	Err      error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse %s: line %d: %v", e.Document, e.Line, e.Err)
	}
	return fmt.Sprintf("parse %s: %v", e.Document, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
