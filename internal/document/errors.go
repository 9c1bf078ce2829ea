package document

import (
	"errors"
	"fmt"
)

// ErrUnrepresentable is returned by Serialize for a string or key that
// contains a double quote. The text form has no escape syntax, so such a
// value cannot survive a round trip.
var ErrUnrepresentable = errors.New("document: value contains a double quote")

// ParseError reports malformed document text.
type ParseError struct {
	Offset int
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("document: parse error at offset %d: %s", e.Offset, e.Msg)
}

// IsParseError checks if an error is a parse error
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
