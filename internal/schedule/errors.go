package schedule

import (
	"errors"
	"fmt"
)

var _ error = &ParseError{}

// ParseError is returned when a schedule cannot be parsed. Day and Index locate the offending entry, if known (Index is -1 when
// the error concerns the day itself).
type ParseError struct {
	Day   string
	Index int
	Err   error
}

func (e *ParseError) Error() string {
	switch {
	case e.Day == "":
		return "schedule: " + e.Err.Error()
	case e.Index < 0:
		return fmt.Sprintf("schedule: %s: %s", e.Day, e.Err.Error())
	default:
		return fmt.Sprintf("schedule: %s[%d]: %s", e.Day, e.Index, e.Err.Error())
	}
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func (e *ParseError) Is(err error) bool {
	var parseError *ParseError
	return errors.As(err, &parseError)
}
