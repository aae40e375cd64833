package geometry

import "fmt"

// InvalidGeometryError is returned when an AOI cannot be built or is not a valid polygon with a positive area
type InvalidGeometryError struct {
	Reason string
}

func (e InvalidGeometryError) Error() string {
	return "invalid geometry: " + e.Reason
}

func invalidGeometry(format string, args ...interface{}) error {
	return InvalidGeometryError{Reason: fmt.Sprintf(format, args...)}
}

// EmptyInputError is returned when an operation expecting at least one input receives none
type EmptyInputError struct {
	What string
}

func (e EmptyInputError) Error() string {
	return "empty input: no " + e.What
}
