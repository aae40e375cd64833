package common

import "fmt"

// Status of the processing of an (AOI, date)
type Status int

const (
	StatusPENDING Status = iota
	StatusDONE
	StatusSKIPPED
	StatusNOIMAGERY
	StatusFAILED
)

var statusNames = []string{"PENDING", "DONE", "SKIPPED", "NOIMAGERY", "FAILED"}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("Status(%d)", s)
	}
	return statusNames[s]
}

// MarshalText implements encoding.TextMarshaler
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *Status) UnmarshalText(text []byte) error {
	for i, name := range statusNames {
		if name == string(text) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("%s does not belong to Status values", text)
}
