package schedule

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// TimeOfDay is a wall-clock time, with minute resolution.
type TimeOfDay struct {
	Hour    int
	Minutes int
	Active  bool
}

// ParseTimeOfDay parses an "HH:MM" string.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	ts, err := time.Parse("15:04", s)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time %q: must be HH:MM", s)
	}
	return TimeOfDay{Hour: ts.Hour(), Minutes: ts.Minute(), Active: true}, nil
}

// At returns the TimeOfDay of t, in t's location.
func At(t time.Time) TimeOfDay {
	return TimeOfDay{Hour: t.Hour(), Minutes: t.Minute(), Active: true}
}

// Compare returns -1, 0 or +1 depending on whether t is before, equal to or after u.
func (t TimeOfDay) Compare(u TimeOfDay) int {
	a, b := t.Hour*60+t.Minutes, u.Hour*60+u.Minutes
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minutes)
}

func (t *TimeOfDay) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("invalid time: expected a string, got %s", kindName(value.Kind))
	}
	ts, err := ParseTimeOfDay(value.Value)
	if err == nil {
		*t = ts
	}
	return err
}

func (t TimeOfDay) MarshalYAML() (interface{}, error) {
	return t.String(), nil
}

func kindName(kind yaml.Kind) string {
	switch kind {
	case yaml.MappingNode:
		return "mapping"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	case yaml.DocumentNode:
		return "document"
	default:
		return "unknown"
	}
}
