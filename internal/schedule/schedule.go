// Package schedule parses weekly setpoint schedules and determines which setpoint applies at a given time.
package schedule

import (
	"fmt"
	"io"
	"math"
	"slices"
	"time"

	"github.com/clambin/enhanced-thermostat/internal/climate"
	"github.com/clambin/go-common/set"
	"gopkg.in/yaml.v3"
)

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// Event sets the temperature and/or mode from Time onwards.
type Event struct {
	Time        TimeOfDay
	Temperature *float64
	Mode        *climate.HVACMode
}

// Setpoint is what the schedule wants the device to do.
type Setpoint struct {
	Temperature *float64
	Mode        *climate.HVACMode
}

func (s Setpoint) String() string {
	return climate.Command{Mode: s.Mode, Temperature: s.Temperature}.String()
}

// Definition maps each weekday to its events, sorted by time of day.
type Definition map[time.Weekday][]Event

// Load reads a schedule from r. See Parse.
func Load(r io.Reader) (Definition, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &ParseError{Index: -1, Err: err}
	}
	return Parse(data)
}

// Parse parses a YAML schedule. The schedule is a mapping of lowercase weekday names to a list of events. Each event needs a time
// ("HH:MM") and may set a temperature and/or an hvac_mode. Any invalid day or event fails the whole schedule. An empty document returns
// an empty Definition.
func Parse(data []byte) (Definition, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, &ParseError{Index: -1, Err: err}
	}

	doc := &root
	if doc.Kind == yaml.DocumentNode {
		if len(doc.Content) == 0 {
			return Definition{}, nil
		}
		doc = doc.Content[0]
	}
	if doc.Kind == 0 || (doc.Kind == yaml.ScalarNode && doc.Tag == "!!null") {
		return Definition{}, nil
	}
	if doc.Kind != yaml.MappingNode {
		return nil, &ParseError{Index: -1, Err: fmt.Errorf("expected a mapping of weekdays, got %s", kindName(doc.Kind))}
	}

	definition := make(Definition, len(doc.Content)/2)
	seen := set.New[time.Weekday]()
	for i := 0; i+1 < len(doc.Content); i += 2 {
		key, value := doc.Content[i], doc.Content[i+1]
		day, ok := weekdays[key.Value]
		if !ok {
			return nil, &ParseError{Day: key.Value, Index: -1, Err: fmt.Errorf("unknown weekday")}
		}
		if seen.Contains(day) {
			return nil, &ParseError{Day: key.Value, Index: -1, Err: fmt.Errorf("weekday defined more than once")}
		}
		seen.Add(day)

		events, err := parseEvents(key.Value, value)
		if err != nil {
			return nil, err
		}
		definition[day] = events
	}
	return definition, nil
}

func parseEvents(day string, node *yaml.Node) ([]Event, error) {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		return []Event{}, nil
	}
	if node.Kind != yaml.SequenceNode {
		return nil, &ParseError{Day: day, Index: -1, Err: fmt.Errorf("expected a list of events, got %s", kindName(node.Kind))}
	}
	events := make([]Event, 0, len(node.Content))
	for index, entry := range node.Content {
		event, err := parseEvent(entry)
		if err != nil {
			return nil, &ParseError{Day: day, Index: index, Err: err}
		}
		events = append(events, event)
	}
	slices.SortStableFunc(events, func(a, b Event) int { return a.Time.Compare(b.Time) })
	return events, nil
}

func parseEvent(node *yaml.Node) (Event, error) {
	if node.Kind != yaml.MappingNode {
		return Event{}, fmt.Errorf("expected a mapping, got %s", kindName(node.Kind))
	}
	var raw struct {
		Time        TimeOfDay `yaml:"time"`
		Temperature *float64  `yaml:"temperature"`
		Mode        *string   `yaml:"hvac_mode"`
	}
	if err := node.Decode(&raw); err != nil {
		return Event{}, err
	}
	if !raw.Time.Active {
		return Event{}, fmt.Errorf("missing time")
	}
	if raw.Temperature != nil && (math.IsNaN(*raw.Temperature) || math.IsInf(*raw.Temperature, 0)) {
		return Event{}, fmt.Errorf("invalid temperature: %v", *raw.Temperature)
	}
	event := Event{Time: raw.Time, Temperature: raw.Temperature}
	if raw.Mode != nil {
		mode, err := climate.ParseHVACMode(*raw.Mode)
		if err != nil {
			return Event{}, err
		}
		event.Mode = &mode
	}
	return event, nil
}

// Lookup returns the setpoint of the latest event of now's weekday that started no later than now. If now is before the day's first
// event, or the weekday has no events, Lookup returns false.
func (d Definition) Lookup(now time.Time) (Setpoint, bool) {
	current := At(now)
	var found *Event
	for i, event := range d[now.Weekday()] {
		if event.Time.Compare(current) > 0 {
			break
		}
		found = &d[now.Weekday()][i]
	}
	if found == nil {
		return Setpoint{}, false
	}
	return Setpoint{Temperature: found.Temperature, Mode: found.Mode}, true
}

// Days returns the weekdays that have events, starting on Monday.
func (d Definition) Days() []time.Weekday {
	days := make([]time.Weekday, 0, len(d))
	for day := range d {
		days = append(days, day)
	}
	slices.SortFunc(days, func(a, b time.Weekday) int {
		return int((a+6)%7) - int((b+6)%7)
	})
	return days
}

// Schedule evaluates a Definition, honouring a manual override window.
//
// Schedule is not safe for concurrent use.
type Schedule struct {
	definition    Definition
	overrideUntil time.Time
}

// New returns a Schedule for the provided Definition. A nil Definition never returns a setpoint.
func New(definition Definition) *Schedule {
	return &Schedule{definition: definition}
}

// Evaluate returns the setpoint that applies at now. While an override is active, Evaluate returns false without looking at the
// schedule. An expired override is cleared.
func (s *Schedule) Evaluate(now time.Time) (Setpoint, bool) {
	if !s.overrideUntil.IsZero() {
		if now.Before(s.overrideUntil) {
			return Setpoint{}, false
		}
		s.overrideUntil = time.Time{}
	}
	return s.definition.Lookup(now)
}

// SetOverride suppresses the schedule until the provided time.
func (s *Schedule) SetOverride(until time.Time) {
	s.overrideUntil = until
}

// ClearOverride removes any override.
func (s *Schedule) ClearOverride() {
	s.overrideUntil = time.Time{}
}

// Override returns the end of the current override window, if one is set. The window may have expired, but not yet be cleared by Evaluate.
func (s *Schedule) Override() (time.Time, bool) {
	return s.overrideUntil, !s.overrideUntil.IsZero()
}

// Replace installs a new Definition. Any override remains in place.
func (s *Schedule) Replace(definition Definition) {
	s.definition = definition
}

// Definition returns the current Definition.
func (s *Schedule) Definition() Definition {
	return s.definition
}
