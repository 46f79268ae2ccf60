package router

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed roster.yaml
var defaultRoster []byte

// Entry describes one specialist to the supervisor.
type Entry struct {
	Route    Route    `yaml:"route"`
	Label    string   `yaml:"label"`
	Scope    string   `yaml:"scope"`
	Examples []string `yaml:"examples"`
}

// Roster is the versioned list of specialists offered to the supervisor.
type Roster struct {
	Version     int     `yaml:"version"`
	Specialists []Entry `yaml:"specialists"`
}

// DefaultRoster returns the roster compiled into the binary.
func DefaultRoster() (*Roster, error) {
	return ParseRoster(defaultRoster)
}

// ParseRoster decodes and validates a YAML roster.
func ParseRoster(data []byte) (*Roster, error) {
	var r Roster
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode roster: %w", err)
	}
	if err := r.validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *Roster) validate() error {
	if len(r.Specialists) == 0 {
		return fmt.Errorf("roster has no specialists")
	}
	seenRoute := map[Route]bool{}
	seenLabel := map[string]bool{}
	for _, e := range r.Specialists {
		if e.Label == "" {
			return fmt.Errorf("roster entry %s has no label", e.Route)
		}
		if seenRoute[e.Route] {
			return fmt.Errorf("duplicate roster route %s", e.Route)
		}
		if seenLabel[e.Label] {
			return fmt.Errorf("duplicate roster label %q", e.Label)
		}
		seenRoute[e.Route] = true
		seenLabel[e.Label] = true
	}
	return nil
}

// Labels returns a label to route lookup table.
func (r *Roster) Labels() map[string]Route {
	out := make(map[string]Route, len(r.Specialists))
	for _, e := range r.Specialists {
		out[e.Label] = e.Route
	}
	return out
}

// Label returns the roster label of route, or "" when the roster lacks it.
func (r *Roster) Label(route Route) string {
	for _, e := range r.Specialists {
		if e.Route == route {
			return e.Label
		}
	}
	return ""
}
