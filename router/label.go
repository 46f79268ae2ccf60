package router

import (
	"sort"
	"strings"

	"github.com/hupe1980/studymesh/core"
)

// Table translates supervisor labels into routes. Routes missing from the
// table (including disabled ones) are never produced.
type Table struct {
	labels   map[string]Route
	fallback Route
}

// NewTable builds a label table from roster. When enableSearch is false the
// Search label is left out, so it resolves to fallback like any unknown label.
func NewTable(roster *Roster, fallback Route, enableSearch bool) *Table {
	labels := roster.Labels()
	if !enableSearch {
		for label, r := range labels {
			if r == Search {
				delete(labels, label)
			}
		}
	}
	return &Table{labels: labels, fallback: fallback}
}

// ParseLabel maps raw model output onto a route. Only surrounding
// whitespace is ignored; the rest must match a label exactly. Anything else,
// including quoted or decorated labels, is an
// *core.UnrecognizedRouteLabelError.
func (t *Table) ParseLabel(raw string) (Route, error) {
	label := strings.TrimSpace(raw)
	if r, ok := t.labels[label]; ok {
		return r, nil
	}
	return t.fallback, &core.UnrecognizedRouteLabelError{Label: raw}
}

// Resolve applies the fallback policy: unknown labels map to the default
// route. fallback reports whether the default was used.
func (t *Table) Resolve(raw string) (route Route, fallback bool) {
	r, err := t.ParseLabel(raw)
	if err != nil {
		return t.fallback, true
	}
	return r, false
}

// Fallback returns the default route.
func (t *Table) Fallback() Route { return t.fallback }

// Routes returns the routable routes in declaration order.
func (t *Table) Routes() []Route {
	seen := map[Route]bool{}
	for _, r := range t.labels {
		seen[r] = true
	}
	seen[t.fallback] = true

	out := make([]Route, 0, len(seen))
	for r := range seen {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Labels returns the accepted labels in sorted order.
func (t *Table) Labels() []string {
	out := make([]string, 0, len(t.labels))
	for l := range t.labels {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}
