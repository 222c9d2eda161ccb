package store

import (
	"fmt"
	"regexp"
	"strings"
)

// Filter is a conjunction of field = literal equality clauses. A nil Filter
// matches every record.
type Filter struct {
	Clauses []Clause
}

// Clause is a single field = literal comparison.
type Clause struct {
	Field string
	Value string
}

// Eq returns a filter with one equality clause.
func Eq(field, value string) *Filter {
	return &Filter{Clauses: []Clause{{Field: field, Value: value}}}
}

// And appends an equality clause and returns the filter for chaining.
func (f *Filter) And(field, value string) *Filter {
	f.Clauses = append(f.Clauses, Clause{Field: field, Value: value})
	return f
}

// Matches reports whether a record satisfies every clause. Field values are
// compared in their string form.
func (f *Filter) Matches(r Record) bool {
	if f == nil {
		return true
	}
	for _, c := range f.Clauses {
		v, ok := r.Fields[c.Field]
		if !ok {
			return false
		}
		if fmt.Sprintf("%v", v) != c.Value {
			return false
		}
	}
	return true
}

var formulaClause = regexp.MustCompile(`^\{([^{}]+)\}\s*=\s*"([^"]*)"$`)

// ParseFormula converts an Airtable-style filter formula into a Filter.
// Supported shapes: {field}="literal" and AND({a}="x", {b}="y", ...).
// Any other shape returns nil, meaning "do not filter": returning unfiltered
// rows is recoverable downstream, silently dropping rows is not.
func ParseFormula(s string) *Filter {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	parts := []string{s}
	if upper := strings.ToUpper(s); strings.HasPrefix(upper, "AND(") && strings.HasSuffix(s, ")") {
		parts = splitTopLevel(s[4 : len(s)-1])
	}

	f := &Filter{}
	for _, part := range parts {
		m := formulaClause.FindStringSubmatch(strings.TrimSpace(part))
		if m == nil {
			return nil
		}
		f.And(m[1], m[2])
	}
	if len(f.Clauses) == 0 {
		return nil
	}
	return f
}

// splitTopLevel splits on commas that are outside double quotes.
func splitTopLevel(s string) []string {
	var parts []string
	var b strings.Builder
	inQuote := false
	for _, r := range s {
		switch {
		case r == '"':
			inQuote = !inQuote
			b.WriteRune(r)
		case r == ',' && !inQuote:
			parts = append(parts, b.String())
			b.Reset()
		default:
			b.WriteRune(r)
		}
	}
	parts = append(parts, b.String())
	return parts
}
