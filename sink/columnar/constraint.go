package columnar

import (
	"errors"
	"fmt"
	"sort"

	"github.com/apache/arrow-go/v18/arrow"
)

// Constraint is a pushed-down predicate on one column. A row is kept only
// when every field value satisfies the constraint of its column.
type Constraint struct {
	In      []any    `yaml:"in"`
	Min     *float64 `yaml:"min"`
	Max     *float64 `yaml:"max"`
	NotNull bool     `yaml:"not_null"`
}

// Allows reports whether v, already converted to the column type, passes.
func (c Constraint) Allows(v any) bool {
	if v == nil {
		// null only passes a constraint without value predicates
		return !c.NotNull && len(c.In) == 0 && c.Min == nil && c.Max == nil
	}
	if c.Min != nil || c.Max != nil {
		n, ok := numeric(v)
		if !ok {
			return false
		}
		if c.Min != nil && n < *c.Min {
			return false
		}
		if c.Max != nil && n > *c.Max {
			return false
		}
	}
	if len(c.In) == 0 {
		return true
	}
	for _, want := range c.In {
		if equal(v, want) {
			return true
		}
	}
	return false
}

func equal(v, want any) bool {
	if s, ok := v.(string); ok {
		w, ok := want.(string)
		return ok && s == w
	}
	if b, ok := v.(bool); ok {
		w, ok := want.(bool)
		return ok && b == w
	}
	n, ok := numeric(v)
	if !ok {
		return false
	}
	w, err := asFloat(want)
	return err == nil && n == w
}

// ParseConstraints builds constraints from a generic document such as a
// decoded YAML map or structpb.Struct.AsMap():
//
//	{"status": {"in": ["paid"]}, "amount": {"min": 0, "not_null": true}}
func ParseConstraints(doc map[string]any) (map[string]Constraint, error) {
	if len(doc) == 0 {
		return nil, nil
	}
	cols := make([]string, 0, len(doc))
	for col := range doc {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	out := make(map[string]Constraint, len(doc))
	var errs []error
	for _, col := range cols {
		m, ok := doc[col].(map[string]any)
		if !ok {
			errs = append(errs, fmt.Errorf("constraint %q: expected an object, got %T", col, doc[col]))
			continue
		}
		c, err := parseConstraint(m)
		if err != nil {
			errs = append(errs, fmt.Errorf("constraint %q: %w", col, err))
			continue
		}
		out[col] = c
	}
	return out, errors.Join(errs...)
}

func parseConstraint(m map[string]any) (Constraint, error) {
	var c Constraint
	for k, v := range m {
		switch k {
		case "in":
			list, ok := v.([]any)
			if !ok {
				return c, fmt.Errorf("in: expected a list, got %T", v)
			}
			c.In = list
		case "min", "max":
			f, err := asFloat(v)
			if err != nil {
				return c, fmt.Errorf("%s: %w", k, err)
			}
			if k == "min" {
				c.Min = &f
			} else {
				c.Max = &f
			}
		case "not_null":
			b, ok := v.(bool)
			if !ok {
				return c, fmt.Errorf("not_null: expected a bool, got %T", v)
			}
			c.NotNull = b
		default:
			return c, fmt.Errorf("unknown key %q", k)
		}
	}
	return c, nil
}

// checkColumns rejects constraints on columns the schema does not have.
func checkColumns(sc *arrow.Schema, cs map[string]Constraint) error {
	var errs []error
	for col := range cs {
		if len(sc.FieldIndices(col)) == 0 {
			errs = append(errs, fmt.Errorf("constraint on unknown column %q", col))
		}
	}
	return errors.Join(errs...)
}
