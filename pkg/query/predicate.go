package query

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownField is returned when a predicate references a field the caller's
// column map does not allow.
var ErrUnknownField = errors.New("unknown filter field")

// Predicate is a node in a filter tree.
type Predicate interface {
	predicate()
}

// Eq matches records where a field equals a value.
type Eq struct {
	Field string
	Value interface{}
}

// In matches records where a field is one of a list of values.
type In struct {
	Field  string
	Values []interface{}
}

// And matches records satisfying every child predicate.
type And struct {
	Preds []Predicate
}

// Or matches records satisfying at least one child predicate.
type Or struct {
	Preds []Predicate
}

func (Eq) predicate()  {}
func (In) predicate()  {}
func (And) predicate() {}
func (Or) predicate()  {}

// Filter is a complete query description: an optional predicate plus paging.
type Filter struct {
	Where  Predicate
	Order  string
	Limit  int
	Offset int
}

// Conjoin combines an existing predicate with an additional one using AND.
// A top-level And grows in place; anything else (including a top-level Or) is
// wrapped whole, never rewritten.
func Conjoin(existing, add Predicate) Predicate {
	if add == nil {
		return existing
	}
	if existing == nil {
		return add
	}
	if and, ok := existing.(And); ok {
		return And{Preds: append(append([]Predicate{}, and.Preds...), add)}
	}
	return And{Preds: []Predicate{existing, add}}
}

// FieldValue returns the value of a top-level equality on the named field.
// It looks at a bare Eq and inside a top-level And, but does not descend into
// Or branches: a disjunctive constraint does not pin the field to one value.
func FieldValue(p Predicate, field string) (interface{}, bool) {
	switch n := p.(type) {
	case Eq:
		if n.Field == field {
			return n.Value, true
		}
	case And:
		for _, child := range n.Preds {
			if eq, ok := child.(Eq); ok && eq.Field == field {
				return eq.Value, true
			}
		}
	}
	return nil, false
}

// WithoutField removes a top-level equality on the named field, leaving the
// rest of the predicate intact.
func WithoutField(p Predicate, field string) Predicate {
	switch n := p.(type) {
	case Eq:
		if n.Field == field {
			return nil
		}
	case And:
		kept := make([]Predicate, 0, len(n.Preds))
		for _, child := range n.Preds {
			if eq, ok := child.(Eq); ok && eq.Field == field {
				continue
			}
			kept = append(kept, child)
		}
		switch len(kept) {
		case 0:
			return nil
		case 1:
			return kept[0]
		default:
			return And{Preds: kept}
		}
	}
	return p
}

// ToSQL renders a predicate to a SQL boolean expression with $n placeholders.
// The cols map translates exposed field names to column names and doubles as
// the field whitelist; a field outside it yields ErrUnknownField.
func ToSQL(p Predicate, cols map[string]string) (string, []interface{}, error) {
	var args []interface{}
	clause, err := renderSQL(p, cols, &args)
	if err != nil {
		return "", nil, err
	}
	return clause, args, nil
}

func renderSQL(p Predicate, cols map[string]string, args *[]interface{}) (string, error) {
	switch n := p.(type) {
	case Eq:
		col, ok := cols[n.Field]
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrUnknownField, n.Field)
		}
		*args = append(*args, n.Value)
		return fmt.Sprintf("%s = $%d", col, len(*args)), nil
	case In:
		col, ok := cols[n.Field]
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrUnknownField, n.Field)
		}
		if len(n.Values) == 0 {
			// An empty membership list matches nothing.
			return "FALSE", nil
		}
		placeholders := make([]string, len(n.Values))
		for i, v := range n.Values {
			*args = append(*args, v)
			placeholders[i] = fmt.Sprintf("$%d", len(*args))
		}
		return fmt.Sprintf("%s IN (%s)", col, joinStrings(placeholders, ", ")), nil
	case And:
		return renderGroup(n.Preds, " AND ", cols, args)
	case Or:
		return renderGroup(n.Preds, " OR ", cols, args)
	case nil:
		return "TRUE", nil
	default:
		return "", fmt.Errorf("unsupported predicate node %T", p)
	}
}

func renderGroup(preds []Predicate, sep string, cols map[string]string, args *[]interface{}) (string, error) {
	if len(preds) == 0 {
		return "TRUE", nil
	}
	parts := make([]string, 0, len(preds))
	for _, child := range preds {
		clause, err := renderSQL(child, cols, args)
		if err != nil {
			return "", err
		}
		parts = append(parts, clause)
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return "(" + joinStrings(parts, sep) + ")", nil
}

func joinStrings(parts []string, sep string) string {
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}
	n := len(sep) * (len(parts) - 1)
	for _, p := range parts {
		n += len(p)
	}
	buf := make([]byte, 0, n)
	buf = append(buf, parts[0]...)
	for _, p := range parts[1:] {
		buf = append(buf, sep...)
		buf = append(buf, p...)
	}
	return string(buf)
}

// ParseWhere decodes a "where" JSON object into a predicate
// tree. Supported shapes:
//
//	{"venue": "space"}                  field equality
//	{"orgunit": {"inq": [4, 5]}}        membership
//	{"and": [ ... ]} / {"or": [ ... ]}  groups
//
// Multiple keys in one object are treated as an implicit AND.
func ParseWhere(raw json.RawMessage) (Predicate, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("invalid where clause: %w", err)
	}
	if len(obj) == 0 {
		return nil, nil
	}

	// Deterministic ordering keeps rendered SQL stable.
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	preds := make([]Predicate, 0, len(obj))
	for _, key := range keys {
		val := obj[key]
		switch key {
		case "and", "or":
			var children []json.RawMessage
			if err := json.Unmarshal(val, &children); err != nil {
				return nil, fmt.Errorf("invalid %q group: %w", key, err)
			}
			group := make([]Predicate, 0, len(children))
			for _, child := range children {
				p, err := ParseWhere(child)
				if err != nil {
					return nil, err
				}
				if p != nil {
					group = append(group, p)
				}
			}
			if key == "and" {
				preds = append(preds, And{Preds: group})
			} else {
				preds = append(preds, Or{Preds: group})
			}
		default:
			p, err := parseCondition(key, val)
			if err != nil {
				return nil, err
			}
			preds = append(preds, p)
		}
	}
	if len(preds) == 1 {
		return preds[0], nil
	}
	return And{Preds: preds}, nil
}

func parseCondition(field string, raw json.RawMessage) (Predicate, error) {
	// Operator object form, currently just "inq".
	var op struct {
		Inq *[]interface{} `json:"inq"`
	}
	if err := json.Unmarshal(raw, &op); err == nil && op.Inq != nil {
		return In{Field: field, Values: normalizeValues(*op.Inq)}, nil
	}

	var value interface{}
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, fmt.Errorf("invalid condition for field %q: %w", field, err)
	}
	switch value.(type) {
	case map[string]interface{}, []interface{}:
		return nil, fmt.Errorf("unsupported condition for field %q", field)
	}
	return Eq{Field: field, Value: normalizeValue(value)}, nil
}

// ParseFilter decodes a full filter object with where/limit/skip parts.
func ParseFilter(raw json.RawMessage) (*Filter, error) {
	if len(raw) == 0 {
		return &Filter{}, nil
	}
	var wire struct {
		Where  json.RawMessage `json:"where"`
		Order  string          `json:"order"`
		Limit  int             `json:"limit"`
		Offset int             `json:"offset"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("invalid filter: %w", err)
	}
	where, err := ParseWhere(wire.Where)
	if err != nil {
		return nil, err
	}
	return &Filter{
		Where:  where,
		Order:  wire.Order,
		Limit:  wire.Limit,
		Offset: wire.Offset,
	}, nil
}

// JSON numbers decode to float64; filters compare against integer ids and
// plain strings, so whole floats are folded back to int64 for stable SQL args.
func normalizeValue(v interface{}) interface{} {
	if f, ok := v.(float64); ok && f == float64(int64(f)) {
		return int64(f)
	}
	return v
}

func normalizeValues(vs []interface{}) []interface{} {
	out := make([]interface{}, len(vs))
	for i, v := range vs {
		out[i] = normalizeValue(v)
	}
	return out
}
