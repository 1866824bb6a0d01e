package sqlite

import (
	"github.com/go-json-experiment/json"
	"fmt"
	"slices"
	"strings"

	"github.com/bookshelfapp/bookshelf-server/internal/store"
)

// buildSetClause turns a partial-update field map into a SET clause.
// Every field must be known and updatable; protected fields fail the
// whole update rather than being silently dropped.
func buildSetClause(fields map[string]any, updatable, protected map[string]bool) (string, []any, error) {
	if len(fields) == 0 {
		return "", nil, store.ErrInvalidInput.WithMessage("no fields to update")
	}

	columns := make([]string, 0, len(fields))
	for column := range fields {
		columns = append(columns, column)
	}
	slices.Sort(columns)

	var (
		clauses []string
		args    []any
	)
	for _, column := range columns {
		if protected[column] {
			return "", nil, store.ErrInvalidInput.WithMessagef("field %q is protected", column)
		}
		if !updatable[column] {
			return "", nil, store.ErrInvalidInput.WithMessagef("unknown field %q", column)
		}

		value, err := convertValue(column, fields[column])
		if err != nil {
			return "", nil, err
		}
		clauses = append(clauses, column+" = ?")
		args = append(args, value)
	}

	return strings.Join(clauses, ", "), args, nil
}

// convertValue maps a field value onto its column representation.
// JSON-decoded bodies arrive as float64 and []any, so both forms are accepted.
func convertValue(column string, v any) (any, error) {
	switch column {
	case "title", "lang", "publisher", "cover_path":
		s, ok := v.(string)
		if !ok {
			return nil, store.ErrInvalidInput.WithMessagef("field %q wants a string", column)
		}
		return nullString(s), nil

	case "name":
		s, ok := v.(string)
		if !ok || s == "" {
			return nil, store.ErrInvalidInput.WithMessagef("field %q wants a non-empty string", column)
		}
		return s, nil

	case "year":
		switch n := v.(type) {
		case int:
			return nullInt64(int64(n)), nil
		case int64:
			return nullInt64(n), nil
		case float64:
			return nullInt64(int64(n)), nil
		}
		return nil, store.ErrInvalidInput.WithMessagef("field %q wants a number", column)

	case "authors", "tags":
		items, err := toStringSlice(v)
		if err != nil {
			return nil, store.ErrInvalidInput.WithMessagef("field %q wants a list of strings", column)
		}
		return marshalStrings(items), nil

	case "active", "confirmed":
		b, ok := v.(bool)
		if !ok {
			return nil, store.ErrInvalidInput.WithMessagef("field %q wants a boolean", column)
		}
		return boolToInt(b), nil
	}

	return nil, store.ErrInvalidInput.WithMessagef("unknown field %q", column)
}

func toStringSlice(v any) ([]string, error) {
	switch items := v.(type) {
	case []string:
		return items, nil
	case []any:
		out := make([]string, 0, len(items))
		for _, item := range items {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("non-string element")
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, fmt.Errorf("not a list")
}

// marshalStrings encodes a string slice as the JSON stored in text columns.
func marshalStrings(items []string) string {
	if items == nil {
		items = []string{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// unmarshalStrings decodes a stored JSON string slice.
func unmarshalStrings(data string) []string {
	if data == "" {
		return []string{}
	}
	var items []string
	if err := json.Unmarshal([]byte(data), &items); err != nil {
		return []string{}
	}
	return items
}
