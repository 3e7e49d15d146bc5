package pgstore

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Column is an inferred table column.
type Column struct {
	Name string
	Type string
}

// Postgres column types produced by InferColumns.
const (
	typeBigint = "bigint"
	typeDouble = "double precision"
	typeBool   = "boolean"
	typeText   = "text"
	typeJSONB  = "jsonb"
)

// InferColumns derives one column per key across rows, sorted by name.
// Keys whose values disagree on type fall back to text.
func InferColumns(rows []map[string]any) []Column {
	types := map[string]string{}
	for _, row := range rows {
		for k, v := range row {
			t := valueType(v)
			if t == "" {
				if _, ok := types[k]; !ok {
					types[k] = ""
				}
				continue
			}
			types[k] = mergeTypes(types[k], t)
		}
	}

	cols := make([]Column, 0, len(types))
	for name, t := range types {
		if t == "" {
			t = typeText
		}
		cols = append(cols, Column{Name: name, Type: t})
	}
	sort.Slice(cols, func(i, j int) bool { return cols[i].Name < cols[j].Name })
	return cols
}

func valueType(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case bool:
		return typeBool
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1<<53 {
			return typeBigint
		}
		return typeDouble
	case int, int32, int64:
		return typeBigint
	case string:
		return typeText
	case map[string]any, []any:
		return typeJSONB
	default:
		return typeText
	}
}

func mergeTypes(a, b string) string {
	switch {
	case a == "" || a == b:
		return b
	case (a == typeBigint && b == typeDouble) || (a == typeDouble && b == typeBigint):
		return typeDouble
	default:
		return typeText
	}
}

// convert renders v for a column of type colType.
func convert(v any, colType string) (any, error) {
	if v == nil {
		return nil, nil
	}

	switch colType {
	case typeBigint:
		switch t := v.(type) {
		case float64:
			return int64(t), nil
		case int:
			return int64(t), nil
		}
		return v, nil
	case typeJSONB:
		return v, nil
	case typeText:
		switch t := v.(type) {
		case string:
			return t, nil
		case map[string]any, []any:
			b, err := json.Marshal(t)
			if err != nil {
				return nil, err
			}
			return string(b), nil
		default:
			return fmt.Sprint(t), nil
		}
	default:
		return v, nil
	}
}

// TableSchema describes one table for RenderSchema.
type TableSchema struct {
	Name    string
	Columns []Column
}

// RenderSchema formats tables and the relations inferred from <x>_id
// columns that point at an existing table x.
func RenderSchema(tables []TableSchema) string {
	sort.Slice(tables, func(i, j int) bool { return tables[i].Name < tables[j].Name })

	names := map[string]bool{}
	for _, t := range tables {
		names[t.Name] = true
	}

	var b strings.Builder
	var relations []string
	for _, t := range tables {
		fmt.Fprintf(&b, "Table: %s\n", t.Name)
		for _, c := range t.Columns {
			fmt.Fprintf(&b, "  - %s: %s\n", c.Name, c.Type)
			if ref, ok := strings.CutSuffix(c.Name, idSuffix); ok && names[ref] {
				relations = append(relations, fmt.Sprintf("%s.%s -> %s.id", t.Name, c.Name, ref))
			}
		}
		b.WriteString("\n")
	}

	if len(relations) > 0 {
		b.WriteString("Inferred Relationships:\n")
		for _, r := range relations {
			fmt.Fprintf(&b, "  - %s\n", r)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
