package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"sort"
	"strconv"
)

// FlattenRecord flattens nested objects into dotted keys. Lists are kept as
// values and JSON-encoded when rendered.
func FlattenRecord(record map[string]any) map[string]any {
	out := make(map[string]any, len(record))
	flattenInto(out, "", record)
	return out
}

func flattenInto(out map[string]any, prefix string, m map[string]any) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok && len(nested) > 0 {
			flattenInto(out, key, nested)
			continue
		}
		out[key] = v
	}
}

// Columns returns the header for flattened records: PriorityFields that
// occur, then the remaining keys alphabetically.
func Columns(flat []map[string]any, stripEmpty bool) []string {
	seen := map[string]bool{}
	for _, r := range flat {
		for k, v := range r {
			if stripEmpty && isEmpty(v) {
				if _, ok := seen[k]; !ok {
					seen[k] = false
				}
				continue
			}
			seen[k] = true
		}
	}

	var cols, rest []string
	for _, f := range PriorityFields {
		if seen[f] {
			cols = append(cols, f)
		}
	}
	for k, keep := range seen {
		if keep && !slices.Contains(PriorityFields, k) {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(cols, rest...)
}

// WriteCSV writes records as CSV with a header row.
func WriteCSV(w io.Writer, records []map[string]any, stripEmpty bool) error {
	flat := make([]map[string]any, len(records))
	for i, r := range records {
		flat[i] = FlattenRecord(r)
	}
	cols := Columns(flat, stripEmpty)

	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	row := make([]string, len(cols))
	for _, r := range flat {
		for i, c := range cols {
			row[i] = formatValue(r[c])
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case json.Number:
		return t.String()
	case []any, map[string]any:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}
