package pgstore

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	idKey    = "id"
	modelKey = "dataModel"
	idSuffix = "_id"
)

// Table is a set of rows bound for one database table.
type Table struct {
	Name string
	Rows []map[string]any

	ids map[string]bool
}

func (t *Table) add(row map[string]any) {
	key := fmt.Sprint(row[idKey])
	if t.ids[key] {
		return
	}
	t.ids[key] = true
	t.Rows = append(t.Rows, row)
}

// Tables collects extracted tables in first-seen order.
type Tables struct {
	order  []string
	byName map[string]*Table
}

// NewTables returns an empty table set.
func NewTables() *Tables {
	return &Tables{byName: map[string]*Table{}}
}

// Get returns the named table, nil when absent.
func (ts *Tables) Get(name string) *Table {
	return ts.byName[name]
}

// All returns the tables in first-seen order.
func (ts *Tables) All() []*Table {
	out := make([]*Table, 0, len(ts.order))
	for _, n := range ts.order {
		out = append(out, ts.byName[n])
	}
	return out
}

func (ts *Tables) table(name string) *Table {
	t, ok := ts.byName[name]
	if !ok {
		t = &Table{Name: name, ids: map[string]bool{}}
		ts.byName[name] = t
		ts.order = append(ts.order, name)
	}
	return t
}

// FlattenAndExtract replaces every top-level nested object that carries both
// id and dataModel with a <model>_id reference and collects the object into
// its own table in extracted, deduplicated by id.
func FlattenAndExtract(records []map[string]any, extracted *Tables) []map[string]any {
	flat := make([]map[string]any, 0, len(records))
	for _, record := range records {
		row := make(map[string]any, len(record))
		for key, value := range record {
			nested, ok := value.(map[string]any)
			if !ok || nested[idKey] == nil {
				row[key] = value
				continue
			}
			model, ok := nested[modelKey].(string)
			if !ok || model == "" {
				row[key] = value
				continue
			}

			name := TableName(model)
			extracted.table(name).add(nested)
			row[name+idSuffix] = nested[idKey]
		}
		flat = append(flat, row)
	}
	return flat
}

var nonIdent = regexp.MustCompile(`[^a-z0-9_]+`)
var camelBoundary = regexp.MustCompile(`([a-z0-9])([A-Z])`)

// TableName turns a data model name such as ACTIVE_PACKAGE or
// TransferDelivery into a lower snake case identifier.
func TableName(model string) string {
	s := camelBoundary.ReplaceAllString(model, "${1}_${2}")
	s = nonIdent.ReplaceAllString(strings.ToLower(s), "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return "records"
	}
	if s[0] >= '0' && s[0] <= '9' {
		s = "t_" + s
	}
	return s
}
