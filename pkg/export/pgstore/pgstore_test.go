package pgstore

import (
	"reflect"
	"strings"
	"testing"
)

func TestTableName(t *testing.T) {
	tests := map[string]string{
		"ACTIVE_PACKAGE":   "active_package",
		"TransferDelivery": "transfer_delivery",
		"Item":             "item",
		"lab-test result":  "lab_test_result",
		"2024Plants":       "t_2024_plants",
		"":                 "records",
	}
	for in, want := range tests {
		if got := TableName(in); got != want {
			t.Errorf("TableName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFlattenAndExtract(t *testing.T) {
	item := map[string]any{"id": 7.0, "dataModel": "ITEM", "name": "Flower"}
	records := []map[string]any{
		{"id": 1.0, "label": "A", "item": item, "note": map[string]any{"text": "no id"}},
		{"id": 2.0, "label": "B", "item": item},
		{"id": 3.0, "label": "C", "location": map[string]any{"id": 4.0, "dataModel": "Location"}},
	}

	extracted := NewTables()
	flat := FlattenAndExtract(records, extracted)

	if len(flat) != 3 {
		t.Fatalf("len(flat) = %d, want 3", len(flat))
	}
	if flat[0]["item_id"] != 7.0 || flat[0]["item"] != nil {
		t.Errorf("flat[0] = %v, want item replaced by item_id", flat[0])
	}
	if _, ok := flat[0]["note"].(map[string]any); !ok {
		t.Error("objects without id and dataModel should stay inline")
	}
	if flat[2]["location_id"] != 4.0 {
		t.Errorf("flat[2] = %v", flat[2])
	}

	items := extracted.Get("item")
	if items == nil || len(items.Rows) != 1 {
		t.Fatalf("item table = %+v, want one deduplicated row", items)
	}

	var names []string
	for _, tbl := range extracted.All() {
		names = append(names, tbl.Name)
	}
	if !reflect.DeepEqual(names, []string{"item", "location"}) {
		t.Errorf("tables = %v", names)
	}
}

func TestInferColumns(t *testing.T) {
	rows := []map[string]any{
		{"id": 1.0, "qty": 1.0, "name": "a", "active": true, "tags": []any{"x"}, "mixed": "s", "blank": nil},
		{"id": 2.0, "qty": 2.5, "name": nil, "active": false, "mixed": true},
	}

	got := InferColumns(rows)
	want := []Column{
		{Name: "active", Type: "boolean"},
		{Name: "blank", Type: "text"},
		{Name: "id", Type: "bigint"},
		{Name: "mixed", Type: "text"},
		{Name: "name", Type: "text"},
		{Name: "qty", Type: "double precision"},
		{Name: "tags", Type: "jsonb"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("InferColumns() = %v, want %v", got, want)
	}
}

func TestConvert(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		colType string
		want    any
	}{
		{name: "nil", value: nil, colType: "bigint", want: nil},
		{name: "float to bigint", value: 42.0, colType: "bigint", want: int64(42)},
		{name: "bool to text", value: true, colType: "text", want: "true"},
		{name: "list to text", value: []any{"a"}, colType: "text", want: `["a"]`},
		{name: "jsonb passthrough", value: map[string]any{"a": 1.0}, colType: "jsonb", want: map[string]any{"a": 1.0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := convert(tt.value, tt.colType)
			if err != nil {
				t.Fatalf("convert() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("convert() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestRenderSchema(t *testing.T) {
	out := RenderSchema([]TableSchema{
		{Name: "packages", Columns: []Column{{"id", "bigint"}, {"item_id", "bigint"}, {"owner_id", "bigint"}}},
		{Name: "item", Columns: []Column{{"id", "bigint"}, {"name", "text"}}},
	})

	for _, want := range []string{
		"Table: item\n  - id: bigint\n  - name: text",
		"Table: packages",
		"Inferred Relationships:\n  - packages.item_id -> item.id",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("RenderSchema() missing %q in:\n%s", want, out)
		}
	}
	if strings.Index(out, "Table: item") > strings.Index(out, "Table: packages") {
		t.Error("tables should be sorted by name")
	}
	if strings.Contains(out, "owner_id ->") {
		t.Error("relations should only point at existing tables")
	}
}
