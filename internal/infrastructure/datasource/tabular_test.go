package datasource

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/xuri/excelize/v2"

	"policyguard/internal/domain/compliance"
)

func writeFile(t *testing.T, name string, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestParseTableCSV(t *testing.T) {
	path := writeFile(t, "users.csv", "id,name,age,\n1,ann,31,x\n2,,19\n")

	table, err := ParseTable("users.csv", path)
	if err != nil {
		t.Fatalf("ParseTable() error = %v", err)
	}

	wantColumns := []string{"id", "name", "age", "column_4"}
	if !reflect.DeepEqual(table.Columns, wantColumns) {
		t.Fatalf("Columns = %v, want %v", table.Columns, wantColumns)
	}
	wantRows := [][]any{
		{"1", "ann", "31", "x"},
		{"2", nil, "19", nil},
	}
	if !reflect.DeepEqual(table.Rows, wantRows) {
		t.Fatalf("Rows = %#v, want %#v", table.Rows, wantRows)
	}
}

func TestParseTableJSONRecordsAndColumns(t *testing.T) {
	records := writeFile(t, "records.json", `[{"id":1,"age":40.5},{"id":2,"active":true,"age":null}]`)
	table, err := ParseTable("records.json", records)
	if err != nil {
		t.Fatalf("ParseTable(records) error = %v", err)
	}
	if !reflect.DeepEqual(table.Columns, []string{"id", "age", "active"}) {
		t.Fatalf("Columns = %v", table.Columns)
	}
	wantRows := [][]any{
		{float64(1), 40.5, nil},
		{float64(2), nil, true},
	}
	if !reflect.DeepEqual(table.Rows, wantRows) {
		t.Fatalf("Rows = %#v, want %#v", table.Rows, wantRows)
	}

	columns := writeFile(t, "columns.json", `{"id":{"0":1,"1":2},"name":["ann","bob"]}`)
	table, err = ParseTable("columns.json", columns)
	if err != nil {
		t.Fatalf("ParseTable(columns) error = %v", err)
	}
	wantRows = [][]any{
		{float64(1), "ann"},
		{float64(2), "bob"},
	}
	if !reflect.DeepEqual(table.Rows, wantRows) {
		t.Fatalf("Rows = %#v, want %#v", table.Rows, wantRows)
	}
}

func TestParseTableXLSXReadsFirstSheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.xlsx")
	file := excelize.NewFile()
	if err := file.SetSheetRow("Sheet1", "A1", &[]any{"id", "age"}); err != nil {
		t.Fatalf("SetSheetRow() error = %v", err)
	}
	if err := file.SetSheetRow("Sheet1", "A2", &[]any{1, 45}); err != nil {
		t.Fatalf("SetSheetRow() error = %v", err)
	}
	if err := file.SaveAs(path); err != nil {
		t.Fatalf("SaveAs() error = %v", err)
	}
	_ = file.Close()

	table, err := ParseTable("users.xlsx", path)
	if err != nil {
		t.Fatalf("ParseTable() error = %v", err)
	}
	if !reflect.DeepEqual(table.Columns, []string{"id", "age"}) {
		t.Fatalf("Columns = %v", table.Columns)
	}
	if !reflect.DeepEqual(table.Rows, [][]any{{"1", "45"}}) {
		t.Fatalf("Rows = %#v", table.Rows)
	}
}

func TestParseTableErrors(t *testing.T) {
	if _, err := ParseTable("dump.parquet", "/nonexistent"); !errors.Is(err, compliance.ErrUnsupportedFormat) {
		t.Fatalf("ParseTable(parquet) error = %v, want ErrUnsupportedFormat", err)
	}

	bad := writeFile(t, "bad.json", `{"id":`)
	if _, err := ParseTable("bad.json", bad); !errors.Is(err, compliance.ErrMalformedDataset) {
		t.Fatalf("ParseTable(bad json) error = %v, want ErrMalformedDataset", err)
	}

	empty := writeFile(t, "empty.csv", "")
	if _, err := ParseTable("empty.csv", empty); !errors.Is(err, compliance.ErrNoTables) {
		t.Fatalf("ParseTable(empty csv) error = %v, want ErrNoTables", err)
	}
}

func TestInferAffinities(t *testing.T) {
	table := Table{
		Columns: []string{"int", "real", "text", "null", "bool"},
		Rows: [][]any{
			{"1", "1", "1", nil, true},
			{float64(2), "2.5", "x", nil, false},
		},
	}

	got := inferAffinities(table)
	want := []affinity{affinityInteger, affinityReal, affinityText, affinityText, affinityInteger}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("inferAffinities() = %v, want %v", got, want)
	}
}

func TestColumnNamesDisambiguates(t *testing.T) {
	got := columnNames([]string{"a", "a", " ", "a"})
	want := []string{"a", "a_2", "column_3", "a_3"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("columnNames() = %v, want %v", got, want)
	}
}
