package datasource

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/xuri/excelize/v2"

	"policyguard/internal/domain/compliance"
	"policyguard/internal/errs"
)

// Table is a parsed dataset. A nil cell is NULL; text-sourced cells are
// strings, JSON cells keep their number or boolean type.
type Table struct {
	Columns []string
	Rows    [][]any
}

// ParseTable reads the dataset at path using the format named by fileName.
func ParseTable(fileName string, path string) (Table, error) {
	format, err := compliance.DetectInputFormat(fileName)
	if err != nil {
		return Table{}, err
	}

	var table Table
	switch format {
	case compliance.FormatCSV:
		table, err = parseCSV(path)
	case compliance.FormatXLSX:
		table, err = parseXLSX(path)
	case compliance.FormatJSON:
		table, err = parseJSON(path)
	default:
		return Table{}, fmt.Errorf("%w: %s", compliance.ErrUnsupportedFormat, format)
	}
	if err != nil {
		return Table{}, err
	}
	if len(table.Columns) == 0 {
		return Table{}, fmt.Errorf("%w: dataset %q has no columns", compliance.ErrNoTables, fileName)
	}
	return table, nil
}

func parseCSV(path string) (Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return Table{}, errs.Wrap(err, "open csv dataset")
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return Table{}, nil
	}
	if err != nil {
		return Table{}, fmt.Errorf("%w: csv header: %w", compliance.ErrMalformedDataset, err)
	}

	table := Table{Columns: columnNames(stripBOM(header))}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Table{}, fmt.Errorf("%w: csv: %w", compliance.ErrMalformedDataset, err)
		}
		table.Rows = append(table.Rows, textRow(record, len(table.Columns)))
	}
	return table, nil
}

func parseXLSX(path string) (Table, error) {
	file, err := excelize.OpenFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("%w: xlsx: %w", compliance.ErrMalformedDataset, err)
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return Table{}, nil
	}

	rows, err := file.GetRows(sheets[0])
	if err != nil {
		return Table{}, fmt.Errorf("%w: xlsx sheet %q: %w", compliance.ErrMalformedDataset, sheets[0], err)
	}
	if len(rows) == 0 {
		return Table{}, nil
	}

	table := Table{Columns: columnNames(rows[0])}
	for _, record := range rows[1:] {
		table.Rows = append(table.Rows, textRow(record, len(table.Columns)))
	}
	return table, nil
}

// parseJSON accepts an array of records or a column-oriented object whose
// values are arrays or index-keyed objects.
func parseJSON(path string) (Table, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Table{}, errs.Wrap(err, "read json dataset")
	}
	if !gjson.ValidBytes(content) {
		return Table{}, fmt.Errorf("%w: invalid json", compliance.ErrMalformedDataset)
	}

	parsed := gjson.ParseBytes(content)
	switch {
	case parsed.IsArray():
		return jsonRecords(parsed)
	case parsed.IsObject():
		return jsonColumns(parsed)
	default:
		return Table{}, fmt.Errorf("%w: json dataset must be an array or an object", compliance.ErrMalformedDataset)
	}
}

func jsonRecords(parsed gjson.Result) (Table, error) {
	var (
		columns []string
		index   = map[string]int{}
		records []gjson.Result
		bad     error
	)
	parsed.ForEach(func(_, item gjson.Result) bool {
		if !item.IsObject() {
			bad = fmt.Errorf("%w: json records must be objects, got %s", compliance.ErrMalformedDataset, item.Type)
			return false
		}
		item.ForEach(func(key, _ gjson.Result) bool {
			if _, ok := index[key.String()]; !ok {
				index[key.String()] = len(columns)
				columns = append(columns, key.String())
			}
			return true
		})
		records = append(records, item)
		return true
	})
	if bad != nil {
		return Table{}, bad
	}

	table := Table{Columns: columns}
	for _, record := range records {
		row := make([]any, len(columns))
		record.ForEach(func(key, value gjson.Result) bool {
			row[index[key.String()]] = jsonCell(value)
			return true
		})
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

func jsonColumns(parsed gjson.Result) (Table, error) {
	var (
		columns []string
		cells   []map[string]gjson.Result
		keys    []string
		seen    = map[string]struct{}{}
		bad     error
	)
	parsed.ForEach(func(column, values gjson.Result) bool {
		byKey := map[string]gjson.Result{}
		switch {
		case values.IsArray():
			for i, value := range values.Array() {
				byKey[strconv.Itoa(i)] = value
				addKey(&keys, seen, strconv.Itoa(i))
			}
		case values.IsObject():
			values.ForEach(func(key, value gjson.Result) bool {
				byKey[key.String()] = value
				addKey(&keys, seen, key.String())
				return true
			})
		default:
			bad = fmt.Errorf("%w: json column %q must be an array or an object", compliance.ErrMalformedDataset, column.String())
			return false
		}
		columns = append(columns, column.String())
		cells = append(cells, byKey)
		return true
	})
	if bad != nil {
		return Table{}, bad
	}

	table := Table{Columns: columns}
	for _, key := range keys {
		row := make([]any, len(columns))
		for i := range columns {
			if value, ok := cells[i][key]; ok {
				row[i] = jsonCell(value)
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

func addKey(keys *[]string, seen map[string]struct{}, key string) {
	if _, ok := seen[key]; ok {
		return
	}
	seen[key] = struct{}{}
	*keys = append(*keys, key)
}

func jsonCell(value gjson.Result) any {
	switch value.Type {
	case gjson.Null:
		return nil
	case gjson.Number:
		return value.Num
	case gjson.True:
		return true
	case gjson.False:
		return false
	case gjson.String:
		return value.Str
	default:
		return value.Raw
	}
}

func textRow(record []string, width int) []any {
	row := make([]any, width)
	for i := 0; i < width && i < len(record); i++ {
		if record[i] == "" {
			continue
		}
		row[i] = record[i]
	}
	return row
}

// columnNames fills blank header cells and disambiguates duplicates.
func columnNames(header []string) []string {
	names := make([]string, len(header))
	used := make(map[string]int, len(header))
	for i, raw := range header {
		name := strings.TrimSpace(raw)
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		if n := used[name]; n > 0 {
			used[name] = n + 1
			name = fmt.Sprintf("%s_%d", name, n+1)
		}
		used[name]++
		names[i] = name
	}
	return names
}

func stripBOM(header []string) []string {
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	return header
}
