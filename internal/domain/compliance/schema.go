package compliance

import (
	"encoding/json"
	"sort"
)

// Schema maps a table name to its columns in introspection order.
// The first column of a table is the natural identifier of its rows.
type Schema map[string][]string

func (s Schema) HasTable(table string) bool {
	_, ok := s[table]
	return ok
}

func (s Schema) HasColumn(table string, column string) bool {
	for _, name := range s[table] {
		if name == column {
			return true
		}
	}
	return false
}

// Tables returns table names sorted for deterministic output.
func (s Schema) Tables() []string {
	out := make([]string, 0, len(s))
	for table := range s {
		out = append(out, table)
	}
	sort.Strings(out)
	return out
}

func (s Schema) IsEmpty() bool {
	return len(s) == 0
}

// JSON renders the schema for embedding in a prompt.
func (s Schema) JSON() string {
	data, err := json.MarshalIndent(map[string][]string(s), "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}
