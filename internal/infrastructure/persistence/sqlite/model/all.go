package model

// All lists every table in migration order.
func All() []any {
	return []any{
		&Policy{},
		&Rule{},
		&ScanRun{},
		&Violation{},
		&SystemConfig{},
		&KV{},
	}
}
