package compliance

import (
	"fmt"
	"path/filepath"
	"strings"
)

type ScanStatus string

const (
	StatusProcessing   ScanStatus = "PROCESSING"
	StatusSuccess      ScanStatus = "SUCCESS"
	StatusNoViolations ScanStatus = "NO_VIOLATIONS"
	StatusFailed       ScanStatus = "FAILED"
	StatusAutoSuccess  ScanStatus = "AUTO_SUCCESS"
	StatusAutoFailed   ScanStatus = "AUTO_FAILED"
)

func (s ScanStatus) IsTerminal() bool {
	switch s {
	case StatusSuccess, StatusNoViolations, StatusFailed, StatusAutoSuccess, StatusAutoFailed:
		return true
	default:
		return false
	}
}

// InteractiveOutcome is the terminal status of a user-triggered scan.
func InteractiveOutcome(totalViolations int) ScanStatus {
	if totalViolations > 0 {
		return StatusSuccess
	}
	return StatusNoViolations
}

// ScanPhase tracks how far an interactive scan progressed.
type ScanPhase string

const (
	PhaseStarted        ScanPhase = "STARTED"
	PhasePolicyLoaded   ScanPhase = "POLICY_LOADED"
	PhaseRulesExtracted ScanPhase = "RULES_EXTRACTED"
	PhaseEvaluating     ScanPhase = "EVALUATING"
)

type ScanMode string

const (
	ScanModeDatabase ScanMode = "database"
	ScanModeFile     ScanMode = "file"
)

type InputFormat string

const (
	FormatCSV  InputFormat = "csv"
	FormatXLSX InputFormat = "xlsx"
	FormatJSON InputFormat = "json"
	FormatSQL  InputFormat = "sql"
)

// MaterializedTable is the table name uploaded datasets are loaded under.
const MaterializedTable = "temp_table"

// DetectInputFormat resolves a dataset format from its file name. Legacy
// binary .xls workbooks are not supported.
func DetectInputFormat(fileName string) (InputFormat, error) {
	switch strings.ToLower(filepath.Ext(strings.TrimSpace(fileName))) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %q (supported: csv, xlsx, json)", ErrUnsupportedFormat, fileName)
	}
}
