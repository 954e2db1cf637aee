package compliance

import "errors"

var (
	ErrConnection          = errors.New("data source unreachable")
	ErrUnsupportedFormat   = errors.New("unsupported dataset format")
	ErrMalformedDataset    = errors.New("dataset cannot be parsed")
	ErrUnsupportedDatabase = errors.New("unsupported database uri")
	ErrNoDataSource        = errors.New("either a database uri or a dataset file is required")
	ErrEmptyPolicy         = errors.New("policy contains no readable text")
	ErrUnreadableDocument  = errors.New("policy document cannot be read")
	ErrNoTables            = errors.New("no tables found in data source")
	ErrNoRulesExtracted    = errors.New("no rules could be extracted from policy")
	ErrExtractionParse     = errors.New("generated rules are not a json array")
	ErrPredicateEvaluation = errors.New("rule predicate evaluation failed")

	ErrInvalidScanInterval = errors.New("scan interval must be between 1 and 1440 minutes")
	ErrNoViolations        = errors.New("no violations found")
	ErrNotFound            = errors.New("record not found")
)

// BadInputErrors lists the failures a caller can correct by changing the request.
var BadInputErrors = []error{
	ErrConnection,
	ErrUnsupportedFormat,
	ErrMalformedDataset,
	ErrUnsupportedDatabase,
	ErrNoDataSource,
	ErrEmptyPolicy,
	ErrUnreadableDocument,
	ErrNoTables,
	ErrInvalidScanInterval,
}
