package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"policyguard/internal/errs"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
	formatText = "text"
)

func parseOutputFormat(raw string, allowed ...string) (string, error) {
	format := strings.ToLower(strings.TrimSpace(raw))
	for _, candidate := range allowed {
		if format == candidate {
			return format, nil
		}
	}
	return "", fmt.Errorf("unsupported format %q (supported: %s)", raw, strings.Join(allowed, ", "))
}

// writeStructured renders value as indented JSON or YAML.
func writeStructured(w io.Writer, format string, value any) error {
	switch format {
	case formatYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(value); err != nil {
			return errs.Wrap(err, "encode yaml")
		}
		return errs.Wrap(encoder.Close(), "close yaml encoder")
	default:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return errs.Wrap(encoder.Encode(value), "encode json")
	}
}
