package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/huanfeng/apk-extractor/internal/errors"
)

// Output formats accepted by --format.
const (
	formatText  = "text"
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

func checkFormat(format string, allowed ...string) error {
	for _, a := range allowed {
		if format == a {
			return nil
		}
	}
	return errors.NewError(errors.ErrorTypeValidation, errors.CodeConfigInvalid,
		fmt.Sprintf("unsupported format %q", format)).
		WithSuggestion("Use one of: " + strings.Join(allowed, ", "))
}

// writeStructured encodes v as JSON or YAML.
func writeStructured(w io.Writer, format string, v interface{}) error {
	switch format {
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return errors.WrapError(err, errors.ErrorTypeParsing, errors.CodeConfigInvalid, "failed to encode YAML")
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return errors.WrapError(err, errors.ErrorTypeParsing, errors.CodeConfigInvalid, "failed to encode JSON")
		}
		return nil
	}
}
