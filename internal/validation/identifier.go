package validation

import (
	"regexp"
	"strings"

	"toolgate/internal/toolerr"
)

// MaxIdentifierLength bounds table and column names.
const MaxIdentifierLength = 128

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,127}$`)

// ValidateIdentifier returns candidate unchanged if it is a safe SQL
// identifier: a letter or underscore followed by up to 127 letters, digits
// or underscores. Anything else fails with InvalidIdentifier.
//
// Use it only for table and column names. Values are always bound as
// parameters.
func ValidateIdentifier(candidate string) (string, error) {
	if !identifierPattern.MatchString(candidate) {
		return "", toolerr.InvalidIdentifier("")
	}
	return candidate, nil
}

// QuoteIdentifier double-quotes a validated identifier for interpolation
// into a statement.
func QuoteIdentifier(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// ValidateColumns parses a column selection. "" and "*" select every column
// and yield nil. Otherwise the input is a comma-separated list of
// identifiers; surrounding spaces are trimmed and empty entries are rejected.
func ValidateColumns(spec string) ([]string, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" || spec == "*" {
		return nil, nil
	}

	parts := strings.Split(spec, ",")
	columns := make([]string, 0, len(parts))
	for _, part := range parts {
		col, err := ValidateIdentifier(strings.TrimSpace(part))
		if err != nil {
			return nil, toolerr.InvalidIdentifier("columns")
		}
		columns = append(columns, col)
	}
	return columns, nil
}

// IdentifierValidator validates a string argument as an identifier and
// names the argument in the error detail.
func IdentifierValidator(argName string) Validator {
	return ValidatorFunc(func(value any) (any, error) {
		s, _ := value.(string)
		if _, err := ValidateIdentifier(s); err != nil {
			return nil, toolerr.InvalidIdentifier(argName)
		}
		return s, nil
	})
}

// ColumnsValidator validates a column selection and yields []string
// (nil for all columns).
var ColumnsValidator = ValidatorFunc(func(value any) (any, error) {
	s, _ := value.(string)
	return ValidateColumns(s)
})

// ObjectKeysValidator validates every key of an object argument as an
// identifier. Values are left untouched for parameter binding.
func ObjectKeysValidator(argName string) Validator {
	return ValidatorFunc(func(value any) (any, error) {
		m, _ := value.(map[string]any)
		for key := range m {
			if _, err := ValidateIdentifier(key); err != nil {
				return nil, toolerr.InvalidIdentifier(argName)
			}
		}
		return m, nil
	})
}
