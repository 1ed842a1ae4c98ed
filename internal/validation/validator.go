// Package validation turns untrusted tool arguments into checked values.
//
// Handlers declare their inputs as a list of ArgSpec. Bind checks presence
// and type of every declared argument, runs the attached Validator and
// rejects arguments nobody declared, all before the handler acts. Every
// failure is a *toolerr.Error.
//
// The concrete validators are ValidatePath / ResolvePath for filesystem paths
// confined to a root and ValidateIdentifier / ValidateColumns for SQL
// identifiers. They are plain functions without shared state.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"toolgate/internal/toolerr"
)

// Validator checks a typed argument value and returns its sanitized form.
type Validator interface {
	Validate(value any) (any, error)
}

// ValidatorFunc adapts a function to the Validator interface.
type ValidatorFunc func(value any) (any, error)

// Validate calls f(value).
func (f ValidatorFunc) Validate(value any) (any, error) {
	return f(value)
}

// ArgType is the JSON type an argument must have.
type ArgType string

const (
	TypeString  ArgType = "string"
	TypeInteger ArgType = "integer"
	TypeNumber  ArgType = "number"
	TypeBoolean ArgType = "boolean"
	TypeObject  ArgType = "object"
)

// ArgSpec declares one argument of a tool.
type ArgSpec struct {
	Name        string
	Description string
	Type        ArgType

	// Required arguments must be present and non-null. Required strings must
	// also be non-blank unless AllowEmpty is set.
	Required   bool
	AllowEmpty bool

	// Validator runs after the type check. Nil means the typed value is used as-is.
	Validator Validator
}

// Args holds arguments that passed Bind. Values have their declared Go
// type (string, int, float64, bool or map[string]any) unless a Validator
// replaced them.
type Args map[string]any

// Has reports whether the argument was supplied.
func (a Args) Has(name string) bool {
	_, ok := a[name]
	return ok
}

// String returns a string argument or "".
func (a Args) String(name string) string {
	s, _ := a[name].(string)
	return s
}

// Int returns an integer argument or 0.
func (a Args) Int(name string) int {
	n, _ := a[name].(int)
	return n
}

// Strings returns a list produced by a validator such as ColumnsValidator.
func (a Args) Strings(name string) []string {
	s, _ := a[name].([]string)
	return s
}

// Object returns an object argument or nil.
func (a Args) Object(name string) map[string]any {
	m, _ := a[name].(map[string]any)
	return m
}

// Bind validates raw against specs in declaration order and returns the
// checked arguments. The first failure is returned:
//   - absent or null required argument, or blank required string: MissingArgument
//   - value of the wrong type: MissingArgument naming the argument
//   - validator rejection: the validator's classified error, unchanged;
//     an unclassified validator error becomes InternalError
//   - argument not declared by any spec: MissingArgument naming the argument
func Bind(specs []ArgSpec, raw map[string]any) (Args, error) {
	args := make(Args, len(specs))

	for _, spec := range specs {
		value, present := raw[spec.Name]
		if !present || value == nil {
			if spec.Required {
				return nil, toolerr.MissingArgument(spec.Name)
			}
			continue
		}

		typed, err := coerce(spec, value)
		if err != nil {
			return nil, err
		}

		if spec.Validator != nil {
			typed, err = spec.Validator.Validate(typed)
			if err != nil {
				return nil, classifyValidatorError(spec.Name, err)
			}
		}

		args[spec.Name] = typed
	}

	if unknown := unknownArgs(specs, raw); len(unknown) > 0 {
		return nil, toolerr.BadArgument(unknown[0], "unknown argument "+unknown[0])
	}

	return args, nil
}

func coerce(spec ArgSpec, value any) (any, error) {
	switch spec.Type {
	case TypeString, "":
		s, ok := value.(string)
		if !ok {
			return nil, toolerr.BadArgument(spec.Name, spec.Name+" must be a string")
		}
		if spec.Required && !spec.AllowEmpty && strings.TrimSpace(s) == "" {
			return nil, toolerr.MissingArgument(spec.Name)
		}
		return s, nil

	case TypeInteger:
		n, ok := toInt(value)
		if !ok {
			return nil, toolerr.BadArgument(spec.Name, spec.Name+" must be an integer")
		}
		return n, nil

	case TypeNumber:
		f, ok := toFloat(value)
		if !ok {
			return nil, toolerr.BadArgument(spec.Name, spec.Name+" must be a number")
		}
		return f, nil

	case TypeBoolean:
		b, ok := value.(bool)
		if !ok {
			return nil, toolerr.BadArgument(spec.Name, spec.Name+" must be a boolean")
		}
		return b, nil

	case TypeObject:
		m, ok := value.(map[string]any)
		if !ok {
			return nil, toolerr.BadArgument(spec.Name, spec.Name+" must be an object")
		}
		return m, nil

	default:
		return nil, toolerr.Internal(fmt.Errorf("argument %s declares unsupported type %q", spec.Name, spec.Type))
	}
}

// toInt accepts Go integers and integral JSON numbers.
func toInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		if v > math.MaxInt || v < math.MinInt {
			return 0, false
		}
		return int(v), true
	case float64:
		if v != math.Trunc(v) || v >= 1<<63 || v < -(1<<63) {
			return 0, false
		}
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return toInt(n)
	default:
		return 0, false
	}
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func classifyValidatorError(name string, err error) error {
	var classified *toolerr.Error
	if errors.As(err, &classified) {
		return classified
	}
	return toolerr.Internal(fmt.Errorf("validator for %s: %w", name, err))
}

func unknownArgs(specs []ArgSpec, raw map[string]any) []string {
	var unknown []string
	for key := range raw {
		if !slices.ContainsFunc(specs, func(s ArgSpec) bool { return s.Name == key }) {
			unknown = append(unknown, key)
		}
	}
	slices.Sort(unknown)
	return unknown
}

// Encoding accepts "utf-8" in any common spelling and normalizes it.
var Encoding = ValidatorFunc(func(value any) (any, error) {
	s, _ := value.(string)
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "utf-8", "utf8":
		return "utf-8", nil
	default:
		return nil, toolerr.BadArgument("encoding", "only utf-8 encoding is supported")
	}
})
