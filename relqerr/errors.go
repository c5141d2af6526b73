// Package relqerr implements the compiler's flat error taxonomy: every
// failure carries a classification Kind plus enough context
// (model, path, and — for unknown fields — the available field list) for a
// caller to act on without parsing the message string.
package relqerr

import "fmt"

// Kind classifies a compiler failure.
type Kind int

const (
	FieldNotFound Kind = iota
	InvalidOperator
	InvalidValue
	RelationError
	ParamError
	ValidationError
	Critical
)

func (k Kind) String() string {
	switch k {
	case FieldNotFound:
		return "FieldNotFound"
	case InvalidOperator:
		return "InvalidOperator"
	case InvalidValue:
		return "InvalidValue"
	case RelationError:
		return "RelationError"
	case ParamError:
		return "ParamError"
	case ValidationError:
		return "ValidationError"
	case Critical:
		return "Critical"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type surfaced by every builder.
type Error struct {
	Kind      Kind
	Model     string
	Path      []string
	Available []string // populated for FieldNotFound
	Message   string
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Model != "" {
		msg += fmt.Sprintf(" (model=%s", e.Model)
		if len(e.Path) != 0 {
			msg += fmt.Sprintf(", path=%v", e.Path)
		}
		msg += ")"
	}
	if len(e.Available) != 0 {
		msg += fmt.Sprintf(" available fields: %v", e.Available)
	}
	return msg
}

// New builds an *Error for kind with a formatted message.
func New(kind Kind, model string, path []string, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Model: model, Path: append([]string(nil), path...),
		Message: fmt.Sprintf(format, args...)}
}

// NewFieldNotFound builds a FieldNotFound error naming the unknown field and
// the model's available fields.
func NewFieldNotFound(model string, path []string, field string, available []string) *Error {
	return &Error{
		Kind:      FieldNotFound,
		Model:     model,
		Path:      append([]string(nil), path...),
		Available: available,
		Message:   fmt.Sprintf("unknown field %q", field),
	}
}
