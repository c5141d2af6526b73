// Package sanitize validates and quotes every identifier and string literal
// that the compiler emits into SQL text. Nothing downstream should write a
// bare identifier or literal without going through here first.
package sanitize

import (
	"fmt"
	"strings"
)

// forbidden holds SQL keywords that are never allowed as a bare identifier,
// alias, or table reference even when they'd otherwise match the bare
// identifier pattern.
var forbidden = map[string]bool{
	"select": true, "from": true, "where": true, "insert": true, "update": true,
	"delete": true, "drop": true, "union": true, "join": true, "on": true,
	"as": true, "into": true, "values": true, "set": true, "and": true,
	"or": true, "not": true, "null": true, "table": true, "create": true,
	"alter": true, "exec": true, "execute": true, "grant": true, "revoke": true,
	"truncate": true, "with": true, "having": true, "group": true, "order": true,
	"limit": true, "offset": true, "distinct": true, "case": true, "when": true,
	"then": true, "else": true, "end": true,
}

func isBareStart(b byte) bool {
	return (b >= 'a' && b <= 'z') || b == '_'
}

func isBareRest(b byte) bool {
	return isBareStart(b) || (b >= '0' && b <= '9')
}

func isBareIdent(id string) bool {
	if id == "" {
		return false
	}
	if !isBareStart(id[0]) {
		return false
	}
	for i := 1; i < len(id); i++ {
		if !isBareRest(id[i]) {
			return false
		}
	}
	return true
}

func hasControlChar(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 32 || s[i] == 127 {
			return true
		}
	}
	return false
}

// Quote renders id as a bare identifier when it's safe to do so, otherwise
// wraps it in double quotes with embedded quotes doubled. It fails on empty
// input or any control character.
func Quote(id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("sanitize: empty identifier")
	}
	if hasControlChar(id) {
		return "", fmt.Errorf("sanitize: identifier %q contains a control character", id)
	}
	if isBareIdent(id) && !forbidden[id] {
		return id, nil
	}
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`, nil
}

// AssertSafeAlias verifies a is usable as a generated SQL alias: a simple
// identifier with no whitespace, quote marks, statement terminator, comment
// tokens, or forbidden keyword.
func AssertSafeAlias(a string) error {
	if a == "" {
		return fmt.Errorf("sanitize: empty alias")
	}
	if hasControlChar(a) {
		return fmt.Errorf("sanitize: alias %q contains a control character", a)
	}
	if strings.ContainsAny(a, " \t\n\r\"';") || strings.Contains(a, "--") ||
		strings.Contains(a, "/*") || strings.Contains(a, "*/") {
		return fmt.Errorf("sanitize: alias %q is not a safe identifier", a)
	}
	if !isBareIdent(a) {
		return fmt.Errorf("sanitize: alias %q is not a simple identifier", a)
	}
	if forbidden[strings.ToLower(a)] {
		return fmt.Errorf("sanitize: alias %q is a forbidden keyword", a)
	}
	return nil
}

// AssertSafeTableRef validates a one- or two-part table reference such as
// `schema.table` or `"My Table"`. Each part must be a bare identifier or a
// double-quoted identifier with embedded quotes doubled.
func AssertSafeTableRef(ref string) error {
	if ref == "" {
		return fmt.Errorf("sanitize: empty table reference")
	}
	if hasControlChar(ref) {
		return fmt.Errorf("sanitize: table reference %q contains a control character", ref)
	}
	if strings.ContainsAny(ref, "\t\n\r;()") {
		return fmt.Errorf("sanitize: table reference %q contains unsafe characters", ref)
	}
	parts := splitTableRef(ref)
	if parts == nil {
		return fmt.Errorf("sanitize: table reference %q is malformed", ref)
	}
	if len(parts) == 0 || len(parts) > 2 {
		return fmt.Errorf("sanitize: table reference %q must have one or two parts", ref)
	}
	for _, p := range parts {
		if p == "" {
			return fmt.Errorf("sanitize: table reference %q has an empty part", ref)
		}
		if strings.HasPrefix(p, `"`) {
			if !strings.HasSuffix(p, `"`) || len(p) < 2 {
				return fmt.Errorf("sanitize: table reference %q has an unterminated quoted part", ref)
			}
			inner := p[1 : len(p)-1]
			// embedded quotes must be doubled; reject any lone quote.
			if strings.Count(inner, `"`)%2 != 0 {
				return fmt.Errorf("sanitize: table reference %q has mismatched quotes", ref)
			}
			continue
		}
		if !isBareIdent(p) {
			return fmt.Errorf("sanitize: table reference part %q is not a safe identifier", p)
		}
	}
	return nil
}

// splitTableRef splits ref on the single top-level `.` that separates a
// schema part from a table part, respecting double-quoted spans. Returns nil
// if quoting is unbalanced.
func splitTableRef(ref string) []string {
	var parts []string
	inQuote := false
	start := 0
	for i := 0; i < len(ref); i++ {
		switch ref[i] {
		case '"':
			inQuote = !inQuote
		case '.':
			if !inQuote {
				parts = append(parts, ref[start:i])
				start = i + 1
			}
		}
	}
	if inQuote {
		return nil
	}
	parts = append(parts, ref[start:])
	if strings.HasSuffix(ref, ".") {
		return nil
	}
	return parts
}

// SQLStringLiteral renders v as a single-quoted SQL string literal with
// embedded single quotes doubled. It's used only for values the compiler
// itself controls (e.g. generated cursor separators) — user-supplied scalar
// values always go through the parameter store instead.
func SQLStringLiteral(v string) (string, error) {
	if hasControlChar(v) {
		return "", fmt.Errorf("sanitize: string literal contains a control character")
	}
	return `'` + strings.ReplaceAll(v, `'`, `''`) + `'`, nil
}
