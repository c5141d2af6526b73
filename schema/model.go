// Package schema defines the read-only schema graph the compiler consumes:
// Model and Field, plus the per-model memoized indices (the "schema field
// cache") that keep repeated lookups O(1) for the lifetime of the schema.
package schema

import "strings"

// Field describes one field on a Model. Relation fields carry RelatedModel
// and a matched-length ForeignKey/References pair; scalar fields carry a
// Type drawn from the closed scalar set, optionally
// suffixed "?" (nullable) or "[]" (list).
type Field struct {
	Name              string
	DBName            string // overrides the derived column name when set
	Type              string
	IsRelation        bool
	IsRequired        bool
	IsID              bool
	ForeignKey        []string
	References        []string
	RelatedModel      string
	IsForeignKeyLocal bool // true if this side owns the FK column(s)
}

// BaseType strips the nullable/list suffixes from Type.
func (f Field) BaseType() string {
	t := f.Type
	t = strings.TrimSuffix(t, "[]")
	t = strings.TrimSuffix(t, "?")
	return t
}

// IsNullable reports whether Type carries the "?" suffix.
func (f Field) IsNullable() bool {
	return strings.HasSuffix(strings.TrimSuffix(f.Type, "[]"), "?")
}

// IsList reports whether Type carries the "[]" suffix.
func (f Field) IsList() bool {
	return strings.HasSuffix(f.Type, "[]")
}

// IsJSON reports whether the field's base scalar type is Json.
func (f Field) IsJSON() bool {
	return f.BaseType() == "Json"
}

// ColumnName returns the database column name: DBName when set, else Name.
func (f Field) ColumnName() string {
	if f.DBName != "" {
		return f.DBName
	}
	return f.Name
}

// Model is one node of the schema graph: a table plus its ordered fields.
type Model struct {
	Name      string
	TableName string
	Fields    []Field
}

// Field looks up a field by name, returning ok=false if absent.
func (m *Model) Field(name string) (Field, bool) {
	for i := range m.Fields {
		if m.Fields[i].Name == name {
			return m.Fields[i], true
		}
	}
	return Field{}, false
}

// PrimaryKeyFields returns the model's id field(s) in declaration order.
func (m *Model) PrimaryKeyFields() []Field {
	var pk []Field
	for _, f := range m.Fields {
		if f.IsID {
			pk = append(pk, f)
		}
	}
	return pk
}

// FieldNames returns the declared field names in order, for error messages
// that need to list "available fields on this model".
func (m *Model) FieldNames() []string {
	names := make([]string, len(m.Fields))
	for i, f := range m.Fields {
		names[i] = f.Name
	}
	return names
}
