package schema

import "sync"

// Cache is the per-model memoized index set:
// scalar-name set, relation-name set, field-by-name map, column-name map,
// JSON-field set, and primary-key field list. It holds no quoted-column
// map; column quoting happens at render time. Once built it is immutable
// and safe to read from any number of goroutines.
type Cache struct {
	model *Model

	byName        map[string]Field
	scalarNames   map[string]bool
	relationNames map[string]bool
	columnName    map[string]string
	jsonFields    map[string]bool
	primaryKey    []Field
}

var (
	registryMu sync.RWMutex
	registry   = map[string]*Cache{}
)

// CacheFor returns the memoized Cache for m, building it on first use. The
// cache is keyed by model name and shared by every caller for the lifetime
// of the process — schema models are expected to be stable once loaded.
func CacheFor(m *Model) *Cache {
	registryMu.RLock()
	c, ok := registry[m.Name]
	registryMu.RUnlock()
	if ok {
		return c
	}

	registryMu.Lock()
	defer registryMu.Unlock()
	if c, ok := registry[m.Name]; ok {
		return c
	}
	c = build(m)
	registry[m.Name] = c
	return c
}

func build(m *Model) *Cache {
	c := &Cache{
		model:         m,
		byName:        make(map[string]Field, len(m.Fields)),
		scalarNames:   make(map[string]bool, len(m.Fields)),
		relationNames: make(map[string]bool, len(m.Fields)),
		columnName:    make(map[string]string, len(m.Fields)),
		jsonFields:    make(map[string]bool, len(m.Fields)),
	}
	for _, f := range m.Fields {
		c.byName[f.Name] = f
		if f.IsRelation {
			c.relationNames[f.Name] = true
			continue
		}
		c.scalarNames[f.Name] = true
		c.columnName[f.Name] = f.ColumnName()
		if f.IsJSON() {
			c.jsonFields[f.Name] = true
		}
		if f.IsID {
			c.primaryKey = append(c.primaryKey, f)
		}
	}
	return c
}

// Field returns the field by name and whether it exists.
func (c *Cache) Field(name string) (Field, bool) {
	f, ok := c.byName[name]
	return f, ok
}

// IsScalar reports whether name is a known scalar field.
func (c *Cache) IsScalar(name string) bool {
	return c.scalarNames[name]
}

// IsRelation reports whether name is a known relation field.
func (c *Cache) IsRelation(name string) bool {
	return c.relationNames[name]
}

// IsJSON reports whether name is a known JSON-typed scalar field.
func (c *Cache) IsJSON(name string) bool {
	return c.jsonFields[name]
}

// ColumnName returns the database column name for scalar field name.
func (c *Cache) ColumnName(name string) (string, bool) {
	col, ok := c.columnName[name]
	return col, ok
}

// PrimaryKey returns the model's primary-key fields.
func (c *Cache) PrimaryKey() []Field {
	return c.primaryKey
}

// ScalarNames returns every known scalar field name, for error messages.
func (c *Cache) ScalarNames() []string {
	names := make([]string, 0, len(c.scalarNames))
	for n := range c.scalarNames {
		names = append(names, n)
	}
	return names
}

// RelationNamesAll returns every known relation field name, used to expand
// a bare `_count: true` into counts for all relations.
func (c *Cache) RelationNamesAll() []string {
	names := make([]string, 0, len(c.relationNames))
	for n := range c.relationNames {
		names = append(names, n)
	}
	return names
}
