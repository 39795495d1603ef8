package htables

import (
	"fmt"
	"regexp"
	"slices"
)

// maxIdentifierLen is PostgreSQL's identifier limit (NAMEDATALEN - 1).
const maxIdentifierLen = 63

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// RowKind is the variant tag of the rows stored in one table.
type RowKind struct {
	Name  string
	Table string
}

// Schema maps table names to row kinds. Define every table before binding;
// a SessionPool keeps its own copy, so later definitions do not affect
// pools that already exist.
type Schema struct {
	byName map[string]RowKind
	order  []string
}

// NewSchema returns an empty schema.
func NewSchema() *Schema {
	return &Schema{byName: make(map[string]RowKind)}
}

// DefineTable registers tableName and returns its row kind.
func (s *Schema) DefineTable(typeName, tableName string) (RowKind, error) {
	if !identifierRe.MatchString(tableName) || len(tableName) > maxIdentifierLen {
		return RowKind{}, fmt.Errorf("%w: %q", ErrInvalidTableName, tableName)
	}

	if _, ok := s.byName[tableName]; ok {
		return RowKind{}, &DuplicateTableError{Name: tableName}
	}

	kind := RowKind{Name: typeName, Table: tableName}
	s.byName[tableName] = kind
	s.order = append(s.order, tableName)

	return kind, nil
}

// MustDefineTable is like DefineTable but panics on error. It suits
// package-level schema declarations.
func (s *Schema) MustDefineTable(typeName, tableName string) RowKind {
	kind, err := s.DefineTable(typeName, tableName)
	if err != nil {
		panic(err)
	}

	return kind
}

// Lookup returns the row kind registered for tableName.
func (s *Schema) Lookup(tableName string) (RowKind, error) {
	kind, ok := s.byName[tableName]
	if !ok {
		return RowKind{}, &UnknownTableError{Name: tableName}
	}

	return kind, nil
}

// Tables returns every row kind in definition order.
func (s *Schema) Tables() []RowKind {
	kinds := make([]RowKind, 0, len(s.order))
	for _, name := range s.order {
		kinds = append(kinds, s.byName[name])
	}

	return kinds
}

func (s *Schema) clone() *Schema {
	c := &Schema{
		byName: make(map[string]RowKind, len(s.byName)),
		order:  slices.Clone(s.order),
	}

	for k, v := range s.byName {
		c.byName[k] = v
	}

	return c
}
