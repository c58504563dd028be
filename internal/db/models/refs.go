package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"slices"
)

// IDSet is an ordered set of entity ids stored as a JSON array column.
// Add and Remove are idempotent so replays never create duplicates.
type IDSet []string

// Contains reports whether id is in the set.
func (s IDSet) Contains(id string) bool {
	return slices.Contains(s, id)
}

// Add returns the set with id appended and whether it changed.
func (s IDSet) Add(id string) (IDSet, bool) {
	if s.Contains(id) {
		return s, false
	}
	out := make(IDSet, len(s), len(s)+1)
	copy(out, s)
	return append(out, id), true
}

// Remove returns the set without id and whether it changed.
func (s IDSet) Remove(id string) (IDSet, bool) {
	idx := slices.Index(s, id)
	if idx < 0 {
		return s, false
	}
	out := make(IDSet, 0, len(s)-1)
	out = append(out, s[:idx]...)
	return append(out, s[idx+1:]...), true
}

// Scan implements sql.Scanner for reading from database
func (s *IDSet) Scan(value any) error {
	var list []string
	if err := scanJSONList(value, &list); err != nil {
		return fmt.Errorf("failed to scan IDSet: %w", err)
	}
	*s = list
	return nil
}

// Value implements driver.Valuer for writing to database
func (s IDSet) Value() (driver.Value, error) {
	return jsonListValue([]string(s))
}

// StringList is a JSON-encoded list of free-form strings, such as a project's tech stack.
type StringList []string

// Scan implements sql.Scanner for reading from database
func (l *StringList) Scan(value any) error {
	var list []string
	if err := scanJSONList(value, &list); err != nil {
		return fmt.Errorf("failed to scan StringList: %w", err)
	}
	*l = list
	return nil
}

// Value implements driver.Valuer for writing to database
func (l StringList) Value() (driver.Value, error) {
	return jsonListValue([]string(l))
}

// scanJSONList accepts the []byte PostgreSQL returns for jsonb and the string SQLite returns for TEXT.
func scanJSONList(value any, dst *[]string) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*dst = []string{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("expected []byte or string, got %T", value)
	}
	if len(raw) == 0 {
		*dst = []string{}
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return err
	}
	if *dst == nil {
		*dst = []string{}
	}
	return nil
}

func jsonListValue(list []string) (driver.Value, error) {
	if list == nil {
		return "[]", nil
	}
	b, err := json.Marshal(list)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
