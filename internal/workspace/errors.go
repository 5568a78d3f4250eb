package workspace

import (
	"fmt"
	"strings"
)

// NotConfiguredError is returned when an entry is read before it was
// configured.
type NotConfiguredError struct {
	Name string
}

func (e *NotConfiguredError) Error() string {
	return fmt.Sprintf("entry %q is not configured", e.Name)
}

// CyclicSubmoduleError is returned by Build when submodule references form
// a cycle. Cycle starts and ends with the same entry.
type CyclicSubmoduleError struct {
	Cycle []string
}

func (e *CyclicSubmoduleError) Error() string {
	return fmt.Sprintf("cyclic submodule references: %s", strings.Join(e.Cycle, " -> "))
}

// SchemaMismatchError is returned by Load when a snapshot no longer matches
// the registered declaration of its type.
type SchemaMismatchError struct {
	Type   string
	Reason string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("snapshot of type %s does not match the current schema: %s", e.Type, e.Reason)
}
