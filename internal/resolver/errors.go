package resolver

import (
	"fmt"
	"strings"
)

// UnknownTypeError is returned when a type name is not declared.
type UnknownTypeError struct {
	Type string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown type %q", e.Type)
}

// UnknownParameterError is returned when an override or project default
// names a parameter the type does not declare.
type UnknownParameterError struct {
	Type string
	Key  string
}

func (e *UnknownParameterError) Error() string {
	return fmt.Sprintf("type %s has no parameter %q", e.Type, e.Key)
}

// InvalidValueError is returned when a value cannot be converted to the
// declared parameter type.
type InvalidValueError struct {
	Type string
	Key  string
	Err  error
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("invalid value for %s.%s: %v", e.Type, e.Key, e.Err)
}

func (e *InvalidValueError) Unwrap() error { return e.Err }

// MissingValueError is returned when a parameter without a default is not
// given a value.
type MissingValueError struct {
	Type string
	Key  string
}

func (e *MissingValueError) Error() string {
	return fmt.Sprintf("parameter %s.%s has no default and was not given", e.Type, e.Key)
}

// MissingSubmoduleError is returned when a submodule parameter refers to an
// entry that does not exist and may not be built automatically.
type MissingSubmoduleError struct {
	Type  string
	Param string
	Entry string
}

func (e *MissingSubmoduleError) Error() string {
	return fmt.Sprintf("submodule %s.%s refers to %q, which is not configured", e.Type, e.Param, e.Entry)
}

// InheritanceCycleError is returned when a type is its own ancestor.
type InheritanceCycleError struct {
	Path []string
}

func (e *InheritanceCycleError) Error() string {
	return "inheritance cycle: " + strings.Join(e.Path, " extends ")
}
