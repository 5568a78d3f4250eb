// Package state defines how component state is extracted, persisted and
// restored. A component either implements Component itself or declares a
// list of state fields, which are read from and written to its struct
// fields by `cty` tag. Values are stored as JSON with their cty types so a
// restore does not depend on Go type inference.
package state
