// Package resolver turns a configurable type and a set of overrides into a
// config.Spec.
//
// Resolution is pure: it reads type declarations and answers "does this
// entry exist" questions through interfaces, and never touches the disk or
// builds objects. Parameter schemas are merged across the type hierarchy
// depth-first, left to right, with later bases overriding earlier ones and
// the derived type overriding all of its bases.
package resolver
