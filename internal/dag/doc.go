// Package dag provides a small directed graph used to order and validate
// references: submodule references between workspace entries and base-type
// declarations between configurable types. Its main job is to reject cycles
// with an error that names every node on the cycle.
package dag
