// Package registry maps configurable type names to their declarations and
// Go constructors.
//
// Types are declared explicitly, either in Go through the Builder returned
// by Declare or in HCL manifests loaded with LoadManifests. Manifest
// declarations bind to Go constructors by name. Validate checks that the
// two halves agree before any workspace uses the registry.
package registry
