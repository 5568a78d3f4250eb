// Package config defines the format-agnostic configuration model: parameter
// schemas declared per configurable type, the resolved ConfigSpec that a
// workspace entry persists, and the Loader interface used to read type
// declarations from manifest files.
//
// Concrete encodings (the HCL workspace document and the HCL manifests) live
// in the hcl_adapter package. The resolver package turns a Definition
// hierarchy plus overrides into a Spec.
package config
