// Package hcl_adapter holds every HCL-specific piece of fret: the workspace
// config document codec, the type manifest loader, type expression parsing,
// override literal parsing and the cty to Go struct decoder used by
// constructors.
package hcl_adapter
