// Package workspace implements the directory-backed store of named
// configuration entries.
//
// A workspace directory holds:
//
//	config.hcl   every configured entry, rewritten atomically on change
//	snapshot/    saved object state and run records
//	log/         per-name log files
//	result/      json-lines result records
//
// Nothing is kept only in memory: Open re-reads config.hcl, so a workspace
// can always be reconstructed from disk.
package workspace
