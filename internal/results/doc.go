// Package results collects the json-lines result files written by
// workspace.Record and summarizes them into a table of configurations
// against metrics.
package results
