// Package testutil holds helpers shared by package tests: a log buffer, a
// logging context, file fixtures and a small registry of test types.
package testutil
