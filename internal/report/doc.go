// Package report provides engine.Reporter implementations: a terminal
// progress bar, a structured log reporter and a socket.io emitter.
package report
