// Package logger wraps zerolog behind a small Logger interface.
//
// Every node in the runner logs through this package. The Options.Writers
// hook lets a node tee its log stream into the in-memory ring that backs the
// dashboard's log pane, and Options.NoConsole keeps zerolog's console writer
// from fighting the TUI for stdout.
package logger
