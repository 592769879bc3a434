// Package version exposes build metadata of the plugin binary.
//
// Version, Commit and BuildTime are injected via -ldflags at release time.
package version
