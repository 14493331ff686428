// Package buildinfo holds the CLI version string recorded into an index's
// build metadata (spec §3 "Persisted Index" / §4.I Regeneration Detector).
package buildinfo

// Version is overridden at link time via -ldflags "-X .../buildinfo.Version=...".
var Version = "0.1.0-dev"
