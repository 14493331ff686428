// Package regen implements the Regeneration Detector (spec §4.I): a pure
// function comparing a persisted index's build metadata against the
// current configuration to decide whether a rebuild is needed, and why.
package regen

import (
	"sort"

	"github.com/pleaseai/mcp-please/internal/config"
	"github.com/pleaseai/mcp-please/internal/indexstore"
)

// Inputs are everything needed to decide whether a scope's index is stale.
type Inputs struct {
	IndexPath     string
	CLIVersion    string
	Mode          string
	EmbeddingTag  string
	Quantization  string
	ExcludedNames []string
	Fingerprints  map[config.Scope]config.Fingerprint
}

// Check compares the persisted index at in.IndexPath against in and reports
// whether the index needs rebuilding along with the specific reasons (spec
// §4.I). The "prior" fingerprint snapshot it compares against is the one
// recorded in the persisted document's own build metadata the last time
// this scope was indexed (nil if this is the first build), so callers need
// not track it separately.
func Check(in Inputs) (needsRebuild bool, reasons []string) {
	if !indexstore.Exists(in.IndexPath) {
		return true, []string{"index file does not exist"}
	}
	doc, err := indexstore.Load(in.IndexPath)
	if err != nil {
		return true, []string{"index file is corrupt or in a legacy format: " + err.Error()}
	}
	prior := doc.Build.ConfigFingerprints

	if doc.Build.CLIVersion != in.CLIVersion {
		reasons = append(reasons, "CLI version changed from "+doc.Build.CLIVersion+" to "+in.CLIVersion)
	}
	if doc.Build.Mode != in.Mode {
		reasons = append(reasons, "search mode changed from "+doc.Build.Mode+" to "+in.Mode)
	}
	if doc.Build.EmbeddingTag != in.EmbeddingTag {
		reasons = append(reasons, "embedding provider changed from "+doc.Build.EmbeddingTag+" to "+in.EmbeddingTag)
	}
	if doc.Build.Quantization != in.Quantization {
		reasons = append(reasons, "Model dtype changed from "+doc.Build.Quantization+" to "+in.Quantization)
	}
	if excludeListChanged(doc.Build.ExcludedNames, in.ExcludedNames) {
		reasons = append(reasons, "excluded server list changed")
	}
	reasons = append(reasons, fingerprintTransitions(prior, in.Fingerprints)...)

	return len(reasons) > 0, reasons
}

// excludeListChanged compares two exclude lists as sorted multisets so that
// reordering alone does not trigger a rebuild (spec §4.I).
func excludeListChanged(a, b []string) bool {
	if len(a) != len(b) {
		return true
	}
	sa := append([]string(nil), a...)
	sb := append([]string(nil), b...)
	sort.Strings(sa)
	sort.Strings(sb)
	for i := range sa {
		if sa[i] != sb[i] {
			return true
		}
	}
	return false
}

// fingerprintTransitions compares before/after fingerprints per scope: a
// scope's config file appearing, disappearing, or changing content each
// produce a distinct, named reason (spec §4.I "per-scope fingerprint
// transition").
func fingerprintTransitions(before, after map[config.Scope]config.Fingerprint) []string {
	allScopes := make(map[config.Scope]bool, len(before)+len(after))
	for s := range before {
		allScopes[s] = true
	}
	for s := range after {
		allScopes[s] = true
	}
	scopes := make([]config.Scope, 0, len(allScopes))
	for s := range allScopes {
		scopes = append(scopes, s)
	}
	sort.Slice(scopes, func(i, j int) bool { return scopes[i] < scopes[j] })

	var reasons []string
	for _, s := range scopes {
		b := before[s]
		a := after[s]
		switch {
		case !b.Exists && a.Exists:
			reasons = append(reasons, string(s)+" config added")
		case b.Exists && !a.Exists:
			reasons = append(reasons, string(s)+" config removed")
		case b.Exists && a.Exists && !b.Equal(a):
			reasons = append(reasons, string(s)+" config content changed")
		}
	}
	return reasons
}
