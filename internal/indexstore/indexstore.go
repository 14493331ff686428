// Package indexstore implements the Index Store (spec §4.H): versioned,
// atomically-written JSON persistence for a single scope's tool index.
package indexstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/gofrs/flock"

	"github.com/pleaseai/mcp-please/internal/buildinfo"
	"github.com/pleaseai/mcp-please/internal/config"
	"github.com/pleaseai/mcp-please/internal/indexer"
	"github.com/pleaseai/mcp-please/internal/logger"
	"github.com/pleaseai/mcp-please/internal/toolsdata"
)

// FormatMajor is bumped on breaking changes to the persisted shape; a
// mismatch is a hard error rather than a best-effort migration (spec §4.H
// "major-mismatch hard error").
const FormatMajor = 1

// FormatMinor/FormatPatch are informational only and never gate loading.
const (
	FormatMinor = 0
	FormatPatch = 0
)

// ErrLegacyIndex is returned when a persisted index predates FormatMajor or
// cannot be parsed as the current shape at all.
var ErrLegacyIndex = errors.New("indexstore: index file is in a legacy or unrecognized format")

// ErrMajorMismatch is returned when a persisted index's major version
// differs from FormatMajor.
var ErrMajorMismatch = errors.New("indexstore: index format major version is not supported by this build")

// BuildMetadata records how an index was produced (spec §3 "persisted
// build metadata").
type BuildMetadata struct {
	CLIVersion         string                               `json:"cliVersion"`
	BuiltAt            time.Time                            `json:"builtAt"`
	Mode               string                               `json:"mode"`
	EmbeddingTag       string                               `json:"embeddingTag,omitempty"`
	Quantization       string                               `json:"quantization,omitempty"`
	ExcludedNames      []string                             `json:"excludedNames,omitempty"`
	ConfigFingerprints map[config.Scope]config.Fingerprint `json:"configFingerprints,omitempty"`
}

// Document is the single JSON document persisted for one scope's index
// (spec §4.H "a single JSON document" invariant).
type Document struct {
	FormatMajor int                      `json:"formatMajor"`
	FormatMinor int                      `json:"formatMinor"`
	FormatPatch int                      `json:"formatPatch"`
	Build       BuildMetadata            `json:"build"`
	Stats       indexer.CorpusStats      `json:"stats"`
	Tools       []toolsdata.IndexedTool  `json:"tools"`
}

// NewDocument wraps a build result into a persistable Document, stamping
// the current format version and build metadata. fingerprints is recorded
// verbatim so a later invocation's Regeneration Detector check can compare
// against "the fingerprint snapshot from the last time this scope was
// indexed" (spec §4.I) without needing a side file.
func NewDocument(result *indexer.Result, mode, embeddingTag, quantization string, excludedNames []string, fingerprints map[config.Scope]config.Fingerprint) *Document {
	return &Document{
		FormatMajor: FormatMajor,
		FormatMinor: FormatMinor,
		FormatPatch: FormatPatch,
		Build: BuildMetadata{
			CLIVersion:         buildinfo.Version,
			BuiltAt:            time.Now(),
			Mode:               mode,
			EmbeddingTag:       embeddingTag,
			Quantization:       quantization,
			ExcludedNames:      excludedNames,
			ConfigFingerprints: fingerprints,
		},
		Stats: result.Stats,
		Tools: result.Tools,
	}
}

// HasEmbeddings reports whether any indexed tool carries a non-empty vector.
func (d *Document) HasEmbeddings() bool {
	for _, t := range d.Tools {
		if len(t.Embedding) > 0 {
			return true
		}
	}
	return false
}

// ProjectPath returns the project-scope index path under cwd.
func ProjectPath(cwd string) string {
	return filepath.Join(cwd, ".please", "mcp", "index.json")
}

// UserPath returns the user-scope index path under the home directory.
func UserPath() string {
	return filepath.Join(xdg.Home, ".please", "mcp", "index.json")
}

// Exists reports whether a document is present at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// GetMetadata loads the document at path without holding a lock and returns
// only its build metadata and stats.
func GetMetadata(path string) (*BuildMetadata, *indexer.CorpusStats, error) {
	doc, err := Load(path)
	if err != nil {
		return nil, nil, err
	}
	return &doc.Build, &doc.Stats, nil
}

// Load reads and parses the document at path, validating its format
// version (spec §4.H/§4.I).
func Load(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("indexstore: read %s: %w", path, err)
	}

	var probe struct {
		FormatMajor *int `json:"formatMajor"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil || probe.FormatMajor == nil {
		return nil, fmt.Errorf("%w: %s", ErrLegacyIndex, path)
	}
	if *probe.FormatMajor != FormatMajor {
		return nil, fmt.Errorf("%w: file declares major %d, this build supports %d", ErrMajorMismatch, *probe.FormatMajor, FormatMajor)
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("indexstore: decode %s: %w", path, err)
	}
	return &doc, nil
}

// CreateEmpty writes a zero-tool document at path, creating parent
// directories as needed. Its build metadata records only the CLI version,
// build time, and mode.
func CreateEmpty(path, mode string) error {
	doc := &Document{
		FormatMajor: FormatMajor,
		FormatMinor: FormatMinor,
		FormatPatch: FormatPatch,
		Build: BuildMetadata{
			CLIVersion: buildinfo.Version,
			BuiltAt:    time.Now(),
			Mode:       mode,
		},
		Stats: indexer.CorpusStats{DocumentFrequency: map[string]int{}},
		Tools: []toolsdata.IndexedTool{},
	}
	return Save(path, doc)
}

// Save atomically rewrites the document at path under an exclusive file
// lock: write to a temp file in the same directory, fsync, then rename
// (spec §4.H "atomic whole-file rewrite").
func Save(path string, doc *Document) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("indexstore: create %s: %w", dir, err)
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("indexstore: acquire lock for %s: %w", path, err)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warnf("indexstore: failed to release lock for %s: %v", path, err)
		}
	}()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("indexstore: marshal document: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".index-*.json.tmp")
	if err != nil {
		return fmt.Errorf("indexstore: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("indexstore: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("indexstore: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("indexstore: close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("indexstore: rename into place: %w", err)
	}
	return nil
}
