package gateway

import (
	"os"
	"sync"
	"time"

	"github.com/pleaseai/mcp-please/internal/indexer"
	"github.com/pleaseai/mcp-please/internal/indexstore"
	"github.com/pleaseai/mcp-please/internal/logger"
	"github.com/pleaseai/mcp-please/internal/toolsdata"
)

// MergedIndex is the user+project index combined into a single searchable
// corpus (spec §4.L "merged index"). Project-scope tools override
// user-scope tools of the same name.
type MergedIndex struct {
	Tools []toolsdata.IndexedTool
	Stats indexer.CorpusStats
	// HasEmbeddings is true if either source document carried embeddings.
	HasEmbeddings bool
	// EmbeddingTag is the "location:model" tag embeddings were built with,
	// needed to embed query text with a matching provider at search time.
	// Project scope wins when both documents set one.
	EmbeddingTag string
}

// IndexCache holds the process-lifetime merged index, rebuilt lazily on
// first use and invalidated whenever either source file's mtime changes
// (e.g. after a fresh "please index" run) (spec §4.L "process-lifetime
// cache").
type IndexCache struct {
	userPath, projectPath string

	mu        sync.Mutex
	merged    *MergedIndex
	userMod   time.Time
	projMod   time.Time
}

// NewIndexCache builds a cache over the given user and project index paths.
func NewIndexCache(userPath, projectPath string) *IndexCache {
	return &IndexCache{userPath: userPath, projectPath: projectPath}
}

// Get returns the current merged index, rebuilding it if either source file
// has changed (by mtime) since the last build, or if this is the first call.
func (c *IndexCache) Get() (*MergedIndex, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	userMod := statMod(c.userPath)
	projMod := statMod(c.projectPath)

	if c.merged != nil && userMod.Equal(c.userMod) && projMod.Equal(c.projMod) {
		return c.merged, nil
	}

	merged, err := BuildMergedIndex(c.userPath, c.projectPath)
	if err != nil {
		return nil, err
	}
	c.merged = merged
	c.userMod = userMod
	c.projMod = projMod
	return merged, nil
}

// Invalidate forces the next Get to rebuild regardless of mtimes.
func (c *IndexCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.merged = nil
}

func statMod(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

// BuildMergedIndex loads the user and project index documents (either or
// both may be absent) and combines them: tools are deduplicated by name
// with project entries overriding user entries, and BM25 corpus statistics
// are combined (summed document counts, length-weighted average document
// length, summed per-term document frequencies) so BM25 scoring over the
// merged corpus remains consistent (spec §4.L "combined BM25 stats").
func BuildMergedIndex(userPath, projectPath string) (*MergedIndex, error) {
	userDoc, userErr := loadIfExists(userPath)
	projDoc, projErr := loadIfExists(projectPath)
	if userErr != nil {
		logger.Warnf("gateway: user index at %s unreadable, ignoring: %v", userPath, userErr)
	}
	if projErr != nil {
		logger.Warnf("gateway: project index at %s unreadable, ignoring: %v", projectPath, projErr)
	}

	byName := make(map[string]toolsdata.IndexedTool)
	order := make([]string, 0)

	addAll := func(doc *indexstore.Document, scope string) {
		if doc == nil {
			return
		}
		for _, t := range doc.Tools {
			if _, exists := byName[t.Tool.Name]; !exists {
				order = append(order, t.Tool.Name)
			} else if logger.DebugEnabled() {
				logger.Debugf("gateway: %s-scope tool %q overrides an earlier entry", scope, t.Tool.Name)
			}
			byName[t.Tool.Name] = t
		}
	}
	// User added first so project entries overlay (override) it below.
	addAll(userDoc, "user")
	addAll(projDoc, "project")

	tools := make([]toolsdata.IndexedTool, 0, len(order))
	for _, name := range order {
		tools = append(tools, byName[name])
	}

	stats := combineStats(userDoc, projDoc)
	hasEmbeddings := (userDoc != nil && userDoc.HasEmbeddings()) || (projDoc != nil && projDoc.HasEmbeddings())

	embeddingTag := ""
	if userDoc != nil {
		embeddingTag = userDoc.Build.EmbeddingTag
	}
	if projDoc != nil && projDoc.Build.EmbeddingTag != "" {
		embeddingTag = projDoc.Build.EmbeddingTag
	}

	return &MergedIndex{Tools: tools, Stats: stats, HasEmbeddings: hasEmbeddings, EmbeddingTag: embeddingTag}, nil
}

func loadIfExists(path string) (*indexstore.Document, error) {
	if path == "" || !indexstore.Exists(path) {
		return nil, nil
	}
	return indexstore.Load(path)
}

func combineStats(docs ...*indexstore.Document) indexer.CorpusStats {
	var totalDocs int
	var weightedLenSum float64
	freq := make(map[string]int)

	for _, d := range docs {
		if d == nil {
			continue
		}
		totalDocs += d.Stats.TotalDocuments
		weightedLenSum += d.Stats.AvgDocLength * float64(d.Stats.TotalDocuments)
		for term, df := range d.Stats.DocumentFrequency {
			freq[term] += df
		}
	}

	avgLen := 0.0
	if totalDocs > 0 {
		avgLen = weightedLenSum / float64(totalDocs)
	}

	return indexer.CorpusStats{
		TotalDocuments:    totalDocs,
		AvgDocLength:      avgLen,
		DocumentFrequency: freq,
	}
}
