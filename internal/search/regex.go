package search

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/pleaseai/mcp-please/internal/toolsdata"
)

// RegexStrategy ranks tools by pattern density/position/exactness within
// each tool's searchable text (spec §4.J "Regex"). If the query does not
// compile as a regular expression, it falls back to a literal substring
// match rather than erroring (spec §4.J "literal fallback on compile
// failure").
type RegexStrategy struct{}

// NewRegexStrategy builds a RegexStrategy.
func NewRegexStrategy() *RegexStrategy { return &RegexStrategy{} }

func (s *RegexStrategy) Initialize(_ context.Context) error { return nil }
func (s *RegexStrategy) Dispose() error                      { return nil }

func (s *RegexStrategy) Search(_ context.Context, tools []toolsdata.IndexedTool, q Query) ([]Hit, error) {
	pattern, err := regexp.Compile("(?i)" + q.Text)
	literal := err != nil

	var hits []Hit
	for _, tool := range tools {
		text := tool.SearchableText
		var locs [][]int
		if literal {
			locs = literalMatches(text, q.Text)
		} else {
			locs = pattern.FindAllStringIndex(text, -1)
		}
		if len(locs) == 0 {
			continue
		}
		score := regexScore(text, locs, q.Text)
		hits = append(hits, Hit{Tool: tool, Score: score, MatchType: "regex"})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	hits = normalizeByMax(hits)
	return applyTopKAndThreshold(hits, q), nil
}

func literalMatches(text, needle string) [][]int {
	if needle == "" {
		return nil
	}
	lowerText := strings.ToLower(text)
	lowerNeedle := strings.ToLower(needle)
	var locs [][]int
	start := 0
	for {
		idx := strings.Index(lowerText[start:], lowerNeedle)
		if idx < 0 {
			break
		}
		from := start + idx
		to := from + len(needle)
		locs = append(locs, []int{from, to})
		start = to
	}
	return locs
}

// regexScore composites match density (matched characters per total
// characters), match count, earliest match position, and an exact-match
// bonus into a single bounded score:
//
//	min(1, 2*density + 0.1*matchCount + 0.2*positionBonus + exactMatchBonus)
//
// where positionBonus = 1 - (first match index / text length) and
// exactMatchBonus = 0.3 iff some matched substring, lowercased, equals the
// lowercased query (spec §4.J "Regex").
func regexScore(text string, locs [][]int, query string) float64 {
	if len(text) == 0 {
		return 0
	}
	textLen := float64(len(text))

	var matchedChars int
	var exactMatch bool
	lowerQuery := strings.ToLower(query)
	for _, loc := range locs {
		matchedChars += loc[1] - loc[0]
		if strings.ToLower(text[loc[0]:loc[1]]) == lowerQuery {
			exactMatch = true
		}
	}

	density := float64(matchedChars) / textLen
	matchCount := float64(len(locs))
	positionBonus := 1 - float64(locs[0][0])/textLen
	var exactMatchBonus float64
	if exactMatch {
		exactMatchBonus = 0.3
	}

	score := 2*density + 0.1*matchCount + 0.2*positionBonus + exactMatchBonus
	if score > 1 {
		score = 1
	}
	return math.Round(score*1000) / 1000
}
