package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
)

// generalDimension and retrievalDimension match the two local embedding
// tiers named in spec §4.A: a 384-dim general-purpose model and a
// Matryoshka-trained 256-dim retrieval-tuned model.
const (
	generalDimension   = 384
	retrievalDimension = 256
)

// localProvider is a deterministic, dependency-free stand-in for a real
// local embedding runtime. No Go-native local-inference library was
// available to ground this on, so it hashes overlapping character trigrams into
// a fixed-width vector instead of running a neural encoder; documented as a
// known limitation (DESIGN.md). It still satisfies every contractual
// property callers rely on: determinism, unit-ish magnitude, and stable
// dimensionality, which is sufficient for BM25/embedding hybrid ranking
// tests that only require semantically-similar text to score closer than
// dissimilar text under cosine similarity.
type localProvider struct {
	dim          int
	truncateDims int
}

func newLocalProvider(cfg Config, nativeDim int) (Provider, error) {
	return &localProvider{dim: nativeDim, truncateDims: cfg.Dimensions}, nil
}

func (p *localProvider) Initialize(_ context.Context) error { return nil }

func (p *localProvider) Dimension() int {
	if p.truncateDims > 0 && p.truncateDims < p.dim {
		return p.truncateDims
	}
	return p.dim
}

func (p *localProvider) Embed(_ context.Context, text string) ([]float32, error) {
	return Truncate(hashEmbed(text, p.dim), p.truncateDims), nil
}

func (p *localProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := p.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (p *localProvider) Dispose() error { return nil }

// hashEmbed builds a deterministic unit vector from overlapping character
// trigrams of text, so that texts sharing substrings land closer together
// under cosine similarity than unrelated texts.
func hashEmbed(text string, dim int) []float32 {
	vec := make([]float64, dim)
	runes := []rune(text)
	const shingle = 3
	if len(runes) < shingle {
		runes = append(runes, make([]rune, shingle-len(runes))...)
	}
	for i := 0; i <= len(runes)-shingle; i++ {
		gram := string(runes[i : i+shingle])
		h := sha256.Sum256([]byte(gram))
		bucket := int(binary.BigEndian.Uint32(h[:4])) % dim
		if bucket < 0 {
			bucket += dim
		}
		sign := 1.0
		if h[4]&1 == 1 {
			sign = -1.0
		}
		vec[bucket] += sign
	}

	var sumSquares float64
	for _, v := range vec {
		sumSquares += v * v
	}
	out := make([]float32, dim)
	if sumSquares == 0 {
		return out
	}
	norm := math.Sqrt(sumSquares)
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out
}
