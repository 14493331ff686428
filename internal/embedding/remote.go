package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/pleaseai/mcp-please/internal/networking"
)

// openaiDimension is the native size of OpenAI's small embedding model;
// larger models are reachable via Config.Tag but default to this size
// unless Config.Dimensions truncates it.
const openaiDimension = 1536

// voyageDimension is the native size of Voyage's default embedding model.
const voyageDimension = 1024

type restEmbeddingProvider struct {
	endpoint     string
	apiKey       string
	model        string
	nativeDim    int
	truncateDims int
	httpClient   *http.Client
	buildRequest func(texts []string) any
	parseVectors func(body []byte) ([][]float32, error)
}

func newOpenAIProvider(cfg Config) (Provider, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("embedding: OPENAI_API_KEY is not set")
	}
	model := modelFromTag(cfg.Tag, "text-embedding-3-small")

	return &restEmbeddingProvider{
		endpoint:     "https://api.openai.com/v1/embeddings",
		apiKey:       apiKey,
		model:        model,
		nativeDim:    openaiDimension,
		truncateDims: cfg.Dimensions,
		httpClient:   networking.NewHTTPClient(30 * time.Second),
		buildRequest: func(texts []string) any {
			return openaiEmbeddingRequest{Model: model, Input: texts}
		},
		parseVectors: parseOpenAIResponse,
	}, nil
}

func newVoyageProvider(cfg Config) (Provider, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("VOYAGE_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("embedding: VOYAGE_API_KEY is not set")
	}
	model := modelFromTag(cfg.Tag, "voyage-3")

	return &restEmbeddingProvider{
		endpoint:     "https://api.voyageai.com/v1/embeddings",
		apiKey:       apiKey,
		model:        model,
		nativeDim:    voyageDimension,
		truncateDims: cfg.Dimensions,
		httpClient:   networking.NewHTTPClient(30 * time.Second),
		buildRequest: func(texts []string) any {
			return voyageEmbeddingRequest{Model: model, Input: texts}
		},
		parseVectors: parseVoyageResponse,
	}, nil
}

func modelFromTag(tag, fallback string) string {
	_, model, found := cutTag(tag)
	if !found || model == "" {
		return fallback
	}
	return model
}

func cutTag(tag string) (location, model string, found bool) {
	for i := 0; i < len(tag); i++ {
		if tag[i] == ':' {
			return tag[:i], tag[i+1:], true
		}
	}
	return tag, "", false
}

func (p *restEmbeddingProvider) Initialize(_ context.Context) error { return nil }

func (p *restEmbeddingProvider) Dimension() int {
	if p.truncateDims > 0 && p.truncateDims < p.nativeDim {
		return p.truncateDims
	}
	return p.nativeDim
}

func (p *restEmbeddingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (p *restEmbeddingProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(p.buildRequest(texts))
	if err != nil {
		return nil, fmt.Errorf("embedding: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embedding: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding: request to %s failed: %w", p.endpoint, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("embedding: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding: %s returned status %d: %s", p.endpoint, resp.StatusCode, string(respBody))
	}

	vecs, err := p.parseVectors(respBody)
	if err != nil {
		return nil, err
	}
	for i, v := range vecs {
		vecs[i] = Truncate(v, p.truncateDims)
	}
	return vecs, nil
}

func (p *restEmbeddingProvider) Dispose() error { return nil }

type openaiEmbeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openaiEmbeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

func parseOpenAIResponse(body []byte) ([][]float32, error) {
	var parsed openaiEmbeddingResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("embedding: decode OpenAI response: %w", err)
	}
	out := make([][]float32, len(parsed.Data))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(out) {
			continue
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

type voyageEmbeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type voyageEmbeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

func parseVoyageResponse(body []byte) ([][]float32, error) {
	var parsed voyageEmbeddingResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("embedding: decode Voyage response: %w", err)
	}
	out := make([][]float32, len(parsed.Data))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(out) {
			continue
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}
