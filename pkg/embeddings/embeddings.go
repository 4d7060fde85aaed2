package embeddings

import (
	"fmt"
	"math"
)

// Provider turns text into embedding vectors.
type Provider interface {
	Embed(text string) ([]float32, error)
	EmbedBatch(texts []string) ([][]float32, error)
	Dimension() int
}

// LocalProvider produces deterministic hash-derived vectors. It needs no
// network and gives stable, repeatable results, which makes it the default
// for development and the fixture for tests.
type LocalProvider struct {
	dimension int
}

func NewLocalProvider(dimension int) *LocalProvider {
	if dimension <= 0 {
		dimension = 384
	}
	return &LocalProvider{dimension: dimension}
}

func (p *LocalProvider) Embed(text string) ([]float32, error) {
	vectors, err := p.EmbedBatch([]string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (p *LocalProvider) EmbedBatch(texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = p.embedOne(text)
	}
	return vectors, nil
}

func (p *LocalProvider) embedOne(text string) []float32 {
	vector := make([]float32, p.dimension)

	hash := 0
	for _, ch := range text {
		hash = hash*31 + int(ch)
	}

	var sum float64
	for j := 0; j < p.dimension; j++ {
		hash = (hash*1103515245 + 12345) & 0x7fffffff
		v := float32(hash%1000)/1000.0 - 0.5
		vector[j] = v
		sum += float64(v) * float64(v)
	}

	// Normalize so cosine distance behaves
	if sum > 0 {
		norm := float32(1.0 / math.Sqrt(sum))
		for j := range vector {
			vector[j] *= norm
		}
	}

	return vector
}

func (p *LocalProvider) Dimension() int {
	return p.dimension
}

// NewProvider builds a provider from configuration. Unknown provider names
// fall back to the local provider rather than failing startup.
func NewProvider(name, endpoint, apiKey, model string, dimension int) (Provider, error) {
	switch name {
	case "openai":
		if apiKey == "" {
			return nil, fmt.Errorf("openai embedding provider requires an API key")
		}
		return NewOpenAIProvider(endpoint, apiKey, model, dimension), nil
	case "local", "":
		return NewLocalProvider(dimension), nil
	default:
		return NewLocalProvider(dimension), nil
	}
}
