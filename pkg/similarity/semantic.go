package similarity

import (
	"context"
	"math"
	"strings"
	"sync"

	"github.com/m-mizutani/goerr/v2"
)

// Embedder converts a short text into a fixed embedding vector. The real
// implementation is backed by the Gemini embedding model; tests use a
// deterministic stub.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Semantic scores meaning-level resemblance of two short phrases as the
// cosine similarity of their embedding vectors, clamped to [0,1].
//
// Vectors are cached for the process lifetime, so each distinct phrase hits
// the embedding model once. The cache is safe for concurrent readers; the
// comparator fans out many Score calls at a time.
type Semantic struct {
	embedder Embedder

	mu    sync.RWMutex
	cache map[string][]float32
}

// NewSemantic creates a Semantic scorer on top of an embedder
func NewSemantic(embedder Embedder) *Semantic {
	return &Semantic{
		embedder: embedder,
		cache:    make(map[string][]float32),
	}
}

// Score returns the semantic similarity of a and b in [0,1]. Two empty
// phrases score 1.0 and a single empty phrase scores 0.0, mirroring Ratio.
// An embedding failure propagates: a dead model must never be mistaken for
// a 0.0 similarity.
func (s *Semantic) Score(ctx context.Context, a, b string) (float64, error) {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if a == "" && b == "" {
		return 1.0, nil
	}
	if a == "" || b == "" {
		return 0.0, nil
	}

	va, err := s.vector(ctx, a)
	if err != nil {
		return 0, err
	}
	vb, err := s.vector(ctx, b)
	if err != nil {
		return 0, err
	}

	return clamp01(cosineSimilarity(va, vb)), nil
}

func (s *Semantic) vector(ctx context.Context, text string) ([]float32, error) {
	key := strings.ToLower(text)

	s.mu.RLock()
	vec, ok := s.cache[key]
	s.mu.RUnlock()
	if ok {
		return vec, nil
	}

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed text", goerr.Value("text", text))
	}

	s.mu.Lock()
	s.cache[key] = vec
	s.mu.Unlock()

	return vec, nil
}

// cosineSimilarity calculates cosine similarity between two vectors. A zero
// vector or a dimension mismatch yields 0.0 rather than NaN.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
