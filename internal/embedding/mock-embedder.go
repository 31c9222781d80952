package embedding

import (
	"context"
	"math"
	"strings"

	"github.com/hyperjump/docreader/pkg/utils"
)

// wordWeight scales the hashed word features against the whole-text signature.
const wordWeight = 0.25

// MockEmbedder is a deterministic embedder for `provider: mock` and tests. Each vector is a
// signature of the whole text plus hashed word features, so equal texts embed identically and
// texts sharing words land closer together. It carries no real semantics.
type MockEmbedder struct {
	dimensions int
}

// NewMockEmbedder returns a MockEmbedder. dimensions <= 0 means 384.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &MockEmbedder{dimensions: dimensions}
}

// Embed returns a unit-length vector for text.
func (e *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	emb := make([]float32, e.dimensions)
	h := HashString(text)
	for i := range emb {
		emb[i] = float32(math.Sin(float64(h*(i+1)))*0.1 + 0.01)
	}
	for _, word := range SplitWords(strings.ToLower(text)) {
		wh := HashString(word)
		sign := float32(1)
		if (wh/e.dimensions)%2 == 1 {
			sign = -1
		}
		emb[wh%e.dimensions] += sign * wordWeight
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

func (e *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, e, texts)
}

func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

func (e *MockEmbedder) Close() error {
	return nil
}
