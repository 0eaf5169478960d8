package vectorindex

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"

	"github.com/yanqian/chat-assistant/internal/infra/llm/chatgpt"
)

// Embedder turns question text into a vector. The index owns its embedder
// so callers never handle raw vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ChatGPTEmbedder calls an OpenAI-compatible embeddings API.
type ChatGPTEmbedder struct {
	client *chatgpt.Client
	model  string
}

// NewChatGPTEmbedder constructs an embedder backed by the ChatGPT client.
func NewChatGPTEmbedder(client *chatgpt.Client, model string) *ChatGPTEmbedder {
	return &ChatGPTEmbedder{client: client, model: strings.TrimSpace(model)}
}

// Embed implements Embedder.
func (e *ChatGPTEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	input := strings.TrimSpace(text)
	if input == "" {
		return nil, errors.New("cannot embed empty text")
	}
	resp, err := e.client.CreateEmbedding(ctx, chatgpt.EmbeddingRequest{
		Model: e.model,
		Input: input,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, errors.New("embedding response empty")
	}
	vector := make([]float32, len(resp.Data[0].Embedding))
	copy(vector, resp.Data[0].Embedding)
	return vector, nil
}

// DeterministicEmbedder avoids network calls by hashing text into a
// vector. Useful for dev setups without an API key.
type DeterministicEmbedder struct {
	dim int
}

// NewDeterministicEmbedder constructs the embedder.
func NewDeterministicEmbedder(dim int) *DeterministicEmbedder {
	if dim <= 0 {
		dim = 32
	}
	return &DeterministicEmbedder{dim: dim}
}

// Embed converts the text into a pseudo-random vector.
func (e *DeterministicEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vector := make([]float32, e.dim)
	hash := fnv.New64a()
	_, _ = hash.Write([]byte(text))
	seed := hash.Sum64()
	for i := 0; i < e.dim; i++ {
		seed = seed*1099511628211 + 1469598103934665603
		vector[i] = float32(seed%997) / 997.0
	}
	return vector, nil
}

var (
	_ Embedder = (*ChatGPTEmbedder)(nil)
	_ Embedder = (*DeterministicEmbedder)(nil)
)
