package biz

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kart-io/codequery/internal/model"
)

func rerankChunks() []model.Chunk {
	return []model.Chunk{
		{ID: "c1", FilePath: "a.go", Type: "function"},
		{ID: "c2", FilePath: "b.go", Type: "function"},
		{ID: "c3", FilePath: "README.md", Type: "documentation"},
	}
}

func TestRerankStrictJSON(t *testing.T) {
	provider := &fakeChatProvider{response: `{"ranking": ["c3", "c1", "c2"]}`}
	r := NewReranker(provider)

	out, fellBack := r.Rerank(context.Background(), "what is this project", model.IntentOverview, rerankChunks())
	assert.False(t, fellBack)
	assert.Equal(t, []string{"c3", "c1", "c2"}, idsOf(out))
	assert.True(t, provider.lastNoCache, "rerank calls must bypass provider caching")
}

func TestRerankEmbeddedJSON(t *testing.T) {
	provider := &fakeChatProvider{response: "Sure, here is the ranking:\n```json\n{\"ranking\": [\"c2\", \"c3\", \"c1\"]}\n```\nHope that helps."}
	r := NewReranker(provider)

	out, fellBack := r.Rerank(context.Background(), "q", model.IntentImplementation, rerankChunks())
	assert.False(t, fellBack)
	assert.Equal(t, []string{"c2", "c3", "c1"}, idsOf(out))
}

func TestRerankIDTokenScan(t *testing.T) {
	provider := &fakeChatProvider{response: "Most relevant first: c2, then c1, finally c3."}
	r := NewReranker(provider)

	out, fellBack := r.Rerank(context.Background(), "q", model.IntentImplementation, rerankChunks())
	assert.False(t, fellBack)
	assert.Equal(t, []string{"c2", "c1", "c3"}, idsOf(out))
}

func TestRerankUnparseableKeepsOriginalOrder(t *testing.T) {
	provider := &fakeChatProvider{response: "I cannot help with that."}
	r := NewReranker(provider)

	out, fellBack := r.Rerank(context.Background(), "q", model.IntentImplementation, rerankChunks())
	assert.True(t, fellBack)
	assert.Equal(t, []string{"c1", "c2", "c3"}, idsOf(out))
}

func TestRerankCallErrorKeepsOriginalOrder(t *testing.T) {
	provider := &fakeChatProvider{err: errors.New("provider unavailable")}
	r := NewReranker(provider)

	out, fellBack := r.Rerank(context.Background(), "q", model.IntentImplementation, rerankChunks())
	assert.True(t, fellBack)
	assert.Equal(t, []string{"c1", "c2", "c3"}, idsOf(out))
}

func TestRerankUnknownIDsDroppedMissingAppended(t *testing.T) {
	// The model hallucinates "c9" and omits "c2"; the unknown id is dropped
	// and the omitted chunk lands after the ranked ones in original order.
	provider := &fakeChatProvider{response: `{"ranking": ["c3", "c9", "c1"]}`}
	r := NewReranker(provider)

	out, fellBack := r.Rerank(context.Background(), "q", model.IntentImplementation, rerankChunks())
	assert.False(t, fellBack)
	assert.Equal(t, []string{"c3", "c1", "c2"}, idsOf(out))
}

func TestRerankDuplicateIDsCollapsed(t *testing.T) {
	provider := &fakeChatProvider{response: `{"ranking": ["c2", "c2", "c1", "c3"]}`}
	r := NewReranker(provider)

	out, _ := r.Rerank(context.Background(), "q", model.IntentImplementation, rerankChunks())
	assert.Equal(t, []string{"c2", "c1", "c3"}, idsOf(out))
}

func TestRerankSkipsSmallSets(t *testing.T) {
	provider := &fakeChatProvider{response: `{"ranking": ["c1"]}`}
	r := NewReranker(provider)

	single := []model.Chunk{{ID: "c1"}}
	out, fellBack := r.Rerank(context.Background(), "q", model.IntentImplementation, single)
	assert.False(t, fellBack)
	assert.Equal(t, single, out)
	assert.Equal(t, int32(0), provider.calls.Load())
}

func TestRerankNilProvider(t *testing.T) {
	r := NewReranker(nil)
	chunks := rerankChunks()

	out, fellBack := r.Rerank(context.Background(), "q", model.IntentImplementation, chunks)
	assert.False(t, fellBack)
	assert.Equal(t, chunks, out)
}
