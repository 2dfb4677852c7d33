package biz

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/kart-io/codequery/internal/chat/store"
	"github.com/kart-io/codequery/internal/model"
	"github.com/kart-io/codequery/pkg/llm"
)

// fakeChatProvider scripts chat responses for pipeline tests.
type fakeChatProvider struct {
	mu           sync.Mutex
	response     string
	err          error
	streamDeltas []llm.StreamDelta
	streamErr    error

	calls        atomic.Int32
	streamCalls  atomic.Int32
	lastMessages []llm.Message
	lastNoCache  bool
}

func (f *fakeChatProvider) Name() string { return "fake" }

func (f *fakeChatProvider) Chat(_ context.Context, messages []llm.Message, opts ...llm.GenerateOption) (string, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.lastMessages = messages
	f.lastNoCache = llm.ApplyOptions(opts...).NoCache
	f.mu.Unlock()
	return f.response, f.err
}

func (f *fakeChatProvider) ChatStream(_ context.Context, messages []llm.Message, _ ...llm.GenerateOption) (<-chan llm.StreamDelta, error) {
	f.streamCalls.Add(1)
	f.mu.Lock()
	f.lastMessages = messages
	f.mu.Unlock()
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	out := make(chan llm.StreamDelta, len(f.streamDeltas)+1)
	for _, d := range f.streamDeltas {
		out <- d
	}
	close(out)
	return out, nil
}

// fakeEmbedProvider returns a fixed vector.
type fakeEmbedProvider struct {
	vec   []float32
	err   error
	calls atomic.Int32
}

func (f *fakeEmbedProvider) Name() string { return "fake-embed" }

func (f *fakeEmbedProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, nil
}

func (f *fakeEmbedProvider) EmbedSingle(_ context.Context, _ string) ([]float32, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.vec, nil
}

// fakeStore serves a fixed chunk set.
type fakeStore struct {
	chunks      []model.Chunk
	err         error
	exists      bool
	searchCalls atomic.Int32
}

func (f *fakeStore) EnsureCollection(_ context.Context, _ *store.CollectionConfig) error { return nil }

func (f *fakeStore) HasCollection(_ context.Context, _ string) (bool, error) {
	return f.exists, f.err
}

func (f *fakeStore) Insert(_ context.Context, _ string, _ []model.Chunk, _ [][]float32) error {
	return nil
}

func (f *fakeStore) Search(_ context.Context, _ string, _ []float32, _ int) ([]model.Chunk, error) {
	f.searchCalls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	out := make([]model.Chunk, len(f.chunks))
	copy(out, f.chunks)
	return out, nil
}

func (f *fakeStore) Stats(_ context.Context, _ string) (int64, error) {
	return int64(len(f.chunks)), nil
}

func (f *fakeStore) Close(_ context.Context) error { return nil }

var _ store.VectorStore = (*fakeStore)(nil)
