package biz

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/codequery/internal/model"
	"github.com/kart-io/codequery/internal/pkg/chat/textutil"
	chatopts "github.com/kart-io/codequery/pkg/options/chat"
	"github.com/kart-io/codequery/pkg/pool"
	"github.com/kart-io/codequery/pkg/utils/json"
)

// Cache namespace name segments used in distributed keys.
const (
	nsEmbedding = "emb"
	nsRetrieval = "ret"
	nsAnswer    = "ans"
)

// PipelineCache is the multi-tier cache for the chat pipeline: three
// independent namespaces (embedding, retrieval, answer), each a bounded
// in-process expirable LRU plus an optional shared Redis tier.
//
// Lookup checks Redis first, then the in-process tier; a Redis hit is not
// copied backward. Writes go to the in-process tier unconditionally and to
// Redis best-effort on a background pool, so distributed-tier latency or
// failure never surfaces to callers.
type PipelineCache struct {
	opts  *chatopts.CacheOptions
	redis *goredis.Client
	pool  *pool.Pool

	embeddings *expirable.LRU[string, []float32]
	retrievals *expirable.LRU[string, []model.Chunk]
	answers    *expirable.LRU[string, string]

	hits        atomic.Uint64
	misses      atomic.Uint64
	redisErrors atomic.Uint64
}

// NewPipelineCache creates the pipeline cache. redis and workers may be nil;
// the cache then runs in-process only.
func NewPipelineCache(opts *chatopts.CacheOptions, redis *goredis.Client, workers *pool.Pool) *PipelineCache {
	if opts == nil {
		opts = chatopts.NewCacheOptions()
	}
	if !opts.RedisEnabled {
		redis = nil
	}
	return &PipelineCache{
		opts:       opts,
		redis:      redis,
		pool:       workers,
		embeddings: expirable.NewLRU[string, []float32](opts.EmbeddingSize, nil, opts.EmbeddingTTL),
		retrievals: expirable.NewLRU[string, []model.Chunk](opts.RetrievalSize, nil, opts.RetrievalTTL),
		answers:    expirable.NewLRU[string, string](opts.AnswerSize, nil, opts.AnswerTTL),
	}
}

// EmbeddingKey derives the embedding-namespace key from the normalized query
// and the embedding model id.
func (c *PipelineCache) EmbeddingKey(normalizedQuery, modelID string) string {
	return textutil.HashPayload(struct {
		Query string `json:"query"`
		Model string `json:"model"`
	}{normalizedQuery, modelID})
}

// RetrievalKey derives the retrieval-namespace key. Context files are sorted
// so filter order never changes the key.
func (c *PipelineCache) RetrievalKey(repo, normalizedQuery string, intent model.Intent, profile string, contextFiles []string) string {
	files := append([]string(nil), contextFiles...)
	sort.Strings(files)
	return textutil.HashPayload(struct {
		Repo    string   `json:"repo"`
		Query   string   `json:"query"`
		Intent  string   `json:"intent"`
		Profile string   `json:"profile"`
		Files   []string `json:"files"`
	}{repo, normalizedQuery, string(intent), profile, files})
}

// AnswerKey derives the answer-namespace key from the ordered head of the
// selected chunk ids and the chat model id.
func (c *PipelineCache) AnswerKey(repo, normalizedQuestion string, intent model.Intent, chunkIDs []string, modelID string) string {
	if len(chunkIDs) > 12 {
		chunkIDs = chunkIDs[:12]
	}
	return textutil.HashPayload(struct {
		Repo     string   `json:"repo"`
		Question string   `json:"question"`
		Intent   string   `json:"intent"`
		Chunks   []string `json:"chunks"`
		Model    string   `json:"model"`
	}{repo, normalizedQuestion, string(intent), chunkIDs, modelID})
}

// GetEmbedding looks up a query embedding.
func (c *PipelineCache) GetEmbedding(ctx context.Context, key string) ([]float32, bool) {
	if data, ok := c.redisGet(ctx, nsEmbedding, key); ok {
		var vec []float32
		if err := json.Unmarshal(data, &vec); err == nil {
			c.hits.Add(1)
			return vec, true
		}
	}
	if vec, ok := c.embeddings.Get(key); ok {
		c.hits.Add(1)
		return vec, true
	}
	c.misses.Add(1)
	return nil, false
}

// SetEmbedding stores a query embedding.
func (c *PipelineCache) SetEmbedding(ctx context.Context, key string, vec []float32) {
	c.embeddings.Add(key, vec)
	c.redisSetAsync(ctx, nsEmbedding, key, vec, c.opts.EmbeddingTTL)
}

// GetRetrieval looks up a scored candidate set.
func (c *PipelineCache) GetRetrieval(ctx context.Context, key string) ([]model.Chunk, bool) {
	if data, ok := c.redisGet(ctx, nsRetrieval, key); ok {
		var chunks []model.Chunk
		if err := json.Unmarshal(data, &chunks); err == nil {
			c.hits.Add(1)
			return chunks, true
		}
	}
	if chunks, ok := c.retrievals.Get(key); ok {
		c.hits.Add(1)
		return chunks, true
	}
	c.misses.Add(1)
	return nil, false
}

// SetRetrieval stores a scored candidate set.
func (c *PipelineCache) SetRetrieval(ctx context.Context, key string, chunks []model.Chunk) {
	c.retrievals.Add(key, chunks)
	c.redisSetAsync(ctx, nsRetrieval, key, chunks, c.opts.RetrievalTTL)
}

// GetAnswer looks up a finalized answer.
func (c *PipelineCache) GetAnswer(ctx context.Context, key string) (string, bool) {
	if data, ok := c.redisGet(ctx, nsAnswer, key); ok {
		var answer string
		if err := json.Unmarshal(data, &answer); err == nil {
			c.hits.Add(1)
			return answer, true
		}
	}
	if answer, ok := c.answers.Get(key); ok {
		c.hits.Add(1)
		return answer, true
	}
	c.misses.Add(1)
	return "", false
}

// SetAnswer stores a finalized answer.
func (c *PipelineCache) SetAnswer(ctx context.Context, key string, answer string) {
	c.answers.Add(key, answer)
	c.redisSetAsync(ctx, nsAnswer, key, answer, c.opts.AnswerTTL)
}

// redisGet reads one key from the distributed tier. Errors are counted and
// logged, never returned.
func (c *PipelineCache) redisGet(ctx context.Context, namespace, key string) ([]byte, bool) {
	if c.redis == nil {
		return nil, false
	}

	opCtx, cancel := context.WithTimeout(ctx, c.opts.RedisOpTimeout)
	defer cancel()

	data, err := c.redis.Get(opCtx, c.redisKey(namespace, key)).Bytes()
	if err != nil {
		if err != goredis.Nil {
			c.redisErrors.Add(1)
			logger.Warnw("distributed cache read failed", "namespace", namespace, "error", err.Error())
		}
		return nil, false
	}
	return data, true
}

// redisSetAsync writes one key to the distributed tier on the background
// pool. The write is best-effort and detached from the request context.
func (c *PipelineCache) redisSetAsync(ctx context.Context, namespace, key string, value any, ttl time.Duration) {
	if c.redis == nil {
		return
	}

	data, err := json.Marshal(value)
	if err != nil {
		logger.Warnw("failed to marshal cache value", "namespace", namespace, "error", err.Error())
		return
	}

	redisKey := c.redisKey(namespace, key)
	write := func() {
		opCtx, cancel := context.WithTimeout(context.Background(), c.opts.RedisOpTimeout)
		defer cancel()
		if err := c.redis.Set(opCtx, redisKey, data, ttl).Err(); err != nil {
			c.redisErrors.Add(1)
			logger.Warnw("distributed cache write failed", "namespace", namespace, "error", err.Error())
		}
	}

	if c.pool != nil {
		if err := c.pool.Submit(write); err == nil {
			return
		}
		// Pool full or closed: fall through to the synchronous bounded write.
	}
	write()
}

func (c *PipelineCache) redisKey(namespace, key string) string {
	return c.opts.RedisKeyPrefix + ":" + namespace + ":" + key
}

// Stats returns a snapshot of cache counters and per-namespace sizes.
func (c *PipelineCache) Stats() map[string]interface{} {
	hits := c.hits.Load()
	misses := c.misses.Load()
	total := hits + misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return map[string]interface{}{
		"hits":               hits,
		"misses":             misses,
		"hit_rate":           hitRate,
		"distributed_errors": c.redisErrors.Load(),
		"sizes": map[string]interface{}{
			"embedding": c.embeddings.Len(),
			"retrieval": c.retrievals.Len(),
			"answer":    c.answers.Len(),
		},
	}
}
