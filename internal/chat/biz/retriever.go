package biz

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kart-io/logger"

	"github.com/kart-io/codequery/internal/chat/metrics"
	"github.com/kart-io/codequery/internal/chat/store"
	"github.com/kart-io/codequery/internal/model"
	"github.com/kart-io/codequery/internal/pkg/chat/scoring"
	"github.com/kart-io/codequery/internal/pkg/chat/textutil"
	"github.com/kart-io/codequery/pkg/llm"
)

// searchHeadroom over-fetches raw similarity results so hybrid scoring and
// reranking have candidates to demote.
const searchHeadroom = 3

// RetrieverConfig configures the retrieval orchestrator.
type RetrieverConfig struct {
	// Collection is the base collection name; the repository id is appended.
	Collection string
	// EmbeddingModel is the stable embedding model id used in cache keys.
	EmbeddingModel string
	// CandidateLimit caps the merged candidate set.
	CandidateLimit int
	// RerankEnabled turns on LLM reranking.
	RerankEnabled bool
	// RerankCandidates is the head window sent to the reranker.
	RerankCandidates int
	// RerankThreshold skips reranking at or below this window size.
	RerankThreshold int
	// DocsFirstOverview routes overview queries to the docs-first profile.
	DocsFirstOverview bool
}

// Retriever coordinates intent classification, query expansion, cache-aware
// embedding, hybrid-scored similarity search, and optional reranking.
type Retriever struct {
	store      store.VectorStore
	embed      llm.EmbeddingProvider
	classifier *IntentClassifier
	expander   *QueryExpander
	reranker   *Reranker
	cache      *PipelineCache
	config     *RetrieverConfig
	metrics    *metrics.ChatMetrics
}

// NewRetriever creates the retrieval orchestrator.
func NewRetriever(
	vectorStore store.VectorStore,
	embed llm.EmbeddingProvider,
	classifier *IntentClassifier,
	expander *QueryExpander,
	reranker *Reranker,
	cache *PipelineCache,
	config *RetrieverConfig,
) *Retriever {
	return &Retriever{
		store:      vectorStore,
		embed:      embed,
		classifier: classifier,
		expander:   expander,
		reranker:   reranker,
		cache:      cache,
		config:     config,
		metrics:    metrics.GetChatMetrics(),
	}
}

// CollectionForRepo maps a repository id onto its collection name.
func CollectionForRepo(base, repo string) string {
	if repo == "" {
		return base
	}
	var sb strings.Builder
	for _, r := range strings.ToLower(repo) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		} else {
			sb.WriteRune('_')
		}
	}
	return base + "_" + sb.String()
}

// Retrieve runs the full retrieval phase for one query and returns the
// selected chunks with diagnostics.
func (r *Retriever) Retrieve(ctx context.Context, repo, query string, limit int, mode string, contextFiles []string) (*model.RetrievalResult, error) {
	start := time.Now()

	intent := r.classifier.Classify(ctx, query, mode)
	profile := scoring.ProfileForIntent(intent, r.config.DocsFirstOverview)
	normalized := textutil.NormalizeQuery(query)
	queries := r.expander.Expand(query, intent)

	diag := model.RetrievalDiagnostics{
		RequestID:       uuid.NewString(),
		Intent:          intent,
		Profile:         profile.Name,
		ExpandedQueries: queries,
	}

	retrievalKey := r.cache.RetrievalKey(repo, normalized, intent, profile.Name, contextFiles)
	candidates, cacheHit := r.cache.GetRetrieval(ctx, retrievalKey)
	if !cacheHit {
		var err error
		candidates, err = r.fetchCandidates(ctx, repo, query, queries, limit, profile, contextFiles)
		if err != nil {
			r.metrics.RecordRetrieval(time.Since(start), err)
			return nil, err
		}
		// Populate before reranking so cache entries stay rerank-order
		// independent.
		r.cache.SetRetrieval(ctx, retrievalKey, candidates)
	}
	diag.CacheHit = cacheHit
	diag.CandidateCount = len(candidates)
	diag.RetrievalTimeMS = float64(time.Since(start).Microseconds()) / 1000

	window := candidates
	if r.config.RerankEnabled && len(window) > r.config.RerankThreshold {
		rerankStart := time.Now()
		head := r.config.RerankCandidates
		if head > len(window) {
			head = len(window)
		}
		reranked, fellBack := r.reranker.Rerank(ctx, query, intent, window[:head])
		window = append(append([]model.Chunk(nil), reranked...), window[head:]...)
		diag.Reranked = true
		diag.RerankTimeMS = float64(time.Since(rerankStart).Microseconds()) / 1000
		r.metrics.RecordRerank(time.Since(rerankStart), fellBack)
	}
	// Rerank reorders without dropping, so this equals CandidateCount unless
	// a later change makes the window lossy.
	diag.RerankedCount = len(window)

	if limit > len(window) {
		limit = len(window)
	}
	selected := window[:limit]
	diag.Grounding = groundingLabel(intent, selected)

	r.metrics.RecordRetrieval(time.Since(start), nil)
	logger.Debugw("retrieval complete",
		"request_id", diag.RequestID,
		"intent", intent,
		"profile", profile.Name,
		"candidates", diag.CandidateCount,
		"selected", len(selected),
		"cache_hit", cacheHit,
		"grounding", diag.Grounding,
	)

	return &model.RetrievalResult{
		Chunks:      selected,
		Query:       query,
		Intent:      intent,
		Profile:     profile.Name,
		Diagnostics: diag,
	}, nil
}

// fetchCandidates embeds every expanded query, runs the similarity search
// with headroom, hybrid-scores each result set, and merges by chunk id
// keeping the higher score.
func (r *Retriever) fetchCandidates(ctx context.Context, repo, query string, queries []string, limit int, profile scoring.Weights, contextFiles []string) ([]model.Chunk, error) {
	collection := CollectionForRepo(r.config.Collection, repo)
	terms := textutil.Terms(query)
	fetchLimit := limit * searchHeadroom

	merged := make(map[string]model.Chunk)
	for _, q := range queries {
		embedding, err := r.embedQuery(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("failed to embed query: %w", err)
		}

		raw, err := r.store.Search(ctx, collection, embedding, fetchLimit)
		if err != nil {
			return nil, fmt.Errorf("similarity search failed: %w", err)
		}

		scored := scoring.Score(raw, query, terms, profile, contextFiles, r.config.CandidateLimit)
		for _, c := range scored {
			if existing, ok := merged[c.ID]; !ok || c.Score > existing.Score {
				merged[c.ID] = c
			}
		}
	}

	candidates := make([]model.Chunk, 0, len(merged))
	for _, c := range merged {
		candidates = append(candidates, c)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].ID < candidates[j].ID
	})
	if len(candidates) > r.config.CandidateLimit {
		candidates = candidates[:r.config.CandidateLimit]
	}
	return candidates, nil
}

// embedQuery resolves a query embedding through the embedding cache.
func (r *Retriever) embedQuery(ctx context.Context, query string) ([]float32, error) {
	key := r.cache.EmbeddingKey(textutil.NormalizeQuery(query), r.config.EmbeddingModel)
	if vec, ok := r.cache.GetEmbedding(ctx, key); ok {
		return vec, nil
	}

	vec, err := r.embed.EmbedSingle(ctx, query)
	if err != nil {
		return nil, err
	}
	r.cache.SetEmbedding(ctx, key, vec)
	return vec, nil
}

// groundingLabel grades how well the selection supports the answer. For
// overview intent documentation evidence is required for a "high" label.
func groundingLabel(intent model.Intent, selected []model.Chunk) string {
	if len(selected) == 0 {
		return model.GroundingLow
	}
	if intent != model.IntentOverview {
		return model.GroundingHigh
	}
	for _, c := range selected {
		if textutil.IsDocPath(c.FilePath) {
			return model.GroundingHigh
		}
	}
	return model.GroundingMedium
}

func idsOf(chunks []model.Chunk) []string {
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	return ids
}
