// Package chat provides configuration options for the repository Q&A
// pipeline: retrieval, reranking, context assembly, caching, and admission
// control.
package chat

import (
	"fmt"
	"time"

	"github.com/kart-io/codequery/pkg/options"
	"github.com/spf13/pflag"
)

var _ options.IOptions = (*Options)(nil)

// Options contains chat pipeline configuration.
type Options struct {
	// Collection is the vector store collection holding code chunks.
	Collection string `json:"collection" mapstructure:"collection"`

	// EmbeddingDim is the dimension of embedding vectors.
	EmbeddingDim int `json:"embedding-dim" mapstructure:"embedding-dim"`

	// TopK is the number of chunks returned to generation.
	TopK int `json:"top-k" mapstructure:"top-k"`

	// CandidateLimit caps the merged candidate set before reranking.
	CandidateLimit int `json:"candidate-limit" mapstructure:"candidate-limit"`

	// ExpansionLimit caps the number of expanded queries, original included.
	ExpansionLimit int `json:"expansion-limit" mapstructure:"expansion-limit"`

	// DocsFirstOverview routes overview-intent queries to the docs-first
	// scoring profile instead of code-first.
	DocsFirstOverview bool `json:"docs-first-overview" mapstructure:"docs-first-overview"`

	// TieBreakEnabled asks the chat model to break intent classification
	// ties. The tie-break call always bypasses the answer cache.
	TieBreakEnabled bool `json:"tie-break-enabled" mapstructure:"tie-break-enabled"`

	// RerankEnabled turns on LLM-based reranking of top candidates.
	RerankEnabled bool `json:"rerank-enabled" mapstructure:"rerank-enabled"`

	// RerankCandidates is the number of head candidates sent to the
	// reranker; the remainder keeps its hybrid-score order.
	RerankCandidates int `json:"rerank-candidates" mapstructure:"rerank-candidates"`

	// RerankThreshold skips reranking entirely when the candidate window is
	// this size or smaller.
	RerankThreshold int `json:"rerank-threshold" mapstructure:"rerank-threshold"`

	// ContextMaxChars bounds the assembled context block.
	ContextMaxChars int `json:"context-max-chars" mapstructure:"context-max-chars"`

	// ChunkContentMaxChars bounds a single chunk's content inside the
	// context block.
	ChunkContentMaxChars int `json:"chunk-content-max-chars" mapstructure:"chunk-content-max-chars"`

	// HistoryTokenBudget bounds prior conversation turns; approximated at
	// four characters per token.
	HistoryTokenBudget int `json:"history-token-budget" mapstructure:"history-token-budget"`

	// EmitMetaEvent controls the optional meta event on the stream
	// (intent, profile, grounding, latency breakdown).
	EmitMetaEvent bool `json:"emit-meta-event" mapstructure:"emit-meta-event"`

	// Admission configures per-repository concurrency limiting.
	Admission *AdmissionOptions `json:"admission" mapstructure:"admission"`

	// Cache configures the embedding, retrieval, and answer caches.
	Cache *CacheOptions `json:"cache" mapstructure:"cache"`
}

// AdmissionOptions configures the per-repository admission controller.
type AdmissionOptions struct {
	// MaxConcurrent is the permit count per repository.
	MaxConcurrent int `json:"max-concurrent" mapstructure:"max-concurrent"`

	// AcquireTimeout bounds the wait for a permit.
	AcquireTimeout time.Duration `json:"acquire-timeout" mapstructure:"acquire-timeout"`

	// RequestTimeout is the wall-clock deadline for the whole pipeline
	// after a permit is acquired.
	RequestTimeout time.Duration `json:"request-timeout" mapstructure:"request-timeout"`
}

// CacheOptions configures the three cache namespaces and the optional
// distributed tier.
type CacheOptions struct {
	// EmbeddingTTL and EmbeddingSize bound the embedding namespace.
	EmbeddingTTL  time.Duration `json:"embedding-ttl" mapstructure:"embedding-ttl"`
	EmbeddingSize int           `json:"embedding-size" mapstructure:"embedding-size"`

	// RetrievalTTL and RetrievalSize bound the retrieval namespace.
	RetrievalTTL  time.Duration `json:"retrieval-ttl" mapstructure:"retrieval-ttl"`
	RetrievalSize int           `json:"retrieval-size" mapstructure:"retrieval-size"`

	// AnswerTTL and AnswerSize bound the answer namespace.
	AnswerTTL  time.Duration `json:"answer-ttl" mapstructure:"answer-ttl"`
	AnswerSize int           `json:"answer-size" mapstructure:"answer-size"`

	// RedisEnabled turns on the distributed tier.
	RedisEnabled bool `json:"redis-enabled" mapstructure:"redis-enabled"`

	// RedisKeyPrefix namespaces keys in the shared Redis instance.
	RedisKeyPrefix string `json:"redis-key-prefix" mapstructure:"redis-key-prefix"`

	// RedisOpTimeout bounds each distributed-tier operation so Redis
	// latency never stalls the pipeline.
	RedisOpTimeout time.Duration `json:"redis-op-timeout" mapstructure:"redis-op-timeout"`
}

// NewAdmissionOptions creates default admission options.
func NewAdmissionOptions() *AdmissionOptions {
	return &AdmissionOptions{
		MaxConcurrent:  3,
		AcquireTimeout: 10 * time.Second,
		RequestTimeout: 120 * time.Second,
	}
}

// NewCacheOptions creates default cache options.
func NewCacheOptions() *CacheOptions {
	return &CacheOptions{
		EmbeddingTTL:   24 * time.Hour,
		EmbeddingSize:  5000,
		RetrievalTTL:   15 * time.Minute,
		RetrievalSize:  4000,
		AnswerTTL:      time.Hour,
		AnswerSize:     2000,
		RedisEnabled:   false,
		RedisKeyPrefix: "codequery",
		RedisOpTimeout: 250 * time.Millisecond,
	}
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		Collection:           "code_chunks",
		EmbeddingDim:         768,
		TopK:                 6,
		CandidateLimit:       30,
		ExpansionLimit:       6,
		DocsFirstOverview:    true,
		TieBreakEnabled:      true,
		RerankEnabled:        true,
		RerankCandidates:     15,
		RerankThreshold:      5,
		ContextMaxChars:      15000,
		ChunkContentMaxChars: 1800,
		HistoryTokenBudget:   2000,
		EmitMetaEvent:        true,
		Admission:            NewAdmissionOptions(),
		Cache:                NewCacheOptions(),
	}
}

// AddFlags adds flags for chat options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	join := options.Join(prefixes...)

	fs.StringVar(&o.Collection, join+"chat.collection", o.Collection, "Vector store collection holding code chunks.")
	fs.IntVar(&o.EmbeddingDim, join+"chat.embedding-dim", o.EmbeddingDim, "Embedding vector dimension.")
	fs.IntVar(&o.TopK, join+"chat.top-k", o.TopK, "Number of chunks returned to generation.")
	fs.IntVar(&o.CandidateLimit, join+"chat.candidate-limit", o.CandidateLimit, "Merged candidate cap before reranking.")
	fs.IntVar(&o.ExpansionLimit, join+"chat.expansion-limit", o.ExpansionLimit, "Maximum expanded queries, original included.")
	fs.BoolVar(&o.DocsFirstOverview, join+"chat.docs-first-overview", o.DocsFirstOverview, "Use the docs-first profile for overview queries.")
	fs.BoolVar(&o.TieBreakEnabled, join+"chat.tie-break-enabled", o.TieBreakEnabled, "Use the chat model to break intent ties.")
	fs.BoolVar(&o.RerankEnabled, join+"chat.rerank-enabled", o.RerankEnabled, "Enable LLM-based candidate reranking.")
	fs.IntVar(&o.RerankCandidates, join+"chat.rerank-candidates", o.RerankCandidates, "Head candidates sent to the reranker.")
	fs.IntVar(&o.RerankThreshold, join+"chat.rerank-threshold", o.RerankThreshold, "Skip reranking at or below this window size.")
	fs.IntVar(&o.ContextMaxChars, join+"chat.context-max-chars", o.ContextMaxChars, "Assembled context size bound in characters.")
	fs.IntVar(&o.ChunkContentMaxChars, join+"chat.chunk-content-max-chars", o.ChunkContentMaxChars, "Per-chunk content bound in characters.")
	fs.IntVar(&o.HistoryTokenBudget, join+"chat.history-token-budget", o.HistoryTokenBudget, "Token budget for prior conversation turns.")
	fs.BoolVar(&o.EmitMetaEvent, join+"chat.emit-meta-event", o.EmitMetaEvent, "Emit the meta event on chat streams.")

	if o.Admission == nil {
		o.Admission = NewAdmissionOptions()
	}
	fs.IntVar(&o.Admission.MaxConcurrent, join+"chat.admission.max-concurrent", o.Admission.MaxConcurrent, "Concurrent request permits per repository.")
	fs.DurationVar(&o.Admission.AcquireTimeout, join+"chat.admission.acquire-timeout", o.Admission.AcquireTimeout, "Maximum wait for a repository permit.")
	fs.DurationVar(&o.Admission.RequestTimeout, join+"chat.admission.request-timeout", o.Admission.RequestTimeout, "Wall-clock deadline per admitted request.")

	if o.Cache == nil {
		o.Cache = NewCacheOptions()
	}
	fs.DurationVar(&o.Cache.EmbeddingTTL, join+"chat.cache.embedding-ttl", o.Cache.EmbeddingTTL, "Embedding cache entry TTL.")
	fs.IntVar(&o.Cache.EmbeddingSize, join+"chat.cache.embedding-size", o.Cache.EmbeddingSize, "Embedding cache capacity.")
	fs.DurationVar(&o.Cache.RetrievalTTL, join+"chat.cache.retrieval-ttl", o.Cache.RetrievalTTL, "Retrieval cache entry TTL.")
	fs.IntVar(&o.Cache.RetrievalSize, join+"chat.cache.retrieval-size", o.Cache.RetrievalSize, "Retrieval cache capacity.")
	fs.DurationVar(&o.Cache.AnswerTTL, join+"chat.cache.answer-ttl", o.Cache.AnswerTTL, "Answer cache entry TTL.")
	fs.IntVar(&o.Cache.AnswerSize, join+"chat.cache.answer-size", o.Cache.AnswerSize, "Answer cache capacity.")
	fs.BoolVar(&o.Cache.RedisEnabled, join+"chat.cache.redis-enabled", o.Cache.RedisEnabled, "Enable the distributed cache tier.")
	fs.StringVar(&o.Cache.RedisKeyPrefix, join+"chat.cache.redis-key-prefix", o.Cache.RedisKeyPrefix, "Key prefix in the distributed cache.")
	fs.DurationVar(&o.Cache.RedisOpTimeout, join+"chat.cache.redis-op-timeout", o.Cache.RedisOpTimeout, "Per-operation timeout for the distributed tier.")
}

// Validate validates the chat options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Collection == "" {
		errs = append(errs, fmt.Errorf("collection is required"))
	}
	if o.EmbeddingDim <= 0 {
		errs = append(errs, fmt.Errorf("embedding-dim must be positive"))
	}
	if o.TopK <= 0 {
		errs = append(errs, fmt.Errorf("top-k must be positive"))
	}
	if o.CandidateLimit < o.TopK {
		errs = append(errs, fmt.Errorf("candidate-limit must be at least top-k"))
	}
	if o.ExpansionLimit <= 0 {
		errs = append(errs, fmt.Errorf("expansion-limit must be positive"))
	}
	if o.ContextMaxChars <= 0 {
		errs = append(errs, fmt.Errorf("context-max-chars must be positive"))
	}
	if o.Admission != nil {
		if o.Admission.MaxConcurrent <= 0 {
			errs = append(errs, fmt.Errorf("admission.max-concurrent must be positive"))
		}
		if o.Admission.AcquireTimeout <= 0 {
			errs = append(errs, fmt.Errorf("admission.acquire-timeout must be positive"))
		}
		if o.Admission.RequestTimeout <= 0 {
			errs = append(errs, fmt.Errorf("admission.request-timeout must be positive"))
		}
	}
	if o.Cache != nil {
		if o.Cache.EmbeddingSize <= 0 || o.Cache.RetrievalSize <= 0 || o.Cache.AnswerSize <= 0 {
			errs = append(errs, fmt.Errorf("cache sizes must be positive"))
		}
		if o.Cache.RedisEnabled && o.Cache.RedisOpTimeout <= 0 {
			errs = append(errs, fmt.Errorf("cache.redis-op-timeout must be positive when redis is enabled"))
		}
	}
	return errs
}

// Complete completes the chat options with defaults.
func (o *Options) Complete() error {
	if o.Admission == nil {
		o.Admission = NewAdmissionOptions()
	}
	if o.Cache == nil {
		o.Cache = NewCacheOptions()
	}
	if o.RerankCandidates > o.CandidateLimit {
		o.RerankCandidates = o.CandidateLimit
	}
	return nil
}

// HistoryCharBudget converts the token budget to a character budget.
func (o *Options) HistoryCharBudget() int {
	return o.HistoryTokenBudget * 4
}
