// Package model provides data models for the codequery platform.
package model

// Intent is the classified purpose of a chat query. It selects the system
// prompt template, the scoring profile, and the query expansion heuristics.
type Intent string

const (
	IntentOverview        Intent = "overview"
	IntentImplementation  Intent = "implementation"
	IntentTechStack       Intent = "tech_stack"
	IntentLocation        Intent = "location"
	IntentTroubleshooting Intent = "troubleshooting"
)

// Valid reports whether the intent is one of the known literals.
func (i Intent) Valid() bool {
	switch i {
	case IntentOverview, IntentImplementation, IntentTechStack, IntentLocation, IntentTroubleshooting:
		return true
	}
	return false
}

// ParseIntent converts a caller-supplied mode string into an Intent.
// The second return value is false when the string is not a known intent
// literal (including the "auto" pseudo-mode).
func ParseIntent(mode string) (Intent, bool) {
	in := Intent(mode)
	if in.Valid() {
		return in, true
	}
	return "", false
}

// ChunkType tags the granularity of an evidence chunk as produced by the
// external indexer.
type ChunkType string

const (
	ChunkTypeFunction    ChunkType = "function"
	ChunkTypeClass       ChunkType = "class"
	ChunkTypeMethod      ChunkType = "method"
	ChunkTypeModule      ChunkType = "module"
	ChunkTypeFileSummary ChunkType = "file_summary"
	ChunkTypeRawFile     ChunkType = "raw_file"
)

// Chunk is a unit of repository evidence retrieved from the vector index.
// Chunks are produced by the external indexer and are read-only to the chat
// pipeline; Score is the only field the pipeline rewrites.
type Chunk struct {
	ID        string            `json:"id"`
	Content   string            `json:"content"`
	FilePath  string            `json:"file_path"`
	StartLine int               `json:"start_line"`
	EndLine   int               `json:"end_line"`
	Type      ChunkType         `json:"chunk_type"`
	Name      string            `json:"chunk_name,omitempty"`
	Language  string            `json:"language,omitempty"`
	Score     float64           `json:"score"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// RetrievalDiagnostics captures per-request retrieval observations. It is
// produced fresh on every request and never feeds back into pipeline
// behavior.
type RetrievalDiagnostics struct {
	RequestID       string   `json:"request_id"`
	Intent          Intent   `json:"intent"`
	Profile         string   `json:"profile"`
	ExpandedQueries []string `json:"queries"`
	CandidateCount  int      `json:"candidate_count"`
	RerankedCount   int      `json:"reranked_count"`
	Reranked        bool     `json:"reranked"`
	CacheHit        bool     `json:"cache_hit"`
	Grounding       string   `json:"grounding"`
	RetrievalTimeMS float64  `json:"retrieval_time_ms"`
	RerankTimeMS    float64  `json:"rerank_time_ms"`
}

// Grounding labels for RetrievalDiagnostics.Grounding.
const (
	GroundingHigh   = "high"
	GroundingMedium = "medium"
	GroundingLow    = "low"
)

// RetrievalResult is the output of the retrieval phase for one query.
type RetrievalResult struct {
	Chunks      []Chunk              `json:"chunks"`
	Query       string               `json:"query"`
	Intent      Intent               `json:"intent"`
	Profile     string               `json:"profile"`
	Diagnostics RetrievalDiagnostics `json:"diagnostics"`
}

// SourceRef is the compact chunk summary emitted on the sources stream
// event.
type SourceRef struct {
	File      string  `json:"file"`
	Content   string  `json:"content"`
	StartLine int     `json:"start_line"`
	EndLine   int     `json:"end_line"`
	Score     float64 `json:"score"`
}

// HistoryMessage is one prior conversation turn supplied by the caller.
type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
