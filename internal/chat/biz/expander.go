package biz

import (
	"strings"

	"github.com/kart-io/codequery/internal/model"
)

// maxExpansionsPerKeyword bounds how many variants one matched keyword adds.
const maxExpansionsPerKeyword = 2

// keywordExpansion pairs a query keyword with substitute terms that widen
// recall. At most maxExpansionsPerKeyword substitutions apply per keyword.
type keywordExpansion struct {
	keyword    string
	expansions []string
}

// keywordExpansions is deliberately an ordered slice: variant order feeds the
// dedupe cap, so it must be stable across calls.
var keywordExpansions = []keywordExpansion{
	{"error", []string{"exception", "traceback"}},
	{"bug", []string{"error", "fix"}},
	{"config", []string{"configuration", "settings"}},
	{"auth", []string{"authentication", "login"}},
	{"database", []string{"db", "storage"}},
	{"test", []string{"testing", "test case"}},
	{"api", []string{"endpoint", "route"}},
	{"deploy", []string{"deployment", "release"}},
	{"install", []string{"setup", "installation"}},
	{"cache", []string{"caching", "memoization"}},
}

// entryPointPhrases trigger the canonical entry-file hint variant.
var entryPointPhrases = []string{"entry point", "entrypoint", "startup", "bootstrap", "main function", "starts up"}

// QueryExpander generates additional query variants to widen retrieval
// recall.
type QueryExpander struct {
	limit int
}

// NewQueryExpander creates an expander that emits at most limit queries,
// original included.
func NewQueryExpander(limit int) *QueryExpander {
	if limit <= 0 {
		limit = 6
	}
	return &QueryExpander{limit: limit}
}

// Expand returns an ordered, deduplicated list of query variants. The
// original query is always first.
func (e *QueryExpander) Expand(query string, intent model.Intent) []string {
	lower := strings.ToLower(query)
	variants := []string{query}

	// Keyword substitutions, in declared table order.
	for _, entry := range keywordExpansions {
		if !strings.Contains(lower, entry.keyword) {
			continue
		}
		n := len(entry.expansions)
		if n > maxExpansionsPerKeyword {
			n = maxExpansionsPerKeyword
		}
		for _, expansion := range entry.expansions[:n] {
			variants = append(variants, replaceFold(query, entry.keyword, expansion))
		}
	}

	// Intent-specific variants.
	switch intent {
	case model.IntentOverview:
		variants = append(variants, query+" README overview", query+" project documentation")
	case model.IntentTechStack:
		variants = append(variants,
			query+" package manifest dependencies",
			query+" go.mod package.json requirements")
	}

	// Entry-point questions get a canonical file hint regardless of intent.
	for _, phrase := range entryPointPhrases {
		if strings.Contains(lower, phrase) {
			variants = append(variants, "main entry point main.go index.js app startup")
			break
		}
	}

	return dedupeQueries(variants, e.limit)
}

// replaceFold replaces the first case-insensitive occurrence of old in s.
func replaceFold(s, old, new string) string {
	idx := strings.Index(strings.ToLower(s), old)
	if idx < 0 {
		return s
	}
	return s[:idx] + new + s[idx+len(old):]
}

// dedupeQueries removes duplicates preserving first-seen order and applies
// the cap.
func dedupeQueries(queries []string, limit int) []string {
	seen := make(map[string]struct{}, len(queries))
	out := make([]string, 0, limit)
	for _, q := range queries {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		key := strings.ToLower(q)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, q)
		if len(out) == limit {
			break
		}
	}
	return out
}
