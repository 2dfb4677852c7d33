package scoring

import (
	"sort"
	"strings"

	"github.com/kart-io/codequery/internal/model"
	"github.com/kart-io/codequery/internal/pkg/chat/textutil"
)

const (
	// boostCap limits the total heuristic boost so lexical signals cannot
	// drown the vector score entirely.
	boostCap = 1.5

	// patternBoost is the fixed bonus for a domain-pattern match between
	// query and file path.
	patternBoost = 0.3

	// trivialPenalty is subtracted from near-empty boilerplate chunks.
	trivialPenalty = 0.15

	// locationSubstringBoost rewards compacted-query vs compacted-path
	// substring matches on the location profile.
	locationSubstringBoost = 0.4

	// errorVocabBoost rewards error-handling vocabulary on the error-focus
	// profile.
	errorVocabBoost = 0.3
)

// typeGrades ranks chunk types by how much standalone context they carry.
// File-level chunks summarize whole files, module chunks cover groups of
// symbols, and individual symbols rank lowest.
var typeGrades = map[model.ChunkType]float64{
	model.ChunkTypeFileSummary: 0.25,
	model.ChunkTypeRawFile:     0.25,
	model.ChunkTypeModule:      0.15,
	model.ChunkTypeFunction:    0.10,
	model.ChunkTypeClass:       0.10,
	model.ChunkTypeMethod:      0.10,
}

// domainPatterns associate query keywords with the file names they usually
// refer to. A hit adds patternBoost once per pattern.
var domainPatterns = []struct {
	keyword string
	paths   []string
}{
	{"entry", []string{"main.", "index.", "app.", "server.", "cmd/", "bootstrap"}},
	{"config", []string{"config", "settings", "options", ".env", "env."}},
	{"route", []string{"route", "router", "handler", "controller", "urls"}},
	{"model", []string{"model", "schema", "entity", "types"}},
}

// errorVocab is the troubleshooting vocabulary rewarded by the error-focus
// profile.
var errorVocab = []string{"error", "err", "exception", "panic", "recover", "retry", "fallback", "catch", "raise"}

// trivialPatterns match export-only and import-only boilerplate chunks.
var trivialPatterns = []string{
	"export * from",
	"export { ",
	"export {",
	"module.exports",
	"export default",
	"from '",
	"require(",
}

// Score ranks candidates for a query under the given profile, returning at
// most limit chunks sorted by final score descending. Candidates outside the
// path allowlist are dropped. Scoring is fully deterministic.
func Score(candidates []model.Chunk, query string, terms []string, profile Weights, pathAllowlist []string, limit int) []model.Chunk {
	queryLower := strings.ToLower(query)
	queryCompact := textutil.Compact(query)

	scored := make([]model.Chunk, 0, len(candidates))
	for _, c := range candidates {
		if !pathAllowed(c.FilePath, pathAllowlist) {
			continue
		}
		c.Score = finalScore(c, queryLower, queryCompact, terms, profile)
		scored = append(scored, c)
	}

	// Stable order on equal scores: chunk id ascending.
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].ID < scored[j].ID
	})

	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}

// finalScore blends the vector similarity with the capped heuristic boost.
func finalScore(c model.Chunk, queryLower, queryCompact string, terms []string, profile Weights) float64 {
	boost := totalBoost(c, queryLower, queryCompact, terms, profile)
	if boost > boostCap {
		boost = boostCap
	}

	score := profile.VectorAlpha*c.Score + (1-profile.VectorAlpha)*boost
	if isTrivial(c.Content) {
		score -= trivialPenalty
	}
	return score
}

func totalBoost(c model.Chunk, queryLower, queryCompact string, terms []string, profile Weights) float64 {
	contentLower := strings.ToLower(c.Content)
	pathLower := strings.ToLower(c.FilePath)

	var boost float64

	// Lexical overlap: query terms found in the chunk content.
	for _, term := range terms {
		if strings.Contains(contentLower, term) {
			boost += profile.KeywordWeight
		}
	}

	// Path overlap: query terms found in the file path.
	for _, term := range terms {
		if strings.Contains(pathLower, term) {
			boost += profile.FileWeight
		}
	}

	// Domain patterns: "entry point" style queries matched against
	// conventional file names.
	for _, p := range domainPatterns {
		if !strings.Contains(queryLower, p.keyword) {
			continue
		}
		for _, name := range p.paths {
			if strings.Contains(pathLower, name) {
				boost += patternBoost
				break
			}
		}
	}

	// Chunk type, graded and scaled per profile.
	boost += typeGrades[c.Type] * profile.TypeScale

	if textutil.IsDocPath(c.FilePath) {
		boost += profile.DocBoost
	}
	if textutil.IsManifestPath(c.FilePath) {
		boost += profile.ManifestBoost
	}

	switch profile.Name {
	case ProfileLocation:
		pathCompact := textutil.Compact(c.FilePath)
		if queryCompact != "" && (strings.Contains(pathCompact, queryCompact) || strings.Contains(queryCompact, pathCompact)) {
			boost += locationSubstringBoost
		}
	case ProfileErrorFocus:
		for _, word := range errorVocab {
			if strings.Contains(contentLower, word) {
				boost += errorVocabBoost
				break
			}
		}
	}

	return boost
}

// pathAllowed reports whether the file path matches at least one allowlist
// entry. An empty allowlist admits everything.
func pathAllowed(filePath string, allowlist []string) bool {
	if len(allowlist) == 0 {
		return true
	}
	pathLower := strings.ToLower(filePath)
	for _, allowed := range allowlist {
		if allowed == "" {
			continue
		}
		if strings.Contains(pathLower, strings.ToLower(allowed)) {
			return true
		}
	}
	return false
}

// isTrivial detects near-empty boilerplate such as bare re-export statements.
func isTrivial(content string) bool {
	trimmed := strings.TrimSpace(content)
	if len(trimmed) == 0 {
		return true
	}
	if len(trimmed) > 120 {
		return false
	}
	lower := strings.ToLower(trimmed)
	for _, p := range trivialPatterns {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return len(trimmed) < 24
}
