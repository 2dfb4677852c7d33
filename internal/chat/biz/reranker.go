package biz

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/codequery/internal/model"
	"github.com/kart-io/codequery/internal/pkg/chat/textutil"
	"github.com/kart-io/codequery/pkg/llm"
	"github.com/kart-io/codequery/pkg/utils/json"
)

// rerankSnippetLen bounds the one-line content snippet per candidate.
const rerankSnippetLen = 120

// idTokenPattern matches identifier-shaped tokens in a free-form response,
// the last-resort parse when the model ignores the JSON contract.
var idTokenPattern = regexp.MustCompile(`[A-Za-z0-9_\-:.]+`)

// Reranker reorders top retrieval candidates with an LLM call. It never
// fails a request: every error path returns the input order unchanged.
type Reranker struct {
	chatProvider llm.ChatProvider
}

// NewReranker creates a reranker.
func NewReranker(chatProvider llm.ChatProvider) *Reranker {
	return &Reranker{chatProvider: chatProvider}
}

// rerankResponse is the strict reply contract.
type rerankResponse struct {
	Ranking []string `json:"ranking"`
}

// Rerank asks the chat model to reorder chunks by relevance to the query.
// The call bypasses provider-side caching so rankings reflect the live
// candidate set. The second return value reports whether a call or parse
// failure kept the original order.
func (r *Reranker) Rerank(ctx context.Context, query string, intent model.Intent, chunks []model.Chunk) ([]model.Chunk, bool) {
	if r.chatProvider == nil || len(chunks) < 2 {
		return chunks, false
	}

	prompt := r.buildPrompt(query, intent, chunks)
	resp, err := r.chatProvider.Chat(ctx, []llm.Message{
		{Role: llm.RoleUser, Content: prompt},
	}, llm.WithNoCache())
	if err != nil {
		logger.Warnw("rerank call failed, keeping original order", "error", err.Error())
		return chunks, true
	}

	ranking := parseRanking(resp, chunks)
	if len(ranking) == 0 {
		logger.Warnw("rerank response unparseable, keeping original order", "response_length", len(resp))
		return chunks, true
	}

	return applyRanking(chunks, ranking), false
}

// buildPrompt enumerates the candidates compactly and demands strict JSON.
func (r *Reranker) buildPrompt(query string, intent model.Intent, chunks []model.Chunk) string {
	var sb strings.Builder
	sb.WriteString("Rank the following code chunks by relevance to the question.\n")
	sb.WriteString("Question: " + query + "\n\n")
	if intent == model.IntentOverview {
		sb.WriteString("Prioritize documentation chunks (README, docs) over code.\n\n")
	}
	sb.WriteString("Chunks:\n")
	for _, c := range chunks {
		fmt.Fprintf(&sb, "- %s: %s (%s, L%d-L%d): %s\n",
			c.ID, c.FilePath, c.Type, c.StartLine, c.EndLine,
			textutil.FirstLine(c.Content, rerankSnippetLen))
	}
	sb.WriteString("\nReply with strict JSON only: {\"ranking\": [\"id1\", \"id2\", ...]}\n")
	sb.WriteString("List every chunk id exactly once, most relevant first.")
	return sb.String()
}

// parseRanking tries strict JSON, then an embedded JSON object, then an
// id-token scan. Returns nil when nothing usable was found.
func parseRanking(resp string, chunks []model.Chunk) []string {
	known := make(map[string]struct{}, len(chunks))
	for _, c := range chunks {
		known[c.ID] = struct{}{}
	}

	// Strict JSON.
	var parsed rerankResponse
	if err := json.Unmarshal([]byte(resp), &parsed); err == nil && len(parsed.Ranking) > 0 {
		return filterKnown(parsed.Ranking, known)
	}

	// Embedded JSON object via bracket matching.
	if embedded := extractJSONObject(resp); embedded != "" {
		if err := json.Unmarshal([]byte(embedded), &parsed); err == nil && len(parsed.Ranking) > 0 {
			return filterKnown(parsed.Ranking, known)
		}
	}

	// Raw token scan against known ids.
	tokens := idTokenPattern.FindAllString(resp, -1)
	return filterKnown(tokens, known)
}

// extractJSONObject returns the first balanced {...} region of s, or "".
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	if start < 0 {
		return ""
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// filterKnown keeps ids present in the candidate set, deduplicated,
// order-preserving.
func filterKnown(ids []string, known map[string]struct{}) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(known))
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// applyRanking reorders chunks by the ranked ids and appends unmentioned
// candidates in their original order.
func applyRanking(chunks []model.Chunk, ranking []string) []model.Chunk {
	byID := make(map[string]model.Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c
	}

	used := make(map[string]struct{}, len(ranking))
	out := make([]model.Chunk, 0, len(chunks))
	for _, id := range ranking {
		if c, ok := byID[id]; ok {
			out = append(out, c)
			used[id] = struct{}{}
		}
	}
	for _, c := range chunks {
		if _, ok := used[c.ID]; !ok {
			out = append(out, c)
		}
	}
	return out
}
