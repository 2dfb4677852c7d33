package biz

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/codequery/internal/chat/metrics"
	"github.com/kart-io/codequery/internal/model"
	"github.com/kart-io/codequery/internal/pkg/chat/textutil"
	"github.com/kart-io/codequery/pkg/llm"
)

const (
	// answerKeyChunkLimit is how many selected chunk ids feed the answer
	// cache key.
	answerKeyChunkLimit = 12

	// replayFragmentRunes is the fragment size when streaming a cached
	// answer.
	replayFragmentRunes = 256

	// streamRetryBackoff delays the single retry of a stream that failed
	// before emitting anything.
	streamRetryBackoff = 500 * time.Millisecond

	// generationErrorNotice is the inline fragment appended when a stream
	// fails after output was already delivered.
	generationErrorNotice = "\n\n[The answer was interrupted by a generation error.]"
)

// citationRules is shared by every system template.
const citationRules = "Cite evidence as path:Lstart-Lend (for example internal/server/router.go:L42-L67). " +
	"Only cite files present in the context. If the context does not answer the question, say so."

// systemTemplates holds one generation template per intent; {{context}} is
// replaced with the assembled evidence block.
var systemTemplates = map[model.Intent]string{
	model.IntentOverview: "You are a senior engineer introducing a codebase.\n" +
		"Answer with a short summary first, then the main capabilities as a bullet list.\n" +
		"Prefer documentation evidence over code. " + citationRules + "\n\nRepository context:\n{{context}}",
	model.IntentImplementation: "You are a senior engineer explaining how code works.\n" +
		"Answer directly, then walk through the relevant control flow step by step.\n" +
		citationRules + "\n\nRepository context:\n{{context}}",
	model.IntentTechStack: "You are a senior engineer describing a project's technology choices.\n" +
		"List languages, frameworks, and notable dependencies with their roles.\n" +
		"Prefer manifest evidence (go.mod, package.json, requirements) over code. " + citationRules +
		"\n\nRepository context:\n{{context}}",
	model.IntentLocation: "You are a senior engineer pointing at code.\n" +
		"Name the exact files and line ranges first, then one sentence of context each.\n" +
		citationRules + "\n\nRepository context:\n{{context}}",
	model.IntentTroubleshooting: "You are a senior engineer debugging an issue.\n" +
		"Identify the most likely cause in the shown code, then suggest a concrete fix.\n" +
		citationRules + "\n\nRepository context:\n{{context}}",
}

// GeneratorConfig configures answer generation.
type GeneratorConfig struct {
	// ChatModel is the stable chat model id used in answer cache keys.
	ChatModel string
	// HistoryCharBudget bounds prior conversation turns, oldest dropped
	// first.
	HistoryCharBudget int
}

// Fragment is one unit of streamed generation output. Err is non-nil only
// on the terminal fragment of a failed stream.
type Fragment struct {
	Content string
	Err     error
}

// Generator drives cache-aware answer generation, streaming or not.
type Generator struct {
	chatProvider llm.ChatProvider
	assembler    *ContextAssembler
	cache        *PipelineCache
	config       *GeneratorConfig
	metrics      *metrics.ChatMetrics
}

// NewGenerator creates the generation orchestrator.
func NewGenerator(chatProvider llm.ChatProvider, assembler *ContextAssembler, cache *PipelineCache, config *GeneratorConfig) *Generator {
	return &Generator{
		chatProvider: chatProvider,
		assembler:    assembler,
		cache:        cache,
		config:       config,
		metrics:      metrics.GetChatMetrics(),
	}
}

// Generate produces the final answer without streaming.
func (g *Generator) Generate(ctx context.Context, repo, query string, retrieval *model.RetrievalResult, history []model.HistoryMessage) (string, error) {
	key := g.answerKey(repo, query, retrieval)
	if answer, ok := g.cache.GetAnswer(ctx, key); ok {
		return answer, nil
	}

	messages := g.buildMessages(query, retrieval, history)

	start := time.Now()
	answer, err := g.chatProvider.Chat(ctx, messages)
	g.metrics.RecordLLMCall(time.Since(start), err)
	if err != nil {
		return "", fmt.Errorf("failed to generate answer: %w", err)
	}

	g.cache.SetAnswer(ctx, key, answer)
	return answer, nil
}

// GenerateStream produces the answer as a fragment channel. The channel is
// closed after a terminal fragment; a fragment with Err set marks failure.
//
// A cached answer is replayed in fixed-size fragments without touching the
// model. On a live stream, fragments are accumulated and the answer cache is
// populated once the stream completes, even if the consumer has already
// cancelled delivery. A stream that fails before emitting anything is
// retried once with backoff; after output, the failure is surfaced inline
// instead, so partial answers are never duplicated.
func (g *Generator) GenerateStream(ctx context.Context, repo, query string, retrieval *model.RetrievalResult, history []model.HistoryMessage) <-chan Fragment {
	out := make(chan Fragment)
	go func() {
		defer close(out)

		key := g.answerKey(repo, query, retrieval)
		if answer, ok := g.cache.GetAnswer(ctx, key); ok {
			g.replay(ctx, out, answer)
			return
		}

		messages := g.buildMessages(query, retrieval, history)
		g.streamAnswer(ctx, out, key, messages)
	}()
	return out
}

// replay emits a cached answer in fixed-size rune fragments.
func (g *Generator) replay(ctx context.Context, out chan<- Fragment, answer string) {
	runes := []rune(answer)
	for start := 0; start < len(runes); start += replayFragmentRunes {
		end := start + replayFragmentRunes
		if end > len(runes) {
			end = len(runes)
		}
		if !g.emit(ctx, out, Fragment{Content: string(runes[start:end])}) {
			return
		}
	}
}

// streamAnswer drives one live generation stream, with the single
// pre-output retry.
func (g *Generator) streamAnswer(ctx context.Context, out chan<- Fragment, key string, messages []llm.Message) {
	start := time.Now()
	answer, emitted, err := g.consumeStream(ctx, out, messages)
	if err != nil && !emitted {
		// Nothing was delivered yet; one retry is safe.
		g.metrics.RecordLLMCall(time.Since(start), err)
		g.metrics.RecordLLMRetry()
		logger.Warnw("generation stream failed before output, retrying", "error", err.Error())

		select {
		case <-time.After(streamRetryBackoff):
		case <-ctx.Done():
			g.emit(ctx, out, Fragment{Err: ctx.Err()})
			return
		}
		start = time.Now()
		answer, emitted, err = g.consumeStream(ctx, out, messages)
	}
	g.metrics.RecordLLMCall(time.Since(start), err)

	if err != nil {
		if emitted {
			// Do not retry after output; close with an inline notice so the
			// client sees the interruption in the answer body.
			g.emit(ctx, out, Fragment{Content: generationErrorNotice})
		}
		g.emit(ctx, out, Fragment{Err: err})
		return
	}

	// Populate the cache regardless of whether the consumer is still
	// listening; a cancelled delivery must not cause a cache cold-start.
	if answer != "" {
		g.cache.SetAnswer(context.WithoutCancel(ctx), key, answer)
	}
}

// consumeStream forwards one provider stream, returning the accumulated
// answer and whether any fragment reached the consumer.
func (g *Generator) consumeStream(ctx context.Context, out chan<- Fragment, messages []llm.Message) (answer string, emitted bool, err error) {
	stream, err := g.chatProvider.ChatStream(ctx, messages)
	if err != nil {
		return "", false, err
	}

	var sb strings.Builder
	for delta := range stream {
		if delta.Err != nil {
			return sb.String(), emitted, delta.Err
		}
		if delta.Done {
			break
		}
		if delta.Content == "" {
			continue
		}
		sb.WriteString(delta.Content)
		if g.emit(ctx, out, Fragment{Content: delta.Content}) {
			emitted = true
			continue
		}
		// Consumer cancelled; keep draining so the full answer still lands
		// in the cache.
		for rest := range stream {
			if rest.Err != nil {
				return sb.String(), emitted, rest.Err
			}
			if rest.Done {
				break
			}
			sb.WriteString(rest.Content)
		}
		break
	}
	return sb.String(), emitted, nil
}

// emit sends one fragment unless the consumer cancelled.
func (g *Generator) emit(ctx context.Context, out chan<- Fragment, f Fragment) bool {
	select {
	case out <- f:
		return true
	case <-ctx.Done():
		return false
	}
}

// answerKey computes the answer-cache key for a retrieval selection.
func (g *Generator) answerKey(repo, query string, retrieval *model.RetrievalResult) string {
	return g.cache.AnswerKey(
		repo,
		textutil.NormalizeQuery(query),
		retrieval.Intent,
		idsOf(retrieval.Chunks),
		g.config.ChatModel,
	)
}

// buildMessages assembles the prompt: intent template with interpolated
// context, budget-trimmed history, then the user query.
func (g *Generator) buildMessages(query string, retrieval *model.RetrievalResult, history []model.HistoryMessage) []llm.Message {
	template, ok := systemTemplates[retrieval.Intent]
	if !ok {
		template = systemTemplates[model.IntentImplementation]
	}
	contextBlock := g.assembler.Assemble(retrieval.Chunks)
	system := strings.ReplaceAll(template, "{{context}}", contextBlock)

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: system})
	for _, h := range trimHistory(history, g.config.HistoryCharBudget) {
		role := llm.RoleUser
		if h.Role == "assistant" {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: h.Content})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: query})
	return messages
}

// trimHistory drops oldest turns first until the remainder fits the
// character budget.
func trimHistory(history []model.HistoryMessage, budget int) []model.HistoryMessage {
	if budget <= 0 {
		return nil
	}
	total := 0
	for _, h := range history {
		total += len(h.Content)
	}
	start := 0
	for start < len(history) && total > budget {
		total -= len(history[start].Content)
		start++
	}
	return history[start:]
}
