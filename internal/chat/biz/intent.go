package biz

import (
	"context"
	"regexp"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/codequery/internal/model"
	"github.com/kart-io/codequery/pkg/llm"
)

// phraseWeight is the score contribution of a curated phrase match;
// regex classes contribute their own smaller weights.
const phraseWeight = 3

// intentPriority breaks score ties deterministically.
var intentPriority = []model.Intent{
	model.IntentOverview,
	model.IntentImplementation,
	model.IntentTechStack,
	model.IntentLocation,
	model.IntentTroubleshooting,
}

// intentPhrases are curated phrase lists scored by occurrence count.
var intentPhrases = map[model.Intent][]string{
	model.IntentOverview: {
		"main features", "overview", "what is this project", "what does this project",
		"purpose of", "summarize", "high level", "introduce",
	},
	model.IntentImplementation: {
		"how does", "how is", "implementation", "implemented", "internally",
		"algorithm", "logic behind", "under the hood",
	},
	model.IntentTechStack: {
		"tech stack", "technology stack", "dependencies", "frameworks",
		"libraries", "built with", "packages used", "what language",
	},
	model.IntentLocation: {
		"where is", "where are", "located", "which file", "location of",
		"find the", "path to",
	},
	model.IntentTroubleshooting: {
		"error", "bug", "exception", "crash", "fails", "failing",
		"not working", "traceback", "stack trace", "broken",
	},
}

// intentPatterns are supplementary regex classes with per-class weights.
var intentPatterns = map[model.Intent][]struct {
	re     *regexp.Regexp
	weight int
}{
	model.IntentOverview: {
		{regexp.MustCompile(`(?i)^what\s+(is|are|does)\b`), 2},
		{regexp.MustCompile(`(?i)\b(describe|explain)\s+th(e|is)\s+(project|repo|repository|app|application)\b`), 2},
	},
	model.IntentImplementation: {
		{regexp.MustCompile(`(?i)\bhow\b.*\b(work|works|handle|handles|process)\b`), 2},
		{regexp.MustCompile(`(?i)\b(function|method|class)\b`), 1},
	},
	model.IntentTechStack: {
		{regexp.MustCompile(`(?i)\b(framework|library|language|version)s?\b`), 1},
		{regexp.MustCompile(`(?i)\bwhat\b.*\b(use|uses|using)\b`), 1},
	},
	model.IntentLocation: {
		{regexp.MustCompile(`(?i)\bwhere\b`), 2},
		{regexp.MustCompile(`(?i)\bdefined\s+in\b`), 1},
	},
	model.IntentTroubleshooting: {
		{regexp.MustCompile(`(?i)\b(fix|debug|wrong|issue|problem)\b`), 2},
		{regexp.MustCompile(`(?i)\bwhy\b.*\b(fail|break|crash)`), 1},
	},
}

// IntentClassifierConfig configures intent classification.
type IntentClassifierConfig struct {
	// TieBreakEnabled asks the chat model to resolve equal top scores.
	TieBreakEnabled bool
}

// IntentClassifier assigns an intent to a query using deterministic phrase
// and pattern scoring, with an optional generative tie-break.
type IntentClassifier struct {
	chatProvider llm.ChatProvider
	config       *IntentClassifierConfig
}

// NewIntentClassifier creates a classifier. chatProvider may be nil when
// tie-break is disabled.
func NewIntentClassifier(chatProvider llm.ChatProvider, config *IntentClassifierConfig) *IntentClassifier {
	if config == nil {
		config = &IntentClassifierConfig{}
	}
	return &IntentClassifier{
		chatProvider: chatProvider,
		config:       config,
	}
}

// Classify returns the intent for a query. A valid explicit mode always wins.
// A zero top score defaults to implementation, the safest general template.
func (c *IntentClassifier) Classify(ctx context.Context, query, explicitMode string) model.Intent {
	if intent, ok := model.ParseIntent(explicitMode); ok {
		return intent
	}

	scores := scoreIntents(query)

	best, second := topTwo(scores)
	if scores[best] == 0 {
		return model.IntentImplementation
	}

	if c.config.TieBreakEnabled && c.chatProvider != nil && second != "" && scores[best] == scores[second] {
		if picked, ok := c.tieBreak(ctx, query, best, second); ok {
			return picked
		}
	}

	return best
}

// scoreIntents computes the deterministic score per intent.
func scoreIntents(query string) map[model.Intent]int {
	lower := strings.ToLower(query)
	scores := make(map[model.Intent]int, len(intentPriority))

	for intent, phrases := range intentPhrases {
		for _, phrase := range phrases {
			scores[intent] += strings.Count(lower, phrase) * phraseWeight
		}
	}
	for intent, patterns := range intentPatterns {
		for _, p := range patterns {
			if p.re.MatchString(query) {
				scores[intent] += p.weight
			}
		}
	}
	return scores
}

// topTwo returns the two highest-scoring intents in priority order.
func topTwo(scores map[model.Intent]int) (best, second model.Intent) {
	for _, intent := range intentPriority {
		if best == "" || scores[intent] > scores[best] {
			second = best
			best = intent
			continue
		}
		if second == "" || scores[intent] > scores[second] {
			second = intent
		}
	}
	return best, second
}

// tieBreak asks the chat model to choose between two tied intents. The call
// always bypasses provider-side caching so the choice reflects the live
// query; any failure keeps the deterministic winner.
func (c *IntentClassifier) tieBreak(ctx context.Context, query string, a, b model.Intent) (model.Intent, bool) {
	prompt := "Classify the developer question into exactly one category.\n" +
		"Question: " + query + "\n" +
		"Categories: " + string(a) + ", " + string(b) + "\n" +
		"Reply with only the category name."

	resp, err := c.chatProvider.Chat(ctx, []llm.Message{
		{Role: llm.RoleUser, Content: prompt},
	}, llm.WithNoCache())
	if err != nil {
		logger.Debugw("intent tie-break call failed", "error", err.Error())
		return "", false
	}

	lower := strings.ToLower(resp)
	// Check in tie order so the deterministic winner survives a response
	// that mentions both literals.
	for _, candidate := range []model.Intent{a, b} {
		literal := string(candidate)
		if strings.Contains(lower, literal) || strings.Contains(lower, strings.ReplaceAll(literal, "_", " ")) {
			return candidate, true
		}
	}
	return "", false
}
