package biz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kart-io/codequery/internal/model"
)

func TestClassifyByPhrases(t *testing.T) {
	c := NewIntentClassifier(nil, nil)
	ctx := context.Background()

	tests := []struct {
		query string
		want  model.Intent
	}{
		{"What are the main features of this application?", model.IntentOverview},
		{"How does the request router work internally?", model.IntentImplementation},
		{"What is the tech stack and which frameworks are used?", model.IntentTechStack},
		{"Where is the database connection located?", model.IntentLocation},
		{"Why does the server crash with a nil pointer exception?", model.IntentTroubleshooting},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, c.Classify(ctx, tt.query, ""), "query: %s", tt.query)
	}
}

func TestClassifyExplicitModeWins(t *testing.T) {
	c := NewIntentClassifier(nil, nil)

	got := c.Classify(context.Background(), "where is the error handler located", "overview")
	assert.Equal(t, model.IntentOverview, got)
}

func TestClassifyInvalidModeFallsThrough(t *testing.T) {
	c := NewIntentClassifier(nil, nil)

	got := c.Classify(context.Background(), "where is the config file", "auto")
	assert.Equal(t, model.IntentLocation, got)
}

func TestClassifyZeroScoreDefaultsToImplementation(t *testing.T) {
	c := NewIntentClassifier(nil, nil)

	got := c.Classify(context.Background(), "hmm", "")
	assert.Equal(t, model.IntentImplementation, got)
}

func TestClassifyTieBreakUsesModelChoice(t *testing.T) {
	chat := &fakeChatProvider{response: "location"}
	c := NewIntentClassifier(chat, &IntentClassifierConfig{TieBreakEnabled: true})

	// Both location and implementation score 5: one phrase plus one regex
	// class each.
	got := c.Classify(context.Background(), "where is how does it work", "")
	assert.Equal(t, model.IntentLocation, got)
	assert.True(t, chat.lastNoCache, "tie-break must bypass provider caching")
}

func TestClassifyTieBreakFailureKeepsDeterministicWinner(t *testing.T) {
	chat := &fakeChatProvider{err: assert.AnError}
	c := NewIntentClassifier(chat, &IntentClassifierConfig{TieBreakEnabled: true})

	// Deterministic priority ranks implementation above location on ties.
	got := c.Classify(context.Background(), "where is how does it work", "")
	assert.Equal(t, model.IntentImplementation, got)
}

func TestClassifyTieBreakUnknownResponseKeepsWinner(t *testing.T) {
	chat := &fakeChatProvider{response: "I cannot decide"}
	c := NewIntentClassifier(chat, &IntentClassifierConfig{TieBreakEnabled: true})

	got := c.Classify(context.Background(), "where is how does it work", "")
	assert.Equal(t, model.IntentImplementation, got)
}
