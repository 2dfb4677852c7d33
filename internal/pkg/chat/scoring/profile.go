// Package scoring implements hybrid relevance scoring for retrieved code
// chunks. It blends vector similarity with lexical, path, chunk-type, and
// intent-specific heuristics using a fixed weight profile per intent.
package scoring

import "github.com/kart-io/codequery/internal/model"

// Profile names. Each intent maps to exactly one profile.
const (
	ProfileDocsFirst  = "docs_first"
	ProfileCodeFirst  = "code_first"
	ProfileStack      = "stack"
	ProfileLocation   = "location"
	ProfileErrorFocus = "error_focus"
	ProfileBalanced   = "balanced"
)

// Weights holds the scoring constants of one profile. All values are fixed,
// not learned.
type Weights struct {
	// Name is the profile identifier exposed in diagnostics.
	Name string

	// VectorAlpha is the share of the final score taken by the raw vector
	// similarity. The remainder goes to the capped heuristic boost.
	VectorAlpha float64

	// KeywordWeight is the per-term boost when a query term appears in the
	// chunk content.
	KeywordWeight float64

	// FileWeight is the per-term boost when a query term appears in the
	// chunk file path.
	FileWeight float64

	// TypeScale scales the graded chunk-type boost.
	TypeScale float64

	// DocBoost is added for documentation paths (README, markdown, docs/).
	DocBoost float64

	// ManifestBoost is added for package manifest and dependency files.
	ManifestBoost float64
}

var profiles = map[string]Weights{
	ProfileDocsFirst: {
		Name:          ProfileDocsFirst,
		VectorAlpha:   0.45,
		KeywordWeight: 0.12,
		FileWeight:    0.20,
		TypeScale:     1.1,
		DocBoost:      0.50,
		ManifestBoost: 0.35,
	},
	ProfileCodeFirst: {
		Name:          ProfileCodeFirst,
		VectorAlpha:   0.55,
		KeywordWeight: 0.18,
		FileWeight:    0.25,
		TypeScale:     0.9,
		DocBoost:      0.05,
		ManifestBoost: 0.05,
	},
	ProfileStack: {
		Name:          ProfileStack,
		VectorAlpha:   0.45,
		KeywordWeight: 0.12,
		FileWeight:    0.20,
		TypeScale:     1.0,
		DocBoost:      0.15,
		ManifestBoost: 0.55,
	},
	ProfileLocation: {
		Name:          ProfileLocation,
		VectorAlpha:   0.50,
		KeywordWeight: 0.10,
		FileWeight:    0.45,
		TypeScale:     0.8,
		DocBoost:      0.05,
		ManifestBoost: 0.10,
	},
	ProfileErrorFocus: {
		Name:          ProfileErrorFocus,
		VectorAlpha:   0.50,
		KeywordWeight: 0.20,
		FileWeight:    0.20,
		TypeScale:     0.9,
		DocBoost:      0.10,
		ManifestBoost: 0.05,
	},
	ProfileBalanced: {
		Name:          ProfileBalanced,
		VectorAlpha:   0.50,
		KeywordWeight: 0.15,
		FileWeight:    0.25,
		TypeScale:     1.0,
		DocBoost:      0.10,
		ManifestBoost: 0.10,
	},
}

// ProfileByName returns the named profile, falling back to balanced for
// unknown names.
func ProfileByName(name string) Weights {
	if w, ok := profiles[name]; ok {
		return w
	}
	return profiles[ProfileBalanced]
}

// ProfileForIntent maps an intent to its weight profile. Overview maps to
// docs-first only when docsFirstOverview is enabled, otherwise code-first.
func ProfileForIntent(intent model.Intent, docsFirstOverview bool) Weights {
	switch intent {
	case model.IntentOverview:
		if docsFirstOverview {
			return profiles[ProfileDocsFirst]
		}
		return profiles[ProfileCodeFirst]
	case model.IntentImplementation:
		return profiles[ProfileCodeFirst]
	case model.IntentTechStack:
		return profiles[ProfileStack]
	case model.IntentLocation:
		return profiles[ProfileLocation]
	case model.IntentTroubleshooting:
		return profiles[ProfileErrorFocus]
	default:
		return profiles[ProfileBalanced]
	}
}
