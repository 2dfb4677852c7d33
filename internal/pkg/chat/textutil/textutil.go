// Package textutil provides text processing helpers for the chat pipeline:
// query normalization, term tokenization, truncation, and canonical key
// hashing.
package textutil

import (
	"crypto/sha256"
	"encoding/hex"
	"path"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kart-io/codequery/pkg/utils/json"
)

// stopWords are excluded from query term extraction. The set intentionally
// stays small: over-aggressive filtering hurts lexical matching on code
// identifiers.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "be": {}, "can": {},
	"do": {}, "does": {}, "for": {}, "from": {}, "how": {}, "i": {},
	"in": {}, "is": {}, "it": {}, "my": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "this": {}, "to": {}, "was": {},
	"what": {}, "when": {}, "where": {}, "which": {}, "who": {},
	"why": {}, "with": {}, "you": {},
}

// Terms tokenizes a query into lower-cased alphanumeric terms, excluding
// stop words. Term order follows first appearance; duplicates are removed.
func Terms(query string) []string {
	var terms []string
	seen := make(map[string]struct{})

	var b strings.Builder
	flush := func() {
		if b.Len() == 0 {
			return
		}
		term := b.String()
		b.Reset()
		if _, stop := stopWords[term]; stop {
			return
		}
		if _, dup := seen[term]; dup {
			return
		}
		seen[term] = struct{}{}
		terms = append(terms, term)
	}

	for _, r := range strings.ToLower(query) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			b.WriteRune(r)
			continue
		}
		flush()
	}
	flush()

	return terms
}

// NormalizeQuery canonicalizes a query for use as a cache key component:
// lower-cased, stripped to alphanumerics plus `_-./`, whitespace collapsed.
// The normalized form is never sent to the embedder.
func NormalizeQuery(query string) string {
	var b strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(strings.TrimSpace(query)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' || r == '.' || r == '/':
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimRight(b.String(), " ")
}

// Compact removes everything except letters and digits, lower-cased. Used
// for fuzzy query-vs-path comparison in the location profile.
func Compact(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Truncate cuts a string to at most maxLen Unicode characters.
func Truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen])
}

// FirstLine returns the first non-empty line of s, truncated to maxLen
// characters. Used for compact chunk descriptions in rerank prompts.
func FirstLine(s string, maxLen int) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			return Truncate(line, maxLen)
		}
	}
	return ""
}

// HashPayload derives a stable hex key from any JSON-serializable payload.
// Struct field order is fixed, so identical semantic inputs always collide
// to the same key.
func HashPayload(payload any) string {
	raw, err := json.Marshal(payload)
	if err != nil {
		// Serialization of key structs cannot fail at runtime; fall back to
		// the error text so callers still get a deterministic key.
		raw = []byte(err.Error())
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// extLanguages maps file extensions to fenced-code-block language tags.
var extLanguages = map[string]string{
	".ts":    "typescript",
	".tsx":   "typescript",
	".js":    "javascript",
	".jsx":   "javascript",
	".py":    "python",
	".go":    "go",
	".rs":    "rust",
	".java":  "java",
	".rb":    "ruby",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".cs":    "csharp",
	".php":   "php",
	".sh":    "bash",
	".json":  "json",
	".yml":   "yaml",
	".yaml":  "yaml",
	".toml":  "toml",
	".sql":   "sql",
	".md":    "markdown",
	".mdx":   "markdown",
	".html":  "html",
	".css":   "css",
	".proto": "protobuf",
}

// LanguageForPath infers a syntax highlighting tag from a file extension.
// Unknown extensions return "" (untagged fence).
func LanguageForPath(filePath string) string {
	return extLanguages[strings.ToLower(path.Ext(filePath))]
}

// docPathSuffixes and docPathParts detect documentation files.
var (
	docPathSuffixes = []string{".md", ".mdx", ".rst", ".txt"}
	docPathParts    = []string{"readme", "docs/", "doc/", "documentation"}
)

// IsDocPath reports whether the path points at documentation content
// (README, markdown, docs directories).
func IsDocPath(filePath string) bool {
	p := strings.ToLower(filePath)
	for _, part := range docPathParts {
		if strings.Contains(p, part) {
			return true
		}
	}
	for _, suffix := range docPathSuffixes {
		if strings.HasSuffix(p, suffix) {
			return true
		}
	}
	return false
}

// manifestNames are package manifest and dependency lock filenames.
var manifestNames = map[string]struct{}{
	"package.json":     {},
	"package-lock.json": {},
	"yarn.lock":        {},
	"pnpm-lock.yaml":   {},
	"go.mod":           {},
	"go.sum":           {},
	"cargo.toml":       {},
	"requirements.txt": {},
	"pyproject.toml":   {},
	"pipfile":          {},
	"gemfile":          {},
	"pom.xml":          {},
	"build.gradle":     {},
	"composer.json":    {},
	"dockerfile":       {},
	"docker-compose.yml": {},
}

// IsManifestPath reports whether the path's base name is a package manifest
// or dependency file.
func IsManifestPath(filePath string) bool {
	base := strings.ToLower(path.Base(filePath))
	_, ok := manifestNames[base]
	return ok
}
