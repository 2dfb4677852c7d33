package textutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTerms(t *testing.T) {
	terms := Terms("What are the main features of this application?")
	assert.Contains(t, terms, "main")
	assert.Contains(t, terms, "features")
	assert.Contains(t, terms, "application")
	assert.NotContains(t, terms, "what")
	assert.NotContains(t, terms, "the")
	assert.NotContains(t, terms, "of")
}

func TestTermsDedup(t *testing.T) {
	terms := Terms("auth auth AUTH handler")
	assert.Equal(t, []string{"auth", "handler"}, terms)
}

func TestTermsKeepsIdentifiers(t *testing.T) {
	terms := Terms("where is handle_request defined")
	assert.Contains(t, terms, "handle_request")
}

func TestNormalizeQuery(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"  How does AUTH work?  ", "how does auth work"},
		{"src/routes/chat.py   streaming", "src/routes/chat.py streaming"},
		{"a\tb\n\nc", "a b c"},
		{"hello!!!", "hello"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeQuery(tc.in), tc.in)
	}
}

func TestCompact(t *testing.T) {
	assert.Equal(t, "srcroutesauthts", Compact("src/routes/auth.ts"))
	assert.Equal(t, "authroutes", Compact("Auth Routes"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "hello", Truncate("hello", 10))
	assert.Equal(t, "he", Truncate("hello", 2))
	assert.Equal(t, "你好", Truncate("你好世界", 2))
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "func main() {", FirstLine("\n\nfunc main() {\n\treturn\n}", 80))
	assert.Equal(t, "", FirstLine("   \n\t\n", 80))
}

func TestHashPayloadStable(t *testing.T) {
	type key struct {
		Repo  string `json:"repo"`
		Query string `json:"query"`
	}
	a := HashPayload(key{Repo: "r1", Query: "q"})
	b := HashPayload(key{Repo: "r1", Query: "q"})
	c := HashPayload(key{Repo: "r2", Query: "q"})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
	assert.Equal(t, strings.ToLower(a), a)
}

func TestLanguageForPath(t *testing.T) {
	assert.Equal(t, "typescript", LanguageForPath("src/App.TSX"))
	assert.Equal(t, "python", LanguageForPath("main.py"))
	assert.Equal(t, "", LanguageForPath("LICENSE"))
}

func TestIsDocPath(t *testing.T) {
	assert.True(t, IsDocPath("README.md"))
	assert.True(t, IsDocPath("docs/guide.rst"))
	assert.False(t, IsDocPath("src/server.go"))
}

func TestIsManifestPath(t *testing.T) {
	assert.True(t, IsManifestPath("package.json"))
	assert.True(t, IsManifestPath("services/api/go.mod"))
	assert.True(t, IsManifestPath("Dockerfile"))
	assert.False(t, IsManifestPath("src/index.ts"))
}
