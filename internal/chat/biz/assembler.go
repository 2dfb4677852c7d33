package biz

import (
	"fmt"
	"strings"

	"github.com/kart-io/codequery/internal/model"
	"github.com/kart-io/codequery/internal/pkg/chat/textutil"
)

const (
	// noContextSentinel is returned when no chunks were selected. Never
	// return an empty context: the generation templates interpolate it
	// verbatim.
	noContextSentinel = "No relevant code found."

	// contextTruncationNotice terminates the block when the budget is hit.
	contextTruncationNotice = "\n... [additional files omitted to fit the context budget]"

	// chunkTruncationMarker closes an individually capped chunk.
	chunkTruncationMarker = "\n... [truncated]"
)

// ContextAssembler serializes selected chunks into a bounded textual
// context.
type ContextAssembler struct {
	maxChars      int
	chunkMaxChars int
}

// NewContextAssembler creates an assembler. chunkMaxChars caps a single
// chunk's content; maxChars bounds the whole block.
func NewContextAssembler(maxChars, chunkMaxChars int) *ContextAssembler {
	if chunkMaxChars <= 0 {
		chunkMaxChars = 1800
	}
	return &ContextAssembler{
		maxChars:      maxChars,
		chunkMaxChars: chunkMaxChars,
	}
}

// Assemble groups chunks by file preserving first-seen order and emits one
// fenced block per chunk. Once the running total would exceed the budget a
// single truncation notice is appended and emission stops; a fenced block is
// never left unterminated.
func (a *ContextAssembler) Assemble(chunks []model.Chunk) string {
	if len(chunks) == 0 {
		return noContextSentinel
	}

	// Group by file path, first-seen order.
	fileOrder := make([]string, 0, len(chunks))
	byFile := make(map[string][]model.Chunk, len(chunks))
	for _, c := range chunks {
		if _, ok := byFile[c.FilePath]; !ok {
			fileOrder = append(fileOrder, c.FilePath)
		}
		byFile[c.FilePath] = append(byFile[c.FilePath], c)
	}

	var sb strings.Builder
	sb.WriteString("Files referenced:\n")
	for _, path := range fileOrder {
		sb.WriteString("- " + path + "\n")
	}
	sb.WriteString("\n")

	for _, path := range fileOrder {
		section := a.renderFile(path, byFile[path])
		if a.maxChars > 0 && sb.Len()+len(section) > a.maxChars {
			sb.WriteString(contextTruncationNotice)
			break
		}
		sb.WriteString(section)
	}

	return sb.String()
}

// renderFile emits all chunks of one file as complete fenced blocks.
func (a *ContextAssembler) renderFile(path string, chunks []model.Chunk) string {
	lang := textutil.LanguageForPath(path)

	var sb strings.Builder
	fmt.Fprintf(&sb, "### %s\n", path)
	for _, c := range chunks {
		if c.StartLine > 0 {
			fmt.Fprintf(&sb, "Lines %d-%d", c.StartLine, c.EndLine)
			if c.Name != "" {
				fmt.Fprintf(&sb, " (%s)", c.Name)
			}
			sb.WriteString(":\n")
		}

		content := c.Content
		if len(content) > a.chunkMaxChars {
			content = textutil.Truncate(content, a.chunkMaxChars) + chunkTruncationMarker
		}

		sb.WriteString("```" + lang + "\n")
		sb.WriteString(content)
		if !strings.HasSuffix(content, "\n") {
			sb.WriteString("\n")
		}
		sb.WriteString("```\n\n")
	}
	return sb.String()
}
