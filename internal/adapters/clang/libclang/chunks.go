package libclang

import (
	"strconv"
	"strings"

	"github.com/corey/ccflags/internal/ports"
)

// ChunkKind mirrors enum CXCompletionChunkKind.
type ChunkKind int32

const (
	ChunkOptional ChunkKind = iota
	ChunkTypedText
	ChunkText
	ChunkPlaceholder
	ChunkInformative
	ChunkCurrentParameter
	ChunkLeftParen
	ChunkRightParen
	ChunkLeftBracket
	ChunkRightBracket
	ChunkLeftBrace
	ChunkRightBrace
	ChunkLeftAngle
	ChunkRightAngle
	ChunkComma
	ChunkResultType
	ChunkColon
	ChunkSemiColon
	ChunkEqual
	ChunkHorizontalSpace
	ChunkVerticalSpace
)

// Chunk is one piece of a completion string.
type Chunk struct {
	Kind ChunkKind
	Text string
}

// Completion assembles chunks the same way the binary engine renders
// COMPLETION lines: the typed text is the trigger, the result type leads
// the hint and placeholders become numbered snippet fields. Optional and
// informative chunks are left out of the snippet.
func Completion(chunks []Chunk) ports.Completion {
	var trigger, result string
	var hint, snippet strings.Builder
	n := 0
	for _, c := range chunks {
		switch c.Kind {
		case ChunkTypedText:
			trigger = c.Text
			hint.WriteString(c.Text)
			snippet.WriteString(c.Text)
		case ChunkResultType:
			result = c.Text + " "
		case ChunkPlaceholder, ChunkCurrentParameter:
			n++
			hint.WriteString(c.Text)
			snippet.WriteString("${" + strconv.Itoa(n) + ":" + c.Text + "}")
		case ChunkOptional, ChunkInformative:
		case ChunkVerticalSpace:
			hint.WriteString(" ")
			snippet.WriteString("\n")
		default:
			hint.WriteString(c.Text)
			snippet.WriteString(c.Text)
		}
	}
	return ports.Completion{Trigger: trigger, Hint: result + hint.String(), Snippet: snippet.String()}
}

// Severity maps enum CXDiagnosticSeverity to the names the binary engine
// reports. Ignored diagnostics map to "".
func Severity(s int32) string {
	switch s {
	case 1:
		return "note"
	case 2:
		return "warning"
	case 3:
		return "error"
	case 4:
		return "fatal error"
	}
	return ""
}
