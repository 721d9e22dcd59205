package clang

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/corey/ccflags/internal/ports"
)

const paramChars = `[\w\s*&<>:,()${}]+`

var (
	completionLine = regexp.MustCompile(`COMPLETION:\s(.*?)\s:\s(.*)`)
	contentChunk   = regexp.MustCompile(`<#(` + paramChars + `)#>|\[#(` + paramChars + `)#\]`)
	optionalChunk  = regexp.MustCompile(`\{#` + paramChars + `#\}`)
	diagnosticLine = regexp.MustCompile(`^(.*?):(\d+):(\d+): (fatal error|error|warning|note): (.*)$`)
)

// ParseCompletions turns `-code-completion-at` output into completions.
// Lines that are not COMPLETION entries are skipped.
//
//	COMPLETION: push_back : [#void#]push_back(<#const T &x#>)
//
// becomes Trigger "push_back", Hint "void push_back(const T &x)" and
// Snippet "push_back(${1:const T &x})". Optional {#...#} chunks are dropped.
func ParseCompletions(output string) []ports.Completion {
	var out []ports.Completion
	for _, line := range strings.Split(output, "\n") {
		m := completionLine.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if m == nil {
			continue
		}
		trigger, content := m[1], m[2]

		n := 0
		snippet := contentChunk.ReplaceAllStringFunc(content, func(chunk string) string {
			sub := contentChunk.FindStringSubmatch(chunk)
			if sub[1] == "" {
				return ""
			}
			n++
			return "${" + strconv.Itoa(n) + ":" + sub[1] + "}"
		})
		snippet = optionalChunk.ReplaceAllString(snippet, "")

		hint := contentChunk.ReplaceAllStringFunc(content, func(chunk string) string {
			sub := contentChunk.FindStringSubmatch(chunk)
			if sub[1] != "" {
				return sub[1]
			}
			return sub[2] + " "
		})
		hint = optionalChunk.ReplaceAllString(hint, "")

		out = append(out, ports.Completion{Trigger: trigger, Hint: hint, Snippet: snippet})
	}
	return out
}

// ParseDiagnostics extracts `file:line:col: severity: message` lines. When
// tmp is not empty, occurrences of it in file names are replaced by file.
func ParseDiagnostics(output, tmp, file string) []ports.Diagnostic {
	var out []ports.Diagnostic
	for _, line := range strings.Split(output, "\n") {
		m := diagnosticLine.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if m == nil {
			continue
		}
		row, _ := strconv.Atoi(m[2])
		col, _ := strconv.Atoi(m[3])
		path := m[1]
		if tmp != "" && path == tmp {
			path = file
		}
		out = append(out, ports.Diagnostic{
			File:     path,
			Line:     row,
			Col:      col,
			Severity: m[4],
			Message:  m[5],
		})
	}
	return out
}
