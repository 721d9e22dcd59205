package cmd

import (
	"fmt"
	"strings"

	"github.com/corey/ccflags/internal/adapters/socket"
)

// ANSI color codes for terminal output.
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorCyan   = "\033[36m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorGray   = "\033[90m"
)

// formatFlags renders a resolved configuration:
//
//	src/main.cpp  c++  bin  (compile_commands.json)
//	  -c -fsyntax-only -x c++ -std=c++14 -I/p/inc
//	  include: /p/inc
func formatFlags(r *socket.FlagsResult) string {
	var sb strings.Builder
	source := r.Source
	if source == "" {
		source = "no flags source"
	}
	sb.WriteString(fmt.Sprintf("%s%s%s  %s  %s  %s(%s)%s\n",
		colorCyan, r.File, colorReset, r.Lang, r.Engine, colorGray, source, colorReset))
	if r.Origin != "" {
		sb.WriteString(fmt.Sprintf("  %sfrom %s%s\n", colorGray, r.Origin, colorReset))
	}
	sb.WriteString("  " + strings.Join(r.Args, " ") + "\n")
	for _, inc := range r.IncludeFolders {
		sb.WriteString(fmt.Sprintf("  %sinclude:%s %s\n", colorGray, colorReset, inc))
	}
	for _, w := range r.Warnings {
		sb.WriteString(fmt.Sprintf("  %swarning:%s %s\n", colorYellow, colorReset, w))
	}
	return sb.String()
}

// formatHealth renders the health line.
func formatHealth(h *socket.HealthResult) string {
	return fmt.Sprintf("%s✓ ccflags daemon %s%s │ %d configs │ up %s\n  %s\n",
		colorGreen, h.Status, colorReset, h.Entries, h.Uptime, h.ProjectRoot)
}
