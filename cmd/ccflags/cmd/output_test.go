package cmd

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/corey/ccflags/internal/adapters/socket"
)

func TestFormatFlags(t *testing.T) {
	out := formatFlags(&socket.FlagsResult{
		File:           "/p/src/main.cpp",
		Engine:         "bin",
		Lang:           "c++",
		Args:           []string{"-c", "-fsyntax-only", "-x", "c++", "-I/p/inc"},
		IncludeFolders: []string{"/p/inc"},
		Source:         "compile_commands.json",
		Origin:         "/p/compile_commands.json",
		Warnings:       []string{"your lang_flags settings define too many std flags: [-std=c++11, -std=c++14]"},
	})
	assert.Contains(t, out, "/p/src/main.cpp")
	assert.Contains(t, out, "(compile_commands.json)")
	assert.Contains(t, out, "from /p/compile_commands.json")
	assert.Contains(t, out, "-c -fsyntax-only -x c++ -I/p/inc\n")
	assert.Contains(t, out, "include:"+colorReset+" /p/inc")
	assert.Contains(t, out, "too many std flags")
}

func TestFormatFlags_NoSource(t *testing.T) {
	out := formatFlags(&socket.FlagsResult{File: "/p/a.c", Engine: "bin", Lang: "c", Args: []string{"-x", "c"}})
	assert.Contains(t, out, "(no flags source)")
	assert.NotContains(t, out, "from ")
	assert.Equal(t, 2, strings.Count(out, "\n"))
}

func TestFormatHealth(t *testing.T) {
	out := formatHealth(&socket.HealthResult{Status: "ok", ProjectRoot: "/p", Entries: 3, Uptime: "1m0s"})
	assert.Contains(t, out, "3 configs")
	assert.Contains(t, out, "up 1m0s")
	assert.Contains(t, out, "/p")
}
