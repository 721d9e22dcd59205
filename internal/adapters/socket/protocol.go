// Package socket implements a JSON-over-Unix-socket protocol for the ccflags daemon.
// The protocol uses newline-delimited JSON: each message is one JSON object + \n.
package socket

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/corey/ccflags/internal/domain/includes"
	"github.com/corey/ccflags/internal/ports"
)

// SocketPath returns the Unix socket path for a given project root.
// Format: /tmp/ccflags-{first12hex}.sock
func SocketPath(projectRoot string) string {
	abs, err := filepath.Abs(projectRoot)
	if err != nil {
		abs = projectRoot
	}
	h := sha256.Sum256([]byte(abs))
	return fmt.Sprintf("/tmp/ccflags-%x.sock", h[:6])
}

// Method names for the protocol.
const (
	MethodHealth      = "health"
	MethodFlags       = "flags"
	MethodComplete    = "complete"
	MethodUpdate      = "update"
	MethodDeclaration = "declaration"
	MethodClear       = "clear"
	MethodStats       = "stats"
	MethodHeaders     = "headers"
	MethodShutdown    = "shutdown"
)

// Request is the wire format for client-to-server messages.
type Request struct {
	ID     string      `json:"id"`
	Method string      `json:"method"`
	Params interface{} `json:"params,omitempty"`
}

// Response is the wire format for server-to-client messages.
type Response struct {
	ID     string      `json:"id"`
	Result interface{} `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// decodeInto re-marshals a loosely typed value into out.
func decodeInto(v interface{}, out interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// ViewParams identify an open file. Text is the unsaved buffer; empty means
// read the file from disk. Lang is the editor's language hint. Prefix filters
// headers requests.
type ViewParams struct {
	File   string `json:"file"`
	Text   string `json:"text,omitempty"`
	Lang   string `json:"lang,omitempty"`
	Row    int    `json:"row,omitempty"`
	Col    int    `json:"col,omitempty"`
	Prefix string `json:"prefix,omitempty"`
}

// HealthResult is the result of a health request.
type HealthResult struct {
	Status      string `json:"status"`
	ProjectRoot string `json:"project_root"`
	Entries     int    `json:"entries"`
	Uptime      string `json:"uptime"`
}

// FlagsResult is the resolved configuration of one file.
type FlagsResult struct {
	File           string   `json:"file"`
	Engine         string   `json:"engine"`
	Lang           string   `json:"lang"`
	Args           []string `json:"args"`
	IncludeFolders []string `json:"include_folders"`
	Source         string   `json:"source,omitempty"`
	Origin         string   `json:"origin,omitempty"`
	Warnings       []string `json:"warnings,omitempty"`
}

// CompleteResult is the result of a complete request. Superseded is set,
// with no completions, when a newer request for the same file arrived while
// this one ran.
type CompleteResult struct {
	Completions []ports.Completion `json:"completions"`
	Count       int                `json:"count"`
	Superseded  bool               `json:"superseded,omitempty"`
}

// UpdateResult is the result of an update request.
type UpdateResult struct {
	Diagnostics []ports.Diagnostic `json:"diagnostics"`
	Count       int                `json:"count"`
	Superseded  bool               `json:"superseded,omitempty"`
}

// HeadersResult lists the headers reachable from a file's include folders.
type HeadersResult struct {
	Headers []includes.Header `json:"headers"`
	Count   int               `json:"count"`
}

// DeclarationResult is the result of a declaration request. Location is nil
// when the engine cannot tell.
type DeclarationResult struct {
	Location *ports.Location `json:"location,omitempty"`
}

// ClearResult is the result of a clear request.
type ClearResult struct {
	Cleared bool `json:"cleared"`
}

// StatsResult is the result of a stats request.
type StatsResult struct {
	Entries       int      `json:"entries"`
	Hits          int64    `json:"hits"`
	Builds        int64    `json:"builds"`
	Evictions     int64    `json:"evictions"`
	Clears        int64    `json:"clears"`
	MaxAgeSeconds float64  `json:"max_age_seconds"`
	Workers       int      `json:"workers"`
	Pending       int      `json:"pending"`
	Running       int      `json:"running"`
	Superseded    int64    `json:"superseded"`
	Files         []string `json:"files,omitempty"`
}
