package ports

// LangDetector decides which language an ambiguous header (.h) is written in.
// The concrete implementation (tree-sitter) lives in internal/adapters/treesitter.
// When nil, headers default to C++.
type LangDetector interface {
	// DetectHeader returns "c" or "c++" for the given header contents, and
	// false when it cannot tell (empty file, parse failure).
	DetectHeader(path string, source []byte) (string, bool)
}
