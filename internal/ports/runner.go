package ports

import "context"

// Runner executes external programs (cmake, clang, target compilers).
// The exec adapter implements it with os/exec; tests substitute fakes.
type Runner interface {
	// Run executes cmd and returns its combined stdout+stderr. A non-zero exit
	// is not an error: it is reported in Result.ExitCode with the output
	// preserved. err is non-nil only when the program could not be started
	// or ctx expired.
	Run(ctx context.Context, cmd Command) (Result, error)
}

// Command describes one subprocess invocation.
type Command struct {
	Name  string
	Args  []string
	Dir   string   // working directory, "" = current
	Env   []string // extra KEY=VALUE entries appended to the process environment
	Stdin []byte   // nil = empty stdin
}

// Result is the outcome of a finished subprocess.
type Result struct {
	Output   []byte
	ExitCode int
}
