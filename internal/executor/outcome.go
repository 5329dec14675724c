package executor

import "time"

// Kind classifies how a command run ended.
type Kind string

// Outcome kinds.
const (
	KindSuccess       Kind = "Success"
	KindToolNotFound  Kind = "ToolNotFound"
	KindTimeout       Kind = "Timeout"
	KindNonZeroExit   Kind = "NonZeroExit"
	KindInternalError Kind = "InternalError"
)

// Exit codes reported when the process did not produce one.
const (
	ExitToolNotFound = -127
	ExitTimeout      = -2
	ExitInternal     = -3
)

// Outcome is the result of one control binary invocation.
type Outcome struct {
	Kind     Kind          `json:"kind" yaml:"kind"`
	ExitCode int           `json:"exitCode" yaml:"exitCode"`
	Stdout   string        `json:"stdout" yaml:"stdout"`
	Stderr   string        `json:"stderr" yaml:"stderr"`
	Args     []string      `json:"args" yaml:"args"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// OK reports whether the command exited zero.
func (o Outcome) OK() bool {
	return o.Kind == KindSuccess
}

// Message returns stderr, falling back to stdout, for error reporting.
func (o Outcome) Message() string {
	if o.Stderr != "" {
		return o.Stderr
	}
	return o.Stdout
}
