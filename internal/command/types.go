// Package command turns free-form text into validated multipass commands.
//
// The flow is Extract (find candidates in text), Split (one command per
// piece), Normalize (canonical token form) and Classify (structured
// operation or a rejection). Every step is pure and safe to call from
// multiple goroutines.
package command

import (
	"fmt"
	"strings"
)

// Binary is the control binary every command is addressed to.
const Binary = "multipass"

// Operation is one verb of the supported vocabulary.
type Operation string

// Supported operations.
const (
	OpLaunch  Operation = "launch"
	OpStart   Operation = "start"
	OpStop    Operation = "stop"
	OpDelete  Operation = "delete"
	OpPurge   Operation = "purge"
	OpRecover Operation = "recover"
	OpList    Operation = "list"
	OpInfo    Operation = "info"
)

var operations = map[Operation]bool{
	OpLaunch:  true,
	OpStart:   true,
	OpStop:    true,
	OpDelete:  true,
	OpPurge:   true,
	OpRecover: true,
	OpList:    true,
	OpInfo:    true,
}

// ParseOperation returns the operation named by s (case-insensitive).
func ParseOperation(s string) (Operation, bool) {
	op := Operation(strings.ToLower(strings.TrimSpace(s)))
	return op, operations[op]
}

// RequiresName reports whether the operation addresses a single instance.
func (o Operation) RequiresName() bool {
	return o != OpList && o != OpPurge && operations[o]
}

// IsAsync reports whether the operation is dispatched in the background.
func (o Operation) IsAsync() bool {
	return o == OpLaunch
}

// Parameter keys recognized on launch.
const (
	ParamMemory = "memory"
	ParamDisk   = "disk"
	ParamCPUs   = "cpus"
	ParamImage  = "image"
)

// Command is a classified, executable command.
type Command struct {
	Operation  Operation         `json:"operation" yaml:"operation"`
	Name       string            `json:"resourceName,omitempty" yaml:"resourceName,omitempty"`
	Parameters map[string]string `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Purge      bool              `json:"purge,omitempty" yaml:"purge,omitempty"`
	Canonical  string            `json:"canonical" yaml:"canonical"`
}

// Param returns the named parameter or "".
func (c Command) Param(key string) string {
	return c.Parameters[key]
}

// Reason explains why a candidate was not turned into a Command.
type Reason string

// Rejection reasons.
const (
	ReasonUnsupportedOperation Reason = "UnsupportedOperation"
	ReasonMissingResourceName  Reason = "MissingResourceName"
	ReasonInvalidResourceName  Reason = "InvalidResourceName"
	ReasonMalformedArguments   Reason = "MalformedArguments"
)

// Rejection is the result of classifying text that is not a supported command.
type Rejection struct {
	Reason Reason `json:"reason" yaml:"reason"`
	Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`
	Input  string `json:"input" yaml:"input"`
}

func (r *Rejection) Error() string {
	if r.Detail == "" {
		return string(r.Reason)
	}
	return fmt.Sprintf("%s: %s", r.Reason, r.Detail)
}

func reject(input string, reason Reason, format string, args ...any) *Rejection {
	return &Rejection{Reason: reason, Detail: fmt.Sprintf(format, args...), Input: input}
}
