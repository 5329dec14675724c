//go:build !unix

package executor

import "os/exec"

// killProcessGroup keeps the default cancellation, which kills the process.
func killProcessGroup(*exec.Cmd) {}
