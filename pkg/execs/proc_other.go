//go:build !unix

package execs

import "os/exec"

func configureSysProcAttr(_ *exec.Cmd) {}

// No process groups or SIGTERM here, so both steps kill the process.
func interruptProcess(cmd *exec.Cmd) error {
	return cmd.Process.Kill() //nolint:wrapcheck // Returned as-is to the caller's logger.
}

func killProcess(cmd *exec.Cmd) error {
	return cmd.Process.Kill() //nolint:wrapcheck // Returned as-is to the caller's logger.
}
