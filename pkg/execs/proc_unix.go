//go:build unix

package execs

import (
	"os/exec"
	"syscall"
)

// configureSysProcAttr puts the child in its own process group, so that
// signals reach the tox environment's own children too.
func configureSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	setParentDeathSignal(cmd.SysProcAttr)
}

func interruptProcess(cmd *exec.Cmd) error {
	return signalGroup(cmd, syscall.SIGTERM)
}

func killProcess(cmd *exec.Cmd) error {
	return signalGroup(cmd, syscall.SIGKILL)
}

func signalGroup(cmd *exec.Cmd, sig syscall.Signal) error {
	err := syscall.Kill(-cmd.Process.Pid, sig)
	if err != nil {
		return cmd.Process.Signal(sig) //nolint:wrapcheck // Returned as-is to the caller's logger.
	}

	return nil
}
