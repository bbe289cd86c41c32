//go:build linux

package execs

import "syscall"

// Pdeathsig makes the child receive SIGTERM when toxwatch dies abruptly.
func setParentDeathSignal(attr *syscall.SysProcAttr) {
	attr.Pdeathsig = syscall.SIGTERM
}
