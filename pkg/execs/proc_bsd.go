//go:build unix && !linux

package execs

import "syscall"

// setParentDeathSignal is a no-op; Pdeathsig is a Linux-only kernel feature.
func setParentDeathSignal(_ *syscall.SysProcAttr) {}
