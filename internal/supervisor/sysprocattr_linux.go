//go:build linux

package supervisor

import (
	"os/exec"
	"syscall"
)

func configureCmdSysProcAttr(cmd *exec.Cmd, attrs ProcAttrs) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   attrs.NewProcessGroup,
		Pdeathsig: attrs.ParentDeathSignal,
	}
}
