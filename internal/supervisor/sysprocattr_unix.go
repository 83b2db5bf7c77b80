//go:build unix && !linux

package supervisor

import (
	"os/exec"
	"syscall"
)

func configureCmdSysProcAttr(cmd *exec.Cmd, attrs ProcAttrs) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: attrs.NewProcessGroup}
}
