//go:build !unix

package process

import "os/exec"

// Process groups are unix-only; elsewhere only marimo itself is signalled.
func setProcessGroup(*exec.Cmd) {}

func terminate(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}

func forceKill(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}
