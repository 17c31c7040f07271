//go:build windows

package procexec

import "os/exec"

// setProcessGroup is a no-op on Windows; process groups are managed
// differently there and this tool only needs best-effort cleanup.
func setProcessGroup(cmd *exec.Cmd) {}

func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}
