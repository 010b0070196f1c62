//go:build windows

package lifecycle

import (
	"os"
	"os/exec"
)

// replaceProcess has no in-place exec on Windows: start a child with the
// same arguments and environment, then exit.
func replaceProcess(argv0 string, argv, env []string) error {
	cmd := exec.Command(argv0, argv[1:]...)
	cmd.Env = env
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return err
	}
	os.Exit(0)
	return nil
}
