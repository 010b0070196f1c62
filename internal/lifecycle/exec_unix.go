//go:build !windows

package lifecycle

import "golang.org/x/sys/unix"

// replaceProcess swaps the running image for argv0. It only returns on
// failure.
func replaceProcess(argv0 string, argv, env []string) error {
	return unix.Exec(argv0, argv, env)
}
