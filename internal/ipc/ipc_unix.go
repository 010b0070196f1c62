//go:build !windows

package ipc

import "os"

func socketDir() string {
	// Linux: prefer XDG_RUNTIME_DIR
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir
	}
	// macOS / fallback
	return os.TempDir()
}
