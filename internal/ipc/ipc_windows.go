//go:build windows

package ipc

import "os"

// Windows 10 and later support AF_UNIX sockets on the filesystem.
func socketDir() string { return os.TempDir() }
