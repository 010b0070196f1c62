// clipbridge: phone-to-desktop clipboard bridge for the local network.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"go.klb.dev/clipbridge/internal/logging"
)

// Version is set at build time via -ldflags "-X main.Version=x.y.z".
var Version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "clipbridge",
		Short: "Share the clipboard with your phone over the local network",
		Long: `clipbridge exposes this machine's clipboard over HTTP so a phone on the
same network can read and write it, advertises itself with mDNS as
ClipboardSyncServer-<host>, and keeps the last 20 values it received.

Run "clipbridge serve" on the desktop. When the machine's network address
changes the daemon withdraws its advertisement and restarts itself on the
new address.

Config file search order (first found wins):
  /etc/clipbridge/clipbridge.toml
  $HOME/.config/clipbridge/clipbridge.toml
  path supplied via --config

All flags can be set via CLIPBRIDGE_<FLAG> env vars or config-file keys.
See "clipbridge serve --help" for the full flag reference.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newServeCmd(),
		newSendCmd(),
		newFetchCmd(),
		newPingCmd(),
		newStatusCmd(),
		newHistoryCmd(),
		newRestartCmd(),
		newStopCmd(),
		newUICmd(),
		newConfigCmd(),
		newVersionCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("clipbridge %s\n", Version)
		},
	}
}

// resolveLogging sets up the global slog logger after flags are parsed.
func resolveLogging(interactive bool, formatStr, levelStr string) {
	format := logging.ParseFormat(formatStr)
	level := logging.ParseLevel(levelStr)
	if levelStr == "" {
		if interactive {
			level = logging.ParseLevel("debug")
		} else {
			level = logging.ParseLevel("info")
		}
	}
	logging.Setup(format, level)
}
