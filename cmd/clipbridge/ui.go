package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/clipbridge/internal/control"
	"go.klb.dev/clipbridge/internal/shell"
)

func newUICmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "ui",
		Short: "Open the terminal viewer for the local daemon",
		Long: `Shows the daemon's advertised address and clipboard history, updated live.

Keys: ↑/↓ move, enter puts the entry back on this machine's clipboard,
d deletes it, c clears the history, r restarts the daemon, x stops it,
q quits the viewer.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(_ *cobra.Command, _ []string) error { return runUI(v) },
	}
	addSocketFlag(cmd.Flags())
	addConfigFlag(cmd.Flags())
	return cmd
}

func runUI(v *viper.Viper) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	c := control.NewClient(v.GetString("socket"))
	events, err := c.Watch(ctx)
	if err != nil {
		return fmt.Errorf("is \"clipbridge serve\" running? %w", err)
	}
	return shell.Run(ctx, c, events)
}
