package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/clipbridge/internal/control"
)

func newRestartCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "restart",
		Short: "Make the local daemon withdraw its advertisement and re-exec",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return bindViper(cmd, v)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := commandContext()
			defer cancel()
			ok, err := control.NewClient(v.GetString("socket")).Restart(ctx)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "daemon is already restarting or stopping")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "restart requested")
			return nil
		},
	}
	addSocketFlag(cmd.Flags())
	addConfigFlag(cmd.Flags())
	return cmd
}

func newStopCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the local daemon",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return bindViper(cmd, v)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := commandContext()
			defer cancel()
			ok, err := control.NewClient(v.GetString("socket")).Quit(ctx)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "daemon is already restarting or stopping")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "stop requested")
			return nil
		},
	}
	addSocketFlag(cmd.Flags())
	addConfigFlag(cmd.Flags())
	return cmd
}
