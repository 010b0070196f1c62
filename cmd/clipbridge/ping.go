package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newPingCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:     "ping",
		Short:   "Check that a server is reachable and accepts the token",
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := commandContext()
			defer cancel()

			c, err := dialServer(ctx, v)
			if err != nil {
				return err
			}
			start := time.Now()
			if err := c.Ping(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s ok (%s)\n", c.BaseURL, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}

	addServerFlags(cmd.Flags())
	addConfigFlag(cmd.Flags())
	return cmd
}
