package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newFetchCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Print a server's clipboard (like pbpaste)",
		Long: `Reads the clipboard of a clipboard server and writes it to stdout.

Without --server the first ClipboardSyncServer advertised on the network is used.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, _ []string) error { return runFetch(cmd, v) },
	}

	f := cmd.Flags()
	addServerFlags(f)
	f.BoolP("newline", "n", false, "append a newline if the text lacks one")
	addConfigFlag(f)
	return cmd
}

func runFetch(cmd *cobra.Command, v *viper.Viper) error {
	ctx, cancel := commandContext()
	defer cancel()

	c, err := dialServer(ctx, v)
	if err != nil {
		return err
	}
	text, err := c.Fetch(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprint(out, text)
	if v.GetBool("newline") && !strings.HasSuffix(text, "\n") {
		fmt.Fprintln(out)
	}
	return nil
}
