package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newSendCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "send [text]",
		Short: "Put text on a server's clipboard (like pbcopy)",
		Long: `Sends text to a clipboard server: the argument when given, stdin otherwise.

Without --server the first ClipboardSyncServer advertised on the network is used.`,
		Args:    cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, args []string) error { return runSend(cmd, v, args) },
	}

	f := cmd.Flags()
	addServerFlags(f)
	f.BoolP("quiet", "q", false, "do not print the echoed text")
	addConfigFlag(f)
	return cmd
}

func runSend(cmd *cobra.Command, v *viper.Viper, args []string) error {
	var text string
	if len(args) == 1 {
		text = args[0]
	} else {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		text = string(data)
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("nothing to send")
	}

	ctx, cancel := commandContext()
	defer cancel()

	c, err := dialServer(ctx, v)
	if err != nil {
		return err
	}
	echo, err := c.Send(ctx, text)
	if err != nil {
		return err
	}
	if !v.GetBool("quiet") {
		fmt.Fprintf(os.Stderr, "sent %d bytes to %s\n", len(echo), c.BaseURL)
	}
	return nil
}
