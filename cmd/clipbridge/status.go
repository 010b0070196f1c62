package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/clipbridge/internal/control"
	"go.klb.dev/clipbridge/internal/message"
)

func newStatusCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the local daemon's state",
		Long: `Asks the daemon running on this machine, over its control socket, for its
advertised address, restart state and history size.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, _ []string) error { return runStatus(cmd, v) },
	}

	f := cmd.Flags()
	addSocketFlag(f)
	f.Bool("json", false, "output raw JSON")
	addConfigFlag(f)
	return cmd
}

func runStatus(cmd *cobra.Command, v *viper.Viper) error {
	ctx, cancel := commandContext()
	defer cancel()

	st, err := control.NewClient(v.GetString("socket")).Status(ctx)
	if err != nil {
		return err
	}

	if v.GetBool("json") {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}
	printStatus(cmd.OutOrStdout(), st)
	return nil
}

func printStatus(out io.Writer, st message.Status) {
	w := tabwriter.NewWriter(out, 1, 0, 2, ' ', 0)
	addr := st.Address
	if addr == "" {
		addr = "(none yet)"
	}
	state := "running"
	if st.Restarting {
		state = "restarting"
	}
	fmt.Fprintf(w, "Version:\t%s\n", st.Version)
	fmt.Fprintf(w, "PID:\t%d\n", st.PID)
	fmt.Fprintf(w, "State:\t%s\n", state)
	fmt.Fprintf(w, "Address:\t%s\n", addr)
	fmt.Fprintf(w, "Port:\t%d\n", st.Port)
	fmt.Fprintf(w, "Advertised:\t%t\n", st.Advertised)
	fmt.Fprintf(w, "Clipboard:\t%s\n", st.Clipboard)
	fmt.Fprintf(w, "History:\t%d entries\n", st.Entries)
	fmt.Fprintf(w, "Viewers:\t%d\n", st.Viewers)
	if !st.Started.IsZero() {
		fmt.Fprintf(w, "Up:\t%s (since %s)\n", fmtAge(st.Started), st.Started.Format(time.RFC3339))
	}
	_ = w.Flush()
}
