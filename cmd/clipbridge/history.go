package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/clipbridge/internal/control"
	"go.klb.dev/clipbridge/internal/logging"
)

func newHistoryCmd() *cobra.Command {
	v := viper.New()
	bind := func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) }

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List or edit the local daemon's clipboard history",
		Args:  cobra.NoArgs,
		// Bare "history" lists.
		PreRunE: bind,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistoryList(cmd, v)
		},
	}
	addSocketFlag(cmd.PersistentFlags())
	addConfigFlag(cmd.PersistentFlags())

	list := &cobra.Command{
		Use:     "list",
		Short:   "Print the history, newest first",
		Args:    cobra.NoArgs,
		PreRunE: bind,
		RunE:    func(cmd *cobra.Command, _ []string) error { return runHistoryList(cmd, v) },
	}
	list.Flags().Bool("json", false, "output a JSON array")
	list.Flags().BoolP("full", "f", false, "print entries in full instead of one line each")
	cmd.Flags().AddFlagSet(list.Flags())

	clear := &cobra.Command{
		Use:     "clear",
		Short:   "Delete every entry",
		Args:    cobra.NoArgs,
		PreRunE: bind,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := commandContext()
			defer cancel()
			if err := control.NewClient(v.GetString("socket")).Clear(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "history cleared")
			return nil
		},
	}

	del := &cobra.Command{
		Use:     "delete N",
		Short:   "Delete entry N (as numbered by list)",
		Args:    cobra.ExactArgs(1),
		PreRunE: bind,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEntry(v, args[0], func(ctx context.Context, c *control.Client, text string) error {
				found, err := c.Delete(ctx, text)
				if err != nil {
					return err
				}
				if !found {
					return fmt.Errorf("entry %s changed before it could be deleted", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted entry %s\n", args[0])
				return nil
			})
		},
	}

	sel := &cobra.Command{
		Use:     "select N",
		Short:   "Put entry N back on the daemon host's clipboard",
		Args:    cobra.ExactArgs(1),
		PreRunE: bind,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEntry(v, args[0], func(ctx context.Context, c *control.Client, text string) error {
				if err := c.Select(ctx, text); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "entry %s is on the clipboard\n", args[0])
				return nil
			})
		},
	}

	cmd.AddCommand(list, clear, del, sel)
	return cmd
}

func runHistoryList(cmd *cobra.Command, v *viper.Viper) error {
	ctx, cancel := commandContext()
	defer cancel()

	entries, err := control.NewClient(v.GetString("socket")).History(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if v.GetBool("json") {
		if entries == nil {
			entries = []string{}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(entries)
	}
	printHistory(out, entries, v.GetBool("full"))
	return nil
}

func printHistory(out io.Writer, entries []string, full bool) {
	if len(entries) == 0 {
		fmt.Fprintln(out, "history is empty")
		return
	}
	for i, e := range entries {
		if full {
			fmt.Fprintf(out, "--- %d ---\n%s\n", i+1, e)
			continue
		}
		fmt.Fprintf(out, "%3d  %s\n", i+1, logging.Preview(e))
	}
}

// withEntry resolves a 1-based index from the list to the entry's text.
func withEntry(v *viper.Viper, arg string, fn func(context.Context, *control.Client, string) error) error {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 {
		return fmt.Errorf("invalid entry number %q", arg)
	}

	ctx, cancel := commandContext()
	defer cancel()
	c := control.NewClient(v.GetString("socket"))
	entries, err := c.History(ctx)
	if err != nil {
		return err
	}
	if n > len(entries) {
		return fmt.Errorf("no entry %d (history has %d)", n, len(entries))
	}
	return fn(ctx, c, entries[n-1])
}
