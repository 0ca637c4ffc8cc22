package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"reelstream/internal/featured"
	"reelstream/internal/settings"
)

var latestCmd = &cobra.Command{
	Use:   "latest",
	Short: "Show or edit the latest shelf",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sel := newSelection()
		ids, err := sel.Current(cmd.Context())
		if err != nil {
			return err
		}
		printShelf(cmd.OutOrStdout(), ids, sel.Limit())
		return nil
	},
}

var latestAddCmd = &cobra.Command{
	Use:   "add <id>",
	Short: "Add a movie to the latest shelf",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editShelf(cmd, args[0], true)
	},
}

var latestRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a movie from the latest shelf",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editShelf(cmd, args[0], false)
	},
}

func init() {
	latestCmd.AddCommand(latestAddCmd, latestRemoveCmd)
}

func newSelection() *featured.Selection {
	return featured.NewSelection(settings.NewClient(cfg.APIBase, cfg.Token, nil), featured.MaxLatest, log)
}

func editShelf(cmd *cobra.Command, raw string, add bool) error {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid movie id %q", raw)
	}
	sel := newSelection()
	return applyEdit(cmd, sel, id, add)
}

func applyEdit(cmd *cobra.Command, sel *featured.Selection, id int64, add bool) error {
	if err := sel.Refresh(cmd.Context()); err != nil {
		return err
	}
	var ids []int64
	var err error
	if add {
		ids, err = sel.Add(cmd.Context(), id)
	} else {
		ids, err = sel.Remove(cmd.Context(), id)
	}
	if err != nil {
		return err
	}
	printShelf(cmd.OutOrStdout(), ids, sel.Limit())
	return nil
}

func printShelf(out io.Writer, ids []int64, limit int) {
	fmt.Fprintf(out, "latest (%d/%d):", len(ids), limit)
	for _, id := range ids {
		fmt.Fprintf(out, " %d", id)
	}
	fmt.Fprintln(out)
}
