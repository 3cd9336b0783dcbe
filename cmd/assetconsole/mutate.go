package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

var errAborted = errors.New("aborted")

func newMoveCmd(opts *globalOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "move <id> <new-parent-id>",
		Short: "Move an asset under a new parent",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, _, err := openSession(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer application.Logout()

			if err := application.Hierarchy.ValidateMove(args[0], args[1]); err != nil {
				return err
			}
			if !yes {
				question := fmt.Sprintf("Move %s under %s?", args[0], args[1])
				if !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), question) {
					return errAborted
				}
			}

			snap, err := application.Mutations.ReorderNode(cmd.Context(), args[0], args[1], true)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Moved %s under %s (version %d).\n", args[0], args[1], snap.Version)
			return err
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func newDeleteCmd(opts *globalOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an asset and its subtree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, snap, err := openSession(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer application.Logout()

			label := args[0]
			if snap.Tree != nil {
				if node, err := snap.Tree.FindByID(args[0]); err == nil {
					label = fmt.Sprintf("%q (%s)", node.Name, node.ID)
				}
			}
			if !yes && !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), "Delete "+label+" and everything under it?") {
				return errAborted
			}

			if _, err := application.Mutations.DeleteNode(cmd.Context(), args[0], true); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s.\n", label)
			return err
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

// confirm asks a y/N question; anything but y or yes declines.
func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N] ", question)

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
