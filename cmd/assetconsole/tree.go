package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"asset-console/internal/model"
)

const (
	ansiHighlight = "\x1b[1;33m"
	ansiReset     = "\x1b[0m"
)

func newTreeCmd(opts *globalOptions) *cobra.Command {
	var (
		search  string
		noColor bool
	)

	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Print the asset hierarchy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, snap, err := openSession(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer application.Logout()

			if snap.Err != nil {
				return snap.Err
			}
			color := !noColor && isTerminal(cmd.OutOrStdout())
			return renderTree(cmd.OutOrStdout(), snap.View(search), color)
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "show only matches and their ancestors")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable match highlighting")
	return cmd
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

func renderTree(w io.Writer, view model.HierarchyViewData, color bool) error {
	switch {
	case view.Status == model.HierarchyStatusAbsent || view.Root == nil:
		_, err := fmt.Fprintln(w, "No hierarchy found.")
		return err
	case view.NoMatches:
		_, err := fmt.Fprintf(w, "No assets match %q.\n", view.Term)
		return err
	}

	var b strings.Builder
	writeNode(&b, *view.Root, 0, color)
	fmt.Fprintf(&b, "\n%d assets, version %d\n", view.Total, view.Version)
	_, err := io.WriteString(w, b.String())
	return err
}

func writeNode(b *strings.Builder, node model.NodeView, depth int, color bool) {
	b.WriteString(strings.Repeat("  ", depth))
	if len(node.Spans) == 0 {
		b.WriteString(node.Name)
	}
	for _, span := range node.Spans {
		if span.Match && color {
			b.WriteString(ansiHighlight + span.Text + ansiReset)
			continue
		}
		b.WriteString(span.Text)
	}
	fmt.Fprintf(b, " (%s)\n", node.ID)

	for _, child := range node.Children {
		writeNode(b, child, depth+1, color)
	}
}
