package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"asset-console/internal/model"
)

func newExportCmd(opts *globalOptions) *cobra.Command {
	var (
		format string
		out    string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download the hierarchy file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, _, err := openSession(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer application.Logout()

			file, err := application.Transfer.Export(cmd.Context(), format)
			if err != nil {
				return err
			}

			if out == "-" {
				_, err = cmd.OutOrStdout().Write(file.Data)
				return err
			}
			if out == "" {
				out = file.Filename
			}
			if err := os.WriteFile(out, file.Data, 0o644); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			_, err = fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d bytes to %s.\n", len(file.Data), out)
			return err
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "export format")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output path, - for stdout")
	return cmd
}

func newImportCmd(opts *globalOptions) *cobra.Command {
	var merge bool

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Upload a hierarchy file, replacing the tree unless --merge is set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open import file: %w", err)
			}
			defer f.Close()

			application, _, err := openSession(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer application.Logout()

			mode := model.ImportModeReplace
			if merge {
				mode = model.ImportModeMerge
			}
			snap, err := application.Transfer.Import(cmd.Context(), mode, filepath.Base(args[0]), f)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Imported %s (%s), %d assets.\n", filepath.Base(args[0]), mode, snap.Total)
			return err
		},
	}
	cmd.Flags().BoolVar(&merge, "merge", false, "merge into the existing tree")
	return cmd
}
