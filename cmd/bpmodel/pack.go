package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"go.bpmodel.dev/model/bpmodel"
)

func newPackCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "pack <model.xml> <schema.xsd>",
		Short: "Load a plain model document and seal it into a packaged archive",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			modelPath, schemaPath := args[0], args[1]

			m, err := bpmodel.Load(modelPath)
			if err != nil {
				return fmt.Errorf("load model: %w", err)
			}

			schemaXSD, err := os.ReadFile(schemaPath) //nolint:gosec // schema path is a CLI argument.
			if err != nil {
				return fmt.Errorf("read schema: %w", err)
			}

			info, err := os.Stat(modelPath)
			if err != nil {
				return fmt.Errorf("stat model: %w", err)
			}

			if output == "" {
				output = m.Project + ".bpz"
			}

			out, err := os.Create(output) //nolint:gosec // output path is a CLI argument.
			if err != nil {
				return fmt.Errorf("create output: %w", err)
			}
			defer out.Close()

			if err := bpmodel.Pack(m, schemaXSD, info.ModTime(), out); err != nil {
				return fmt.Errorf("pack: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", output)

			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output archive path (default <project>.bpz)")

	return cmd
}
