package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"go.bpmodel.dev/model/project"
)

func newDescribeCmd() *cobra.Command {
	var skipCVParse bool

	cmd := &cobra.Command{
		Use:   "describe <path>",
		Short: "Load a model and print its backend-neutral document as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := openModel(args[0], skipCVParse)
			if err != nil {
				return err
			}

			doc := project.Serialize(m)

			out, err := json.MarshalIndent(doc, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal document: %w", err)
			}

			_, err = cmd.OutOrStdout().Write(append(out, '\n'))

			return err
		},
	}

	cmd.Flags().BoolVar(&skipCVParse, "skip-cv-parse", false, "tolerate unresolved (URI-only) controlled vocabularies")

	return cmd
}
