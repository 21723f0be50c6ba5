package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	var skipCVParse bool

	cmd := &cobra.Command{
		Use:   "validate <path>",
		Short: "Load a model and report whether it resolves cleanly",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := openModel(args[0], skipCVParse)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "ok: project %q, schema version %q, %d domain(s), %d collection(s), %d cv(s)\n",
				m.Project, m.SchemaVer, m.Domains.Len(), m.Collections.Len(), m.CVs.Len())

			return nil
		},
	}

	cmd.Flags().BoolVar(&skipCVParse, "skip-cv-parse", false, "tolerate unresolved (URI-only) controlled vocabularies")

	return cmd
}
