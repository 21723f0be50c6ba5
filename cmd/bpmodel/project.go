package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"go.bpmodel.dev/model/project"
	"go.bpmodel.dev/model/project/docstore"
	"go.bpmodel.dev/model/project/searchindex"
)

var errUnknownBackend = errors.New("unknown backend")

func newProjectCmd() *cobra.Command {
	var (
		backend     string
		skipCVParse bool
	)

	cmd := &cobra.Command{
		Use:   "project <path>",
		Short: "Project a model into a backend create+index plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := openModel(args[0], skipCVParse)
			if err != nil {
				return err
			}

			doc := project.Serialize(m)

			var plan any

			switch backend {
			case "docstore":
				plan, err = docstore.Project(cmd.Context(), doc, docstore.Options{MetadataCollection: metadataCollectionName(m.MetadataCollection)})
			case "searchindex":
				plan, err = searchindex.Project(doc)
			default:
				return fmt.Errorf("%w: %s (want docstore or searchindex)", errUnknownBackend, backend)
			}

			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(plan, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal plan: %w", err)
			}

			_, err = cmd.OutOrStdout().Write(append(out, '\n'))

			return err
		},
	}

	cmd.Flags().StringVar(&backend, "backend", "docstore", "target backend: docstore or searchindex")
	cmd.Flags().BoolVar(&skipCVParse, "skip-cv-parse", false, "tolerate unresolved (URI-only) controlled vocabularies")

	return cmd
}

func metadataCollectionName(name string) string {
	if name == "" {
		return "metadata"
	}

	return name
}
