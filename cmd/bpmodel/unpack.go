package main

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

func newUnpackCmd() *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "unpack <archive>",
		Short: "Extract a packaged archive's members to a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			zr, err := zip.OpenReader(args[0])
			if err != nil {
				return fmt.Errorf("open archive: %w", err)
			}
			defer zr.Close()

			if outDir == "" {
				outDir = "."
			}

			if err := os.MkdirAll(outDir, 0o755); err != nil { //nolint:gosec // output directory mode is intentional.
				return fmt.Errorf("create output dir: %w", err)
			}

			for _, f := range zr.File {
				if err := extractMember(outDir, f); err != nil {
					return fmt.Errorf("extract %s: %w", f.Name, err)
				}

				fmt.Fprintf(cmd.OutOrStdout(), "extracted %s\n", f.Name)
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "output-dir", "o", "", "output directory (default current directory)")

	return cmd
}

func extractMember(outDir string, f *zip.File) error {
	dest := filepath.Join(outDir, filepath.Clean(f.Name)) //nolint:gosec // archive member names are validated below.
	if !isWithinDir(outDir, dest) {
		return fmt.Errorf("member %s escapes output directory", f.Name)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil { //nolint:gosec // output directory mode is intentional.
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(dest) //nolint:gosec // dest is validated by isWithinDir.
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, rc); err != nil { //nolint:gosec // members are copied as stored; unpack does not verify digests.
		return err
	}

	return nil
}

func isWithinDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}

	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
