package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"go.bpmodel.dev/model/ingest"
)

func newIngestDemoCmd() *cobra.Command {
	var (
		domainName  string
		conceptName string
		inputPath   string
		batchSize   int
		strict      bool
		skipCVParse bool
	)

	cmd := &cobra.Command{
		Use:   "ingest-demo <model-path>",
		Short: "Validate CSV records against a concept's column-set, batch by batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := openModel(args[0], skipCVParse)
			if err != nil {
				return err
			}

			concept, ok := m.Concept(domainName, conceptName)
			if !ok {
				return fmt.Errorf("unknown concept %s.%s", domainName, conceptName)
			}

			f, err := os.Open(inputPath) //nolint:gosec // input path is a CLI argument.
			if err != nil {
				return fmt.Errorf("open input: %w", err)
			}
			defer f.Close()

			var opts []ingest.Option
			if batchSize > 0 {
				opts = append(opts, ingest.WithBatchSize(batchSize))
			}

			driver := ingest.New(m, concept, opts...)

			stats := &ingestStats{}
			reader, err := csvReader(f, stats)
			if err != nil {
				return err
			}

			committer := func(_ context.Context, batch []ingest.Record) error {
				stats.committed.Add(int64(len(batch)))

				return nil
			}

			cont := func(errs []ingest.RecordError) bool {
				stats.failed.Add(int64(len(errs)))

				for _, e := range errs {
					slog.Warn("record rejected", "index", e.Index, "error", e.Err)
				}

				return !strict
			}

			if !term.IsTerminal(int(os.Stdout.Fd())) {
				err := driver.Run(cmd.Context(), reader, committer, cont)
				fmt.Fprintf(cmd.OutOrStdout(), "read=%d committed=%d failed=%d\n", stats.read.Load(), stats.committed.Load(), stats.failed.Load())

				return err
			}

			return runIngestTUI(cmd.Context(), driver, reader, committer, cont, stats)
		},
	}

	cmd.Flags().StringVar(&domainName, "domain", "", "target concept-domain name")
	cmd.Flags().StringVar(&conceptName, "concept", "", "target concept name")
	cmd.Flags().StringVar(&inputPath, "input", "", "CSV input file, header row names columns")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "override the default batch size")
	cmd.Flags().BoolVar(&strict, "strict", false, "abort the run on the first rejected record")
	cmd.Flags().BoolVar(&skipCVParse, "skip-cv-parse", false, "tolerate unresolved (URI-only) controlled vocabularies")

	return cmd
}

// ingestStats are the counters the CSV reader, committer, and continuation
// callback update concurrently; the TUI (or the plain-log fallback) polls
// them without synchronizing with the driver's own goroutines.
type ingestStats struct {
	read      atomic.Int64
	committed atomic.Int64
	failed    atomic.Int64
}

func csvReader(f *os.File, stats *ingestStats) (ingest.Reader, error) {
	r := csv.NewReader(f)

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	return func(_ context.Context) (ingest.Record, error) {
		row, err := r.Read()
		if err != nil {
			return nil, err
		}

		rec := make(ingest.Record, len(header))

		for i, col := range header {
			if i < len(row) {
				rec[col] = row[i]
			}
		}

		stats.read.Add(1)

		return rec, nil
	}, nil
}

// ingestDoneMsg is sent once, when the driver's Run call returns.
type ingestDoneMsg struct{ err error }

// ingestTickMsg drives the TUI's periodic poll of ingestStats.
type ingestTickMsg struct{}

type ingestModel struct {
	stats *ingestStats
	err   error
	done  bool
}

func (m *ingestModel) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(time.Time) tea.Msg {
		return ingestTickMsg{}
	})
}

func (m *ingestModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		}
	case ingestTickMsg:
		if m.done {
			return m, nil
		}

		return m, tickCmd()
	case ingestDoneMsg:
		m.done = true
		m.err = msg.err

		return m, tea.Quit
	}

	return m, nil
}

func (m *ingestModel) View() tea.View {
	status := "running"
	if m.done {
		status = "done"

		if m.err != nil && !errors.Is(m.err, ingest.ErrAborted) {
			status = "failed: " + m.err.Error()
		}
	}

	text := fmt.Sprintf("ingest: %s\n  read:      %d\n  committed: %d\n  failed:    %d\n",
		status, m.stats.read.Load(), m.stats.committed.Load(), m.stats.failed.Load())

	return tea.NewView(text)
}

func runIngestTUI(ctx context.Context, driver *ingest.Driver, reader ingest.Reader, committer ingest.Committer, cont ingest.Continue, stats *ingestStats) error {
	model := &ingestModel{stats: stats}
	prog := tea.NewProgram(model)

	go func() {
		err := driver.Run(ctx, reader, committer, cont)
		prog.Send(ingestDoneMsg{err: err})
	}()

	finalModel, err := prog.Run()
	if err != nil {
		return err
	}

	if fm, ok := finalModel.(*ingestModel); ok && fm.err != nil && !errors.Is(fm.err, ingest.ErrAborted) {
		return fm.err
	}

	return nil
}
