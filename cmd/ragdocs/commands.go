package main

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"ragdocs/internal/ingest"
	"ragdocs/internal/retrieve"
	"ragdocs/internal/server"
	"ragdocs/internal/tui"
)

func newIngestCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest [files...]",
		Short: "Index the source directory or the given files",
		Long: `Splits each .txt document into chunks, embeds them and stores them.
Documents whose first chunk is already stored are skipped. Arguments may be
glob patterns; without arguments the configured source directory is used.`,
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			p, err := a.comps.Pipeline(cmd.Context())
			if err != nil {
				return err
			}
			var report ingest.Report
			if len(args) == 0 {
				report, err = p.IngestDir(cmd.Context(), a.cfg.SourceDir)
			} else {
				report, err = p.IngestFiles(cmd.Context(), args)
			}
			printReport(cmd, report)
			if err != nil {
				return err
			}
			if n := report.Count(ingest.Failed); n > 0 {
				return fmt.Errorf("%d document(s) failed", n)
			}
			return nil
		}),
	}
}

func printReport(cmd *cobra.Command, report ingest.Report) {
	for _, d := range report.Documents {
		switch d.State {
		case ingest.Stored:
			cmd.Printf("%s: %d chunks stored\n", d.DocumentID, d.Chunks)
		case ingest.Skipped:
			cmd.Printf("%s: already indexed, skipped\n", d.DocumentID)
		default:
			cmd.Printf("%s: %s: %v\n", d.DocumentID, d.State, d.Err)
		}
	}
	cmd.Printf("\n%d stored, %d skipped, %d failed\n",
		report.Count(ingest.Stored), report.Count(ingest.Skipped), report.Count(ingest.Failed))
}

func newRetrieveCmd(a *app) *cobra.Command {
	var showHits bool
	cmd := &cobra.Command{
		Use:   "retrieve [query]",
		Short: "Print the documents relevant to a question",
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			q, err := queryArg(cmd, args)
			if err != nil {
				return err
			}
			r, err := a.comps.Retriever(cmd.Context())
			if err != nil {
				return err
			}
			res, err := r.Retrieve(cmd.Context(), q)
			if err != nil {
				return err
			}
			printRetrieval(cmd, res, showHits)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&showHits, "hits", false, "also list the matching chunks with their distances")
	return cmd
}

func printRetrieval(cmd *cobra.Command, res retrieve.Result, showHits bool) {
	if showHits {
		cmd.Println("Matching chunks:")
		for _, h := range res.Hits {
			cmd.Printf("  %s  distance=%.4f\n", h.ID, h.Distance)
		}
		cmd.Println()
	}
	if len(res.Documents) == 0 {
		cmd.Println("No related documents found.")
		return
	}
	cmd.Println("Related documents:")
	cmd.Println(strings.Repeat("-", 40))
	for _, d := range res.Documents {
		cmd.Printf("[%s]\n%s\n\n", d.DocumentID, d.Text)
	}
}

func newAskCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ask [query]",
		Short: "Answer a question from the indexed documents",
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			q, err := queryArg(cmd, args)
			if err != nil {
				return err
			}
			c, err := a.comps.Composer(cmd.Context())
			if err != nil {
				return err
			}
			ans, err := c.Answer(cmd.Context(), q)
			if err != nil {
				return err
			}
			cmd.Println("Answer:")
			cmd.Println(strings.Repeat("-", 40))
			cmd.Println(ans.Text)
			if src := ans.Sources(); len(src) > 0 {
				cmd.Printf("\nSources: %s\n", strings.Join(src, ", "))
			}
			return nil
		}),
	}
}

func newChatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Ask questions in an interactive console",
		RunE: a.run(func(cmd *cobra.Command, _ []string) error {
			c, err := a.comps.Composer(cmd.Context())
			if err != nil {
				return err
			}
			st, err := a.comps.Store(cmd.Context())
			if err != nil {
				return err
			}
			n, err := st.Count(cmd.Context())
			if err != nil {
				return err
			}
			subtitle := fmt.Sprintf("%d chunks in %q", n, a.cfg.Collection)
			timeout := a.cfg.Embedder.Timeout() + a.cfg.Generator.Timeout()
			_, err = tea.NewProgram(tui.New(cmd.Context(), c, subtitle, timeout), tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
			if errors.Is(err, tea.ErrProgramKilled) && cmd.Context().Err() != nil {
				return nil
			}
			return err
		}),
	}
}

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve ingestion, retrieval and answers over HTTP",
		RunE: a.run(func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			p, err := a.comps.Pipeline(ctx)
			if err != nil {
				return err
			}
			r, err := a.comps.Retriever(ctx)
			if err != nil {
				return err
			}
			c, err := a.comps.Composer(ctx)
			if err != nil {
				return err
			}
			st, err := a.comps.Store(ctx)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			srv := server.NewServer(addr, server.Deps{
				Ingester:  p,
				Retriever: r,
				Asker:     c,
				Store:     st,
				SourceDir: a.cfg.SourceDir,
			}, a.logger.Named("server"))
			return srv.Run(ctx)
		}),
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show the size of the collection",
		RunE: a.run(func(cmd *cobra.Command, _ []string) error {
			st, err := a.comps.Store(cmd.Context())
			if err != nil {
				return err
			}
			n, err := st.Count(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Printf("collection: %s\nbackend:    %s\n", a.cfg.Collection, a.cfg.VectorStore.Type)
			if f, ok := st.(interface{ Path() string }); ok {
				cmd.Printf("file:       %s\n", f.Path())
			}
			cmd.Printf("chunks:     %d\n", n)
			return nil
		}),
	}
}

func newClearCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every stored chunk of the collection",
		RunE: a.run(func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("refusing to clear without --yes")
			}
			st, err := a.comps.Store(cmd.Context())
			if err != nil {
				return err
			}
			if err := st.Clear(cmd.Context()); err != nil {
				return err
			}
			cmd.Printf("collection %s cleared\n", a.cfg.Collection)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion")
	return cmd
}

