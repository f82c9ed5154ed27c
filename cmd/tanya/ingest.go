package main

import (
	"github.com/hyperjump/tanya/internal/cli"
	"github.com/spf13/cobra"
)

func newIngestCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Ingest new corpus files into the index",
		Long: `Scans the corpus directory, chunks and embeds every source not seen before, and
persists the index. Sources already ingested are skipped, so running it twice is a no-op.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := initializeComponents(opts)
			if err != nil {
				return err
			}
			defer c.Close()

			_, report, err := c.Manager.EnsureIndex(cmd.Context(), c.Config.Corpus.Directory)
			if err != nil {
				return describeError(err)
			}
			return cli.WriteIngestReport(cmd.OutOrStdout(), report, c.Format)
		},
	}
}
