package main

import (
	"github.com/spf13/cobra"

	"triageflow/runtime"
)

var (
	ingestCursor string
	ingestWatch  []string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Poll intake sources and refresh the decision queue",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return send(runtime.CommandIngest, runtime.IngestPayload{
			Cursor:        ingestCursor,
			WatchKeywords: ingestWatch,
		})
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestCursor, "cursor", "", "RFC3339 cursor to poll from (default: 7 days back)")
	ingestCmd.Flags().StringSliceVar(&ingestWatch, "watch", nil, "watch keywords to match against signals")
}
