package cmd

import (
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/quantmind-br/gman/internal/config"
	"github.com/quantmind-br/gman/internal/core"
	"github.com/quantmind-br/gman/internal/db"
	"github.com/quantmind-br/gman/internal/ui"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// NewHistoryCmd creates the history command
func NewHistoryCmd(cfg *config.Config, log *zerolog.Logger) *cobra.Command {
	var (
		limit        int
		product      string
		clearHistory bool
		jsonOutput   bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past installs and uninstalls",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			database, err := db.New(ctx, cfg.Paths.DBFile)
			if err != nil {
				ui.PrintError(out, "failed to open database: %v", err)
				return withExit(core.ExitDatabase, err)
			}
			defer database.Close()

			if clearHistory {
				n, err := database.Clear(ctx)
				if err != nil {
					ui.PrintError(out, "%v", err)
					return withExit(core.ExitDatabase, err)
				}
				log.Info().Int64("removed", n).Msg("history cleared")
				ui.PrintSuccess(out, "Removed %d history entries", n)
				return nil
			}

			entries, err := database.List(ctx, db.ListOptions{Product: product, Limit: limit})
			if err != nil {
				ui.PrintError(out, "%v", err)
				return withExit(core.ExitDatabase, err)
			}

			if jsonOutput {
				if entries == nil {
					entries = []db.Entry{}
				}
				return writeJSON(out, entries)
			}

			if len(entries) == 0 {
				ui.PrintInfo(out, "No history recorded")
				return nil
			}

			table := tablewriter.NewTable(out,
				tablewriter.WithHeader([]string{"Date", "Action", "Product", "Version", "Branch", "Result"}),
				tablewriter.WithAlignment(tw.MakeAlign(6, tw.AlignLeft)),
				tablewriter.WithSymbols(tw.NewSymbols(tw.StyleLight)),
			)
			for _, e := range entries {
				table.Append(
					e.CreatedAt.Local().Format("2006-01-02 15:04"),
					e.Action,
					e.Product,
					orDash(e.Version),
					orDash(e.Identifier),
					ui.ColorizeResult(e.Result),
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "show at most this many entries (0 shows all)")
	cmd.Flags().StringVar(&product, "product", "", "only show entries of this product")
	cmd.Flags().BoolVar(&clearHistory, "clear", false, "delete the whole history")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	return cmd
}
