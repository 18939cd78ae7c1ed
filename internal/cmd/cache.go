package cmd

import (
	"fmt"

	"github.com/quantmind-br/gman/internal/config"
	"github.com/quantmind-br/gman/internal/core"
	"github.com/quantmind-br/gman/internal/ui"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// NewCacheCmd creates the cache command
func NewCacheCmd(cfg *config.Config, log *zerolog.Logger) *cobra.Command {
	return newCacheCmd(cfg, log, defaultWiring())
}

func newCacheCmd(cfg *config.Config, log *zerolog.Logger, rt wiring) *cobra.Command {
	var (
		clearCache bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Show or clear the downloaded builds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			sess, err := rt.open(cfg, log, cmd.ErrOrStderr())
			if err != nil {
				ui.PrintError(out, "%v", err)
				return withExit(core.ExitGeneral, err)
			}

			if clearCache {
				n, err := sess.cache.Clear()
				if err != nil {
					ui.PrintError(out, "%v", err)
					return withExit(core.ExitGeneral, err)
				}
				ui.PrintSuccess(out, "Removed %d cached file(s) from %s", n, sess.cache.Dir())
				return nil
			}

			entries, err := sess.cache.List()
			if err != nil {
				ui.PrintError(out, "%v", err)
				return withExit(core.ExitGeneral, err)
			}

			if jsonOutput {
				if entries == nil {
					entries = []core.InstallationCandidate{}
				}
				return writeJSON(out, entries)
			}

			if len(entries) == 0 {
				ui.PrintInfo(out, "Cache is empty (%s)", sess.cache.Dir())
				return nil
			}

			ui.PrintHeader(out, fmt.Sprintf("Cached builds in %s", sess.cache.Dir()))
			printCandidateTable(out, entries, false)
			return nil
		},
	}

	cmd.Flags().BoolVar(&clearCache, "clear", false, "remove every cached build")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	return cmd
}
