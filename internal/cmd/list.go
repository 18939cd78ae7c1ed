package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/quantmind-br/gman/internal/config"
	"github.com/quantmind-br/gman/internal/core"
	"github.com/quantmind-br/gman/internal/ui"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// NewListCmd creates the list command
func NewListCmd(cfg *config.Config, log *zerolog.Logger) *cobra.Command {
	return newListCmd(cfg, log, defaultWiring())
}

func newListCmd(cfg *config.Config, log *zerolog.Logger, rt wiring) *cobra.Command {
	var (
		jsonOutput       bool
		includeInstalled bool
		filterName       string
		showDetails      bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List available builds",
		Long: `List the builds every configured repository offers for this platform.
Installed builds are marked. With --installed, installed products that no
repository offers are listed too.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			sess, err := rt.open(cfg, log, cmd.ErrOrStderr())
			if err != nil {
				ui.PrintError(out, "%v", err)
				return withExit(core.ExitGeneral, err)
			}

			candidates, err := sess.engine.ListCandidates(ctx, includeInstalled)
			if err != nil {
				ui.PrintError(out, "%v", err)
				return withExit(core.ExitGeneral, err)
			}
			candidates = filterCandidates(candidates, filterName)

			if jsonOutput {
				if candidates == nil {
					candidates = []core.InstallationCandidate{}
				}
				return writeJSON(out, candidates)
			}

			if len(candidates) == 0 {
				if filterName != "" {
					ui.PrintWarning(out, "No builds found matching %q", filterName)
				} else {
					ui.PrintInfo(out, "No builds found")
				}
				return nil
			}

			ui.PrintHeader(out, fmt.Sprintf("Builds for %s", sess.platform))
			fmt.Fprintf(out, "Total: %d builds, %d installed\n\n", len(candidates), countInstalled(candidates))
			printCandidateTable(out, candidates, showDetails)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	cmd.Flags().BoolVar(&includeInstalled, "installed", false, "include installed products that no repository offers")
	cmd.Flags().StringVar(&filterName, "name", "", "filter by product name (partial match)")
	cmd.Flags().BoolVarP(&showDetails, "details", "d", false, "show detailed information")

	return cmd
}

// NewInstalledCmd creates the installed command
func NewInstalledCmd(cfg *config.Config, log *zerolog.Logger) *cobra.Command {
	return newInstalledCmd(cfg, log, defaultWiring())
}

func newInstalledCmd(cfg *config.Config, log *zerolog.Logger, rt wiring) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "installed",
		Short: "List installed products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			sess, err := rt.open(cfg, log, cmd.ErrOrStderr())
			if err != nil {
				ui.PrintError(out, "%v", err)
				return withExit(core.ExitGeneral, err)
			}

			installed, err := sess.engine.Installed(cmd.Context())
			if err != nil {
				ui.PrintError(out, "%v", err)
				return withExit(core.ExitGeneral, err)
			}

			if jsonOutput {
				if installed == nil {
					installed = []core.InstalledProduct{}
				}
				return writeJSON(out, installed)
			}

			if len(installed) == 0 {
				ui.PrintInfo(out, "No configured products are installed")
				return nil
			}

			table := tablewriter.NewTable(out,
				tablewriter.WithHeader([]string{"Product", "Version", "Type", "Package"}),
				tablewriter.WithAlignment(tw.MakeAlign(4, tw.AlignLeft)),
				tablewriter.WithSymbols(tw.NewSymbols(tw.StyleLight)),
			)
			for _, p := range installed {
				table.Append(
					p.ProductName,
					orDash(p.Version.String()),
					ui.ColorizePackageType(p.PackageType),
					p.PackageName,
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	return cmd
}

// filterCandidates keeps candidates whose product name contains name
func filterCandidates(candidates []core.InstallationCandidate, name string) []core.InstallationCandidate {
	if name == "" {
		return candidates
	}
	var filtered []core.InstallationCandidate
	for _, c := range candidates {
		if strings.Contains(strings.ToLower(c.ProductName), strings.ToLower(name)) {
			filtered = append(filtered, c)
		}
	}
	return filtered
}

func countInstalled(candidates []core.InstallationCandidate) int {
	n := 0
	for _, c := range candidates {
		if c.Installed {
			n++
		}
	}
	return n
}

// printCandidateTable prints one row per build
func printCandidateTable(w io.Writer, candidates []core.InstallationCandidate, details bool) {
	header := []string{"Product", "Flavor", "Type", "Version", "Branch", "Installed"}
	if details {
		header = append(header, "Repository")
	}

	style := tw.StyleNone
	if details {
		style = tw.StyleLight
	}
	table := tablewriter.NewTable(w,
		tablewriter.WithHeader(header),
		tablewriter.WithAlignment(tw.MakeAlign(len(header), tw.AlignLeft)),
		tablewriter.WithSymbols(tw.NewSymbols(style)),
	)

	for _, c := range candidates {
		installed := ""
		if c.Installed {
			installed = ui.CheckMark
		}
		row := []string{
			c.ProductName,
			orDash(c.Flavor.ID),
			ui.ColorizePackageType(c.Flavor.PackageType),
			orDash(c.Version.String()),
			orDash(c.Identifier),
			installed,
		}
		if details {
			location := c.RepoLocation
			if len(location) > 40 {
				location = "..." + location[len(location)-37:]
			}
			row = append(row, orDash(location))
		}
		table.Append(row)
	}

	table.Render()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
