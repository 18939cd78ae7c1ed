package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/quantmind-br/gman/internal/config"
	"github.com/quantmind-br/gman/internal/core"
	"github.com/quantmind-br/gman/internal/ui"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// NewConfigCmd creates the config command
func NewConfigCmd(cfg *config.Config, log *zerolog.Logger) *cobra.Command {
	return newConfigCmd(cfg, log, defaultWiring())
}

func newConfigCmd(cfg *config.Config, log *zerolog.Logger, rt wiring) *cobra.Command {
	var (
		sample    bool
		sampleDir string
	)

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration or write a sample",
		Long: `Show the effective configuration. With --sample, write a commented sample
configuration file to the given directory instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if sample {
				path, err := config.WriteSample(rt.fs, sampleDir)
				if err != nil {
					ui.PrintError(out, "%v", err)
					return withExit(core.ExitGeneral, err)
				}
				log.Info().Str("path", path).Msg("sample configuration written")
				ui.PrintSuccess(out, "Sample configuration written to %s", path)
				return nil
			}

			if path := os.Getenv(config.EnvConfigFile); path != "" {
				ui.PrintKeyValue(out, "Config file", path)
			}

			ui.PrintHeader(out, "Paths")
			ui.PrintKeyValue(out, "Data", cfg.Paths.DataDir)
			ui.PrintKeyValue(out, "Cache", cfg.Paths.CacheDir)
			ui.PrintKeyValue(out, "Temp", cfg.Paths.TempDir)
			ui.PrintKeyValue(out, "History", cfg.Paths.DBFile)
			ui.PrintKeyValue(out, "Log", cfg.Paths.LogFile)

			ui.PrintHeader(out, "Install")
			ui.PrintKeyValue(out, "Automatic upgrade", orDash(cfg.Install.AutomaticUpgrade))
			ui.PrintKeyValue(out, "Prompt", strconv.FormatBool(cfg.Install.Prompt))
			ui.PrintKeyValue(out, "Default branch", orDash(cfg.Install.DefaultIdentifier))
			ui.PrintKeyValue(out, "Chunk size", strconv.FormatInt(cfg.Download.ChunkSize, 10))

			ui.PrintHeader(out, "Repositories")
			if len(cfg.Repositories) == 0 {
				ui.PrintInfo(out, "none configured")
			}
			for _, r := range cfg.Repositories {
				ui.PrintKeyValue(out, orDash(r.Name), fmt.Sprintf("%s %v", r.Location(), r.Platforms))
			}

			ui.PrintHeader(out, "Products")
			if len(cfg.Products) == 0 {
				ui.PrintInfo(out, "none configured")
			}
			for _, p := range cfg.Products {
				ids := make([]string, len(p.Flavors))
				for i, f := range p.Flavors {
					ids[i] = fmt.Sprintf("%s/%s", f.Platform, f.ID)
				}
				ui.PrintKeyValue(out, p.Name, fmt.Sprintf("%v", ids))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&sample, "sample", false, "write a sample configuration file")
	cmd.Flags().StringVar(&sampleDir, "dir", ".", "directory the sample is written to")

	return cmd
}
