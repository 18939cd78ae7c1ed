package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/quantmind-br/gman/internal/config"
	"github.com/quantmind-br/gman/internal/core"
	"github.com/quantmind-br/gman/internal/db"
	"github.com/quantmind-br/gman/internal/fsops"
	"github.com/quantmind-br/gman/internal/ui"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// platformTools lists the native commands each platform's installer drives
var platformTools = map[core.Platform][]string{
	core.PlatformWindows:     {"msiexec", "powershell"},
	core.PlatformMac:         {"installer", "hdiutil"},
	core.PlatformLinux:       {"dpkg", "dpkg-query", "sudo"},
	core.PlatformRaspberryPi: {"dpkg", "dpkg-query", "sudo"},
}

// NewDoctorCmd creates the doctor command
func NewDoctorCmd(cfg *config.Config, log *zerolog.Logger) *cobra.Command {
	return newDoctorCmd(cfg, log, defaultWiring())
}

func newDoctorCmd(cfg *config.Config, log *zerolog.Logger, rt wiring) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and system dependencies",
		Long:  `Check the configuration, the data directories, the history database and the native installer tools of this platform.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			var issues []string
			var warnings []string

			ui.PrintHeader(out, "Configuration")
			if err := cfg.Validate(); err != nil {
				ui.PrintCheck(out, false, "configuration: %v", err)
				issues = append(issues, fmt.Sprintf("Invalid configuration: %v", err))
			} else {
				ui.PrintCheck(out, true, "configuration is valid")
			}
			if len(cfg.Repositories) == 0 {
				ui.PrintCheck(out, false, "no repositories configured")
				warnings = append(warnings, "No repositories configured")
			} else {
				ui.PrintCheck(out, true, "%d repositories, %d products", len(cfg.Repositories), len(cfg.Products))
			}
			fmt.Fprintln(out)

			ui.PrintHeader(out, "Platform")
			platform, err := rt.platform()
			if err != nil {
				ui.PrintCheck(out, false, "%v", err)
				issues = append(issues, err.Error())
			} else {
				ui.PrintKeyValue(out, "Platform", string(platform))
				valid := core.ValidRepositories(cfg.Repositories, platform)
				ui.PrintKeyValue(out, "Repositories", fmt.Sprintf("%d usable", len(valid)))
				for _, tool := range platformTools[platform] {
					if rt.runner.CommandExists(tool) {
						ui.PrintCheck(out, true, "%s: found", tool)
					} else {
						ui.PrintCheck(out, false, "%s: NOT FOUND", tool)
						issues = append(issues, fmt.Sprintf("Missing installer tool: %s", tool))
					}
				}
			}
			fmt.Fprintln(out)

			ui.PrintHeader(out, "Directories")
			dirs := []struct {
				name string
				path string
			}{
				{"Data directory", cfg.Paths.DataDir},
				{"Cache directory", cfg.Paths.CacheDir},
				{"Temp directory", cfg.Paths.TempDir},
				{"Log directory", filepath.Dir(cfg.Paths.LogFile)},
			}
			for _, dir := range dirs {
				if dir.path == "" || dir.path == "." {
					continue
				}
				if err := checkDirectory(rt, dir.path); err != nil {
					ui.PrintCheck(out, false, "%s: NOT ACCESSIBLE (%s)", dir.name, dir.path)
					issues = append(issues, fmt.Sprintf("Directory not accessible: %s", dir.path))
				} else {
					ui.PrintCheck(out, true, "%s: %s", dir.name, dir.path)
				}
			}
			fmt.Fprintln(out)

			ui.PrintHeader(out, "History")
			if cfg.Paths.DBFile != "" {
				database, err := db.New(cmd.Context(), cfg.Paths.DBFile)
				if err != nil {
					ui.PrintCheck(out, false, "database: NOT ACCESSIBLE")
					issues = append(issues, fmt.Sprintf("Cannot open database: %v", err))
				} else {
					entries, err := database.List(cmd.Context(), db.ListOptions{})
					if err != nil {
						ui.PrintCheck(out, false, "cannot read history: %v", err)
						warnings = append(warnings, "Cannot read history")
					} else {
						ui.PrintCheck(out, true, "database: %s (%d entries)", database.Path(), len(entries))
					}
					database.Close()
				}
			}
			fmt.Fprintln(out)

			ui.PrintHeader(out, "Summary")
			if len(issues) == 0 {
				ui.PrintSuccess(out, "All critical checks passed!")
			} else {
				ui.PrintError(out, "Found %d issue(s):", len(issues))
				ui.PrintList(out, issues)
			}
			if len(warnings) > 0 {
				ui.PrintWarning(out, "Found %d warning(s):", len(warnings))
				ui.PrintList(out, warnings)
			}

			log.Debug().Int("issues", len(issues)).Int("warnings", len(warnings)).Msg("doctor finished")
			if len(issues) > 0 {
				return withExit(core.ExitGeneral, fmt.Errorf("system check failed with %d issue(s)", len(issues)))
			}
			return nil
		},
	}

	return cmd
}

// checkDirectory creates path when missing and checks it is writable
func checkDirectory(rt wiring, path string) error {
	if err := fsops.EnsureDir(rt.fs, path, 0755); err != nil {
		return err
	}
	return fsops.CheckWritable(rt.fs, path)
}
