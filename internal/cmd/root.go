package cmd

import (
	"github.com/quantmind-br/gman/internal/config"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command
func NewRootCmd(cfg *config.Config, log *zerolog.Logger, version string) *cobra.Command {
	return newRootCmd(cfg, log, version, defaultWiring())
}

func newRootCmd(cfg *config.Config, log *zerolog.Logger, version string, rt wiring) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gman",
		Short: "Install product builds from TeamCity and shared folders",
		Long: `gman finds product builds on TeamCity servers and shared folders, keeps
them in a local cache and installs them with the platform's native installer.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	install := newInstallCmd(cfg, log, rt)
	install.ValidArgsFunction = productCompletion(cfg)
	uninstall := newUninstallCmd(cfg, log, rt)
	uninstall.ValidArgsFunction = productCompletion(cfg)

	cmd.AddCommand(install)
	cmd.AddCommand(uninstall)
	cmd.AddCommand(newListCmd(cfg, log, rt))
	cmd.AddCommand(newInstalledCmd(cfg, log, rt))
	cmd.AddCommand(newCacheCmd(cfg, log, rt))
	cmd.AddCommand(NewHistoryCmd(cfg, log))
	cmd.AddCommand(newConfigCmd(cfg, log, rt))
	cmd.AddCommand(newDoctorCmd(cfg, log, rt))
	cmd.AddCommand(NewCompletionCmd(cfg, log))
	cmd.AddCommand(NewVersionCmd(version))

	return cmd
}
