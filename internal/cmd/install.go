package cmd

import (
	"fmt"

	"github.com/quantmind-br/gman/internal/config"
	"github.com/quantmind-br/gman/internal/core"
	"github.com/quantmind-br/gman/internal/db"
	"github.com/quantmind-br/gman/internal/engine"
	"github.com/quantmind-br/gman/internal/security"
	"github.com/quantmind-br/gman/internal/ui"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// NewInstallCmd creates the install command
func NewInstallCmd(cfg *config.Config, log *zerolog.Logger) *cobra.Command {
	return newInstallCmd(cfg, log, defaultWiring())
}

func newInstallCmd(cfg *config.Config, log *zerolog.Logger, rt wiring) *cobra.Command {
	var (
		flavorID  string
		upgrade   bool
		noUpgrade bool
		noPrompt  bool
		autorun   bool
		noAutorun bool

		timeoutSecs int
	)

	cmd := &cobra.Command{
		Use:   "install <product> [version|branch]",
		Short: "Install a product build",
		Long: `Install a build of a configured product.

The optional target is a version (for example 5.2.3-7023) or a branch
identifier. Without a target the newest build across all branches is used,
unless install.default_identifier names a branch.
Builds already in the local cache are installed without downloading.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd.Context(), timeoutSecs)
			defer cancel()
			out := cmd.OutOrStdout()

			if err := security.ValidateProductName(args[0]); err != nil {
				ui.PrintError(out, "%v", err)
				return withExit(core.ExitInvalidArgs, err)
			}

			sess, err := rt.open(cfg, log, cmd.ErrOrStderr())
			if err != nil {
				ui.PrintError(out, "%v", err)
				return withExit(core.ExitGeneral, err)
			}

			var target string
			if len(args) > 1 {
				target = args[1]
			}
			version, identifier := parseTarget(target, cfg.Install.DefaultIdentifier)

			search, err := core.NewSearchCandidate(sess.catalog, sess.platform, args[0], version, identifier, flavorID)
			if err != nil {
				ui.PrintError(out, "%v", err)
				unknownProductHint(out, sess.catalog, args[0])
				return withExit(core.ExitInvalidArgs, err)
			}

			opts := engine.InstallOptions{
				AutomaticUpgrade: cfg.UpgradePolicy(),
				Prompt:           cfg.Install.Prompt && !noPrompt,
			}
			switch {
			case upgrade:
				opts.AutomaticUpgrade = boolFlag(true)
			case noUpgrade:
				opts.AutomaticUpgrade = boolFlag(false)
			}
			switch {
			case autorun:
				opts.Autorun = boolFlag(true)
			case noAutorun:
				opts.Autorun = boolFlag(false)
			}

			log.Info().
				Str("search", search.String()).
				Bool("prompt", opts.Prompt).
				Msg("starting installation")
			ui.PrintInfo(out, "Installing %s", search)

			outcome, err := sess.engine.Install(ctx, search, opts)

			entry := &db.Entry{
				Action:      db.ActionInstall,
				Product:     search.ProductName,
				Version:     search.Version.String(),
				Identifier:  search.Identifier,
				Flavor:      search.Flavor.ID,
				PackageType: string(search.Flavor.PackageType),
				Result:      outcome.Result.String(),
				Error:       errorText(err),
				Metadata:    map[string]string{"mode": outcome.Mode.String()},
			}
			if c := outcome.Candidate; c != nil {
				entry.Version = c.Version.String()
				entry.Identifier = c.Identifier
			}
			recordHistory(ctx, cfg, log, entry)

			if err != nil {
				ui.PrintError(out, "%v", err)
				return withExit(installExitCode(err), err)
			}

			switch outcome.Result {
			case core.ResultSucceeded:
				ui.PrintSuccess(out, "Installed %s", describe(outcome.Candidate))
				if outcome.LaunchErr != nil {
					ui.PrintWarning(out, "Installed but failed to launch: %v", outcome.LaunchErr)
				}
			case core.ResultSkipped:
				if outcome.Candidate == nil {
					ui.PrintWarning(out, "No build of %s found in any repository", search)
				} else {
					ui.PrintInfo(out, "%s is already installed", describe(outcome.Candidate))
				}
			case core.ResultCanceled:
				ui.PrintWarning(out, "Installation of %s canceled", search.ProductName)
				return withExit(core.ExitCanceled, fmt.Errorf("install %s: %w", search.ProductName, core.ErrCanceled))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&flavorID, "flavor", "", "flavor id to install (default: the platform's first flavor)")
	cmd.Flags().BoolVar(&upgrade, "upgrade", false, "always check the repositories for a build newer than the cached one")
	cmd.Flags().BoolVar(&noUpgrade, "no-upgrade", false, "install the cached build without checking for a newer one")
	cmd.Flags().BoolVar(&noPrompt, "no-prompt", false, "never ask questions; take the default answers")
	cmd.Flags().BoolVar(&autorun, "autorun", false, "launch the product after installing it")
	cmd.Flags().BoolVar(&noAutorun, "no-autorun", false, "do not launch the product after installing it")
	cmd.Flags().IntVar(&timeoutSecs, "timeout", 0, "installation timeout in seconds (0 means none)")
	cmd.MarkFlagsMutuallyExclusive("upgrade", "no-upgrade")
	cmd.MarkFlagsMutuallyExclusive("autorun", "no-autorun")

	return cmd
}

// parseTarget splits an install target into a version or a branch identifier.
// An empty target selects fallbackIdentifier.
func parseTarget(target, fallbackIdentifier string) (core.Version, string) {
	if target == "" {
		return "", fallbackIdentifier
	}
	if v := core.ParseVersion(target); v.Valid() {
		return v, ""
	}
	return "", target
}

func boolFlag(v bool) *bool { return &v }
