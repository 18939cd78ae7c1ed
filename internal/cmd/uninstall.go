package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/quantmind-br/gman/internal/config"
	"github.com/quantmind-br/gman/internal/core"
	"github.com/quantmind-br/gman/internal/db"
	"github.com/quantmind-br/gman/internal/security"
	"github.com/quantmind-br/gman/internal/ui"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// NewUninstallCmd creates the uninstall command
func NewUninstallCmd(cfg *config.Config, log *zerolog.Logger) *cobra.Command {
	return newUninstallCmd(cfg, log, defaultWiring())
}

func newUninstallCmd(cfg *config.Config, log *zerolog.Logger, rt wiring) *cobra.Command {
	var (
		noPrompt    bool
		timeoutSecs int
	)

	cmd := &cobra.Command{
		Use:   "uninstall <product> [version]",
		Short: "Uninstall a product",
		Long: `Uninstall the installed copies of a product, or only the copy with the
given version. When several copies match, each one is confirmed first.`,
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

			product := args[0]
			if p, ok := sess.catalog.Find(product); ok {
				product = p.Name
			} else {
				err := fmt.Errorf("%w: product %q", core.ErrNotFound, product)
				ui.PrintError(out, "%v", err)
				unknownProductHint(out, sess.catalog, args[0])
				return withExit(core.ExitInvalidArgs, err)
			}

			var version core.Version
			if len(args) > 1 {
				version = core.ParseVersion(args[1])
			}

			log.Info().
				Str("product", product).
				Str("version", version.String()).
				Msg("starting uninstallation")

			result, removed, err := sess.engine.Uninstall(ctx, product, version, cfg.Install.Prompt && !noPrompt)

			for _, p := range removed {
				recordHistory(ctx, cfg, log, &db.Entry{
					Action:      db.ActionUninstall,
					Product:     p.ProductName,
					Version:     p.Version.String(),
					PackageType: string(p.PackageType),
					Result:      core.ResultSucceeded.String(),
					Metadata:    map[string]string{"package": p.PackageName},
				})
				ui.PrintSuccess(out, "Uninstalled %s %s (%s)", p.ProductName, p.Version, p.PackageName)
			}

			if err != nil {
				recordHistory(ctx, cfg, log, &db.Entry{
					Action:  db.ActionUninstall,
					Product: product,
					Version: version.String(),
					Result:  result.String(),
					Error:   err.Error(),
				})
				ui.PrintError(out, "%v", err)
				if errors.Is(err, core.ErrNotFound) {
					return withExit(core.ExitInvalidArgs, err)
				}
				return withExit(core.ExitUninstallFailed, err)
			}

			if result == core.ResultCanceled {
				ui.PrintWarning(out, "Nothing was uninstalled")
				return withExit(core.ExitCanceled, fmt.Errorf("uninstall %s: %w", product, core.ErrCanceled))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noPrompt, "no-prompt", false, "uninstall every match without asking")
	cmd.Flags().IntVar(&timeoutSecs, "timeout", 0, "uninstallation timeout in seconds (0 means none)")

	return cmd
}

// withTimeout bounds ctx when secs is positive
func withTimeout(ctx context.Context, secs int) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if secs <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(secs)*time.Second)
}
