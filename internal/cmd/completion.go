package cmd

import (
	"github.com/quantmind-br/gman/internal/config"
	"github.com/quantmind-br/gman/internal/ui"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// NewCompletionCmd creates the completion command
func NewCompletionCmd(cfg *config.Config, log *zerolog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for gman.

To load completions:

Bash:
  $ source <(gman completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ gman completion bash > /etc/bash_completion.d/gman
  # macOS:
  $ gman completion bash > $(brew --prefix)/etc/bash_completion.d/gman

Zsh:
  $ gman completion zsh > "${fpath[1]}/_gman"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ gman completion fish | source

  # To load completions for each session, execute once:
  $ gman completion fish > ~/.config/fish/completions/gman.fish

PowerShell:
  PS> gman completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> gman completion powershell > gman.ps1
  # and source this file from your PowerShell profile.
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			shell := args[0]
			out := cmd.OutOrStdout()

			var err error
			switch shell {
			case "bash":
				err = cmd.Root().GenBashCompletion(out)
			case "zsh":
				err = cmd.Root().GenZshCompletion(out)
			case "fish":
				err = cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				err = cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			if err != nil {
				ui.PrintError(cmd.ErrOrStderr(), "Failed to generate %s completion: %v", shell, err)
				return err
			}

			log.Debug().Str("shell", shell).Msg("generated shell completion")
			return nil
		},
	}

	return cmd
}

// productCompletion completes product names from the catalog
func productCompletion(cfg *config.Config) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
		if len(args) != 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return cfg.Catalog().Names(), cobra.ShellCompDirectiveNoFileComp
	}
}
