package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/KNIGHTPROJEKS-0/LANCELOTT/cmd/lancelott/internal"
	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/config"
	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/observability"
	"github.com/KNIGHTPROJEKS-0/LANCELOTT/pkg/version"
)

// Loaded during PersistentPreRunE and shared by all subcommands.
var (
	cfg        *config.Config
	cfgPath    string
	rootLogger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "lancelott",
	Short: "LANCELOTT - Security Tool Orchestration Engine",
	Long: `LANCELOTT manages a catalog of external security tools behind one
surface: it builds them, allocates their ports, probes their health,
and fans scan jobs out across them, collecting per-tool results.

Run 'lancelott build' to prepare the catalog, 'lancelott scan TARGET'
to run tools against a target, and 'lancelott status' for a snapshot
of the whole engine.`,
	PersistentPreRunE: loadConfig,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

// Execute runs the root command with signal handling
func Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return rootCmd.ExecuteContext(ctx)
}

// loadConfig resolves the home directory and config path, then loads the
// configuration before any command runs. Missing config files fall back to
// defaults so every command works on a fresh install.
func loadConfig(cmd *cobra.Command, args []string) error {
	flags, err := ParseGlobalFlags(cmd)
	if err != nil {
		return err
	}

	// The version, help, and completion commands never touch the engine.
	// Config commands load explicitly so they can report diagnostics
	// instead of dying in the pre-run hook.
	switch cmd.Name() {
	case "version", "help", "completion", "config":
		return nil
	}
	if cmd.Parent() != nil && cmd.Parent().Name() == "config" {
		return nil
	}

	cfgPath, err = resolveConfigPath(flags)
	if err != nil {
		return err
	}

	loader := config.NewConfigLoader(config.NewValidator())
	cfg, err = loader.LoadWithDefaults(cfgPath)
	if err != nil {
		return internal.WrapError(internal.ExitConfigError, "failed to load configuration", err)
	}

	logCfg := cfg.Logging
	if flags.IsVerbose() {
		logCfg.Level = "debug"
	}
	if flags.IsQuiet() {
		logCfg.Level = "error"
	}
	rootLogger = observability.InitLogging(logCfg, os.Stderr)

	return nil
}

func init() {
	RegisterGlobalFlags(rootCmd)

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(completionCmd)
}

// resolveConfigPath applies --home and --config to find the config file.
// --home wins over the environment; DefaultHomeDir reads LANCELOTT_HOME
// itself, so exporting the flag value keeps every default derived from
// the same directory.
func resolveConfigPath(flags *GlobalFlags) (string, error) {
	if flags.HomeDir != "" {
		if err := os.Setenv("LANCELOTT_HOME", flags.HomeDir); err != nil {
			return "", internal.WrapError(internal.ExitConfigError, "failed to set home directory", err)
		}
	}
	if flags.ConfigFile != "" {
		return flags.ConfigFile, nil
	}
	return config.DefaultConfigPath(config.DefaultHomeDir()), nil
}

// isTerminalInteractive checks if stdin is a terminal.
func isTerminalInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		if globalFlags.GetOutputFormat() == internal.FormatJSON {
			formatter := internal.NewJSONFormatter(cmd.OutOrStdout())
			return formatter.PrintJSON(version.Info())
		}
		cmd.Println(version.String())
		return nil
	},
}

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for lancelott.

To load completions:

Bash:

  $ source <(lancelott completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ lancelott completion bash > /etc/bash_completion.d/lancelott
  # macOS:
  $ lancelott completion bash > $(brew --prefix)/etc/bash_completion.d/lancelott

Zsh:

  # If shell completion is not already enabled in your environment,
  # you will need to enable it. You can execute the following once:

  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ lancelott completion zsh > "${fpath[1]}/_lancelott"

  # You will need to start a new shell for this setup to take effect.

Fish:

  $ lancelott completion fish | source

  # To load completions for each session, execute once:
  $ lancelott completion fish > ~/.config/fish/completions/lancelott.fish

PowerShell:

  PS> lancelott completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> lancelott completion powershell > lancelott.ps1
  # and source this file from your PowerShell profile.
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	Run: func(cmd *cobra.Command, args []string) {
		switch args[0] {
		case "bash":
			_ = cmd.Root().GenBashCompletion(os.Stdout)
		case "zsh":
			_ = cmd.Root().GenZshCompletion(os.Stdout)
		case "fish":
			_ = cmd.Root().GenFishCompletion(os.Stdout, true)
		case "powershell":
			_ = cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
		}
	},
}
