package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KNIGHTPROJEKS-0/LANCELOTT/cmd/lancelott/internal"
	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and validate configuration",
}

var configSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show the effective configuration",
	Long: `Show the configuration the engine would run with: file values
merged over defaults, with LANCELOTT_* environment overrides applied.`,
	RunE: runConfigSummary,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate [FILE]",
	Short: "Validate a configuration file",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigValidate,
}

var configEnvCmd = &cobra.Command{
	Use:   "env",
	Short: "Show LANCELOTT environment overrides",
	Long: `List the LANCELOTT_* variables set in the current environment.
Any config key can be overridden this way: dots become underscores, so
core.max_concurrent_scans reads LANCELOTT_CORE_MAX_CONCURRENT_SCANS.`,
	RunE: runConfigEnv,
}

func init() {
	configCmd.AddCommand(configSummaryCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configEnvCmd)
}

func runConfigSummary(cmd *cobra.Command, args []string) error {
	formatter := internal.NewFormatter(globalFlags.GetOutputFormat(), cmd.OutOrStdout())

	flags, err := ParseGlobalFlags(cmd)
	if err != nil {
		return err
	}
	path, err := resolveConfigPath(flags)
	if err != nil {
		return err
	}

	loader := config.NewConfigLoader(config.NewValidator())
	loaded, err := loader.LoadWithDefaults(path)
	if err != nil {
		return internal.WrapError(internal.ExitConfigError, "failed to load configuration", err)
	}

	if !globalFlags.IsQuiet() && globalFlags.GetOutputFormat() == internal.FormatText {
		if _, statErr := os.Stat(path); statErr == nil {
			cmd.Printf("Config file: %s\n\n", path)
		} else {
			cmd.Printf("Config file: %s (not found, showing defaults)\n\n", path)
		}
	}

	rows := [][]string{
		{"core.home_dir", loaded.Core.HomeDir},
		{"core.tools_dir", loaded.Core.ToolsDir},
		{"core.max_concurrent_scans", strconv.Itoa(loaded.Core.MaxConcurrentScans)},
		{"core.scan_timeout", loaded.Core.ScanTimeout.String()},
		{"core.job_retention", loaded.Core.JobRetention.String()},
		{"execution.grace_period", loaded.Execution.GracePeriod.String()},
		{"execution.output_tail_bytes", strconv.Itoa(loaded.Execution.OutputTailBytes)},
		{"execution.history_depth", strconv.Itoa(loaded.Execution.HistoryDepth)},
		{"build.timeout", loaded.Build.Timeout.String()},
		{"build.parallelism", strconv.Itoa(loaded.Build.Parallelism)},
		{"ports.base", strconv.Itoa(loaded.Ports.Base)},
		{"ports.window", strconv.Itoa(loaded.Ports.Window)},
		{"health.interval", loaded.Health.Interval.String()},
		{"health.probe_timeout", loaded.Health.ProbeTimeout.String()},
		{"health.failure_threshold", strconv.Itoa(loaded.Health.FailureThreshold)},
		{"logging.level", loaded.Logging.Level},
		{"logging.format", loaded.Logging.Format},
		{"tracing.enabled", strconv.FormatBool(loaded.Tracing.Enabled)},
		{"tracing.endpoint", loaded.Tracing.Endpoint},
		{"tools", fmt.Sprintf("%d registered", len(loaded.Catalog()))},
	}

	return formatter.PrintTable([]string{"key", "value"}, rows)
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	formatter := internal.NewFormatter(globalFlags.GetOutputFormat(), cmd.OutOrStdout())

	var path string
	if len(args) == 1 {
		path = args[0]
	} else {
		flags, err := ParseGlobalFlags(cmd)
		if err != nil {
			return err
		}
		path, err = resolveConfigPath(flags)
		if err != nil {
			return err
		}
	}

	loader := config.NewConfigLoader(config.NewValidator())
	if _, err := loader.Load(path); err != nil {
		return internal.WrapError(internal.ExitConfigError,
			fmt.Sprintf("configuration invalid: %s", path), err)
	}

	return formatter.PrintSuccess(fmt.Sprintf("configuration valid: %s", path))
}

func runConfigEnv(cmd *cobra.Command, args []string) error {
	formatter := internal.NewFormatter(globalFlags.GetOutputFormat(), cmd.OutOrStdout())

	var rows [][]string
	for _, kv := range os.Environ() {
		if !strings.HasPrefix(kv, "LANCELOTT_") {
			continue
		}
		key, value, _ := strings.Cut(kv, "=")
		rows = append(rows, []string{key, value})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i][0] < rows[j][0] })

	if len(rows) == 0 {
		cmd.Println("No LANCELOTT_* variables set.")
		return nil
	}

	return formatter.PrintTable([]string{"variable", "value"}, rows)
}
