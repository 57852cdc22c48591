package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KNIGHTPROJEKS-0/LANCELOTT/cmd/lancelott/internal"
	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/engine"
	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/tool"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Manage the tool catalog",
	Long:  `Inspect the registered tools and toggle their enablement.`,
}

var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered tools",
	RunE:  runToolsList,
}

var toolsShowCmd = &cobra.Command{
	Use:               "show NAME",
	Short:             "Show one tool's full status",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeToolNames,
	RunE:              runToolsShow,
}

var toolsEnableCmd = &cobra.Command{
	Use:               "enable NAME",
	Short:             "Enable a tool",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeToolNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runToolsSetEnabled(cmd, args[0], true)
	},
}

var toolsDisableCmd = &cobra.Command{
	Use:               "disable NAME",
	Short:             "Disable a tool",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeToolNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runToolsSetEnabled(cmd, args[0], false)
	},
}

var toolsExportCmd = &cobra.Command{
	Use:   "export [FILE]",
	Short: "Export the catalog as YAML",
	Long:  `Write every registered descriptor as a YAML document, to stdout or to FILE.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runToolsExport,
}

var toolsImportCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import descriptors from a YAML file",
	Long: `Register descriptors from a YAML export. Names already in the
catalog are skipped, so importing the same file twice is harmless.`,
	Args: cobra.ExactArgs(1),
	RunE: runToolsImport,
}

func init() {
	toolsCmd.AddCommand(toolsListCmd)
	toolsCmd.AddCommand(toolsShowCmd)
	toolsCmd.AddCommand(toolsEnableCmd)
	toolsCmd.AddCommand(toolsDisableCmd)
	toolsCmd.AddCommand(toolsExportCmd)
	toolsCmd.AddCommand(toolsImportCmd)
}

func newCatalogEngine() (engine.Engine, error) {
	eng, err := engine.New(cfg, engine.WithLogger(rootLogger))
	if err != nil {
		return nil, internal.WrapError(internal.ExitEngineError, "failed to assemble engine", err)
	}
	return eng, nil
}

// completeToolNames offers registered tool names for shell completion.
func completeToolNames(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if cfg == nil || len(args) != 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	eng, err := engine.New(cfg)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	var names []string
	for _, desc := range eng.Registry().ListAll() {
		if strings.HasPrefix(desc.Name, toComplete) {
			names = append(names, desc.Name)
		}
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}

func runToolsList(cmd *cobra.Command, args []string) error {
	formatter := internal.NewFormatter(globalFlags.GetOutputFormat(), cmd.OutOrStdout())

	eng, err := newCatalogEngine()
	if err != nil {
		return err
	}

	descs := eng.Registry().ListAll()
	if len(descs) == 0 {
		cmd.Println("No tools registered.")
		return nil
	}

	if globalFlags.GetOutputFormat() == internal.FormatJSON {
		return formatter.PrintJSON(descs)
	}

	rows := make([][]string, 0, len(descs))
	for _, d := range descs {
		rows = append(rows, []string{
			d.Name,
			string(d.BuildType),
			strconv.Itoa(d.DefaultPort),
			internal.Checkmark(d.Enabled),
			internal.Checkmark(d.Optional),
			d.ExecutablePath,
		})
	}

	return formatter.PrintTable(
		[]string{"name", "type", "port", "enabled", "optional", "executable"},
		rows)
}

func runToolsShow(cmd *cobra.Command, args []string) error {
	formatter := internal.NewFormatter(globalFlags.GetOutputFormat(), cmd.OutOrStdout())

	eng, err := newCatalogEngine()
	if err != nil {
		return err
	}

	ts, err := eng.GetToolStatus(args[0])
	if err != nil {
		return err
	}

	if globalFlags.GetOutputFormat() == internal.FormatJSON {
		return formatter.PrintJSON(ts)
	}

	desc, err := eng.Registry().Get(args[0])
	if err != nil {
		return err
	}

	cmd.Printf("%s\n\n", ts.Name)
	rows := [][]string{
		{"build type", string(ts.BuildType)},
		{"default port", strconv.Itoa(ts.DefaultPort)},
		{"enabled", internal.Checkmark(ts.Enabled)},
		{"optional", internal.Checkmark(ts.Optional)},
		{"executable", desc.ExecutablePath},
		{"work dir", desc.ResolveWorkDir()},
		{"dependencies", strings.Join(desc.Dependencies, ", ")},
		{"build status", string(ts.Build.Status)},
		{"health", string(ts.Health.Level)},
		{"runnable", internal.Checkmark(ts.Runnable())},
	}
	if ts.LatestExecution != nil {
		rows = append(rows, []string{"last run", fmt.Sprintf("%s (exit %d)",
			ts.LatestExecution.Status, ts.LatestExecution.ExitCode)})
	}

	return formatter.PrintTable([]string{"field", "value"}, rows)
}

func runToolsSetEnabled(cmd *cobra.Command, name string, enabled bool) error {
	formatter := internal.NewFormatter(globalFlags.GetOutputFormat(), cmd.OutOrStdout())

	eng, err := newCatalogEngine()
	if err != nil {
		return err
	}

	if err := eng.SetToolEnabled(name, enabled); err != nil {
		return err
	}

	verb := "disabled"
	if enabled {
		verb = "enabled"
	}
	return formatter.PrintSuccess(fmt.Sprintf("%s %s", name, verb))
}

func runToolsExport(cmd *cobra.Command, args []string) error {
	eng, err := newCatalogEngine()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(args) == 1 {
		f, err := os.Create(args[0])
		if err != nil {
			return internal.WrapError(internal.ExitError, "failed to create export file", err)
		}
		defer f.Close()
		out = f
	}

	if err := tool.ExportYAML(eng.Registry(), out); err != nil {
		return internal.WrapError(internal.ExitError, "export failed", err)
	}
	if len(args) == 1 && !globalFlags.IsQuiet() {
		cmd.Printf("Catalog exported to %s\n", args[0])
	}
	return nil
}

func runToolsImport(cmd *cobra.Command, args []string) error {
	formatter := internal.NewFormatter(globalFlags.GetOutputFormat(), cmd.OutOrStdout())

	eng, err := newCatalogEngine()
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return internal.WrapError(internal.ExitError, "failed to open import file", err)
	}
	defer f.Close()

	added, err := tool.ImportYAML(eng.Registry(), f)
	if err != nil {
		return err
	}

	return formatter.PrintSuccess(fmt.Sprintf("%d descriptor(s) imported from %s", added, args[0]))
}
