package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KNIGHTPROJEKS-0/LANCELOTT/cmd/lancelott/internal"
	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/engine"
	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/status"
)

var statusFlags struct {
	save string
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show an engine snapshot",
	Long: `Assemble a point-in-time snapshot of the catalog: per-tool build
state, health, last execution, plus job and port lease counts. With
--save the snapshot is also written to a file (JSON for .json paths,
YAML otherwise).`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusFlags.save, "save", "", "Write the snapshot to this file as well")
}

func runStatus(cmd *cobra.Command, args []string) error {
	formatter := internal.NewFormatter(globalFlags.GetOutputFormat(), cmd.OutOrStdout())

	eng, err := engine.New(cfg, engine.WithLogger(rootLogger))
	if err != nil {
		return internal.WrapError(internal.ExitEngineError, "failed to assemble engine", err)
	}

	snap := eng.GetSnapshot()

	if statusFlags.save != "" {
		if err := saveSnapshot(snap, statusFlags.save); err != nil {
			return internal.WrapError(internal.ExitError, "failed to save snapshot", err)
		}
		if !globalFlags.IsQuiet() {
			cmd.Printf("Snapshot written to %s\n", statusFlags.save)
		}
	}

	if globalFlags.GetOutputFormat() == internal.FormatJSON {
		return formatter.PrintJSON(snap)
	}

	cmd.Printf("LANCELOTT engine snapshot (%s)\n", snap.GeneratedAt.Local().Format("2006-01-02 15:04:05"))
	cmd.Printf("Ready: %s  Tools: %d/%d enabled, %d built  Jobs: %d active / %d total  Leases: %d\n\n",
		internal.Checkmark(snap.Ready),
		snap.Summary.ToolsEnabled, snap.Summary.ToolsTotal, snap.Summary.ToolsBuilt,
		snap.Summary.JobsActive, snap.Summary.JobsTotal, snap.Summary.ActiveLeases)

	rows := make([][]string, 0, len(snap.Tools))
	for _, ts := range snap.Tools {
		rows = append(rows, []string{
			ts.Name,
			string(ts.BuildType),
			strconv.Itoa(ts.DefaultPort),
			internal.Checkmark(ts.Enabled),
			string(ts.Build.Status),
			string(ts.Health.Level),
			lastExecutionCell(ts),
		})
	}

	return formatter.PrintTable(
		[]string{"tool", "type", "port", "enabled", "build", "health", "last run"},
		rows)
}

func lastExecutionCell(ts status.ToolStatus) string {
	if ts.LatestExecution == nil {
		return "-"
	}
	return fmt.Sprintf("%s (%s)", ts.LatestExecution.Status,
		internal.FormatTime(ts.LatestExecution.StartedAt))
}

// saveSnapshot writes the snapshot to path, choosing the encoding from
// the file extension.
func saveSnapshot(snap status.Snapshot, path string) error {
	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = snap.JSON()
	} else {
		data, err = snap.YAML()
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
