package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/KNIGHTPROJEKS-0/LANCELOTT/cmd/lancelott/internal"
	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/engine"
	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/execution"
	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/scan"
)

var scanFlags struct {
	tools   []string
	timeout time.Duration
	wait    bool
}

var scanCmd = &cobra.Command{
	Use:   "scan TARGET",
	Short: "Run enabled tools against a target",
	Long: `Submit a scan job that fans out across the named tools. With no
--tools flag every enabled tool in the catalog runs. Unknown tool names
abort the whole job before anything launches.

By default the command waits for the job to finish and renders each
tool's outcome. With --wait=false it submits, prints the queued job,
and exits; the engine cancels outstanding work on shutdown.`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringSliceVarP(&scanFlags.tools, "tools", "t", nil, "Comma-separated tool names (default: all enabled)")
	scanCmd.Flags().DurationVar(&scanFlags.timeout, "timeout", 0, "Per-scan timeout override (default: config scan_timeout)")
	scanCmd.Flags().BoolVar(&scanFlags.wait, "wait", true, "Wait for the job to reach a terminal state")
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	target := args[0]
	formatter := internal.NewFormatter(globalFlags.GetOutputFormat(), cmd.OutOrStdout())

	eng, err := engine.New(cfg, engine.WithLogger(rootLogger))
	if err != nil {
		return internal.WrapError(internal.ExitEngineError, "failed to assemble engine", err)
	}
	if err := eng.Start(ctx); err != nil {
		return internal.WrapError(internal.ExitEngineError, "failed to start engine", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = eng.Stop(stopCtx)
	}()

	job, err := eng.SubmitScan(ctx, target, scanFlags.tools)
	if err != nil {
		return err
	}

	if !scanFlags.wait {
		if globalFlags.GetOutputFormat() == internal.FormatJSON {
			return formatter.PrintJSON(job)
		}
		cmd.Printf("Job %s queued: %d tool(s) against %s\n",
			job.JobID.Short(), len(job.RequestedTools), job.Target)
		return nil
	}

	if isTerminalInteractive() && !globalFlags.IsQuiet() &&
		globalFlags.GetOutputFormat() == internal.FormatText {
		cmd.Printf("Scanning %s with %d tool(s)...\n", job.Target, len(job.RequestedTools))
	}

	waitCtx := ctx
	if scanFlags.timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, scanFlags.timeout)
		defer cancel()
	}

	job, err = eng.WaitForJob(waitCtx, job.JobID)
	if err != nil {
		return err
	}

	if globalFlags.GetOutputFormat() == internal.FormatJSON {
		if err := formatter.PrintJSON(job); err != nil {
			return err
		}
		return scanExitError(job)
	}

	cmd.Printf("Job %s %s against %s (%s)\n\n",
		job.JobID.Short(), job.Status, job.Target, internal.FormatDuration(job.Duration()))

	rows := make([][]string, 0, len(job.RequestedTools))
	for _, name := range job.RequestedTools {
		rec, ok := job.Executions[name]
		if !ok {
			rows = append(rows, []string{name, "not started", "-", "-"})
			continue
		}
		rows = append(rows, []string{
			name,
			string(rec.Status),
			exitCodeCell(rec),
			internal.FormatDuration(rec.Duration()),
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i][0] < rows[j][0] })

	if err := formatter.PrintTable([]string{"tool", "status", "exit", "duration"}, rows); err != nil {
		return err
	}

	cmd.Println()
	switch job.Status {
	case scan.JobCompleted:
		_ = formatter.PrintSuccess("all tools completed")
	case scan.JobCancelled:
		_ = formatter.PrintError("job cancelled")
	default:
		_ = formatter.PrintError(fmt.Sprintf("%d of %d tools failed",
			failedExecutions(job), len(job.RequestedTools)))
	}

	return scanExitError(job)
}

// scanExitError maps a terminal job status onto the command's exit code.
func scanExitError(job scan.ScanJob) error {
	switch job.Status {
	case scan.JobCompleted:
		return nil
	case scan.JobCancelled:
		return internal.NewCLIError(internal.ExitCancelled, "scan cancelled")
	default:
		return internal.NewCLIError(internal.ExitToolFailures,
			fmt.Sprintf("%d of %d tools failed", failedExecutions(job), len(job.RequestedTools)))
	}
}

func failedExecutions(job scan.ScanJob) int {
	failed := 0
	for _, rec := range job.Executions {
		if !rec.Succeeded() {
			failed++
		}
	}
	return failed
}

func exitCodeCell(rec execution.ExecutionRecord) string {
	switch rec.Status {
	case execution.StatusCompleted, execution.StatusFailed:
		return strconv.Itoa(rec.ExitCode)
	default:
		return "-"
	}
}
