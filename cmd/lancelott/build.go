package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KNIGHTPROJEKS-0/LANCELOTT/cmd/lancelott/internal"
	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/build"
	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/engine"
	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/tool"
)

var buildFlags struct {
	force        bool
	buildType    string
	skipOptional bool
}

var buildCmd = &cobra.Command{
	Use:   "build [TOOL...]",
	Short: "Build tools in the catalog",
	Long: `Build the named tools, or every enabled tool when no names are
given. Failures do not stop the pass; each tool's outcome is reported
and the exit code is non-zero if any required (non-optional) tool
failed to build.`,
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().BoolVar(&buildFlags.force, "force", false, "Rebuild even when the cached build is current")
	buildCmd.Flags().StringVar(&buildFlags.buildType, "type", "", "Only build tools of this type (compiled|interpreted-deps|scripted)")
	buildCmd.Flags().BoolVar(&buildFlags.skipOptional, "skip-optional", false, "Leave optional tools out of the pass")
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	formatter := internal.NewFormatter(globalFlags.GetOutputFormat(), cmd.OutOrStdout())

	var buildType tool.BuildType
	if buildFlags.buildType != "" {
		buildType = tool.BuildType(buildFlags.buildType)
		if !buildType.IsValid() {
			return internal.NewCLIError(internal.ExitError,
				fmt.Sprintf("invalid build type %q (must be compiled, interpreted-deps, or scripted)", buildFlags.buildType))
		}
	}

	eng, err := engine.New(cfg, engine.WithLogger(rootLogger))
	if err != nil {
		return internal.WrapError(internal.ExitEngineError, "failed to assemble engine", err)
	}

	var records []build.BuildRecord
	if len(args) == 0 {
		records, err = eng.BuildAll(ctx, build.BuildAllOptions{
			Force:        buildFlags.force,
			BuildType:    buildType,
			SkipOptional: buildFlags.skipOptional,
		})
		if err != nil {
			return err
		}
	} else {
		// Named builds keep going past failures like BuildAll does; an
		// unknown name still aborts immediately.
		for _, name := range args {
			record, err := eng.BuildTool(ctx, name, buildFlags.force)
			if err != nil && record.ToolName == "" {
				return err
			}
			records = append(records, record)
		}
	}

	if globalFlags.GetOutputFormat() == internal.FormatJSON {
		if err := formatter.PrintJSON(records); err != nil {
			return err
		}
		return buildExitError(eng, records)
	}

	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		detail := rec.ArtifactPath
		if rec.Error != "" {
			detail = rec.Error
		}
		rows = append(rows, []string{
			rec.ToolName,
			string(rec.Status),
			internal.FormatDuration(rec.Duration),
			detail,
		})
	}

	if len(rows) == 0 {
		cmd.Println("Nothing to build.")
		return nil
	}

	if err := formatter.PrintTable([]string{"tool", "status", "duration", "detail"}, rows); err != nil {
		return err
	}

	cmd.Println()
	failed := failedBuilds(records)
	if failed == 0 {
		_ = formatter.PrintSuccess(fmt.Sprintf("%d tool(s) built", len(records)))
	} else {
		_ = formatter.PrintError(fmt.Sprintf("%d of %d builds failed", failed, len(records)))
	}

	return buildExitError(eng, records)
}

// buildExitError returns a non-nil error only when a required tool
// failed to build. Optional tool failures are reported but tolerated.
func buildExitError(eng engine.Engine, records []build.BuildRecord) error {
	requiredFailures := 0
	for _, rec := range records {
		if rec.Built() {
			continue
		}
		desc, err := eng.Registry().Get(rec.ToolName)
		if err == nil && desc.Optional {
			continue
		}
		requiredFailures++
	}
	if requiredFailures > 0 {
		return internal.NewCLIError(internal.ExitToolFailures,
			fmt.Sprintf("%d required tool(s) failed to build", requiredFailures))
	}
	return nil
}

func failedBuilds(records []build.BuildRecord) int {
	failed := 0
	for _, rec := range records {
		if !rec.Built() {
			failed++
		}
	}
	return failed
}
