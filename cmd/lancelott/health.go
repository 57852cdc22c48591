package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/KNIGHTPROJEKS-0/LANCELOTT/cmd/lancelott/internal"
	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/engine"
	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/health"
)

var healthFlags struct {
	probe bool
}

var healthCmd = &cobra.Command{
	Use:   "health [TOOL]",
	Short: "Show tool health",
	Long: `Report the health of one tool or the whole catalog. By default the
last known state is shown; --probe runs the health checks now, which
needs built tools to launch their probe commands.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHealth,
}

func init() {
	healthCmd.Flags().BoolVar(&healthFlags.probe, "probe", false, "Actively probe instead of reporting cached state")
}

func runHealth(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	formatter := internal.NewFormatter(globalFlags.GetOutputFormat(), cmd.OutOrStdout())

	eng, err := engine.New(cfg, engine.WithLogger(rootLogger))
	if err != nil {
		return internal.WrapError(internal.ExitEngineError, "failed to assemble engine", err)
	}

	var states []health.HealthState
	if len(args) == 1 {
		var state health.HealthState
		if healthFlags.probe {
			state, err = eng.CheckHealth(ctx, args[0])
		} else {
			state, err = eng.GetHealth(args[0])
		}
		if err != nil {
			return err
		}
		states = append(states, state)
	} else if healthFlags.probe {
		for _, desc := range eng.Registry().ListEnabled() {
			state, err := eng.CheckHealth(ctx, desc.Name)
			if err != nil {
				return err
			}
			states = append(states, state)
		}
	} else {
		states = eng.ListHealth()
	}

	if globalFlags.GetOutputFormat() == internal.FormatJSON {
		if err := formatter.PrintJSON(states); err != nil {
			return err
		}
		return healthExitError(states)
	}

	rows := make([][]string, 0, len(states))
	for _, s := range states {
		rows = append(rows, []string{
			s.ToolName,
			string(s.Level),
			internal.FormatTime(s.LastCheckedAt),
			strconv.Itoa(s.ConsecutiveFailures),
			s.Detail,
		})
	}

	if err := formatter.PrintTable(
		[]string{"tool", "health", "checked", "failures", "detail"},
		rows); err != nil {
		return err
	}

	return healthExitError(states)
}

// healthExitError fails the command only on confirmed unhealthy tools;
// unknown states (never probed) are not failures.
func healthExitError(states []health.HealthState) error {
	unhealthy := 0
	for _, s := range states {
		if s.Level == health.HealthUnhealthy {
			unhealthy++
		}
	}
	if unhealthy > 0 {
		return internal.NewCLIError(internal.ExitToolFailures,
			fmt.Sprintf("%d tool(s) unhealthy", unhealthy))
	}
	return nil
}
