package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"loomline/internal/store"
	"loomline/internal/workflow"
)

func newWorkflowCommand(ctx *commandContext) *cobra.Command {
	workflowCmd := &cobra.Command{
		Use:   "workflow",
		Short: "Drive products through their parallel stages",
	}

	workflowCmd.AddCommand(newWorkflowActivateCommand(ctx))
	workflowCmd.AddCommand(newWorkflowPauseCommand(ctx))
	workflowCmd.AddCommand(newWorkflowResumeCommand(ctx))
	workflowCmd.AddCommand(newWorkflowCompleteCommand(ctx))
	workflowCmd.AddCommand(newWorkflowOverviewCommand(ctx))
	workflowCmd.AddCommand(newWorkflowBoardCommand(ctx))

	return workflowCmd
}

func newWorkflowActivateCommand(ctx *commandContext) *cobra.Command {
	var normHours int64
	var rework bool

	cmd := &cobra.Command{
		Use:   "activate <product-id> <stage-id>",
		Short: "Open a stage on a product",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			productID, stageID, err := parsePair(args)
			if err != nil {
				return err
			}
			opts := store.ActivateOptions{AllowRework: rework}
			if cmd.Flags().Changed("norm-hours") {
				opts.NormHours = &normHours
			}
			return ctx.withManager(func(m *workflow.Manager) error {
				active, err := m.ActivateStage(ctx.actorContext(cmd.Context()), productID, stageID, opts)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Activated %s on %s (norm %dh)\n",
					active.StageName, active.ProductCode, active.EffectiveNormHours())
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&normHours, "norm-hours", 0, "Override the stage norm for this product")
	cmd.Flags().BoolVar(&rework, "rework", false, "Reopen a completed stage for rework")
	return cmd
}

func newWorkflowPauseCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "pause <product-id> <stage-id>",
		Short: "Pause an active stage",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStageTransition(ctx, cmd, args, "Paused", (*workflow.Manager).PauseStage)
		},
	}
}

func newWorkflowResumeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resume <product-id> <stage-id>",
		Short: "Resume a paused stage",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStageTransition(ctx, cmd, args, "Resumed", (*workflow.Manager).ResumeStage)
		},
	}
}

func newWorkflowCompleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "complete <product-id> <stage-id>",
		Short: "Complete a stage once every worker has finished",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStageTransition(ctx, cmd, args, "Completed", (*workflow.Manager).CompleteStage)
		},
	}
}

func runStageTransition(ctx *commandContext, cmd *cobra.Command, args []string, verb string,
	op func(m *workflow.Manager, ctx context.Context, productID, stageID int64) error) error {
	productID, stageID, err := parsePair(args)
	if err != nil {
		return err
	}
	return ctx.withManager(func(m *workflow.Manager) error {
		if err := op(m, ctx.actorContext(cmd.Context()), productID, stageID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s stage %d on product %d\n", verb, stageID, productID)
		return nil
	})
}

func newWorkflowOverviewCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "overview",
		Short: "Show the per-product stage rollup",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				rows, err := st.StagesOverview(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, rows)
				}
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No products in the workflow")
					return nil
				}
				tableRows := make([][]string, 0, len(rows))
				for _, row := range rows {
					tableRows = append(tableRows, []string{
						row.ProductCode,
						row.ProductName,
						string(row.Status),
						strconv.FormatInt(row.ActiveStages, 10),
						strconv.FormatInt(row.PausedStages, 10),
						strconv.FormatInt(row.DoneStages, 10),
						fmt.Sprintf("%d (%d working)", row.WorkerCount, row.WorkingCount),
						dash(row.StageNames),
					})
				}
				table := renderTable(
					[]string{"Code", "Name", "Status", "Active", "Paused", "Done", "Workers", "Stages"},
					tableRows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newWorkflowBoardCommand(ctx *commandContext) *cobra.Command {
	var statusFilter string

	cmd := &cobra.Command{
		Use:   "board <stage-id>",
		Short: "List products currently on a stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stageID, err := parseID(args[0], "stage")
			if err != nil {
				return err
			}
			return ctx.withStore(func(st *store.Store) error {
				pairs, err := st.ProductsByStage(cmd.Context(), stageID, store.StageStatus(strings.TrimSpace(statusFilter)))
				if err != nil {
					return err
				}
				if len(pairs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No products on this stage")
					return nil
				}
				rows := make([][]string, 0, len(pairs))
				for _, pair := range pairs {
					rows = append(rows, []string{
						pair.ProductCode,
						pair.ProductName,
						string(pair.Status),
						progressLabel(pair),
						formatLocalTime(pair.StartedAt),
					})
				}
				table := renderTable(
					[]string{"Code", "Name", "Status", "Workers", "Started"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "Filter by pair status (active, paused, completed)")
	return cmd
}

func parsePair(args []string) (int64, int64, error) {
	productID, err := parseID(args[0], "product")
	if err != nil {
		return 0, 0, err
	}
	stageID, err := parseID(args[1], "stage")
	if err != nil {
		return 0, 0, err
	}
	return productID, stageID, nil
}
