package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"loomline/internal/store"
	"loomline/internal/workflow"
)

func newWorkerCommand(ctx *commandContext) *cobra.Command {
	workerCmd := &cobra.Command{
		Use:   "worker",
		Short: "Assign workers and record their effort",
	}

	workerCmd.AddCommand(newWorkerAssignCommand(ctx))
	workerCmd.AddCommand(newWorkerStartCommand(ctx))
	workerCmd.AddCommand(newWorkerDoneCommand(ctx))
	workerCmd.AddCommand(newWorkerPauseCommand(ctx))
	workerCmd.AddCommand(newWorkerRemoveCommand(ctx))
	workerCmd.AddCommand(newWorkerTasksCommand(ctx))

	return workerCmd
}

func newWorkerAssignCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "assign <product-id> <stage-id> <user-id>...",
		Short: "Assign one or more workers to a stage",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			productID, stageID, err := parsePair(args[:2])
			if err != nil {
				return err
			}
			userIDs, err := parseIDList(args[2:], "user")
			if err != nil {
				return err
			}
			return ctx.withManager(func(m *workflow.Manager) error {
				result, err := m.AssignWorkers(ctx.actorContext(cmd.Context()), productID, stageID, userIDs)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, a := range result.Assigned {
					fmt.Fprintf(out, "Assigned %s to %s / %s\n", a.WorkerName, a.ProductCode, a.StageName)
				}
				for _, f := range result.Failed {
					fmt.Fprintf(out, "Skipped user %d: %s\n", f.UserID, f.Reason)
				}
				if len(result.Assigned) == 0 {
					return fmt.Errorf("no workers assigned")
				}
				return nil
			})
		},
	}
}

func newWorkerStartCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "start <product-id> <stage-id> <user-id>",
		Short: "Start the clock on an assignment",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			productID, stageID, userID, err := parseTriple(args)
			if err != nil {
				return err
			}
			return ctx.withManager(func(m *workflow.Manager) error {
				assignment, err := m.StartWork(ctx.actorContext(cmd.Context()), productID, stageID, userID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s started on %s / %s\n",
					assignment.WorkerName, assignment.ProductCode, assignment.StageName)
				return nil
			})
		},
	}
}

func newWorkerDoneCommand(ctx *commandContext) *cobra.Command {
	var notes string

	cmd := &cobra.Command{
		Use:   "done <product-id> <stage-id> <user-id>",
		Short: "Record a worker's completion; finishes the stage when they are the last",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			productID, stageID, userID, err := parseTriple(args)
			if err != nil {
				return err
			}
			return ctx.withManager(func(m *workflow.Manager) error {
				assignment, stageDone, err := m.CompleteWork(ctx.actorContext(cmd.Context()), productID, stageID, userID, notes)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s finished %s / %s after %s\n",
					assignment.WorkerName, assignment.ProductCode, assignment.StageName, formatHours(assignment.HoursElapsed))
				if stageDone {
					fmt.Fprintf(out, "Stage %s is complete\n", assignment.StageName)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&notes, "notes", "", "Completion notes")
	return cmd
}

func newWorkerPauseCommand(ctx *commandContext) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "pause <product-id> <stage-id> <user-id>",
		Short: "Pause a working assignment, keeping its start time",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			productID, stageID, userID, err := parseTriple(args)
			if err != nil {
				return err
			}
			return ctx.withManager(func(m *workflow.Manager) error {
				assignment, err := m.PauseWork(ctx.actorContext(cmd.Context()), productID, stageID, userID, reason)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s paused on %s / %s\n",
					assignment.WorkerName, assignment.ProductCode, assignment.StageName)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Why the work is paused")
	return cmd
}

func newWorkerRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <product-id> <stage-id> <user-id>",
		Short: "Remove a worker who has not completed their share",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			productID, stageID, userID, err := parseTriple(args)
			if err != nil {
				return err
			}
			return ctx.withManager(func(m *workflow.Manager) error {
				if err := m.RemoveWorker(ctx.actorContext(cmd.Context()), productID, stageID, userID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed user %d from the stage\n", userID)
				return nil
			})
		},
	}
}

func newWorkerTasksCommand(ctx *commandContext) *cobra.Command {
	var statusFilter string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "tasks <user-id>",
		Short: "List a worker's assignments, working first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseID(args[0], "user")
			if err != nil {
				return err
			}
			return ctx.withStore(func(st *store.Store) error {
				tasks, err := st.WorkerTasks(cmd.Context(), userID, store.WorkerStatus(strings.TrimSpace(statusFilter)))
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, tasks)
				}
				if len(tasks) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No tasks")
					return nil
				}
				rows := make([][]string, 0, len(tasks))
				for _, task := range tasks {
					rows = append(rows, []string{
						task.ProductCode,
						task.StageName,
						string(task.Status),
						formatHours(task.HoursElapsed),
						fmt.Sprintf("%s / %dh", formatHours(task.StageTotalHours), task.NormHours),
						dash(task.Notes),
					})
				}
				table := renderTable(
					[]string{"Product", "Stage", "Status", "Mine", "Stage total / norm", "Notes"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "Filter by assignment status (assigned, working, completed)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func parseTriple(args []string) (int64, int64, int64, error) {
	productID, stageID, err := parsePair(args[:2])
	if err != nil {
		return 0, 0, 0, err
	}
	userID, err := parseID(args[2], "user")
	if err != nil {
		return 0, 0, 0, err
	}
	return productID, stageID, userID, nil
}
