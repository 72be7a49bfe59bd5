package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"loomline/internal/store"
)

func newStageCommand(ctx *commandContext) *cobra.Command {
	stageCmd := &cobra.Command{
		Use:   "stage",
		Short: "Manage the manufacturing stage registry",
	}

	stageCmd.AddCommand(newStageListCommand(ctx))
	stageCmd.AddCommand(newStageAddCommand(ctx))
	stageCmd.AddCommand(newStageUpdateCommand(ctx))
	stageCmd.AddCommand(newStageReorderCommand(ctx))
	stageCmd.AddCommand(newStageStatsCommand(ctx))
	stageCmd.AddCommand(newStageRemoveCommand(ctx))

	return stageCmd
}

func newStageListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stages in sequence order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				stages, err := st.ListStages(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, stages)
				}
				rows := make([][]string, 0, len(stages))
				for _, s := range stages {
					rows = append(rows, []string{
						strconv.FormatInt(s.Sequence, 10),
						strconv.FormatInt(s.ID, 10),
						s.Name,
						fmt.Sprintf("%dh", s.NormHours),
						dash(s.Description),
					})
				}
				table := renderTable(
					[]string{"Seq", "ID", "Name", "Norm", "Description"},
					rows,
					[]columnAlignment{alignRight, alignRight, alignLeft, alignRight, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newStageAddCommand(ctx *commandContext) *cobra.Command {
	var normHours int64
	var description string

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Append a stage to the end of the sequence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				stage, err := st.CreateStage(cmd.Context(), args[0], normHours, description)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created stage %s (id %d) at sequence %d\n", stage.Name, stage.ID, stage.Sequence)
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&normHours, "norm-hours", 4, "Standard hours allotted to the stage")
	cmd.Flags().StringVar(&description, "description", "", "Stage description")
	return cmd
}

func newStageUpdateCommand(ctx *commandContext) *cobra.Command {
	var name string
	var normHours int64
	var description string

	cmd := &cobra.Command{
		Use:   "update <stage-id>",
		Short: "Update a stage's name, norm hours, or description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "stage")
			if err != nil {
				return err
			}
			return ctx.withStore(func(st *store.Store) error {
				current, err := st.GetStage(cmd.Context(), id)
				if err != nil {
					return err
				}
				if !cmd.Flags().Changed("name") {
					name = current.Name
				}
				if !cmd.Flags().Changed("norm-hours") {
					normHours = current.NormHours
				}
				if !cmd.Flags().Changed("description") {
					description = current.Description
				}
				stage, err := st.UpdateStage(cmd.Context(), id, name, normHours, description)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated stage %s (norm %dh)\n", stage.Name, stage.NormHours)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "New stage name")
	cmd.Flags().Int64Var(&normHours, "norm-hours", 0, "New standard hours")
	cmd.Flags().StringVar(&description, "description", "", "New description")
	return cmd
}

func newStageReorderCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reorder <stage-id>...",
		Short: "Reorder stages; every stage id must appear exactly once",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDList(args, "stage")
			if err != nil {
				return err
			}
			return ctx.withStore(func(st *store.Store) error {
				if err := st.ReorderStages(cmd.Context(), ids); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Stage order updated")
				return nil
			})
		},
	}
}

func newStageStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <stage-id>",
		Short: "Show per-product worker effort on one stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "stage")
			if err != nil {
				return err
			}
			return ctx.withStore(func(st *store.Store) error {
				stats, err := st.StageWorkerStats(cmd.Context(), id)
				if err != nil {
					return err
				}
				if len(stats) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No work recorded on this stage")
					return nil
				}
				rows := make([][]string, 0, len(stats))
				for _, stat := range stats {
					rows = append(rows, []string{
						stat.ProductCode,
						stat.ProductName,
						strconv.FormatInt(stat.WorkerCount, 10),
						formatHours(stat.TotalHours),
						formatHours(stat.AvgHours),
					})
				}
				table := renderTable(
					[]string{"Product", "Name", "Workers", "Total", "Avg"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}
}

func newStageRemoveCommand(ctx *commandContext) *cobra.Command {
	var confirmed bool

	cmd := &cobra.Command{
		Use:   "remove <stage-id>",
		Short: "Delete a stage and all work recorded against it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "stage")
			if err != nil {
				return err
			}
			if !confirmed {
				return fmt.Errorf("stage removal deletes its assignments and requests; re-run with --yes")
			}
			return ctx.withStore(func(st *store.Store) error {
				if err := st.DeleteStageCascade(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed stage %d and renumbered the sequence\n", id)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&confirmed, "yes", false, "Confirm the cascade delete")
	return cmd
}
