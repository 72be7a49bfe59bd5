package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"loomline/internal/store"
)

func newProductCommand(ctx *commandContext) *cobra.Command {
	productCmd := &cobra.Command{
		Use:   "product",
		Short: "Manage tracked products",
	}

	productCmd.AddCommand(newProductAddCommand(ctx))
	productCmd.AddCommand(newProductListCommand(ctx))
	productCmd.AddCommand(newProductShowCommand(ctx))

	return productCmd
}

func newProductAddCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add <code> <name>",
		Short: "Register a product",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				product, err := st.CreateProduct(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created product %s (id %d)\n", product.Code, product.ID)
				return nil
			})
		},
	}
}

func newProductListCommand(ctx *commandContext) *cobra.Command {
	var statusFilter string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List products, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				products, err := st.ListProducts(cmd.Context(), store.ProductStatus(strings.TrimSpace(statusFilter)))
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, products)
				}
				if len(products) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No products")
					return nil
				}
				rows := make([][]string, 0, len(products))
				for _, p := range products {
					rows = append(rows, []string{
						strconv.FormatInt(p.ID, 10),
						p.Code,
						p.Name,
						string(p.Status),
						formatLocalTime(p.CreatedAt),
						formatLocalTimePtr(p.CompletedAt),
					})
				}
				table := renderTable(
					[]string{"ID", "Code", "Name", "Status", "Created", "Completed"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "Filter by status (pending, in_progress, completed)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newProductShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <code-or-id>",
		Short: "Show a product with its stages and workers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				product, err := resolveProduct(cmd, st, args[0])
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				for _, line := range renderSectionHeader(fmt.Sprintf("%s %s", product.Code, product.Name), colorize) {
					fmt.Fprintln(out, line)
				}
				fmt.Fprintln(out, renderStatusLine("Status", productStatusKind(product.Status), string(product.Status), colorize))
				fmt.Fprintln(out, renderStatusLine("Created", statusInfo, formatLocalTime(product.CreatedAt), colorize))
				if product.CompletedAt != nil {
					fmt.Fprintln(out, renderStatusLine("Completed", statusOK, formatLocalTimePtr(product.CompletedAt), colorize))
				}

				pairs, err := st.ActiveStagesByProduct(cmd.Context(), product.ID)
				if err != nil {
					return err
				}
				if len(pairs) == 0 {
					fmt.Fprintln(out, "No stages activated yet")
					return nil
				}
				rows := make([][]string, 0, len(pairs))
				for _, pair := range pairs {
					rows = append(rows, []string{
						strconv.FormatInt(pair.StageSequence, 10),
						pair.StageName,
						string(pair.Status),
						fmt.Sprintf("%dh", pair.EffectiveNormHours()),
						progressLabel(pair),
						formatLocalTime(pair.StartedAt),
					})
				}
				table := renderTable(
					[]string{"Seq", "Stage", "Status", "Norm", "Workers", "Started"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				)
				fmt.Fprintln(out, table)

				workers, err := st.AllWorkersByProduct(cmd.Context(), product.ID)
				if err != nil {
					return err
				}
				if len(workers) == 0 {
					return nil
				}
				workerRows := make([][]string, 0, len(workers))
				for _, w := range workers {
					workerRows = append(workerRows, []string{
						w.StageName,
						w.WorkerName,
						string(w.Status),
						formatHours(w.HoursElapsed),
						dash(w.Notes),
					})
				}
				workerTable := renderTable(
					[]string{"Stage", "Worker", "Status", "Hours", "Notes"},
					workerRows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				)
				fmt.Fprintln(out, workerTable)
				return nil
			})
		},
	}
}

func resolveProduct(cmd *cobra.Command, st *store.Store, arg string) (*store.Product, error) {
	if id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64); err == nil && id > 0 {
		return st.GetProduct(cmd.Context(), id)
	}
	return st.GetProductByCode(cmd.Context(), arg)
}

func productStatusKind(status store.ProductStatus) statusKind {
	switch status {
	case store.ProductCompleted:
		return statusOK
	case store.ProductInProgress:
		return statusInfo
	default:
		return statusWarn
	}
}
