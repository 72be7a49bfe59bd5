package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"loomline/internal/store"
)

func newWarehouseCommand(ctx *commandContext) *cobra.Command {
	warehouseCmd := &cobra.Command{
		Use:   "warehouse",
		Short: "Manage finished-goods inventory and shipment paperwork",
	}

	warehouseCmd.AddCommand(newWarehouseListCommand(ctx))
	warehouseCmd.AddCommand(newWarehouseHistoryCommand(ctx))
	warehouseCmd.AddCommand(newWarehouseAddItemCommand(ctx))
	warehouseCmd.AddCommand(newWarehouseExportCommand(ctx))
	warehouseCmd.AddCommand(newWarehouseExportsCommand(ctx))
	warehouseCmd.AddCommand(newWarehouseInboundCommand(ctx))
	warehouseCmd.AddCommand(newWarehouseInboundListCommand(ctx))

	return warehouseCmd
}

func warehouseRows(items []*store.WarehouseItem) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		name := item.Name
		if item.ItemType == store.ItemProduct {
			name = fmt.Sprintf("%s %s", item.ProductCode, item.ProductName)
		}
		rows = append(rows, []string{
			strconv.FormatInt(item.ID, 10),
			string(item.ItemType),
			name,
			strconv.FormatInt(item.Quantity, 10),
			formatLocalTime(item.AddedAt),
			formatLocalTimePtr(item.ExportedAt),
		})
	}
	return rows
}

func newWarehouseListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List available inventory",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				items, err := st.AvailableInventory(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, items)
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Warehouse is empty")
					return nil
				}
				table := renderTable(
					[]string{"ID", "Type", "Item", "Qty", "Added", "Exported"},
					warehouseRows(items),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newWarehouseHistoryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List exported inventory",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				items, err := st.ExportHistory(cmd.Context())
				if err != nil {
					return err
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Nothing has shipped yet")
					return nil
				}
				table := renderTable(
					[]string{"ID", "Type", "Item", "Qty", "Added", "Exported"},
					warehouseRows(items),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}
}

func newWarehouseAddItemCommand(ctx *commandContext) *cobra.Command {
	var itemType string
	var description string
	var quantity int64

	cmd := &cobra.Command{
		Use:   "add-item <name>",
		Short: "Add a non-product item to the warehouse",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				item, err := st.AddCustomItem(cmd.Context(), store.WarehouseItemType(strings.TrimSpace(itemType)), args[0], description, quantity)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s (id %d, qty %d)\n", item.Name, item.ID, item.Quantity)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&itemType, "type", "misc", "Item type (document, personal, misc)")
	cmd.Flags().StringVar(&description, "description", "", "Item description")
	cmd.Flags().Int64Var(&quantity, "quantity", 1, "Quantity")
	return cmd
}

func newWarehouseExportCommand(ctx *commandContext) *cobra.Command {
	var title string
	var description string
	var address string
	var approvedBy string
	var createdBy int64

	cmd := &cobra.Command{
		Use:   "export <warehouse-item-id>...",
		Short: "Create an export record and mark its items shipped",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemIDs, err := parseIDList(args, "warehouse item")
			if err != nil {
				return err
			}
			if createdBy <= 0 {
				return fmt.Errorf("--created-by is required")
			}
			return ctx.withStore(func(st *store.Store) error {
				record, err := st.CreateExportRecord(cmd.Context(), title, description, address, approvedBy, createdBy, itemIDs, nil)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Export %s created with %d items\n", record.ReferenceCode, len(record.Items))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Shipment title")
	cmd.Flags().StringVar(&description, "description", "", "Shipment description")
	cmd.Flags().StringVar(&address, "address", "", "Shipping address")
	cmd.Flags().StringVar(&approvedBy, "approved-by", "", "Approver name")
	cmd.Flags().Int64Var(&createdBy, "created-by", 0, "Creating user id")
	return cmd
}

func newWarehouseExportsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "exports",
		Short: "List export records, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				records, err := st.ExportRecords(cmd.Context())
				if err != nil {
					return err
				}
				if len(records) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No export records")
					return nil
				}
				rows := make([][]string, 0, len(records))
				for _, record := range records {
					rows = append(rows, []string{
						record.ReferenceCode,
						record.Title,
						record.CreatorName,
						strconv.Itoa(len(record.Items) + len(record.CustomItems)),
						formatLocalTime(record.CreatedAt),
					})
				}
				table := renderTable(
					[]string{"Reference", "Title", "Created by", "Lines", "Created"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}
}

func newWarehouseInboundCommand(ctx *commandContext) *cobra.Command {
	var description string
	var createdBy int64

	cmd := &cobra.Command{
		Use:   "inbound <product-id> <stage-id>...",
		Short: "Record intake paperwork with the planned stages",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			productID, err := parseID(args[0], "product")
			if err != nil {
				return err
			}
			stageIDs, err := parseIDList(args[1:], "stage")
			if err != nil {
				return err
			}
			if createdBy <= 0 {
				return fmt.Errorf("--created-by is required")
			}
			stages := make([]store.InboundStageInput, 0, len(stageIDs))
			for _, id := range stageIDs {
				stages = append(stages, store.InboundStageInput{StageID: id})
			}
			return ctx.withStore(func(st *store.Store) error {
				record, err := st.CreateInboundRecord(cmd.Context(), productID, description, createdBy, stages)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Inbound record %d created for %s with %d stages\n",
					record.ID, record.ProductCode, len(record.Stages))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "Intake description")
	cmd.Flags().Int64Var(&createdBy, "created-by", 0, "Creating user id")
	return cmd
}

func newWarehouseInboundListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "inbounds",
		Short: "List inbound records, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				records, err := st.InboundRecords(cmd.Context())
				if err != nil {
					return err
				}
				if len(records) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No inbound records")
					return nil
				}
				rows := make([][]string, 0, len(records))
				for _, record := range records {
					stageNames := make([]string, 0, len(record.Stages))
					for _, stage := range record.Stages {
						stageNames = append(stageNames, stage.StageName)
					}
					rows = append(rows, []string{
						strconv.FormatInt(record.ID, 10),
						record.ProductCode,
						record.CreatorName,
						strings.Join(stageNames, ", "),
						formatLocalTime(record.CreatedAt),
					})
				}
				table := renderTable(
					[]string{"ID", "Product", "Created by", "Stages", "Created"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}
}
