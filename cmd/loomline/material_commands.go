package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"loomline/internal/store"
	"loomline/internal/workflow"
)

func newMaterialCommand(ctx *commandContext) *cobra.Command {
	materialCmd := &cobra.Command{
		Use:   "material",
		Short: "Report and track material shortages",
	}

	materialCmd.AddCommand(newMaterialRequestCommand(ctx))
	materialCmd.AddCommand(newMaterialListCommand(ctx))
	materialCmd.AddCommand(newMaterialPurchaseCommand(ctx))
	materialCmd.AddCommand(newMaterialDeliverCommand(ctx))
	materialCmd.AddCommand(newMaterialCommentCommand(ctx))
	materialCmd.AddCommand(newMaterialThreadCommand(ctx))

	return materialCmd
}

func newMaterialRequestCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "request <product-id> <stage-id> <requester-id> <reason>",
		Short: "Report a material shortage on a stage",
		Args:  cobra.MinimumNArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			productID, stageID, requesterID, err := parseTriple(args[:3])
			if err != nil {
				return err
			}
			reason := strings.Join(args[3:], " ")
			return ctx.withManager(func(m *workflow.Manager) error {
				request, err := m.CreateMaterialRequest(ctx.actorContext(cmd.Context()), productID, stageID, requesterID, reason)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Request %d filed for %s / %s\n", request.ID, request.ProductCode, request.StageName)
				return nil
			})
		},
	}
}

func newMaterialListCommand(ctx *commandContext) *cobra.Command {
	var statusFilter string
	var productID int64
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List material requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				requests, err := st.ListMaterialRequests(cmd.Context(), store.RequestStatus(strings.TrimSpace(statusFilter)), productID)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, requests)
				}
				if len(requests) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No material requests")
					return nil
				}
				rows := make([][]string, 0, len(requests))
				for _, r := range requests {
					rows = append(rows, []string{
						strconv.FormatInt(r.ID, 10),
						r.ProductCode,
						r.StageName,
						r.RequesterName,
						string(r.Status),
						r.Reason,
						dash(r.ExpectedDelivery),
					})
				}
				table := renderTable(
					[]string{"ID", "Product", "Stage", "Requester", "Status", "Reason", "Delivery"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "Filter by status (pending, purchased, delivered)")
	cmd.Flags().Int64Var(&productID, "product", 0, "Filter by product id")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newMaterialPurchaseCommand(ctx *commandContext) *cobra.Command {
	var purchaserID int64
	var delivery string
	var note string

	cmd := &cobra.Command{
		Use:   "purchase <request-id>",
		Short: "Mark a pending request as purchased",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			requestID, err := parseID(args[0], "request")
			if err != nil {
				return err
			}
			if purchaserID <= 0 {
				return fmt.Errorf("--purchaser is required")
			}
			return ctx.withManager(func(m *workflow.Manager) error {
				request, err := m.MarkRequestPurchased(ctx.actorContext(cmd.Context()), requestID, purchaserID, delivery, note)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Request %d purchased (delivery %s)\n", request.ID, dash(request.ExpectedDelivery))
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&purchaserID, "purchaser", 0, "Purchasing user id")
	cmd.Flags().StringVar(&delivery, "delivery", "", "Expected delivery date")
	cmd.Flags().StringVar(&note, "note", "", "Response note for the requester")
	return cmd
}

func newMaterialDeliverCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deliver <request-id>",
		Short: "Mark a purchased request as delivered",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			requestID, err := parseID(args[0], "request")
			if err != nil {
				return err
			}
			return ctx.withManager(func(m *workflow.Manager) error {
				request, err := m.MarkRequestDelivered(ctx.actorContext(cmd.Context()), requestID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Request %d delivered\n", request.ID)
				return nil
			})
		},
	}
}

func newMaterialCommentCommand(ctx *commandContext) *cobra.Command {
	var userID int64

	cmd := &cobra.Command{
		Use:   "comment <request-id> <message>",
		Short: "Add a message to a request thread",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			requestID, err := parseID(args[0], "request")
			if err != nil {
				return err
			}
			if userID <= 0 {
				return fmt.Errorf("--user is required")
			}
			message := strings.Join(args[1:], " ")
			return ctx.withManager(func(m *workflow.Manager) error {
				if _, err := m.AddRequestMessage(ctx.actorContext(cmd.Context()), requestID, userID, message); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Message added")
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&userID, "user", 0, "Commenting user id")
	return cmd
}

func newMaterialThreadCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "thread <request-id>",
		Short: "Show a request with its message thread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			requestID, err := parseID(args[0], "request")
			if err != nil {
				return err
			}
			return ctx.withStore(func(st *store.Store) error {
				request, err := st.GetMaterialRequest(cmd.Context(), requestID)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				for _, line := range renderSectionHeader(fmt.Sprintf("Request %d: %s / %s", request.ID, request.ProductCode, request.StageName), colorize) {
					fmt.Fprintln(out, line)
				}
				fmt.Fprintln(out, renderStatusLine("Status", requestStatusKind(request.Status), string(request.Status), colorize))
				fmt.Fprintln(out, renderStatusLine("Requester", statusInfo, request.RequesterName, colorize))
				fmt.Fprintln(out, renderStatusLine("Reason", statusInfo, request.Reason, colorize))
				if request.ResponseNote != "" {
					fmt.Fprintln(out, renderStatusLine("Note", statusInfo, request.ResponseNote, colorize))
				}
				if request.ExpectedDelivery != "" {
					fmt.Fprintln(out, renderStatusLine("Delivery", statusInfo, request.ExpectedDelivery, colorize))
				}

				messages, err := st.RequestMessages(cmd.Context(), requestID)
				if err != nil {
					return err
				}
				for _, msg := range messages {
					fmt.Fprintf(out, "%s[%s] %s: %s\n", statusIndent, formatLocalTime(msg.CreatedAt), msg.UserName, msg.Message)
				}
				return nil
			})
		},
	}
}

func requestStatusKind(status store.RequestStatus) statusKind {
	switch status {
	case store.RequestDelivered:
		return statusOK
	case store.RequestPurchased:
		return statusInfo
	default:
		return statusWarn
	}
}
