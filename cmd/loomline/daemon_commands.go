package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"loomline/internal/daemon"
	"loomline/internal/logging"
	"loomline/internal/store"
	"loomline/internal/workflow"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the tracker daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			st, err := store.Open(cfg)
			if err != nil {
				return err
			}

			manager := workflow.NewManager(cfg, st, logger)
			d, err := daemon.New(cfg, st, logger, manager)
			if err != nil {
				_ = st.Close()
				return err
			}
			defer d.Close()

			if err := d.Start(signalCtx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Daemon listening on %s\n", d.APIAddr())

			<-signalCtx.Done()
			return nil
		},
	}
}

type daemonStatusPayload struct {
	Running      bool   `json:"running"`
	DatabaseOK   bool   `json:"databaseOk"`
	DatabasePath string `json:"databasePath"`
	LockFilePath string `json:"lockFilePath"`
	APIAddress   string `json:"apiAddress"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and database status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range renderSectionHeader("Loomline", colorize) {
				fmt.Fprintln(out, line)
			}
			fmt.Fprintln(out, renderStatusLine("Database", statusInfo, cfg.DatabasePath(), colorize))

			payload, err := fetchDaemonStatus(cmd.Context(), cfg.Paths.APIBind)
			if err != nil {
				fmt.Fprintln(out, renderStatusLine("Daemon", statusWarn, "not running", colorize))
				return nil
			}
			fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, "running", colorize))
			dbState, dbKind := "healthy", statusOK
			if !payload.DatabaseOK {
				dbState, dbKind = "unreachable", statusError
			}
			fmt.Fprintln(out, renderStatusLine("Database check", dbKind, dbState, colorize))
			fmt.Fprintln(out, renderStatusLine("API", statusInfo, payload.APIAddress, colorize))
			fmt.Fprintln(out, renderStatusLine("Lock", statusInfo, payload.LockFilePath, colorize))
			return nil
		},
	}
}

func fetchDaemonStatus(ctx context.Context, bind string) (*daemonStatusPayload, error) {
	reqCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, "http://"+bind+"/api/status", nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status endpoint returned %d", resp.StatusCode)
	}
	var payload daemonStatusPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	return &payload, nil
}
