package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"loomline/internal/store"
)

// writeJSON backs every command's --json flag with indented output.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseID(arg, what string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", what, arg)
	}
	return id, nil
}

func parseIDList(args []string, what string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		for _, part := range strings.Split(arg, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := parseID(part, what)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("at least one %s id is required", what)
	}
	return ids, nil
}

func formatHours(hours float64) string {
	return fmt.Sprintf("%.1fh", hours)
}

func formatLocalTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func formatLocalTimePtr(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return formatLocalTime(*t)
}

func dash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func progressLabel(a *store.ActiveStage) string {
	return fmt.Sprintf("%d/%d done, %d working", a.CompletedCount, a.WorkerCount, a.WorkingCount)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
