package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"clipforge/internal/ledger"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	var statusFilter []string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show queued and completed runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, closeStores, err := ctx.openStores()
			if err != nil {
				return err
			}
			defer closeStores()

			statuses, err := parseStatusFilter(statusFilter)
			if err != nil {
				return err
			}
			runs, err := store.ListRuns(cmd.Context(), statuses...)
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeRunsJSON(out, runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs")
				return nil
			}

			headers := []string{"ID", "SOURCE", "STATUS", "PROGRESS", "PLATFORM ID", "UPDATED"}
			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					shortID(run.ID),
					sourceLabel(run.SourceRef),
					string(run.Status),
					formatProgress(run),
					run.PlatformID,
					formatWhen(run.UpdatedAt),
				})
			}

			if isTerminal(out) {
				fmt.Fprintln(out, renderTable(headers, rows))
			} else {
				fmt.Fprintln(out, strings.Join(headers, "\t"))
				for _, row := range rows {
					fmt.Fprintln(out, strings.Join(row, "\t"))
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit machine-readable JSON")
	cmd.Flags().StringSliceVar(&statusFilter, "status", nil, "Only show runs with these statuses")
	return cmd
}

func parseStatusFilter(values []string) ([]ledger.RunStatus, error) {
	statuses := make([]ledger.RunStatus, 0, len(values))
	for _, value := range values {
		status, ok := ledger.ParseStatus(value)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", value)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

type runView struct {
	ID              string  `json:"id"`
	SourceRef       string  `json:"source_ref"`
	Status          string  `json:"status"`
	ProgressStage   string  `json:"progress_stage,omitempty"`
	ProgressPercent float64 `json:"progress_percent"`
	PlatformID      string  `json:"platform_id,omitempty"`
	ErrorMessage    string  `json:"error_message,omitempty"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

func writeRunsJSON(out io.Writer, runs []*ledger.Run) error {
	views := make([]runView, 0, len(runs))
	for _, run := range runs {
		views = append(views, runView{
			ID:              run.ID,
			SourceRef:       run.SourceRef,
			Status:          string(run.Status),
			ProgressStage:   run.ProgressStage,
			ProgressPercent: run.ProgressPercent,
			PlatformID:      run.PlatformID,
			ErrorMessage:    run.ErrorMessage,
			CreatedAt:       run.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			UpdatedAt:       run.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(views)
}
