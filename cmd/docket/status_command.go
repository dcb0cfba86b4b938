package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"docket/internal/config"
	"docket/internal/ledger"
	"docket/internal/preflight"
	"docket/internal/store"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var sourceID, orgID string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show source checkpoint, pipeline counters, and service health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store, lg *ledger.Store) error {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)

				for _, line := range renderSectionHeader("Source", colorize) {
					fmt.Fprintln(out, line)
				}
				cp, err := st.GetCheckpoint(cmd.Context(), sourceID)
				switch {
				case errors.Is(err, store.ErrNotFound):
					fmt.Fprintln(out, renderStatusLine("Checkpoint", statusWarn, "no runs recorded", colorize))
				case err != nil:
					return err
				default:
					kind := statusOK
					detail := string(cp.Status)
					switch cp.Status {
					case store.CheckpointError:
						kind = statusError
						detail = fmt.Sprintf("%s (%s)", cp.Status, cp.LastErrorMessage)
					case store.CheckpointRunning:
						kind = statusInfo
					}
					fmt.Fprintln(out, renderStatusLine("Checkpoint", kind, detail, colorize))
					if cp.LastCursor != "" {
						fmt.Fprintln(out, renderStatusLine("Cursor", statusInfo, cp.LastCursor, colorize))
					}
					if cp.LastRunAt != nil {
						fmt.Fprintln(out, renderStatusLine("Last run", statusInfo, cp.LastRunAt.Format(time.RFC3339), colorize))
					}
				}

				srcCheck := preflight.CheckSource(cmd.Context(), cfg.Source.BaseURL, cfg.Source.Token)
				srcKind := statusError
				if srcCheck.Passed {
					srcKind = statusOK
				}
				fmt.Fprintln(out, renderStatusLine("Mailbox API", srcKind, srcCheck.Detail, colorize))
				dbCheck := preflight.CheckDatabase(cfg.DatabasePath())
				dbKind := statusError
				if dbCheck.Passed {
					dbKind = statusOK
				}
				fmt.Fprintln(out, renderStatusLine("Database", dbKind, dbCheck.Detail, colorize))

				if orgID == "" {
					return nil
				}

				for _, line := range renderSectionHeader("Pipeline", colorize) {
					fmt.Fprintln(out, line)
				}
				rawCount, err := st.CountRawItems(cmd.Context(), orgID)
				if err != nil {
					return err
				}
				threadCount, err := st.CountThreads(cmd.Context(), orgID)
				if err != nil {
					return err
				}
				linkedCount, err := lg.CountByType(cmd.Context(), orgID, ledger.EventRecordLinked)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, renderStatusLine("Raw items", statusInfo, fmt.Sprintf("%d", rawCount), colorize))
				fmt.Fprintln(out, renderStatusLine("Threads", statusInfo, fmt.Sprintf("%d", threadCount), colorize))
				fmt.Fprintln(out, renderStatusLine("Linked records", statusInfo, fmt.Sprintf("%d", linkedCount), colorize))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&sourceID, "source-id", "", "Mailbox source identifier")
	cmd.Flags().StringVar(&orgID, "org-id", "", "Include pipeline counters for this organization")
	_ = cmd.MarkFlagRequired("source-id")
	return cmd
}
