package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"docket/internal/config"
	"docket/internal/ledger"
	"docket/internal/store"
)

func newTimelineCommand(ctx *commandContext) *cobra.Command {
	var orgID, entityID string
	var limit int

	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "Show the audit trail for one entity, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store, lg *ledger.Store) error {
				events, err := lg.Timeline(cmd.Context(), orgID, entityID, limit)
				if err != nil {
					return err
				}
				if len(events) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No events recorded for this entity")
					return nil
				}

				rows := make([][]string, 0, len(events))
				for _, event := range events {
					rows = append(rows, []string{
						event.CreatedAt.Format(time.RFC3339),
						event.EventType,
						actorLabel(event),
						payloadSummary(event.Payload),
					})
				}
				out := renderTable([]string{"Time", "Event", "Actor", "Payload"}, rows)
				fmt.Fprintln(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&orgID, "org-id", "", "Organization scope")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "Entity whose history to show")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of events")
	_ = cmd.MarkFlagRequired("org-id")
	_ = cmd.MarkFlagRequired("entity-id")
	return cmd
}

func actorLabel(event *ledger.Event) string {
	if event.ActorID != "" {
		return event.ActorID
	}
	return event.ActorType
}

// payloadSummary renders a compact single-line view of the event payload.
func payloadSummary(payload map[string]any) string {
	if len(payload) == 0 {
		return ""
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	const maxWidth = 60
	summary := string(encoded)
	if len(summary) > maxWidth {
		summary = summary[:maxWidth-3] + "..."
	}
	return summary
}
