package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"docket/internal/config"
	"docket/internal/ledger"
	"docket/internal/store"
)

func newRecordsCommand(ctx *commandContext) *cobra.Command {
	recordsCmd := &cobra.Command{
		Use:   "records",
		Short: "Manage canonical records and their links",
	}

	recordsCmd.AddCommand(newRecordsAddCommand(ctx))
	recordsCmd.AddCommand(newRecordsListCommand(ctx))
	recordsCmd.AddCommand(newRecordsLinkCommand(ctx))

	return recordsCmd
}

func newRecordsAddCommand(ctx *commandContext) *cobra.Command {
	var orgID, recordType, title string
	var tags []string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a record",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store, lg *ledger.Store) error {
				id, err := st.CreateRecord(cmd.Context(), &store.Record{
					OrgID:      orgID,
					RecordType: recordType,
					Title:      strings.TrimSpace(title),
					Tags:       tags,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created record %s\n", id)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&orgID, "org-id", "", "Organization scope")
	cmd.Flags().StringVar(&recordType, "type", "matter", "Record type")
	cmd.Flags().StringVar(&title, "title", "", "Record title (used for matching)")
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "Tags attached to the record")
	_ = cmd.MarkFlagRequired("org-id")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newRecordsListCommand(ctx *commandContext) *cobra.Command {
	var orgID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List records",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store, lg *ledger.Store) error {
				records, err := st.ListRecords(cmd.Context(), orgID)
				if err != nil {
					return err
				}
				if len(records) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No records")
					return nil
				}

				rows := make([][]string, 0, len(records))
				for _, record := range records {
					rows = append(rows, []string{
						record.ID,
						record.RecordType,
						record.Title,
						record.Status,
						strings.Join(record.Tags, ", "),
						record.CreatedAt.Format(time.RFC3339),
					})
				}
				out := renderTable([]string{"ID", "Type", "Title", "Status", "Tags", "Created"}, rows)
				fmt.Fprintln(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&orgID, "org-id", "", "Organization scope")
	_ = cmd.MarkFlagRequired("org-id")
	return cmd
}

func newRecordsLinkCommand(ctx *commandContext) *cobra.Command {
	var orgID, itemID, recordID, actorID string

	cmd := &cobra.Command{
		Use:   "link",
		Short: "Manually link a normalized item to a record",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store, lg *ledger.Store) error {
				item, err := st.GetNormalizedItemByID(cmd.Context(), orgID, itemID)
				if err != nil {
					if errors.Is(err, store.ErrNotFound) {
						return fmt.Errorf("normalized item %s not found", itemID)
					}
					return err
				}
				record, err := st.GetRecord(cmd.Context(), orgID, recordID)
				if err != nil {
					if errors.Is(err, store.ErrNotFound) {
						return fmt.Errorf("record %s not found", recordID)
					}
					return err
				}
				raw, err := st.GetRawItem(cmd.Context(), orgID, item.IdempotencyKey)
				if err != nil {
					return err
				}

				linkID, created, err := st.UpsertRecordLink(cmd.Context(), &store.RecordLink{
					OrgID:      orgID,
					SourceType: "message",
					SourceID:   raw.ID,
					TargetType: "record",
					TargetID:   record.ID,
					LinkMethod: store.LinkMethodManual,
					LinkedBy:   actorID,
				})
				if err != nil {
					return err
				}

				item.Payload.MatchStatus = store.MatchStatusMatched
				if _, err := st.UpsertNormalizedItem(cmd.Context(), item); err != nil {
					return err
				}

				if _, err := lg.Append(cmd.Context(), ledger.Event{
					OrgID:      orgID,
					ActorID:    actorID,
					ActorType:  "user",
					EventType:  ledger.EventRecordLinked,
					EntityType: ledger.EntityRecord,
					EntityID:   record.ID,
					Payload: map[string]any{
						"idempotency_key":    "link:message:" + raw.ID + ":record:" + record.ID,
						"link_id":            linkID,
						"link_method":        store.LinkMethodManual,
						"normalized_item_id": item.ID,
					},
				}); err != nil {
					return err
				}

				if created {
					fmt.Fprintf(cmd.OutOrStdout(), "Linked item %s to record %s\n", item.ID, record.ID)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Updated existing link between item %s and record %s\n", item.ID, record.ID)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&orgID, "org-id", "", "Organization scope")
	cmd.Flags().StringVar(&itemID, "source-id", "", "Normalized item id")
	cmd.Flags().StringVar(&recordID, "record-id", "", "Record id")
	cmd.Flags().StringVar(&actorID, "actor-id", "", "Actor recorded on the link")
	_ = cmd.MarkFlagRequired("org-id")
	_ = cmd.MarkFlagRequired("source-id")
	_ = cmd.MarkFlagRequired("record-id")
	return cmd
}
