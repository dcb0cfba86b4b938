package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"docket/internal/config"
	"docket/internal/ingest"
	"docket/internal/ledger"
	"docket/internal/match"
	"docket/internal/normalize"
	"docket/internal/store"
)

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var orgID, sourceID string
	var fromCheckpoint bool

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Pull mailbox threads into raw items and documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store, lg *ledger.Store) error {
				result, err := runIngest(cmd, ctx, cfg, st, lg, orgID, sourceID, fromCheckpoint)
				if err != nil {
					return err
				}
				if len(result.Errors) > 0 {
					return fmt.Errorf("%d thread(s) failed; see log for details", len(result.Errors))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&orgID, "org-id", "", "Organization scope")
	cmd.Flags().StringVar(&sourceID, "source-id", "", "Mailbox source identifier")
	cmd.Flags().BoolVar(&fromCheckpoint, "from-checkpoint", false, "Resume from the stored cursor instead of the lookback window")
	_ = cmd.MarkFlagRequired("org-id")
	_ = cmd.MarkFlagRequired("source-id")
	return cmd
}

func runIngest(cmd *cobra.Command, ctx *commandContext, cfg *config.Config, st *store.Store, lg *ledger.Store, orgID, sourceID string, fromCheckpoint bool) (*ingest.RunResult, error) {
	ing, err := ctx.newIngestor(cfg, st, lg, ctx.logger())
	if err != nil {
		return nil, err
	}
	result, err := ing.Run(cmd.Context(), ingest.RunRequest{
		OrgID:          orgID,
		MailboxID:      sourceID,
		FromCheckpoint: fromCheckpoint,
	})
	if err != nil {
		if errors.Is(err, ingest.ErrAlreadyRunning) {
			return nil, fmt.Errorf("source %s: %w", sourceID, err)
		}
		return nil, err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Ingested %d thread(s), %d message(s)\n", result.ThreadsIngested, result.MessagesIngested)
	fmt.Fprintf(out, "Attachments: %d stored, %d by reference\n", result.AttachmentsStored, result.AttachmentsSkipped)
	for _, threadErr := range result.Errors {
		fmt.Fprintf(out, "Failed: %v\n", threadErr)
	}
	return result, nil
}

func newNormalizeCommand(ctx *commandContext) *cobra.Command {
	var orgID string

	cmd := &cobra.Command{
		Use:   "normalize",
		Short: "Derive structured items from raw items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store, lg *ledger.Store) error {
				_, err := runNormalize(cmd, ctx, cfg, st, lg, orgID)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&orgID, "org-id", "", "Organization scope")
	_ = cmd.MarkFlagRequired("org-id")
	return cmd
}

func runNormalize(cmd *cobra.Command, ctx *commandContext, cfg *config.Config, st *store.Store, lg *ledger.Store, orgID string) (*normalize.Result, error) {
	engine, err := normalize.New(st, lg, nil, cfg.Normalize.MaxRecipients, ctx.logger())
	if err != nil {
		return nil, err
	}
	result, err := engine.Run(cmd.Context(), orgID)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Normalized %d item(s), skipped %d\n", result.ItemsNormalized, result.ItemsSkipped)
	return result, nil
}

func newMatchCommand(ctx *commandContext) *cobra.Command {
	var orgID, actorID string

	cmd := &cobra.Command{
		Use:   "match",
		Short: "Link normalized items to records",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store, lg *ledger.Store) error {
				_, err := runMatch(cmd, ctx, st, lg, orgID, actorID)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&orgID, "org-id", "", "Organization scope")
	cmd.Flags().StringVar(&actorID, "actor-id", "", "Actor recorded on new links")
	_ = cmd.MarkFlagRequired("org-id")
	return cmd
}

func runMatch(cmd *cobra.Command, ctx *commandContext, st *store.Store, lg *ledger.Store, orgID, actorID string) (*match.Result, error) {
	engine, err := match.New(st, lg, ctx.logger())
	if err != nil {
		return nil, err
	}
	if actorID != "" {
		engine = engine.WithActor(actorID)
	}
	result, err := engine.Run(cmd.Context(), orgID)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Matched %d item(s), %d unmatched, %d already linked\n",
		result.ItemsMatched, result.ItemsUnmatched, result.ItemsSkipped)
	return result, nil
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var orgID, sourceID string
	var fromCheckpoint bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Ingest, normalize, and match in one pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store, lg *ledger.Store) error {
				ingestResult, err := runIngest(cmd, ctx, cfg, st, lg, orgID, sourceID, fromCheckpoint)
				if err != nil {
					return err
				}
				if _, err := runNormalize(cmd, ctx, cfg, st, lg, orgID); err != nil {
					return err
				}
				if _, err := runMatch(cmd, ctx, st, lg, orgID, ""); err != nil {
					return err
				}
				if len(ingestResult.Errors) > 0 {
					return fmt.Errorf("%d thread(s) failed; see log for details", len(ingestResult.Errors))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&orgID, "org-id", "", "Organization scope")
	cmd.Flags().StringVar(&sourceID, "source-id", "", "Mailbox source identifier")
	cmd.Flags().BoolVar(&fromCheckpoint, "from-checkpoint", false, "Resume from the stored cursor instead of the lookback window")
	_ = cmd.MarkFlagRequired("org-id")
	_ = cmd.MarkFlagRequired("source-id")
	return cmd
}
