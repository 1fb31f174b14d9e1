package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tbourn/go-mentor-backend/internal/domain"
	"github.com/tbourn/go-mentor-backend/internal/repo"
)

var (
	reingestFailed     bool
	reingestProcessing bool
)

var reingestCmd = &cobra.Command{
	Use:   "reingest [document-id...]",
	Short: "Run ingestion again for documents, in the foreground",
	Long: `Puts the named documents back through extraction, chunking and embedding.

--failed selects every failed document; --processing picks up documents left
processing by a stopped server. Documents are handled one at a time.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 && !reingestFailed && !reingestProcessing {
			return errors.New("name at least one document id or pass --failed / --processing")
		}
		a, err := newApp(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer a.close()

		ok, failed, err := reingest(cmd.Context(), a, args, reingestFailed, reingestProcessing)
		logger.Info().Int("ready", ok).Int("failed", failed).Msg("reingest finished")
		return err
	},
}

func init() {
	reingestCmd.Flags().BoolVar(&reingestFailed, "failed", false, "re-ingest every failed document")
	reingestCmd.Flags().BoolVar(&reingestProcessing, "processing", false, "resume documents left processing")
}

// reingest processes ids plus the selected status groups. Documents that are
// ready or failed are restarted first; processing ones are run as they are.
func reingest(ctx context.Context, a *app, ids []string, failed, processing bool) (okCount, failCount int, err error) {
	type job struct {
		id      string
		restart bool
	}
	var jobs []job
	seen := map[string]bool{}
	add := func(id string, restart bool) {
		if !seen[id] {
			seen[id] = true
			jobs = append(jobs, job{id: id, restart: restart})
		}
	}

	if processing {
		stuck, err := repo.ListDocumentIDsByStatus(ctx, a.db, domain.DocumentProcessing)
		if err != nil {
			return 0, 0, err
		}
		for _, id := range stuck {
			add(id, false)
		}
	}
	if failed {
		failedIDs, err := repo.ListDocumentIDsByStatus(ctx, a.db, domain.DocumentFailed)
		if err != nil {
			return 0, 0, err
		}
		for _, id := range failedIDs {
			add(id, true)
		}
	}
	for _, id := range ids {
		d, err := repo.GetDocument(ctx, a.db, id)
		if err != nil {
			return 0, 0, fmt.Errorf("document %s: %w", id, err)
		}
		add(d.ID, d.Status != domain.DocumentProcessing)
	}

	var errs []error
	for _, j := range jobs {
		if err := ctx.Err(); err != nil {
			return okCount, failCount, err
		}
		if j.restart {
			if err := repo.RestartDocument(ctx, a.db, j.id); err != nil && !errors.Is(err, repo.ErrConflict) {
				errs = append(errs, fmt.Errorf("restart %s: %w", j.id, err))
				failCount++
				continue
			}
		}
		if err := a.pipeline.Process(ctx, j.id); err != nil {
			a.log.Warn().Err(err).Str("document_id", j.id).Msg("reingest failed")
			errs = append(errs, err)
			failCount++
			continue
		}
		okCount++
	}
	return okCount, failCount, errors.Join(errs...)
}
