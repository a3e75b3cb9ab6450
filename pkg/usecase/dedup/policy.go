package dedup

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/miru/pkg/model"
	"github.com/m-mizutani/miru/pkg/utils/logging"
)

// OnRecordInserted is the single integration point of the duplicate engine.
// Call it after rec has been durably saved: it scores rec against the most
// recent records of the same user, deletes the older record of the first
// pair whose score crosses the duplicate threshold, and returns the deleted
// ID (empty when nothing was suppressed). At most one record is deleted per
// insertion.
//
// A candidate-fetch failure propagates; silently skipping the scan would
// drop the duplicate-suppression guarantee without telling the caller. The
// newly inserted record itself is never touched.
func (e *Engine) OnRecordInserted(ctx context.Context, rec *model.VisualRecord) (model.RecordID, error) {
	recent, err := e.repo.ListRecent(ctx, rec.UserID, rec.ID, e.cfg.RecentLimit)
	if err != nil {
		return "", goerr.Wrap(err, "failed to list recent records", goerr.Value("user_id", rec.UserID))
	}

	for _, candidate := range recent {
		score, err := e.ScoreContexts(ctx, &candidate.Context, &rec.Context)
		if err != nil {
			return "", goerr.Wrap(err, "failed to score candidate", goerr.Value("candidate", candidate.ID))
		}

		if score <= e.cfg.DuplicateThreshold {
			continue
		}

		// The older record yields to the newer one.
		if err := e.repo.DeleteRecord(ctx, candidate.ID); err != nil {
			return "", goerr.Wrap(err, "failed to delete duplicate record", goerr.Value("id", candidate.ID))
		}

		logging.From(ctx).Info("suppressed duplicate visual record",
			"deleted", candidate.ID, "kept", rec.ID, "score", score)
		return candidate.ID, nil
	}

	return "", nil
}

// Purge runs the on-demand two-stage duplicate scan for one record against
// all records of its user. Stage one is a cheap lexical prescreen
// (QuickScore) that keeps the expensive semantic comparison off most pairs;
// stage two is the full document comparison. Every candidate that crosses
// the duplicate threshold is deleted; the anchor record survives.
func (e *Engine) Purge(ctx context.Context, id model.RecordID) ([]model.RecordID, error) {
	rec, err := e.repo.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}

	all, err := e.repo.ListRecords(ctx, rec.UserID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list records", goerr.Value("user_id", rec.UserID))
	}

	var deleted []model.RecordID
	for _, candidate := range all {
		if candidate.ID == rec.ID {
			continue
		}
		if e.QuickScore(&rec.Context, &candidate.Context) <= e.cfg.PrefilterThreshold {
			continue
		}

		score, err := e.ScoreContexts(ctx, &rec.Context, &candidate.Context)
		if err != nil {
			return deleted, goerr.Wrap(err, "failed to score candidate", goerr.Value("candidate", candidate.ID))
		}
		if score <= e.cfg.DuplicateThreshold {
			continue
		}

		if err := e.repo.DeleteRecord(ctx, candidate.ID); err != nil {
			return deleted, goerr.Wrap(err, "failed to delete duplicate record", goerr.Value("id", candidate.ID))
		}
		deleted = append(deleted, candidate.ID)
	}

	if len(deleted) > 0 {
		logging.From(ctx).Info("purged duplicate visual records",
			"anchor", rec.ID, "deleted", len(deleted))
	}
	return deleted, nil
}
